package region

import "sync"

type phase int

const (
	phaseLive phase = iota
	phaseDeleting
	phaseDeleted
)

// Machine tracks the lifecycle and progress of a single region.
//
// All methods are safe for concurrent use. Once BeginDelete has been called,
// state-changing methods and Status return ErrRegionNotFound, unless the
// deletion is aborted with AbortDelete.
type Machine struct {
	mu     sync.Mutex
	id     int64
	phase  phase
	status Status
}

// NewMachine creates a machine for region id in the Inactive state.
func NewMachine(id int64) *Machine {
	return &Machine{id: id}
}

// RestoreMachine creates an Inactive machine whose counters reflect resources
// already held by the region, e.g. after a restart. The required count is
// not precise until the region is walked again.
func RestoreMachine(id int64, completed, completedSize, tiles, tileSize uint64) *Machine {
	return &Machine{
		id: id,
		status: Status{
			CompletedResourceCount: completed,
			CompletedResourceSize:  completedSize,
			CompletedTileCount:     tiles,
			CompletedTileSize:      tileSize,
			RequiredResourceCount:  completed,
		},
	}
}

// ID returns the region id.
func (m *Machine) ID() int64 {
	return m.id
}

// SetDownloadState changes the download state. changed is false when the
// region was already in the requested state.
func (m *Machine) SetDownloadState(s DownloadState) (changed bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != phaseLive {
		return false, ErrRegionNotFound
	}
	if m.status.DownloadState == s {
		return false, nil
	}
	m.status.DownloadState = s
	return true, nil
}

// DownloadState returns the current download state.
func (m *Machine) DownloadState() DownloadState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status.DownloadState
}

// Status returns the latest snapshot.
func (m *Machine) Status() (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != phaseLive {
		return Status{}, ErrRegionNotFound
	}
	return m.status, nil
}

// Snapshot returns the latest snapshot regardless of the deletion phase.
func (m *Machine) Snapshot() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// ResetProgress clears the counters before the region's resources are walked
// again. The download state and the limit flag are kept.
func (m *Machine) ResetProgress() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.status = Status{
		DownloadState:          m.status.DownloadState,
		TileCountLimitExceeded: m.status.TileCountLimitExceeded,
	}
	return m.status
}

// AddRequired records n newly discovered required resources.
func (m *Machine) AddRequired(n uint64) Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.status.RequiredResourceCount += n
	return m.status
}

// MarkRequiredPrecise records that every required resource has been discovered.
func (m *Machine) MarkRequiredPrecise() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.status.RequiredResourceCountIsPrecise = true
	return m.status
}

// Complete records one downloaded (or already cached) resource of size bytes.
func (m *Machine) Complete(size uint64, tile bool) Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.status.CompletedResourceCount++
	m.status.CompletedResourceSize += size
	if tile {
		m.status.CompletedTileCount++
		m.status.CompletedTileSize += size
	}
	// Resources are always required before they complete; this keeps the
	// ordering invariant even if a caller gets that wrong.
	if m.status.CompletedResourceCount > m.status.RequiredResourceCount {
		m.status.RequiredResourceCount = m.status.CompletedResourceCount
	}
	return m.status
}

// AddExpired adjusts the expired resource count by delta.
func (m *Machine) AddExpired(delta int) Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case delta >= 0:
		m.status.ExpiredResourceCount += uint64(delta)
	case uint64(-delta) > m.status.ExpiredResourceCount:
		m.status.ExpiredResourceCount = 0
	default:
		m.status.ExpiredResourceCount -= uint64(-delta)
	}
	return m.status
}

// SetTileCountLimitExceeded sets the limit flag. changed is false when the
// flag already had that value.
func (m *Machine) SetTileCountLimitExceeded(exceeded bool) (st Status, changed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status.TileCountLimitExceeded == exceeded {
		return m.status, false
	}
	m.status.TileCountLimitExceeded = exceeded
	return m.status, true
}

// BeginDelete moves the region into the deleting phase. It returns false if
// deletion had already started.
func (m *Machine) BeginDelete() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != phaseLive {
		return false
	}
	m.phase = phaseDeleting
	m.status.DownloadState = Inactive
	return true
}

// AbortDelete returns a deleting region to the live phase, Inactive.
func (m *Machine) AbortDelete() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == phaseDeleting {
		m.phase = phaseLive
	}
}

// FinishDelete marks the region deleted. It cannot be undone.
func (m *Machine) FinishDelete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phase = phaseDeleted
}

// Deleted reports whether deletion has started or finished.
func (m *Machine) Deleted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase != phaseLive
}
