package offline

import (
	"fmt"

	"github.com/marmos91/offlinekit/pkg/region"
)

// StatusCallback receives the result of Region.GetStatus.
type StatusCallback interface {
	OnStatus(status region.Status)
	OnError(message string)
}

// DeleteCallback receives the result of Region.Delete.
type DeleteCallback interface {
	OnDelete()
	OnError(message string)
}

// StatusFuncs adapts functions to StatusCallback. Nil fields ignore the result.
type StatusFuncs struct {
	Status func(region.Status)
	Error  func(string)
}

func (f StatusFuncs) OnStatus(status region.Status) {
	if f.Status != nil {
		f.Status(status)
	}
}

func (f StatusFuncs) OnError(message string) {
	if f.Error != nil {
		f.Error(message)
	}
}

// DeleteFuncs adapts functions to DeleteCallback. Nil fields ignore the result.
type DeleteFuncs struct {
	Deleted func()
	Error   func(string)
}

func (f DeleteFuncs) OnDelete() {
	if f.Deleted != nil {
		f.Deleted()
	}
}

func (f DeleteFuncs) OnError(message string) {
	if f.Error != nil {
		f.Error(message)
	}
}

// StoreError reports a persistence failure. The mutation it describes was
// not applied to the region.
type StoreError struct {
	Op       string
	RegionID int64
	Err      error
}

func (e *StoreError) Error() string {
	if e.RegionID == 0 {
		return fmt.Sprintf("store failure during %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store failure during %s of region %d: %v", e.Op, e.RegionID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
