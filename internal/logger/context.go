package logger

import (
	"context"
	"time"
)

type contextKey struct{}

// LogContext holds the fields shared by every record of one operation.
type LogContext struct {
	RegionID  int64 // 0 when the operation is not region scoped
	Operation string
	RequestID string
	ClientIP  string
	StartTime time.Time
}

// WithContext returns a copy of ctx carrying lc.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, contextKey{}, lc)
}

// FromContext returns the LogContext of ctx, or nil.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(contextKey{}).(*LogContext)
	return lc
}

// NewLogContext starts a LogContext for an operation on a region.
func NewLogContext(regionID int64, operation string) *LogContext {
	return &LogContext{
		RegionID:  regionID,
		Operation: operation,
		StartTime: time.Now(),
	}
}

// NewRequestContext starts a LogContext for an API request.
func NewRequestContext(requestID, clientIP, operation string) *LogContext {
	return &LogContext{
		Operation: operation,
		RequestID: requestID,
		ClientIP:  clientIP,
		StartTime: time.Now(),
	}
}

// WithOperation returns a copy with the operation replaced.
func (lc *LogContext) WithOperation(op string) *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	c.Operation = op
	return &c
}

// DurationMs returns the milliseconds elapsed since StartTime.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return Duration(lc.StartTime)
}

func (lc *LogContext) appendFields(fields []any) []any {
	if lc.RequestID != "" {
		fields = append(fields, KeyRequestID, lc.RequestID)
	}
	if lc.RegionID != 0 {
		fields = append(fields, KeyRegionID, lc.RegionID)
	}
	if lc.Operation != "" {
		fields = append(fields, KeyOperation, lc.Operation)
	}
	if lc.ClientIP != "" {
		fields = append(fields, KeyClientIP, lc.ClientIP)
	}
	return fields
}
