// Package delay provides the DELAY executor: sleep for a payload-specified
// duration and report the elapsed time.
package delay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fentz26/drover/internal/models"
)

// Delay implements the DELAY executor.
type Delay struct{}

// New creates a new DELAY executor.
func New() *Delay {
	return &Delay{}
}

// Type returns the command type this executor handles.
func (d *Delay) Type() models.CommandType {
	return models.CommandTypeDelay
}

// Execute sleeps for payload.ms milliseconds and returns the elapsed time.
func (d *Delay) Execute(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var p models.DelayPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("parse DELAY payload: %w", err)
	}
	if p.Ms < 0 {
		return nil, fmt.Errorf("negative delay: %d", p.Ms)
	}

	start := time.Now()
	timer := time.NewTimer(time.Duration(p.Ms) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	result := models.DelayResult{
		OK:     true,
		TookMs: int(time.Since(start).Milliseconds()),
	}
	return json.Marshal(result)
}
