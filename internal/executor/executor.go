// Package executor applies the desired share states of an inventory.
package executor

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/eugenetaranov/usbshare/internal/fleet"
	"github.com/eugenetaranov/usbshare/internal/inventory"
	"github.com/eugenetaranov/usbshare/internal/output"
	"github.com/eugenetaranov/usbshare/internal/share"
)

// Device statuses.
const (
	StatusOK      = "ok"
	StatusChanged = "changed"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Executor drives devices to their desired share state.
type Executor struct {
	// Output handles formatted output.
	Output *output.Output

	// DryRun only reports what would change.
	DryRun bool

	// Debug enables detailed output.
	Debug bool

	// Timeout bounds each attempt on a device. Zero means no limit.
	Timeout time.Duration
}

// New creates a new executor.
func New() *Executor {
	return &Executor{
		Output: output.New(os.Stdout),
	}
}

// RunResult holds the result of an apply run.
type RunResult struct {
	// Success is true if no device failed.
	Success bool

	// Stats holds execution statistics.
	Stats *Stats

	// Devices holds per-device results in inventory order.
	Devices []*DeviceResult
}

// DeviceResult holds the outcome for one device.
type DeviceResult struct {
	Name    string
	Status  string
	Message string
	Error   error
}

// Stats holds execution statistics.
type Stats struct {
	Devices   int
	OK        int
	Changed   int
	Failed    int
	Skipped   int
	StartTime time.Time
	EndTime   time.Time
}

// Duration returns the total execution time.
func (s *Stats) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// GetOK returns the OK count (implements output.Stats).
func (s *Stats) GetOK() int { return s.OK }

// GetChanged returns the Changed count (implements output.Stats).
func (s *Stats) GetChanged() int { return s.Changed }

// GetFailed returns the Failed count (implements output.Stats).
func (s *Stats) GetFailed() int { return s.Failed }

// GetSkipped returns the Skipped count (implements output.Stats).
func (s *Stats) GetSkipped() int { return s.Skipped }

// GetDuration returns the duration (implements output.Stats).
func (s *Stats) GetDuration() time.Duration { return s.Duration() }

// Run applies desired states to the named devices, or to every device of the
// fleet when names is empty. A failing device does not stop the others.
func (e *Executor) Run(ctx context.Context, f *fleet.Fleet, names ...string) (*RunResult, error) {
	inv := f.Inventory()

	if len(names) == 0 {
		names = inv.Names()
	}
	devices := make([]*inventory.Device, 0, len(names))
	for _, name := range names {
		d := inv.Lookup(name)
		if d == nil {
			return nil, fmt.Errorf("%w: %s", fleet.ErrUnknownDevice, name)
		}
		devices = append(devices, d)
	}

	stats := &Stats{
		StartTime: time.Now(),
		Devices:   len(devices),
	}
	result := &RunResult{
		Success: true,
		Stats:   stats,
	}

	e.Output.RunStart(inv.Path)

	for _, d := range devices {
		if err := ctx.Err(); err != nil {
			result.Success = false
			e.Output.Error("Interrupted: %v", err)
			break
		}

		dr := e.applyDevice(ctx, f, d)
		result.Devices = append(result.Devices, dr)

		switch dr.Status {
		case StatusOK:
			stats.OK++
		case StatusChanged:
			stats.Changed++
		case StatusSkipped:
			stats.Skipped++
		case StatusFailed:
			stats.Failed++
			result.Success = false
		}
	}

	stats.EndTime = time.Now()
	e.Output.Recap(stats)

	return result, nil
}

// applyDevice drives a single device to its desired state.
func (e *Executor) applyDevice(ctx context.Context, f *fleet.Fleet, d *inventory.Device) *DeviceResult {
	res := &DeviceResult{Name: d.Name}

	if d.State == "" {
		res.Status = StatusSkipped
		res.Message = "no desired state"
		e.Output.DeviceResult(d.Name, "-", res.Status, res.Message)
		return res
	}

	dev, err := f.Device(d.Name)
	if err != nil {
		return e.fail(res, d.Name, "-", err)
	}

	want := d.State == share.StateShared

	if e.DryRun {
		return e.dryRun(ctx, res, dev, want)
	}

	var changed bool
	var lastErr error
	maxAttempts := d.Retries + 1

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			e.Output.Info("Retry %d/%d for device: %s", attempt, maxAttempts, d.Name)
			if err := sleep(ctx, d.Delay); err != nil {
				lastErr = err
				break
			}
		}

		changed, lastErr = e.ensure(ctx, dev, want)
		if lastErr == nil {
			break
		}
		log.Debug().Err(lastErr).Str("device", d.Name).Int("attempt", attempt).Msg("apply failed")
		if e.Debug {
			e.Output.Debug("Attempt %d/%d for device %s failed: %v", attempt, maxAttempts, d.Name, lastErr)
		}
	}

	if lastErr != nil {
		return e.fail(res, d.Name, dev.String(), lastErr)
	}

	res.Status = StatusOK
	res.Message = fmt.Sprintf("already %s", d.State)
	if changed {
		res.Status = StatusChanged
		res.Message = fmt.Sprintf("now %s", d.State)
	}
	e.Output.DeviceResult(d.Name, dev.String(), res.Status, res.Message)
	return res
}

func (e *Executor) ensure(ctx context.Context, dev share.Device, want bool) (bool, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}
	return dev.Ensure(ctx, want)
}

func (e *Executor) dryRun(ctx context.Context, res *DeviceResult, dev share.Device, want bool) *DeviceResult {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	shared, err := dev.IsShared(ctx)
	if err != nil {
		return e.fail(res, res.Name, dev.String(), err)
	}

	if shared == want {
		res.Status = StatusOK
		res.Message = fmt.Sprintf("already %s", share.StateOf(want))
		e.Output.DeviceResult(res.Name, dev.String(), res.Status, res.Message)
		return res
	}

	res.Status = StatusSkipped
	res.Message = fmt.Sprintf("would become %s", share.StateOf(want))
	e.Output.DeviceResult(res.Name, dev.String(), "skipped (dry run)", res.Message)
	return res
}

func (e *Executor) fail(res *DeviceResult, name, target string, err error) *DeviceResult {
	res.Status = StatusFailed
	res.Error = err
	res.Message = err.Error()
	e.Output.DeviceResult(name, target, res.Status, res.Message)
	return res
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
