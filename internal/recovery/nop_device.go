package recovery

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// NopDevice records interactions without touching a device. Replay runs
// execute recovery actions against it.
type NopDevice struct {
	mu    sync.Mutex
	calls []string
}

// Calls returns the recorded interactions in order.
func (d *NopDevice) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *NopDevice) record(format string, args ...any) {
	d.mu.Lock()
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
	d.mu.Unlock()
}

func (d *NopDevice) Launch(_ context.Context, packageName, activity string) error {
	d.record("launch %s/%s", packageName, activity)
	return nil
}

func (d *NopDevice) Tap(_ context.Context, x, y float64) error {
	d.record("tap %.0f %.0f", x, y)
	return nil
}

func (d *NopDevice) LongPress(_ context.Context, x, y float64, hold time.Duration) error {
	d.record("long_press %.0f %.0f %s", x, y, hold)
	return nil
}

func (d *NopDevice) InputText(_ context.Context, text string) error {
	d.record("input_text %q", text)
	return nil
}

func (d *NopDevice) Swipe(_ context.Context, x1, y1, x2, y2 float64, duration time.Duration) error {
	d.record("swipe %.0f %.0f %.0f %.0f %s", x1, y1, x2, y2, duration)
	return nil
}

func (d *NopDevice) Back(context.Context) error {
	d.record("back")
	return nil
}

func (d *NopDevice) Screenshot(context.Context) ([]byte, error) {
	return nil, fmt.Errorf("no device attached")
}
