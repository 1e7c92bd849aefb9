// Package device drives an Android device through adb.
package device

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/alexisbeaulieu97/flowcheck/internal/ports"
)

// DefaultBinary is the adb executable looked up on PATH.
const DefaultBinary = "adb"

const keycodeBack = "4"

// ADB implements ports.Device with adb shell input commands.
type ADB struct {
	Binary string
	Serial string
	Run    Runner
	Logger ports.Logger
}

// NewADB returns a device for serial, or the only attached device when
// serial is empty.
func NewADB(binary, serial string, logger ports.Logger) *ADB {
	if binary == "" {
		binary = DefaultBinary
	}
	return &ADB{Binary: binary, Serial: serial, Run: ExecRunner(nil), Logger: logger}
}

// Launch starts activity of packageName. Relative activities are resolved
// against the package.
func (d *ADB) Launch(ctx context.Context, packageName, activity string) error {
	component := packageName
	if activity != "" {
		component = packageName + "/" + activity
	}
	_, err := d.shell(ctx, "am", "start", "-W", "-n", component)
	return err
}

// Tap touches x, y.
func (d *ADB) Tap(ctx context.Context, x, y float64) error {
	_, err := d.shell(ctx, "input", "tap", coord(x), coord(y))
	return err
}

// LongPress holds x, y for hold. adb has no dedicated gesture, so it is a
// swipe that does not move.
func (d *ADB) LongPress(ctx context.Context, x, y float64, hold time.Duration) error {
	_, err := d.shell(ctx, "input", "swipe", coord(x), coord(y), coord(x), coord(y), millis(hold))
	return err
}

// InputText types text into the focused field.
func (d *ADB) InputText(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	_, err := d.shell(ctx, "input", "text", escapeInput(text))
	return err
}

// Swipe drags from x1, y1 to x2, y2 over duration.
func (d *ADB) Swipe(ctx context.Context, x1, y1, x2, y2 float64, duration time.Duration) error {
	_, err := d.shell(ctx, "input", "swipe", coord(x1), coord(y1), coord(x2), coord(y2), millis(duration))
	return err
}

// Back presses the system back key.
func (d *ADB) Back(ctx context.Context) error {
	_, err := d.shell(ctx, "input", "keyevent", keycodeBack)
	return err
}

// Screenshot returns the current screen as PNG.
func (d *ADB) Screenshot(ctx context.Context) ([]byte, error) {
	res, err := d.exec(ctx, "exec-out", "screencap", "-p")
	if err != nil {
		return nil, err
	}
	if len(res.Stdout) == 0 {
		return nil, errors.New("adb screencap returned no data")
	}
	return res.Stdout, nil
}

func (d *ADB) shell(ctx context.Context, args ...string) (Result, error) {
	return d.exec(ctx, append([]string{"shell"}, args...)...)
}

func (d *ADB) exec(ctx context.Context, args ...string) (Result, error) {
	full := args
	if d.Serial != "" {
		full = append([]string{"-s", d.Serial}, args...)
	}
	if d.Logger != nil {
		d.Logger.Debug(ctx, "adb", "args", strings.Join(args, " "))
	}

	run := d.Run
	if run == nil {
		run = ExecRunner(nil)
	}
	res, err := run(ctx, d.Binary, full...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		if out := PrimaryOutput(res); out != "" {
			return res, fmt.Errorf("adb %s: %w: %s", args[0], err, out)
		}
		return res, fmt.Errorf("adb %s: %w", args[0], err)
	}
	return res, nil
}

func coord(v float64) string {
	return strconv.Itoa(int(math.Round(v)))
}

func millis(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10)
}

// escapeInput prepares text for `input text`, which splits on spaces and
// runs through the device shell.
func escapeInput(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch {
		case r == ' ':
			b.WriteString("%s")
		case strings.ContainsRune(`\'"()<>|;&*~$!?#[]{}`+"`", r):
			b.WriteRune('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
