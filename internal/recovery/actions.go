package recovery

import (
	"context"
	"fmt"
	"time"

	"github.com/alexisbeaulieu97/flowcheck/internal/domain/flow"
	"github.com/alexisbeaulieu97/flowcheck/internal/domain/screen"
	"github.com/alexisbeaulieu97/flowcheck/internal/ports"
	flowerrors "github.com/alexisbeaulieu97/flowcheck/pkg/errors"
)

// Action names. The set is closed.
const (
	ActionClick     = "click"
	ActionLongClick = "long_click"
	ActionInputText = "input_text"
	ActionScroll    = "scroll"
	ActionSwipe     = "swipe"
	ActionBack      = "back"
)

const (
	longPressHold          = time.Second
	swipeDuration          = 300 * time.Millisecond
	defaultScrollDirection = "down"
)

// Action is an executable device interaction. Execute returns the target
// bounds it acted on, in declaration order.
type Action interface {
	Name() string
	Execute(ctx context.Context, dev ports.Device) ([]screen.Bounds, error)
}

// Click taps the centre of Target.
type Click struct{ Target screen.Bounds }

// LongClick presses the centre of Target.
type LongClick struct{ Target screen.Bounds }

// InputText focuses Target and types Text.
type InputText struct {
	Target screen.Bounds
	Text   string
}

// Scroll drags inside Target towards Direction.
type Scroll struct {
	Target    screen.Bounds
	Direction string
}

// Swipe drags from the centre of From to the centre of To.
type Swipe struct{ From, To screen.Bounds }

// Back presses the system back button.
type Back struct{}

func (Click) Name() string     { return ActionClick }
func (LongClick) Name() string { return ActionLongClick }
func (InputText) Name() string { return ActionInputText }
func (Scroll) Name() string    { return ActionScroll }
func (Swipe) Name() string     { return ActionSwipe }
func (Back) Name() string      { return ActionBack }

func (a Click) Execute(ctx context.Context, dev ports.Device) ([]screen.Bounds, error) {
	x, y := a.Target.Center()
	if err := dev.Tap(ctx, x, y); err != nil {
		return nil, flowerrors.NewActionError(ActionClick, err)
	}
	return []screen.Bounds{a.Target}, nil
}

func (a LongClick) Execute(ctx context.Context, dev ports.Device) ([]screen.Bounds, error) {
	x, y := a.Target.Center()
	if err := dev.LongPress(ctx, x, y, longPressHold); err != nil {
		return nil, flowerrors.NewActionError(ActionLongClick, err)
	}
	return []screen.Bounds{a.Target}, nil
}

func (a InputText) Execute(ctx context.Context, dev ports.Device) ([]screen.Bounds, error) {
	x, y := a.Target.Center()
	if err := dev.Tap(ctx, x, y); err != nil {
		return nil, flowerrors.NewActionError(ActionInputText, err)
	}
	if err := dev.InputText(ctx, a.Text); err != nil {
		return nil, flowerrors.NewActionError(ActionInputText, err)
	}
	return []screen.Bounds{a.Target}, nil
}

func (a Scroll) Execute(ctx context.Context, dev ports.Device) ([]screen.Bounds, error) {
	cx, cy := a.Target.Center()
	dx, dy := a.Target.Width()/4, a.Target.Height()/4
	var x2, y2 float64
	switch a.Direction {
	case "up":
		x2, y2 = cx, cy+dy
	case "left":
		x2, y2 = cx+dx, cy
	case "right":
		x2, y2 = cx-dx, cy
	default:
		x2, y2 = cx, cy-dy
	}
	if err := dev.Swipe(ctx, cx, cy, x2, y2, swipeDuration); err != nil {
		return nil, flowerrors.NewActionError(ActionScroll, err)
	}
	return []screen.Bounds{a.Target}, nil
}

func (a Swipe) Execute(ctx context.Context, dev ports.Device) ([]screen.Bounds, error) {
	x1, y1 := a.From.Center()
	x2, y2 := a.To.Center()
	if err := dev.Swipe(ctx, x1, y1, x2, y2, swipeDuration); err != nil {
		return nil, flowerrors.NewActionError(ActionSwipe, err)
	}
	return []screen.Bounds{a.From, a.To}, nil
}

func (Back) Execute(ctx context.Context, dev ports.Device) ([]screen.Bounds, error) {
	if err := dev.Back(ctx); err != nil {
		return nil, flowerrors.NewActionError(ActionBack, err)
	}
	return nil, nil
}

type buildFunc func(t *Translator, args []any) (Action, error)

// actionTable is the closed set of callable actions.
var actionTable = map[string]buildFunc{
	ActionClick: func(t *Translator, args []any) (Action, error) {
		target, rest, err := t.target(args)
		if err != nil {
			return nil, err
		}
		if err := noExtra(rest); err != nil {
			return nil, err
		}
		return Click{Target: target}, nil
	},
	ActionLongClick: func(t *Translator, args []any) (Action, error) {
		target, rest, err := t.target(args)
		if err != nil {
			return nil, err
		}
		if err := noExtra(rest); err != nil {
			return nil, err
		}
		return LongClick{Target: target}, nil
	},
	ActionInputText: func(t *Translator, args []any) (Action, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("expected a target and text")
		}
		text, ok := args[len(args)-1].(string)
		if !ok {
			return nil, fmt.Errorf("last argument must be the text to type")
		}
		target, rest, err := t.target(args[:len(args)-1])
		if err != nil {
			return nil, err
		}
		if err := noExtra(rest); err != nil {
			return nil, err
		}
		return InputText{Target: target, Text: text}, nil
	},
	ActionScroll: func(t *Translator, args []any) (Action, error) {
		direction := defaultScrollDirection
		if n := len(args); n > 0 {
			if s, ok := args[n-1].(string); ok {
				direction = s
				args = args[:n-1]
			}
		}
		if !validDirection(direction) {
			return nil, fmt.Errorf("unknown scroll direction %q", direction)
		}
		if len(args) == 0 && t.screen == nil {
			return nil, fmt.Errorf("scroll without a target needs a screen")
		}
		var target screen.Bounds
		if len(args) == 0 {
			target = t.screen.Full()
		} else {
			var rest []any
			var err error
			target, rest, err = t.target(args)
			if err != nil {
				return nil, err
			}
			if err := noExtra(rest); err != nil {
				return nil, err
			}
		}
		return Scroll{Target: target, Direction: direction}, nil
	},
	ActionSwipe: func(t *Translator, args []any) (Action, error) {
		// Four bare numbers are two points rather than one box.
		if len(args) == 4 && allNumbers(args) {
			from, _, _ := t.target(args[:2])
			to, _, _ := t.target(args[2:])
			return Swipe{From: from, To: to}, nil
		}
		from, rest, err := t.target(args)
		if err != nil {
			return nil, err
		}
		to, rest, err := t.target(rest)
		if err != nil {
			return nil, err
		}
		if err := noExtra(rest); err != nil {
			return nil, err
		}
		return Swipe{From: from, To: to}, nil
	},
	ActionBack: func(t *Translator, args []any) (Action, error) {
		if err := noExtra(args); err != nil {
			return nil, err
		}
		return Back{}, nil
	},
}

// Known reports whether name is in the action table.
func Known(name string) bool {
	_, ok := actionTable[name]
	return ok
}

// Translator resolves calls against the widgets of one screen.
type Translator struct {
	screen *screen.Screen
}

// NewTranslator binds a translator to s.
func NewTranslator(s *screen.Screen) *Translator {
	return &Translator{screen: s}
}

// Translate builds the action for call.
func (t *Translator) Translate(call Call) (Action, error) {
	build, ok := actionTable[call.Name]
	if !ok {
		return nil, fmt.Errorf("unknown action %q", call.Name)
	}
	action, err := build(t, call.Args)
	if err != nil {
		return nil, flowerrors.NewActionError(call.Name, err)
	}
	return action, nil
}

// target consumes one target from the front of args: a bounds or point
// list, a widget index, four numbers forming bounds, or two numbers forming
// a point.
func (t *Translator) target(args []any) (screen.Bounds, []any, error) {
	if len(args) == 0 {
		return screen.Bounds{}, nil, fmt.Errorf("missing target")
	}
	if list, ok := args[0].([]any); ok {
		nums, ok := numbers(list)
		if !ok {
			return screen.Bounds{}, nil, fmt.Errorf("target list must hold numbers")
		}
		b, err := t.fromNumbers(nums)
		return b, args[1:], err
	}
	if idx, ok := args[0].(int64); ok && (len(args) == 1 || !isNumber(args[1])) {
		b, err := t.widget(int(idx))
		return b, args[1:], err
	}
	if len(args) >= 4 && allNumbers(args[:4]) {
		nums, _ := numbers(args[:4])
		b, err := t.fromNumbers(nums)
		return b, args[4:], err
	}
	if len(args) >= 2 && allNumbers(args[:2]) {
		nums, _ := numbers(args[:2])
		b, err := t.fromNumbers(nums)
		return b, args[2:], err
	}
	return screen.Bounds{}, nil, fmt.Errorf("cannot resolve target from %v", args)
}

func (t *Translator) fromNumbers(nums []float64) (screen.Bounds, error) {
	switch len(nums) {
	case 4:
		return screen.NewBounds(nums)
	case 2:
		return t.point(nums[0], nums[1]), nil
	default:
		return screen.Bounds{}, fmt.Errorf("target needs 2 or 4 numbers, got %d", len(nums))
	}
}

func (t *Translator) widget(idx int) (screen.Bounds, error) {
	if t.screen == nil || idx < 0 || idx >= len(t.screen.Widgets) {
		return screen.Bounds{}, fmt.Errorf("widget index %d out of range", idx)
	}
	return t.screen.Widgets[idx].Bounds, nil
}

// point resolves to the innermost widget containing (x, y), else a unit box.
func (t *Translator) point(x, y float64) screen.Bounds {
	if t.screen != nil {
		if idx := t.screen.WidgetAt(x, y); idx >= 0 {
			return t.screen.Widgets[idx].Bounds
		}
	}
	return screen.Bounds{XMin: x, YMin: y, XMax: x + 1, YMax: y + 1}
}

// ActionFromStep builds the action a recorded step describes, resolved
// against s.
func ActionFromStep(step flow.Step, s *screen.Screen) (Action, error) {
	bounds := step.TargetBounds()
	first := func() (screen.Bounds, error) {
		if len(bounds) == 0 {
			return screen.Bounds{}, flowerrors.NewActionError(step.Action, fmt.Errorf("step declares no target bounds"))
		}
		return bounds[0], nil
	}

	switch step.Action {
	case ActionClick:
		b, err := first()
		return Click{Target: b}, err
	case ActionLongClick:
		b, err := first()
		return LongClick{Target: b}, err
	case ActionInputText:
		b, err := first()
		if err != nil {
			return nil, err
		}
		text, _ := step.Text()
		return InputText{Target: b, Text: text}, nil
	case ActionScroll:
		var target screen.Bounds
		switch {
		case len(bounds) > 0:
			target = bounds[0]
		case s != nil:
			target = s.Full()
		default:
			return nil, flowerrors.NewActionError(step.Action, fmt.Errorf("scroll needs a target or a screen"))
		}
		direction := defaultScrollDirection
		if v, ok := step.Param("direction"); ok {
			if d, ok := v.AsString(); ok && validDirection(d) {
				direction = d
			}
		}
		return Scroll{Target: target, Direction: direction}, nil
	case ActionSwipe:
		if len(bounds) < 2 {
			return nil, flowerrors.NewActionError(step.Action, fmt.Errorf("swipe needs two target bounds"))
		}
		return Swipe{From: bounds[0], To: bounds[1]}, nil
	case ActionBack:
		return Back{}, nil
	default:
		return nil, flowerrors.NewActionError(step.Action, fmt.Errorf("unknown action"))
	}
}

func validDirection(d string) bool {
	switch d {
	case "up", "down", "left", "right":
		return true
	}
	return false
}

func noExtra(rest []any) error {
	if len(rest) > 0 {
		return fmt.Errorf("unexpected extra arguments %v", rest)
	}
	return nil
}

func isNumber(v any) bool {
	switch v.(type) {
	case int64, float64:
		return true
	}
	return false
}

func allNumbers(args []any) bool {
	for _, a := range args {
		if !isNumber(a) {
			return false
		}
	}
	return true
}

func numbers(args []any) ([]float64, bool) {
	out := make([]float64, 0, len(args))
	for _, a := range args {
		switch n := a.(type) {
		case int64:
			out = append(out, float64(n))
		case float64:
			out = append(out, n)
		default:
			return nil, false
		}
	}
	return out, true
}
