// Package confirm provides operator confirmation: a terminal prompt, a plain
// line prompt, an automatic confirmer for unattended runs and a scripted one.
package confirm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/alexisbeaulieu97/flowcheck/internal/ports"
	"github.com/alexisbeaulieu97/flowcheck/internal/tui"
)

// ErrAborted is returned when the operator aborts the run.
var ErrAborted = ports.ErrAborted

// Holder pauses log output while a prompt owns the terminal.
type Holder interface {
	Hold()
	Release()
}

// Prompt asks through a Bubbletea program.
type Prompt struct {
	In   io.Reader
	Out  io.Writer
	Logs Holder
}

// NewPrompt returns a terminal prompt over in and out.
func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{In: in, Out: out}
}

// Await implements ports.Confirmer.
func (p *Prompt) Await(ctx context.Context, prompt string) error {
	_, err := p.run(ctx, tui.NewAwait(prompt))
	return err
}

// Confirm implements ports.Confirmer.
func (p *Prompt) Confirm(ctx context.Context, prompt string, proposed bool) (bool, error) {
	m, err := p.run(ctx, tui.NewConfirm(prompt, proposed))
	if err != nil {
		return proposed, err
	}
	return m.Answer(), nil
}

func (p *Prompt) run(ctx context.Context, m tui.PromptModel) (tui.PromptModel, error) {
	if err := ctx.Err(); err != nil {
		return m, err
	}
	if p.Logs != nil {
		p.Logs.Hold()
		defer p.Logs.Release()
	}
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if p.In != nil {
		opts = append(opts, tea.WithInput(p.In))
	}
	if p.Out != nil {
		opts = append(opts, tea.WithOutput(p.Out))
	}

	final, err := tea.NewProgram(m, opts...).Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return m, ctxErr
		}
		return m, fmt.Errorf("operator prompt: %w", err)
	}
	result, ok := final.(tui.PromptModel)
	if !ok {
		return m, fmt.Errorf("operator prompt: unexpected model %T", final)
	}
	if result.Aborted() {
		return result, ErrAborted
	}
	return result, nil
}

// Line asks on a line-oriented stream, for terminals that cannot host the
// full prompt.
type Line struct {
	out io.Writer

	mu    sync.Mutex
	lines chan string
	in    *bufio.Reader
	once  sync.Once
	// readErr is set before lines is closed.
	readErr error
}

// NewLine returns a line prompt reading from in and writing to out.
func NewLine(in io.Reader, out io.Writer) *Line {
	return &Line{out: out, in: bufio.NewReader(in), lines: make(chan string)}
}

// Await implements ports.Confirmer.
func (l *Line) Await(ctx context.Context, prompt string) error {
	_, err := l.ask(ctx, fmt.Sprintf("[MANUAL] %s ", prompt))
	return err
}

// Confirm implements ports.Confirmer. An empty answer keeps proposed.
func (l *Line) Confirm(ctx context.Context, prompt string, proposed bool) (bool, error) {
	hint := "[y/N]"
	if proposed {
		hint = "[Y/n]"
	}
	for {
		text, err := l.ask(ctx, fmt.Sprintf("%s %s ", prompt, hint))
		if err != nil {
			return proposed, err
		}
		switch strings.ToLower(strings.TrimSpace(text)) {
		case "":
			return proposed, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
	}
}

func (l *Line) ask(ctx context.Context, prompt string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if l.out != nil {
		if _, err := io.WriteString(l.out, prompt); err != nil {
			return "", err
		}
	}
	// A single reader goroutine survives cancelled asks so no line is lost.
	l.once.Do(func() { go l.read() })

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case text, ok := <-l.lines:
		if !ok {
			return "", l.readErr
		}
		return text, nil
	}
}

func (l *Line) read() {
	defer close(l.lines)
	for {
		text, err := l.in.ReadString('\n')
		if text != "" || err == nil {
			l.lines <- strings.TrimRight(text, "\r\n")
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = ErrAborted
			}
			l.readErr = err
			return
		}
	}
}

// Auto confirms every verdict as proposed and never waits. It serves replay
// runs, where no operator is present.
type Auto struct {
	Logger ports.Logger
}

// Await implements ports.Confirmer.
func (a Auto) Await(ctx context.Context, prompt string) error {
	if a.Logger != nil {
		a.Logger.Debug(ctx, "operator prompt skipped", "prompt", prompt)
	}
	return ctx.Err()
}

// Confirm implements ports.Confirmer.
func (a Auto) Confirm(ctx context.Context, prompt string, proposed bool) (bool, error) {
	if a.Logger != nil {
		a.Logger.Debug(ctx, "verdict auto-confirmed", "prompt", prompt, "verdict", proposed)
	}
	return proposed, ctx.Err()
}

// Scripted answers from a fixed list and records every prompt. Once the
// answers run out it keeps the proposed verdict.
type Scripted struct {
	mu      sync.Mutex
	answers []bool
	prompts []string
}

// NewScripted returns a confirmer that answers in order.
func NewScripted(answers ...bool) *Scripted {
	return &Scripted{answers: answers}
}

// Await implements ports.Confirmer.
func (s *Scripted) Await(ctx context.Context, prompt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	return ctx.Err()
}

// Confirm implements ports.Confirmer.
func (s *Scripted) Confirm(ctx context.Context, prompt string, proposed bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if err := ctx.Err(); err != nil {
		return proposed, err
	}
	if len(s.answers) == 0 {
		return proposed, nil
	}
	answer := s.answers[0]
	s.answers = s.answers[1:]
	return answer, nil
}

// Prompts returns every prompt seen so far.
func (s *Scripted) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}
