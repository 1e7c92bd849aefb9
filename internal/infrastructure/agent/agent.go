// Package agent is an OpenAI-compatible vision agent that proposes device
// actions for a natural-language intent.
package agent

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"

	"github.com/alexisbeaulieu97/flowcheck/internal/domain/screen"
	"github.com/alexisbeaulieu97/flowcheck/internal/ports"
)

// DefaultModel is used when Settings.Model is empty.
const DefaultModel = openai.GPT4o

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("agent API key is required")

// SystemPrompt states the action-call grammar replies must follow.
const SystemPrompt = `You operate an Android app to complete the user's intent.
Reply with one action call per line and nothing else. Available calls:
  click(target)
  long_click(target)
  input_text(target, "text")
  scroll(target, "up"|"down"|"left"|"right")
  swipe(from, to)
  back()
A target is a widget index from the listed widgets, a box [x1, y1, x2, y2]
or a point [x, y] in screen pixels.`

// Settings configure the agent.
type Settings struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// Completer is the subset of the OpenAI client the agent uses.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Agent implements ports.Agent. It keeps the conversation until Reset.
type Agent struct {
	client    Completer
	model     string
	maxTokens int
	logger    ports.Logger

	mu      sync.Mutex
	history []openai.ChatCompletionMessage
}

// New builds an agent backed by the OpenAI API or a compatible endpoint.
func New(settings Settings, logger ports.Logger) (*Agent, error) {
	if strings.TrimSpace(settings.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	cfg := openai.DefaultConfig(settings.APIKey)
	if settings.BaseURL != "" {
		cfg.BaseURL = settings.BaseURL
	}
	return NewWithClient(openai.NewClientWithConfig(cfg), settings, logger), nil
}

// NewWithClient builds an agent over an existing client.
func NewWithClient(client Completer, settings Settings, logger ports.Logger) *Agent {
	model := settings.Model
	if model == "" {
		model = DefaultModel
	}
	return &Agent{client: client, model: model, maxTokens: settings.MaxTokens, logger: logger}
}

// Complete asks for the next actions towards intent on current. The returned
// image is the screenshot the agent was shown.
func (a *Agent) Complete(ctx context.Context, current *screen.Screen, intent string) ([]byte, string, error) {
	if current == nil || len(current.Image) == 0 {
		return nil, "", errors.New("agent needs a screenshot")
	}

	user := openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: describe(current, intent)},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
				URL:    dataURI(current),
				Detail: openai.ImageURLDetailAuto,
			}},
		},
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	messages := make([]openai.ChatCompletionMessage, 0, len(a.history)+2)
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt})
	messages = append(messages, a.history...)
	messages = append(messages, user)

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     a.model,
		Messages:  messages,
		MaxTokens: a.maxTokens,
	})
	if err != nil {
		return nil, "", fmt.Errorf("agent completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, "", errors.New("agent completion: no choices returned")
	}

	reply := resp.Choices[0].Message
	a.history = append(a.history, user, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: reply.Content,
	})
	if a.logger != nil {
		a.logger.Debug(ctx, "agent reply", "intent", intent, "reply", reply.Content, "turns", len(a.history)/2)
	}
	return current.Image, reply.Content, nil
}

// Reset drops the conversation history.
func (a *Agent) Reset() {
	a.mu.Lock()
	a.history = nil
	a.mu.Unlock()
}

// Turns is the number of completed exchanges since the last Reset.
func (a *Agent) Turns() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.history) / 2
}

func describe(s *screen.Screen, intent string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Intent: %s\n", intent)
	fmt.Fprintf(&b, "Screen: %dx%d\n", s.Width, s.Height)
	b.WriteString("Widgets:\n")
	for i, w := range s.Widgets {
		fmt.Fprintf(&b, "%d: %s [%.0f, %.0f, %.0f, %.0f]", i, w.Type, w.Bounds.XMin, w.Bounds.YMin, w.Bounds.XMax, w.Bounds.YMax)
		if w.Text != "" {
			fmt.Fprintf(&b, " %q", w.Text)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func dataURI(s *screen.Screen) string {
	format := s.Format
	if format == "" {
		format = "png"
	}
	return "data:image/" + format + ";base64," + base64.StdEncoding.EncodeToString(s.Image)
}
