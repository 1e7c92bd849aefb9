package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/flowcheck/internal/domain/screen"
	"github.com/alexisbeaulieu97/flowcheck/internal/ports"
)

var _ ports.Agent = (*Agent)(nil)

func sampleScreen() *screen.Screen {
	return &screen.Screen{
		Image:  []byte("fake-jpeg"),
		Format: "jpeg",
		Width:  1080,
		Height: 1920,
		Widgets: []screen.Widget{
			{Bounds: screen.Bounds{XMin: 10, YMin: 10, XMax: 110, YMax: 90}, Type: "button", Text: "Cart"},
			{Bounds: screen.Bounds{YMin: 300, XMax: 1080, YMax: 400}, Type: "edittext"},
		},
	}
}

type fakeCompleter struct {
	mu       sync.Mutex
	requests []openai.ChatCompletionRequest
	replies  []string
	err      error
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	if len(f.replies) == 0 {
		return openai.ChatCompletionResponse{}, nil
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply},
	}}}, nil
}

func TestCompleteKeepsHistoryUntilReset(t *testing.T) {
	t.Parallel()

	fake := &fakeCompleter{replies: []string{"click(0)", "back()", "click(1)"}}
	a := NewWithClient(fake, Settings{MaxTokens: 256}, nil)

	img, reply, err := a.Complete(context.Background(), sampleScreen(), "open the cart")
	require.NoError(t, err)
	require.Equal(t, "click(0)", reply)
	require.Equal(t, []byte("fake-jpeg"), img)

	_, reply, err = a.Complete(context.Background(), sampleScreen(), "open the cart")
	require.NoError(t, err)
	require.Equal(t, "back()", reply)
	require.Equal(t, 2, a.Turns())

	require.Len(t, fake.requests[0].Messages, 2)
	require.Len(t, fake.requests[1].Messages, 4)
	require.Equal(t, DefaultModel, fake.requests[1].Model)
	require.Equal(t, 256, fake.requests[1].MaxTokens)
	require.Equal(t, openai.ChatMessageRoleSystem, fake.requests[1].Messages[0].Role)
	require.Equal(t, "click(0)", fake.requests[1].Messages[2].Content)

	a.Reset()
	require.Zero(t, a.Turns())
	_, _, err = a.Complete(context.Background(), sampleScreen(), "open the cart")
	require.NoError(t, err)
	require.Len(t, fake.requests[2].Messages, 2)
}

func TestCompleteSendsWidgetsAndImage(t *testing.T) {
	t.Parallel()

	fake := &fakeCompleter{replies: []string{"click(0)"}}
	a := NewWithClient(fake, Settings{Model: "gpt-4o-mini"}, nil)
	_, _, err := a.Complete(context.Background(), sampleScreen(), "open the cart")
	require.NoError(t, err)

	user := fake.requests[0].Messages[1]
	require.Equal(t, openai.ChatMessageRoleUser, user.Role)
	require.Len(t, user.MultiContent, 2)
	text := user.MultiContent[0].Text
	require.Contains(t, text, "Intent: open the cart")
	require.Contains(t, text, `0: button [10, 10, 110, 90] "Cart"`)
	require.Contains(t, text, "1: edittext [0, 300, 1080, 400]\n")
	require.Equal(t, "data:image/jpeg;base64,ZmFrZS1qcGVn", user.MultiContent[1].ImageURL.URL)
	require.Equal(t, "gpt-4o-mini", fake.requests[0].Model)
}

func TestCompleteFailures(t *testing.T) {
	t.Parallel()

	a := NewWithClient(&fakeCompleter{err: errors.New("rate limited")}, Settings{}, nil)
	_, _, err := a.Complete(context.Background(), sampleScreen(), "x")
	require.ErrorContains(t, err, "rate limited")
	require.Zero(t, a.Turns())

	a = NewWithClient(&fakeCompleter{}, Settings{}, nil)
	_, _, err = a.Complete(context.Background(), sampleScreen(), "x")
	require.ErrorContains(t, err, "no choices")

	_, _, err = a.Complete(context.Background(), &screen.Screen{}, "x")
	require.ErrorContains(t, err, "screenshot")
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := New(Settings{APIKey: "  "}, nil)
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestAgentAgainstCompatibleEndpoint(t *testing.T) {
	t.Parallel()

	var seen struct {
		Model    string            `json:"model"`
		Messages []json.RawMessage `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&seen); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"click(1)"},"finish_reason":"stop"}]}`))
	}))
	t.Cleanup(srv.Close)

	a, err := New(Settings{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "local-vlm"}, nil)
	require.NoError(t, err)

	_, reply, err := a.Complete(context.Background(), sampleScreen(), "type a coupon")
	require.NoError(t, err)
	require.Equal(t, "click(1)", reply)
	require.Equal(t, "local-vlm", seen.Model)
	require.Len(t, seen.Messages, 2)
}
