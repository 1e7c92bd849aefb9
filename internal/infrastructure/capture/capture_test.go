package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/flowcheck/internal/domain/screen"
	flowerrors "github.com/alexisbeaulieu97/flowcheck/pkg/errors"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func writeCapture(t *testing.T, dir, name string, image []byte, widgets string) string {
	t.Helper()
	path := filepath.Join(dir, name+".png")
	require.NoError(t, os.WriteFile(path, image, 0o644))
	if widgets != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), []byte(widgets), 0o644))
	}
	return path
}

func TestFileLoaderLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	img := encodePNG(t, 108, 192)

	tests := []struct {
		name    string
		widgets string
		want    []screen.Widget
	}{
		{
			name:    "array",
			widgets: `[{"bounds": [0, 0, 50, 20], "type": "button", "text": "OK"}]`,
			want:    []screen.Widget{{Bounds: screen.Bounds{XMax: 50, YMax: 20}, Type: "button", Text: "OK"}},
		},
		{
			name:    "object",
			widgets: `{"widgets": [{"bounds": [1, 2, 3, 4], "type": "textview"}]}`,
			want:    []screen.Widget{{Bounds: screen.Bounds{XMin: 1, YMin: 2, XMax: 3, YMax: 4}, Type: "textview"}},
		},
		{
			name:    "empty object",
			widgets: `{}`,
			want:    []screen.Widget{},
		},
		{
			name:    "null",
			widgets: `null`,
			want:    []screen.Widget{},
		},
	}

	for i, tt := range tests {
		path := writeCapture(t, dir, string(rune('0'+i)), img, tt.widgets)
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, err := NewFileLoader().Load(context.Background(), path)
			require.NoError(t, err)
			require.True(t, s.Ready())
			require.Equal(t, 108, s.Width)
			require.Equal(t, 192, s.Height)
			require.Equal(t, "png", s.Format)
			require.Equal(t, tt.want, s.Widgets)
		})
	}
}

func TestFileLoaderErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	loader := NewFileLoader()

	_, err := loader.Load(context.Background(), filepath.Join(dir, "7.png"))
	var captureErr *flowerrors.CaptureError
	require.True(t, errors.As(err, &captureErr))
	require.ErrorIs(t, err, flowerrors.ErrCaptureNotFound)
	require.Equal(t, filepath.Join(dir, "7.png"), captureErr.Key)

	noWidgets := writeCapture(t, dir, "1", encodePNG(t, 10, 10), "")
	_, err = loader.Load(context.Background(), noWidgets)
	require.ErrorIs(t, err, flowerrors.ErrCaptureNotFound)
	require.True(t, errors.As(err, &captureErr))
	require.Equal(t, filepath.Join(dir, "1.json"), captureErr.Key)

	badWidgets := writeCapture(t, dir, "2", encodePNG(t, 10, 10), `[{"bounds": "x"}]`)
	_, err = loader.Load(context.Background(), badWidgets)
	var parseErr *flowerrors.ParseError
	require.True(t, errors.As(err, &parseErr))

	notImage := writeCapture(t, dir, "3", []byte("plain text"), `[]`)
	_, err = loader.Load(context.Background(), notImage)
	require.True(t, errors.As(err, &captureErr))
	require.NotErrorIs(t, err, flowerrors.ErrCaptureNotFound)
}

func serviceStub(t *testing.T, want []byte, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.PostForm.Get(imageField) != base64.StdEncoding.EncodeToString(want) {
			http.Error(w, "unexpected image", http.StatusBadRequest)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDetectorSortsAndNamesClasses(t *testing.T) {
	t.Parallel()

	img := []byte("jpeg-bytes")
	srv := serviceStub(t, img, `{
		"box": [[100, 50, 200, 80], [0, 50, 90, 80], [0, 0, 400, 40]],
		"class": [0, "switch", 42]
	}`, http.StatusOK)

	widgets, err := NewDetector(srv.URL, 0).Detect(context.Background(), img)
	require.NoError(t, err)
	require.Equal(t, []screen.Widget{
		{Bounds: screen.Bounds{XMax: 400, YMax: 40}, Type: "42"},
		{Bounds: screen.Bounds{YMin: 50, XMax: 90, YMax: 80}, Type: "switch"},
		{Bounds: screen.Bounds{XMin: 100, YMin: 50, XMax: 200, YMax: 80}, Type: "button"},
	}, widgets)
}

func TestDetectorErrors(t *testing.T) {
	t.Parallel()

	img := []byte("jpeg-bytes")
	failing := serviceStub(t, img, "model not loaded", http.StatusServiceUnavailable)
	_, err := NewDetector(failing.URL, 0).Detect(context.Background(), img)
	require.ErrorContains(t, err, "503")
	require.ErrorContains(t, err, "model not loaded")

	garbled := serviceStub(t, img, "not json", http.StatusOK)
	_, err = NewDetector(garbled.URL, 0).Detect(context.Background(), img)
	require.ErrorContains(t, err, "decode response")

	mismatched := serviceStub(t, img, `{"box": [[0, 0, 10, 10], [0, 20, 10, 30]], "class": ["switch"]}`, http.StatusOK)
	_, err = NewDetector(mismatched.URL, 0).Detect(context.Background(), img)
	require.ErrorContains(t, err, "1 classes for 2 boxes")

	unclassified := serviceStub(t, img, `{"box": [[0, 0, 10, 10]]}`, http.StatusOK)
	widgets, err := NewDetector(unclassified.URL, 0).Detect(context.Background(), img)
	require.NoError(t, err)
	require.Equal(t, []screen.Widget{{Bounds: screen.Bounds{XMax: 10, YMax: 10}, Type: "widget"}}, widgets)
}

func TestOCRRecognize(t *testing.T) {
	t.Parallel()

	img := []byte("jpeg-bytes")
	srv := serviceStub(t, img, `{"text": ["Sign in", "Help"], "box": [[10, 10, 60, 30], [0, 100, 40, 120]]}`, http.StatusOK)

	boxes, err := NewOCR(srv.URL, 0).Recognize(context.Background(), img)
	require.NoError(t, err)
	require.Equal(t, []screen.TextBox{
		{Bounds: screen.Bounds{XMin: 10, YMin: 10, XMax: 60, YMax: 30}, Text: "Sign in"},
		{Bounds: screen.Bounds{YMin: 100, XMax: 40, YMax: 120}, Text: "Help"},
	}, boxes)

	mismatched := serviceStub(t, img, `{"text": ["a"], "box": []}`, http.StatusOK)
	_, err = NewOCR(mismatched.URL, 0).Recognize(context.Background(), img)
	require.ErrorContains(t, err, "1 texts for 0 boxes")
}

func TestAttachText(t *testing.T) {
	t.Parallel()

	widgets := []screen.Widget{
		{Bounds: screen.Bounds{XMax: 400, YMax: 200}, Type: "toolbar"},
		{Bounds: screen.Bounds{XMin: 10, YMin: 10, XMax: 110, YMax: 90}, Type: "button"},
	}
	AttachText(widgets, []screen.TextBox{
		{Bounds: screen.Bounds{XMin: 20, YMin: 20, XMax: 60, YMax: 40}, Text: "Sign"},
		{Bounds: screen.Bounds{XMin: 60, YMin: 20, XMax: 100, YMax: 40}, Text: " in "},
		{Bounds: screen.Bounds{XMin: 200, YMin: 100, XMax: 300, YMax: 140}, Text: "Title"},
		{Bounds: screen.Bounds{XMin: 500, YMin: 500, XMax: 600, YMax: 540}, Text: "stray"},
	})
	require.Equal(t, "Title", widgets[0].Text)
	require.Equal(t, "Sign in", widgets[1].Text)
}

type stubDetector struct {
	widgets []screen.Widget
	err     error
}

func (d stubDetector) Detect(context.Context, []byte) ([]screen.Widget, error) {
	return d.widgets, d.err
}

type stubOCR struct {
	boxes []screen.TextBox
	err   error
	calls *int
}

func (o stubOCR) Recognize(context.Context, []byte) ([]screen.TextBox, error) {
	if o.calls != nil {
		*o.calls++
	}
	return o.boxes, o.err
}

func TestBuilderBuild(t *testing.T) {
	t.Parallel()

	img := encodePNG(t, 200, 100)
	b := NewBuilder(
		stubDetector{widgets: []screen.Widget{{Bounds: screen.Bounds{XMax: 100, YMax: 50}, Type: "button"}}},
		stubOCR{boxes: []screen.TextBox{{Bounds: screen.Bounds{XMin: 10, YMin: 10, XMax: 40, YMax: 20}, Text: "Go"}}},
	)

	s, err := b.Build(context.Background(), img)
	require.NoError(t, err)
	require.True(t, s.Ready())
	require.Equal(t, 200, s.Width)
	require.Equal(t, []screen.Widget{{Bounds: screen.Bounds{XMax: 100, YMax: 50}, Type: "button", Text: "Go"}}, s.Widgets)
}

func TestBuilderWithoutServices(t *testing.T) {
	t.Parallel()

	calls := 0
	s, err := NewBuilder(stubDetector{widgets: []screen.Widget{}}, stubOCR{calls: &calls}).Build(context.Background(), encodePNG(t, 10, 10))
	require.NoError(t, err)
	require.True(t, s.Ready())
	require.Empty(t, s.Widgets)
	require.Zero(t, calls)

	s, err = NewBuilder(nil, nil).Build(context.Background(), encodePNG(t, 10, 10))
	require.NoError(t, err)
	require.NotNil(t, s.Widgets)
}

func TestBuilderErrors(t *testing.T) {
	t.Parallel()

	var captureErr *flowerrors.CaptureError
	_, err := NewBuilder(nil, nil).Build(context.Background(), nil)
	require.True(t, errors.As(err, &captureErr))

	_, err = NewBuilder(stubDetector{err: errors.New("timeout")}, nil).Build(context.Background(), encodePNG(t, 10, 10))
	require.True(t, errors.As(err, &captureErr))
	require.Equal(t, "detect", captureErr.Key)

	_, err = NewBuilder(
		stubDetector{widgets: []screen.Widget{{Bounds: screen.Bounds{XMax: 5, YMax: 5}}}},
		stubOCR{err: errors.New("timeout")},
	).Build(context.Background(), encodePNG(t, 10, 10))
	require.True(t, errors.As(err, &captureErr))
	require.Equal(t, "ocr", captureErr.Key)
}
