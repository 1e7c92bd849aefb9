// Package capture turns recorded captures and raw screenshots into screens.
// Recorded captures pair an encoded image with a sibling widget file; raw
// screenshots go through the detector and OCR services.
package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/alexisbeaulieu97/flowcheck/internal/domain/screen"
	flowerrors "github.com/alexisbeaulieu97/flowcheck/pkg/errors"
)

const sourceFile = "file"

// FileLoader reads <stem>.<ext> together with <stem>.json.
type FileLoader struct{}

// NewFileLoader returns a FileLoader.
func NewFileLoader() *FileLoader {
	return &FileLoader{}
}

// Load implements ports.ScreenLoader.
func (l *FileLoader) Load(ctx context.Context, imagePath string) (*screen.Screen, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, flowerrors.NewCaptureError(sourceFile, imagePath, notFound(err))
	}
	s, err := Decode(data)
	if err != nil {
		return nil, flowerrors.NewCaptureError(sourceFile, imagePath, err)
	}

	widgetPath := strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + ".json"
	raw, err := os.ReadFile(widgetPath)
	if err != nil {
		return nil, flowerrors.NewCaptureError(sourceFile, widgetPath, notFound(err))
	}
	widgets, err := decodeWidgets(raw)
	if err != nil {
		return nil, flowerrors.NewParseError(widgetPath, 0, err)
	}
	s.Widgets = widgets
	return s, nil
}

// Decode reads the dimensions of an encoded image. The returned screen has no
// widget set yet.
func Decode(data []byte) (*screen.Screen, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return &screen.Screen{
		Image:  data,
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}

// decodeWidgets accepts either a bare widget array or {"widgets": [...]}.
func decodeWidgets(raw []byte) ([]screen.Widget, error) {
	trimmed := bytes.TrimSpace(raw)
	widgets := []screen.Widget{}
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var doc struct {
			Widgets []screen.Widget `json:"widgets"`
		}
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, err
		}
		if doc.Widgets != nil {
			widgets = doc.Widgets
		}
		return widgets, nil
	}
	if err := json.Unmarshal(trimmed, &widgets); err != nil {
		return nil, err
	}
	if widgets == nil {
		widgets = []screen.Widget{}
	}
	return widgets, nil
}

func notFound(err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return flowerrors.ErrCaptureNotFound
	}
	return err
}
