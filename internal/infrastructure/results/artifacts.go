package results

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
)

// Artifacts writes per-step diagnostics under <root>/visualize.
type Artifacts struct {
	root string
}

// NewArtifacts returns a writer rooted at dir.
func NewArtifacts(dir string) *Artifacts {
	return &Artifacts{root: filepath.Join(dir, "visualize")}
}

// Root is the visualize directory.
func (a *Artifacts) Root() string {
	return a.root
}

// WriteVisualization implements ports.ArtifactWriter.
func (a *Artifacts) WriteVisualization(ctx context.Context, scope string, step int, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode visualization %s/%d: %w", scope, step, err)
	}
	path := filepath.Join(a.root, scope, strconv.Itoa(step)+".json")
	return writeFile(path, append(data, '\n'))
}

// AppendTranscript implements ports.ArtifactWriter.
func (a *Artifacts) AppendTranscript(ctx context.Context, scope string, step int, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Join(a.root, scope, "inconsistent")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, strconv.Itoa(step)+".txt"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	if _, err := f.WriteString(text + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("append transcript: %w", err)
	}
	return f.Close()
}

// WriteAttemptImage implements ports.ArtifactWriter. The extension follows
// the encoded format.
func (a *Artifacts) WriteAttemptImage(ctx context.Context, scope string, step int, image []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(image) == 0 {
		return nil
	}
	ext := ".jpg"
	if http.DetectContentType(image) == "image/png" {
		ext = ".png"
	}
	path := filepath.Join(a.root, scope, "inconsistent", strconv.Itoa(step)+ext)
	return writeFile(path, image)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}
