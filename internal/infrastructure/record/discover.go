package record

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Processes returns the directories under root matching pattern, sorted by
// path. A positive limit keeps only the first limit entries.
func Processes(root, pattern string, limit int) ([]string, error) {
	matches, err := doublestar.FilepathGlob(filepath.Join(root, pattern))
	if err != nil {
		return nil, fmt.Errorf("glob error: %w", err)
	}

	var dirs []string
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			continue
		}
		if info.IsDir() {
			dirs = append(dirs, match)
		}
	}
	sort.Strings(dirs)
	if limit > 0 && len(dirs) > limit {
		dirs = dirs[:limit]
	}
	return dirs, nil
}

// Screens returns the captures under root matching pattern whose stem is a
// step number and that have a sibling widget file, sorted by path.
func Screens(root, pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(filepath.Join(root, pattern))
	if err != nil {
		return nil, fmt.Errorf("glob error: %w", err)
	}

	var images []string
	for _, match := range matches {
		ext := filepath.Ext(match)
		stem := strings.TrimSuffix(filepath.Base(match), ext)
		if !isDigits(stem) {
			continue
		}
		if _, err := os.Stat(strings.TrimSuffix(match, ext) + ".json"); err != nil {
			continue
		}
		images = append(images, match)
	}
	sort.Strings(images)
	return images, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
