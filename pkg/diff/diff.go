// Package diff renders line diffs of screen layouts.
package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/alexisbeaulieu97/flowcheck/internal/domain/screen"
)

const (
	maxDiffLines    = 2000
	truncateMessage = "... (diff truncated, exceeds 2,000 lines) ..."
)

// Layout renders one line per widget in screen order.
func Layout(s *screen.Screen) string {
	if s == nil {
		return ""
	}
	var b strings.Builder
	for i, w := range s.Widgets {
		fmt.Fprintf(&b, "%d %s %s", i, w.Type, w.Bounds)
		if w.Text != "" {
			fmt.Fprintf(&b, " %q", w.Text)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Screens returns a unified-style diff of the two layouts, or "" when they
// are identical.
func Screens(expected, actual *screen.Screen, expectedLabel, actualLabel string) string {
	return Unified(Layout(expected), Layout(actual), expectedLabel, actualLabel)
}

// Unified diffs expected against actual line by line. Diffs longer than
// maxDiffLines end with a truncation marker.
func Unified(expected, actual, expectedLabel, actualLabel string) string {
	if expected == actual {
		return ""
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(expected, actual)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	out := []string{
		"--- " + expectedLabel,
		"+++ " + actualLabel,
		fmt.Sprintf("@@ -1,%d +1,%d @@", countLines(expected), countLines(actual)),
	}
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			out = append(out, prefix+line)
		}
	}

	if len(out) > maxDiffLines {
		out = append(out[:maxDiffLines], truncateMessage)
	}
	return strings.Join(out, "\n") + "\n"
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(strings.TrimSuffix(s, "\n"), "\n") + 1
}
