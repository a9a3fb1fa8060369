// Package diff holds the staged-diff value type and the byte-budget
// truncation used to keep oversized diffs inside the prompt limit.
package diff

import "strings"

// TruncationMarker is appended when a diff is shortened, signaling to both
// the model and the user that content was cut.
const TruncationMarker = "... (diff truncated for brevity)"

// StagedDiff is the staged changes of a repository: the raw unified diff
// plus computed metadata. Truncated is set only by Truncate.
type StagedDiff struct {
	Raw          string
	FilesChanged []string
	LinesAdded   int
	LinesRemoved int
	Truncated    bool
}

// CountLines counts added and removed lines in a unified diff. File header
// lines ("+++", "---") are not counted.
func CountLines(raw string) (added, removed int) {
	for _, line := range strings.Split(raw, "\n") {
		switch {
		case strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	return added, removed
}

// isHeader reports whether a diff line carries file-level structure that must
// survive truncation.
func isHeader(line string) bool {
	return strings.HasPrefix(line, "diff --git") ||
		strings.HasPrefix(line, "---") ||
		strings.HasPrefix(line, "+++")
}

// Truncate bounds d to maxBytes, returning d unchanged when already within
// budget. The scan is greedy, order-preserving, and single-pass: file header
// lines are always kept (they carry the structure the model needs), other
// lines are kept until the running byte total would exceed maxBytes, after
// which only headers are collected and TruncationMarker closes the output.
// Kept headers may push the result over budget by their own size; that
// overhead is accepted.
func Truncate(d StagedDiff, maxBytes int) StagedDiff {
	if len(d.Raw) <= maxBytes {
		return d
	}

	var kept []string
	size := 0
	full := false
	for _, line := range strings.Split(d.Raw, "\n") {
		lineSize := len(line) + 1 // newline

		// Headers survive even after the budget is spent; later files keep
		// their structural context.
		if isHeader(line) {
			kept = append(kept, line)
			size += lineSize
			continue
		}
		if full {
			continue
		}
		if size+lineSize > maxBytes {
			full = true
			continue
		}
		kept = append(kept, line)
		size += lineSize
	}
	kept = append(kept, TruncationMarker)

	return StagedDiff{
		Raw:          strings.Join(kept, "\n"),
		FilesChanged: d.FilesChanged,
		LinesAdded:   d.LinesAdded,
		LinesRemoved: d.LinesRemoved,
		Truncated:    true,
	}
}
