package journal

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// AutoDeletedMarker is appended to a journal line when the retention
// pruner removes its archive.
const AutoDeletedMarker = "[Auto-deleted]"

// Journal is the line-oriented backup log on the share. Every line is
// an archive filename followed by a tab-separated status message.
type Journal struct {
	path string
}

func New(path string) *Journal {
	return &Journal{path: path}
}

// Append records one backup attempt. The file is created on first use.
func (j *Journal) Append(filename, status string) error {
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s\t%s\n", filename, status); err != nil {
		return fmt.Errorf("append journal line: %w", err)
	}

	return nil
}

// MarkDeleted annotates the line whose leading token matches filename
// exactly. Trailing whitespace is trimmed first so repeated runs never
// duplicate the marker. Returns false when no line matches; a missing
// journal is not an error.
func (j *Journal) MarkDeleted(filename string) (bool, error) {
	data, err := os.ReadFile(j.path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read journal: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	found := false
	for i, line := range lines {
		token, _, _ := strings.Cut(line, "\t")
		if token != filename {
			continue
		}

		trimmed := strings.TrimRight(line, " \t")
		if !strings.HasSuffix(trimmed, AutoDeletedMarker) {
			trimmed += " " + AutoDeletedMarker
		}
		lines[i] = trimmed
		found = true
		break // at most one primary line per archive
	}
	if !found {
		return false, nil
	}

	if err := os.WriteFile(j.path, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		return false, fmt.Errorf("rewrite journal: %w", err)
	}

	return true, nil
}
