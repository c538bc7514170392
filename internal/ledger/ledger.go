// Package ledger implements the per-target resume file: one
// whitespace-separated record per line, `<id> [<screen_name> <cutoff_date>]`.
package ledger

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Entry is one parsed ledger record. A zero Cutoff means the line carried no
// resume date.
type Entry struct {
	ID         string
	ScreenName string
	Cutoff     time.Time
}

// File is a line-oriented ledger store. Rewrites are whole-file; concurrent
// external edits during a run are not supported.
type File struct {
	path string
}

// NewFile returns a ledger backed by path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

// Load parses every record line. Lines whose first field is not a numeric id
// are ignored here but preserved on rewrite.
func (f *File) Load() ([]Entry, error) {
	lines, err := f.readLines()
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 || !isDigits(fields[0]) {
			continue
		}
		e := Entry{ID: fields[0]}
		if len(fields) > 1 {
			e.ScreenName = fields[1]
		}
		if len(fields) > 2 {
			if cutoff, perr := time.Parse(dateLayout, fields[2]); perr == nil {
				e.Cutoff = cutoff
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// MarkDone rewrites the target's line with its display name and the new
// resume cutoff, so the next run skips everything already harvested.
func (f *File) MarkDone(id, screenName string, cutoff time.Time) error {
	if screenName == "" {
		screenName = "non_screen_name"
	}
	record := fmt.Sprintf("%s %s %s", id, screenName, cutoff.Format(dateLayout))
	return f.mutate(id, &record)
}

// Remove deletes the target's line entirely; used when the target no longer
// resolves.
func (f *File) Remove(id string) error {
	return f.mutate(id, nil)
}

// mutate rewrites the whole file, replacing (or deleting, when replacement
// is nil) the first line keyed by id.
func (f *File) mutate(id string, replacement *string) error {
	lines, err := f.readLines()
	if err != nil {
		return err
	}
	out := make([]string, 0, len(lines))
	done := false
	for _, line := range lines {
		fields := strings.Fields(line)
		if !done && len(fields) > 0 && fields[0] == id {
			done = true
			if replacement != nil {
				out = append(out, *replacement)
			}
			continue
		}
		out = append(out, line)
	}
	if !done && replacement != nil {
		out = append(out, *replacement)
	}
	body := strings.Join(out, "\n")
	if body != "" {
		body += "\n"
	}
	if err := os.WriteFile(f.path, []byte(body), 0o600); err != nil {
		return fmt.Errorf("write ledger %s: %w", f.path, err)
	}
	return nil
}

func (f *File) readLines() ([]string, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ledger %s: %w", f.path, err)
	}
	text := strings.TrimPrefix(string(raw), "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
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
