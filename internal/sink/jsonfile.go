package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JakeFAU/weibo-harvester/internal/post"
)

// JSONFile maintains a per-target document of everything harvested so far:
// the target identity plus the full post list. Each batch is merged by post
// id (replace on match, append otherwise) and the whole document is
// rewritten.
type JSONFile struct {
	dir string
}

// NewJSONFile returns a JSON document sink rooted at dir.
func NewJSONFile(dir string) *JSONFile {
	return &JSONFile{dir: dir}
}

type jsonDocument struct {
	Target *post.User   `json:"target"`
	Posts  []*post.Post `json:"posts"`
}

// Name implements Sink.
func (s *JSONFile) Name() string { return "json" }

// Write implements Sink.
func (s *JSONFile) Write(ctx context.Context, user *post.User, batch []*post.Post, _ bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Join(s.dir, user.ScreenName)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create json dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, user.ID+".json")

	doc := jsonDocument{}
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if uerr := json.Unmarshal(raw, &doc); uerr != nil {
			return fmt.Errorf("decode existing document %s: %w", path, uerr)
		}
	case os.IsNotExist(err):
	default:
		return fmt.Errorf("read document %s: %w", path, err)
	}

	doc.Target = user
	doc.Posts = mergeByID(doc.Posts, batch)

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return fmt.Errorf("write document %s: %w", path, err)
	}
	return nil
}

// mergeByID replaces any existing entry whose id matches an incoming one
// and appends the rest, keeping existing order stable.
func mergeByID(existing, incoming []*post.Post) []*post.Post {
	index := make(map[int64]int, len(existing))
	for i, p := range existing {
		index[p.ID] = i
	}
	for _, p := range incoming {
		if i, ok := index[p.ID]; ok {
			existing[i] = p
			continue
		}
		index[p.ID] = len(existing)
		existing = append(existing, p)
	}
	return existing
}
