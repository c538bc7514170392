package feed

import (
	"encoding/json"
	"strings"
)

// The detail page embeds the full post as a JSON fragment between two fixed
// markers inside a script block.
const (
	statusMarker    = `"status":`
	hotSchemeMarker = `"hotScheme"`
)

// extractStatus slices the embedded post payload out of a detail-page body.
// The payload starts at the status marker and ends before the hotScheme
// field; the trailing comma separating the two is dropped before the
// fragment is wrapped back into an object. A missing marker is a normal
// "unavailable" result, not an error.
func extractStatus(body string) (*Mblog, bool) {
	start := strings.Index(body, statusMarker)
	if start < 0 {
		return nil, false
	}
	fragment := body[start:]
	end := strings.LastIndex(fragment, hotSchemeMarker)
	if end < 0 {
		return nil, false
	}
	fragment = fragment[:end]
	comma := strings.LastIndex(fragment, ",")
	if comma < 0 {
		return nil, false
	}
	fragment = "{" + fragment[:comma] + "}"

	var wrapper struct {
		Status *Mblog `json:"status"`
	}
	if err := json.Unmarshal([]byte(fragment), &wrapper); err != nil {
		return nil, false
	}
	if wrapper.Status == nil || wrapper.Status.ID == "" {
		return nil, false
	}
	return wrapper.Status, true
}
