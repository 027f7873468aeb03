package titles

import "strings"

// HasAnyGenre reports whether the comma-joined tag list contains any of ids.
// Matching is on whole tags, so "15" does not contain "5".
func HasAnyGenre(tags string, ids []string) bool {
	if tags == "" || len(ids) == 0 {
		return false
	}
	wrapped := "," + strings.ReplaceAll(tags, " ", "") + ","
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if strings.Contains(wrapped, ","+id+",") {
			return true
		}
	}
	return false
}
