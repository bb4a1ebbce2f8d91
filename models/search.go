package models

import (
	"sort"
	"strings"
)

// matches reports whether n matches the lower-cased query. Encrypted notes
// match on title and tags only; their content is not reachable without the
// password, so titles and tags are the searchable surface.
func matches(n Note, q string) bool {
	if q == "" {
		return true
	}
	meta := n.Header()
	if strings.Contains(strings.ToLower(meta.Title), q) {
		return true
	}
	for _, tag := range meta.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}

	switch v := n.(type) {
	case PlainNote:
		return strings.Contains(strings.ToLower(v.Content), q)
	case EncryptedNote:
		return false
	}
	return false
}

// sortNotes orders pinned notes first, then by UpdatedAt descending.
// Ties keep their input order.
func sortNotes(notes []Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		a, b := notes[i].Header(), notes[j].Header()
		if a.IsPinned != b.IsPinned {
			return a.IsPinned
		}
		return a.UpdatedAt.After(b.UpdatedAt)
	})
}
