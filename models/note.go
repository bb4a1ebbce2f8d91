package models

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NoteID identifies a note across both the plain and encrypted collections.
type NoteID string

// NoteKind discriminates the two note variants.
type NoteKind int

const (
	KindPlain NoteKind = iota + 1
	KindEncrypted
)

func (k NoteKind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindEncrypted:
		return "encrypted"
	}
	return "unknown"
}

// Meta holds the fields shared by both variants. None of them are secret:
// titles, tags, pin state and summaries of encrypted notes are stored and
// searchable in the clear.
type Meta struct {
	ID        NoteID
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
	IsPinned  bool
	Tags      []string
	Summary   string
}

// Note is either a PlainNote or an EncryptedNote. Use a type switch on the
// concrete type; the set of implementations is closed.
type Note interface {
	Kind() NoteKind
	Header() Meta
	note()
}

// PlainNote keeps its rich-text content readable.
type PlainNote struct {
	Meta
	Content string
}

func (n PlainNote) Kind() NoteKind { return KindPlain }
func (n PlainNote) Header() Meta   { return n.Meta }
func (PlainNote) note()            {}

// EncryptedNote stores only an Envelope; its content is never held here.
type EncryptedNote struct {
	Meta
	Envelope Envelope
}

func (n EncryptedNote) Kind() NoteKind { return KindEncrypted }
func (n EncryptedNote) Header() Meta   { return n.Meta }
func (EncryptedNote) note()            {}

// NoteInput describes a note to create. When Encrypt is set the note starts
// encrypted under Password and can never be converted to plain.
type NoteInput struct {
	Title    string
	Content  string
	Summary  string
	Tags     []string
	Encrypt  bool
	Password string
}

// NoteUpdate carries the fields to change; nil fields are left alone.
type NoteUpdate struct {
	Title   *string
	Content *string
	Summary *string
	Tags    *[]string
}

func (u NoteUpdate) empty() bool {
	return u.Title == nil && u.Content == nil && u.Summary == nil && u.Tags == nil
}

func newNoteID() NoteID {
	return NoteID(uuid.NewString())
}

// NormalizeTags treats tags as a set while keeping an ordered sequence:
// whitespace is trimmed, empties dropped, and later case-insensitive
// duplicates removed so the first spelling wins.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// ParseTags splits a comma separated list into normalized tags.
func ParseTags(s string) []string {
	return NormalizeTags(strings.Split(s, ","))
}

func (m Meta) clone() Meta {
	m.Tags = slices.Clone(m.Tags)
	if m.Tags == nil {
		m.Tags = []string{}
	}
	return m
}

// cloneNote returns a copy whose tag slice is not shared with the store.
func cloneNote(n Note) Note {
	switch v := n.(type) {
	case PlainNote:
		v.Meta = v.Meta.clone()
		return v
	case EncryptedNote:
		v.Meta = v.Meta.clone()
		return v
	}
	panic("models: unknown note variant")
}
