package models

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/rohanthewiz/serr"
)

// Codec turns namespace record slices into bytes and back. The store owns
// (de)serialization; adapters only move the resulting bytes.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec writes the persisted JSON record shape: camelCase keys,
// ISO-8601 dates and an explicit isEncrypted discriminator.
type JSONCodec struct{}

func (JSONCodec) Name() string                       { return "json" }
func (JSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// CodecByName returns the codec registered under name ("json" or "msgpack").
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "msgpack":
		return MsgPackCodec{}, nil
	}
	return nil, serr.New("unknown codec: " + name)
}

type plainRecord struct {
	ID          string    `json:"id" msgpack:"id"`
	Title       string    `json:"title" msgpack:"title"`
	Content     string    `json:"content" msgpack:"content"`
	CreatedAt   time.Time `json:"createdAt" msgpack:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" msgpack:"updatedAt"`
	IsPinned    bool      `json:"isPinned" msgpack:"isPinned"`
	IsEncrypted bool      `json:"isEncrypted" msgpack:"isEncrypted"`
	Tags        []string  `json:"tags" msgpack:"tags"`
	Summary     string    `json:"summary,omitempty" msgpack:"summary,omitempty"`
}

type encryptedRecord struct {
	ID               string    `json:"id" msgpack:"id"`
	Title            string    `json:"title" msgpack:"title"`
	EncryptedContent string    `json:"encryptedContent" msgpack:"encryptedContent"`
	Salt             string    `json:"salt" msgpack:"salt"`
	Iterations       int       `json:"iterations,omitempty" msgpack:"iterations,omitempty"`
	CreatedAt        time.Time `json:"createdAt" msgpack:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt" msgpack:"updatedAt"`
	IsPinned         bool      `json:"isPinned" msgpack:"isPinned"`
	IsEncrypted      bool      `json:"isEncrypted" msgpack:"isEncrypted"`
	Tags             []string  `json:"tags" msgpack:"tags"`
	Summary          string    `json:"summary,omitempty" msgpack:"summary,omitempty"`
}

func toPlainRecord(n PlainNote) plainRecord {
	m := n.Meta.clone()
	return plainRecord{
		ID:        string(m.ID),
		Title:     m.Title,
		Content:   n.Content,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
		IsPinned:  m.IsPinned,
		Tags:      m.Tags,
		Summary:   m.Summary,
	}
}

func toEncryptedRecord(n EncryptedNote) encryptedRecord {
	m := n.Meta.clone()
	return encryptedRecord{
		ID:               string(m.ID),
		Title:            m.Title,
		EncryptedContent: n.Envelope.Payload,
		Salt:             n.Envelope.Salt,
		Iterations:       n.Envelope.Iterations,
		CreatedAt:        m.CreatedAt.UTC(),
		UpdatedAt:        m.UpdatedAt.UTC(),
		IsPinned:         m.IsPinned,
		IsEncrypted:      true,
		Tags:             m.Tags,
		Summary:          m.Summary,
	}
}

func checkMeta(id string, createdAt, updatedAt time.Time) error {
	if id == "" {
		return serr.New("record has empty id")
	}
	if createdAt.IsZero() || updatedAt.IsZero() {
		return serr.New("record " + id + " is missing a date")
	}
	if updatedAt.Before(createdAt) {
		return serr.New("record " + id + " was updated before it was created")
	}
	return nil
}

func (r plainRecord) toNote() (PlainNote, error) {
	if r.IsEncrypted {
		return PlainNote{}, serr.New("record " + r.ID + " is marked encrypted in the plain namespace")
	}
	if err := checkMeta(r.ID, r.CreatedAt, r.UpdatedAt); err != nil {
		return PlainNote{}, err
	}
	return PlainNote{
		Meta: Meta{
			ID:        NoteID(r.ID),
			Title:     r.Title,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
			IsPinned:  r.IsPinned,
			Tags:      NormalizeTags(r.Tags),
			Summary:   r.Summary,
		},
		Content: r.Content,
	}, nil
}

func (r encryptedRecord) toNote() (EncryptedNote, error) {
	if !r.IsEncrypted {
		return EncryptedNote{}, serr.New("record " + r.ID + " is not marked encrypted in the encrypted namespace")
	}
	if err := checkMeta(r.ID, r.CreatedAt, r.UpdatedAt); err != nil {
		return EncryptedNote{}, err
	}
	salt, err := base64.StdEncoding.DecodeString(r.Salt)
	if err != nil {
		return EncryptedNote{}, serr.Wrap(err, "record "+r.ID+" has an undecodable salt")
	}
	if len(salt) != SaltSize {
		return EncryptedNote{}, serr.New("record " + r.ID + " has a salt of the wrong length")
	}
	if r.EncryptedContent == "" {
		return EncryptedNote{}, serr.New("record " + r.ID + " has no encrypted content")
	}
	// records written before the count was stored have none and use the default
	if r.Iterations != 0 && r.Iterations < MinIterations {
		return EncryptedNote{}, serr.New("record " + r.ID + " has a KDF iteration count below the minimum")
	}
	return EncryptedNote{
		Meta: Meta{
			ID:        NoteID(r.ID),
			Title:     r.Title,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
			IsPinned:  r.IsPinned,
			Tags:      NormalizeTags(r.Tags),
			Summary:   r.Summary,
		},
		Envelope: Envelope{Payload: r.EncryptedContent, Salt: r.Salt, Iterations: r.Iterations},
	}, nil
}

func encodePlain(c Codec, notes []PlainNote) ([]byte, error) {
	recs := make([]plainRecord, 0, len(notes))
	for _, n := range notes {
		recs = append(recs, toPlainRecord(n))
	}
	data, err := c.Marshal(recs)
	if err != nil {
		return nil, serr.Wrap(err, "failed to encode plain notes")
	}
	return data, nil
}

func encodeEncrypted(c Codec, notes []EncryptedNote) ([]byte, error) {
	recs := make([]encryptedRecord, 0, len(notes))
	for _, n := range notes {
		recs = append(recs, toEncryptedRecord(n))
	}
	data, err := c.Marshal(recs)
	if err != nil {
		return nil, serr.Wrap(err, "failed to encode encrypted notes")
	}
	return data, nil
}

// decodePlain returns the notes in data. Any unreadable or invalid record
// fails the whole namespace.
func decodePlain(c Codec, data []byte) ([]PlainNote, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var recs []plainRecord
	if err := c.Unmarshal(data, &recs); err != nil {
		return nil, serr.Wrap(err, "failed to decode plain notes")
	}
	notes := make([]PlainNote, 0, len(recs))
	seen := make(map[string]struct{}, len(recs))
	for _, r := range recs {
		if _, dup := seen[r.ID]; dup {
			return nil, serr.New("duplicate plain note id " + r.ID)
		}
		seen[r.ID] = struct{}{}
		n, err := r.toNote()
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, nil
}

func decodeEncrypted(c Codec, data []byte) ([]EncryptedNote, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var recs []encryptedRecord
	if err := c.Unmarshal(data, &recs); err != nil {
		return nil, serr.Wrap(err, "failed to decode encrypted notes")
	}
	notes := make([]EncryptedNote, 0, len(recs))
	seen := make(map[string]struct{}, len(recs))
	for _, r := range recs {
		if _, dup := seen[r.ID]; dup {
			return nil, serr.New("duplicate encrypted note id " + r.ID)
		}
		seen[r.ID] = struct{}{}
		n, err := r.toNote()
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, nil
}
