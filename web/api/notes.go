package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"notevault/models"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
	"github.com/rohanthewiz/serr"
)

// APIResponse provides a consistent JSON response structure for all API endpoints.
// Success responses include data, error responses include an error message.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// writeSuccess sends a successful JSON response with data.
func writeSuccess(ctx rweb.Context, status int, data interface{}) error {
	ctx.SetStatus(status)
	return ctx.WriteJSON(APIResponse{Success: true, Data: data})
}

// writeError sends an error JSON response.
func writeError(ctx rweb.Context, status int, message string) error {
	ctx.SetStatus(status)
	return ctx.WriteJSON(APIResponse{Success: false, Error: message})
}

// StatusFor maps a store error to its HTTP status.
func StatusFor(err error) int {
	switch models.KindOf(err) {
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindPasswordRequired:
		return http.StatusBadRequest
	case models.KindInvalidPassword:
		return http.StatusForbidden
	case models.KindCanceled:
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

// writeStoreError reports a failed store call. Only server-side failures
// are logged; the caller's mistakes are just answered.
func writeStoreError(ctx rweb.Context, err error, msg string) error {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		logger.LogErr(serr.Wrap(err, msg), "store error")
		return writeError(ctx, status, msg)
	}
	return writeError(ctx, status, models.KindOf(err).String())
}

// NoteOutput is the JSON form of a note. Content is only set for plain
// notes and for the decrypt endpoint.
type NoteOutput struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content,omitempty"`
	IsEncrypted bool      `json:"isEncrypted"`
	IsPinned    bool      `json:"isPinned"`
	Tags        []string  `json:"tags"`
	Summary     string    `json:"summary,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toOutput(n models.Note) NoteOutput {
	m := n.Header()
	out := NoteOutput{
		ID:          string(m.ID),
		Title:       m.Title,
		IsEncrypted: n.Kind() == models.KindEncrypted,
		IsPinned:    m.IsPinned,
		Tags:        m.Tags,
		Summary:     m.Summary,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if p, ok := n.(models.PlainNote); ok {
		out.Content = p.Content
	}
	return out
}

// CreateRequest is the body of POST /api/v1/notes.
type CreateRequest struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Summary  string   `json:"summary"`
	Tags     []string `json:"tags"`
	Encrypt  bool     `json:"encrypt"`
	Password string   `json:"password"`
}

// UpdateRequest is the body of PUT /api/v1/notes/:id. Absent fields are
// left alone; Password is needed only to change encrypted content.
type UpdateRequest struct {
	Title    *string   `json:"title"`
	Content  *string   `json:"content"`
	Summary  *string   `json:"summary"`
	Tags     *[]string `json:"tags"`
	Password string    `json:"password"`
}

// PasswordRequest is the body of the decrypt and delete endpoints.
type PasswordRequest struct {
	Password string `json:"password"`
}

// Notes serves the notes endpoints over one store.
type Notes struct {
	store *models.Store
}

// NewNotes returns handlers backed by store.
func NewNotes(store *models.Store) *Notes {
	return &Notes{store: store}
}

// decodeBody unmarshals the request body into v. An empty body leaves v
// at its zero value.
func decodeBody(ctx rweb.Context, v interface{}) error {
	body := ctx.Request().Body()
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, v)
}

func noteID(ctx rweb.Context) models.NoteID {
	return models.NoteID(ctx.Request().Param("id"))
}

// CreateNote handles POST /api/v1/notes
// Creates a plain note, or an encrypted one when encrypt is set.
func (h *Notes) CreateNote(ctx rweb.Context) error {
	var input CreateRequest
	if err := decodeBody(ctx, &input); err != nil {
		logger.LogErr(serr.Wrap(err, "failed to decode request body"), "invalid JSON")
		return writeError(ctx, http.StatusBadRequest, "invalid JSON body")
	}

	id, err := h.store.Create(context.Background(), models.NoteInput{
		Title:    input.Title,
		Content:  input.Content,
		Summary:  input.Summary,
		Tags:     input.Tags,
		Encrypt:  input.Encrypt,
		Password: input.Password,
	})
	if err != nil {
		return writeStoreError(ctx, err, "failed to create note")
	}

	n, err := h.store.Get(id)
	if err != nil {
		return writeStoreError(ctx, err, "failed to read created note")
	}
	return writeSuccess(ctx, http.StatusCreated, toOutput(n))
}

// ListNotes handles GET /api/v1/notes
// Returns notes pinned first, then most recently updated.
//
// Query parameters:
//   - q: case-insensitive search over titles, tags and plain content
//   - tag: only notes carrying this tag
//   - pinned: "true" for pinned notes only
func (h *Notes) ListNotes(ctx rweb.Context) error {
	notes := h.store.Search(ctx.Request().QueryParam("q"))
	tag := ctx.Request().QueryParam("tag")
	pinnedOnly := ctx.Request().QueryParam("pinned") == "true"

	outputs := make([]NoteOutput, 0, len(notes))
	for _, n := range notes {
		m := n.Header()
		if pinnedOnly && !m.IsPinned {
			continue
		}
		if tag != "" && !hasTag(m.Tags, tag) {
			continue
		}
		outputs = append(outputs, toOutput(n))
	}
	return writeSuccess(ctx, http.StatusOK, outputs)
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}

// GetNote handles GET /api/v1/notes/:id
// Encrypted notes come back without content; see DecryptNote.
func (h *Notes) GetNote(ctx rweb.Context) error {
	n, err := h.store.Get(noteID(ctx))
	if err != nil {
		return writeStoreError(ctx, err, "failed to get note")
	}
	return writeSuccess(ctx, http.StatusOK, toOutput(n))
}

// DecryptNote handles POST /api/v1/notes/:id/decrypt
// Returns the note with its content. Nothing is stored.
func (h *Notes) DecryptNote(ctx rweb.Context) error {
	var input PasswordRequest
	if err := decodeBody(ctx, &input); err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid JSON body")
	}

	id := noteID(ctx)
	content, err := h.store.Decrypt(context.Background(), id, input.Password)
	if err != nil {
		return writeStoreError(ctx, err, "failed to decrypt note")
	}
	n, err := h.store.Get(id)
	if err != nil {
		return writeStoreError(ctx, err, "failed to get note")
	}

	out := toOutput(n)
	out.Content = content
	return writeSuccess(ctx, http.StatusOK, out)
}

// UpdateNote handles PUT /api/v1/notes/:id
func (h *Notes) UpdateNote(ctx rweb.Context) error {
	var input UpdateRequest
	if err := decodeBody(ctx, &input); err != nil {
		logger.LogErr(serr.Wrap(err, "failed to decode request body"), "invalid JSON")
		return writeError(ctx, http.StatusBadRequest, "invalid JSON body")
	}
	if input.Title == nil && input.Content == nil && input.Summary == nil && input.Tags == nil {
		return writeError(ctx, http.StatusBadRequest, "nothing to update")
	}

	id := noteID(ctx)
	upd := models.NoteUpdate{Title: input.Title, Content: input.Content, Summary: input.Summary, Tags: input.Tags}
	if err := h.store.Update(context.Background(), id, upd, input.Password); err != nil {
		return writeStoreError(ctx, err, "failed to update note")
	}

	n, err := h.store.Get(id)
	if err != nil {
		return writeStoreError(ctx, err, "failed to get note")
	}
	return writeSuccess(ctx, http.StatusOK, toOutput(n))
}

// TogglePin handles POST /api/v1/notes/:id/pin
func (h *Notes) TogglePin(ctx rweb.Context) error {
	id := noteID(ctx)
	if err := h.store.TogglePin(id); err != nil {
		return writeStoreError(ctx, err, "failed to pin note")
	}
	n, err := h.store.Get(id)
	if err != nil {
		return writeStoreError(ctx, err, "failed to get note")
	}
	return writeSuccess(ctx, http.StatusOK, toOutput(n))
}

// DeleteNote handles DELETE /api/v1/notes/:id
// Encrypted notes need their password in the body.
func (h *Notes) DeleteNote(ctx rweb.Context) error {
	var input PasswordRequest
	if err := decodeBody(ctx, &input); err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid JSON body")
	}

	id := noteID(ctx)
	if err := h.store.Delete(context.Background(), id, input.Password); err != nil {
		return writeStoreError(ctx, err, "failed to delete note")
	}
	return writeSuccess(ctx, http.StatusOK, map[string]interface{}{"deleted": true, "id": id})
}

// ListTags handles GET /api/v1/tags
func (h *Notes) ListTags(ctx rweb.Context) error {
	return writeSuccess(ctx, http.StatusOK, h.store.Tags())
}
