package web

import (
	"notevault/web/api"

	"github.com/rohanthewiz/rweb"
)

// setupRoutes registers the JSON API. Passwords travel in request bodies,
// never in paths or query strings.
func setupRoutes(s *rweb.Server, notes *api.Notes) {
	s.Get("/health", func(ctx rweb.Context) error {
		return ctx.WriteJSON(api.APIResponse{Success: true, Data: "ok"})
	})

	s.Post("/api/v1/notes", notes.CreateNote)              // Create a plain or encrypted note
	s.Get("/api/v1/notes", notes.ListNotes)                // List or search notes
	s.Get("/api/v1/notes/:id", notes.GetNote)              // Get one note, content only if plain
	s.Put("/api/v1/notes/:id", notes.UpdateNote)           // Update fields of a note
	s.Delete("/api/v1/notes/:id", notes.DeleteNote)        // Delete, password-gated if encrypted
	s.Post("/api/v1/notes/:id/decrypt", notes.DecryptNote) // Read encrypted content
	s.Post("/api/v1/notes/:id/pin", notes.TogglePin)       // Flip the pin

	s.Get("/api/v1/tags", notes.ListTags)
}
