package models

import (
	"context"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// GlossaryTerm is a term found in a note with its definition and byte span.
type GlossaryTerm struct {
	Term       string
	Definition string
	Start, End int
}

// GrammarIssue is a suspected mistake with a suggested replacement.
type GrammarIssue struct {
	Text       string
	Suggestion string
	Start, End int
}

// Analysis is what an Analyzer suggests for a note's plaintext.
type Analysis struct {
	Summary       string
	SuggestedTags []string
	Glossary      []GlossaryTerm
	Grammar       []GrammarIssue
}

// Analyzer inspects plaintext. Results are advisory.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (Analysis, error)
}

// Translator renders plaintext in another language.
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// Analyze runs the configured Analyzer over a note's content. Encrypted
// notes are opened with password first. The note is not modified; use
// ApplySuggestions to keep any of the results.
func (s *Store) Analyze(ctx context.Context, id NoteID, password string) (Analysis, error) {
	if s.opts.Analyzer == nil {
		return Analysis{}, serr.New("no analyzer configured")
	}
	text, err := s.Decrypt(ctx, id, password)
	if err != nil {
		return Analysis{}, err
	}
	a, err := s.opts.Analyzer.Analyze(ctx, text)
	if err != nil {
		logger.LogErr(err, "analysis failed", "id", string(id))
		return Analysis{}, serr.Wrap(err, "analysis failed")
	}
	return a, nil
}

// ApplySuggestions merges suggested tags into a note and replaces its
// summary when one was suggested. Both become clear metadata, even for
// encrypted notes.
func (s *Store) ApplySuggestions(id NoteID, a Analysis) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	n, err := s.lookup(id)
	if err != nil {
		return err
	}
	tags := append(n.Header().Tags, a.SuggestedTags...)
	upd := NoteUpdate{Tags: &tags}
	if a.Summary != "" {
		upd.Summary = &a.Summary
	}
	return s.update(context.Background(), id, upd, "")
}

// Translate returns a note's content translated to targetLang. Nothing is
// stored.
func (s *Store) Translate(ctx context.Context, id NoteID, targetLang, password string) (string, error) {
	if s.opts.Translator == nil {
		return "", serr.New("no translator configured")
	}
	text, err := s.Decrypt(ctx, id, password)
	if err != nil {
		return "", err
	}
	out, err := s.opts.Translator.Translate(ctx, text, targetLang)
	if err != nil {
		logger.LogErr(err, "translation failed", "id", string(id), "lang", targetLang)
		return "", serr.Wrap(err, "translation failed")
	}
	return out, nil
}
