package models

import (
	"context"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

const (
	DefaultPlainNamespace     = "plain"
	DefaultEncryptedNamespace = "encrypted"
	DefaultSaveDebounce       = 500 * time.Millisecond
)

// Options configures a Store. Zero values select the defaults.
type Options struct {
	PlainNamespace     string
	EncryptedNamespace string
	Codec              Codec
	// SaveDebounce is the quiet period before dirty namespaces are saved.
	// Negative disables background saves; call Flush instead.
	SaveDebounce time.Duration
	// KDFIterations is the PBKDF2 count for newly sealed envelopes. Existing
	// envelopes always open with the count they were sealed with.
	KDFIterations int
	Now           func() time.Time
	Analyzer      Analyzer
	Translator    Translator
}

func (o Options) withDefaults() Options {
	if o.PlainNamespace == "" {
		o.PlainNamespace = DefaultPlainNamespace
	}
	if o.EncryptedNamespace == "" {
		o.EncryptedNamespace = DefaultEncryptedNamespace
	}
	if o.Codec == nil {
		o.Codec = JSONCodec{}
	}
	if o.SaveDebounce == 0 {
		o.SaveDebounce = DefaultSaveDebounce
	}
	if o.KDFIterations < MinIterations {
		o.KDFIterations = DefaultIterations
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Store is the single source of truth for one user's notes. It is meant
// for one editing session: mutations are serialized in call order, and
// readers see every mutation as soon as the call returns, before it is
// persisted.
type Store struct {
	opts  Options
	saver *saver

	writeMu sync.Mutex // orders mutations, held across key derivation

	mu        sync.RWMutex // guards the collections
	plain     map[NoteID]PlainNote
	encrypted map[NoteID]EncryptedNote
}

// Open loads both namespaces from adapter and returns a ready store.
// A namespace that cannot be decoded is discarded and starts empty; an
// adapter read failure is returned as ErrPersistence.
func Open(ctx context.Context, adapter Adapter, opts Options) (*Store, error) {
	opts = opts.withDefaults()
	if opts.PlainNamespace == opts.EncryptedNamespace {
		return nil, serr.New("plain and encrypted namespaces must differ")
	}

	s := &Store{
		opts:      opts,
		plain:     make(map[NoteID]PlainNote),
		encrypted: make(map[NoteID]EncryptedNote),
	}
	s.saver = newSaver(adapter, opts.SaveDebounce, s.encodeNamespace)

	plainData, err := adapter.Load(ctx, opts.PlainNamespace)
	if err != nil {
		return nil, newError(KindPersistence, "", serr.Wrap(err, "failed to load plain notes"))
	}
	encData, err := adapter.Load(ctx, opts.EncryptedNamespace)
	if err != nil {
		return nil, newError(KindPersistence, "", serr.Wrap(err, "failed to load encrypted notes"))
	}

	encNotes, err := decodeEncrypted(opts.Codec, encData)
	if err != nil {
		logger.LogErr(err, "discarding unreadable namespace", "namespace", opts.EncryptedNamespace)
		encNotes = nil
	}
	for _, n := range encNotes {
		s.encrypted[n.ID] = n
	}

	plainNotes, err := decodePlain(opts.Codec, plainData)
	if err != nil {
		logger.LogErr(err, "discarding unreadable namespace", "namespace", opts.PlainNamespace)
		plainNotes = nil
	}
	dropped := false
	for _, n := range plainNotes {
		if _, clash := s.encrypted[n.ID]; clash {
			logger.LogErr(serr.New("note id present in both namespaces"), "dropping plain duplicate", "id", string(n.ID))
			dropped = true
			continue
		}
		s.plain[n.ID] = n
	}
	if dropped {
		// rewrite the plain namespace without the duplicates
		s.saver.markDirty(opts.PlainNamespace)
	}

	logger.Info("Note store opened", "plain", strconv.Itoa(len(s.plain)), "encrypted", strconv.Itoa(len(s.encrypted)),
		"codec", opts.Codec.Name())
	return s, nil
}

// stamp returns the next UpdatedAt for a note last updated at prev.
// It is strictly after prev even if the clock has not advanced.
func (s *Store) stamp(prev time.Time) time.Time {
	now := s.opts.Now()
	if !now.After(prev) {
		now = prev.Add(time.Nanosecond)
	}
	return now
}

func (s *Store) newID() NoteID {
	for {
		id := newNoteID()
		_, inPlain := s.plain[id]
		_, inEnc := s.encrypted[id]
		if !inPlain && !inEnc {
			return id
		}
	}
}

// lookup returns a copy of the note with id, or ErrNotFound.
func (s *Store) lookup(id NoteID) (Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n, ok := s.plain[id]; ok {
		return cloneNote(n), nil
	}
	if n, ok := s.encrypted[id]; ok {
		return cloneNote(n), nil
	}
	return nil, newError(KindNotFound, id, nil)
}

// Create adds a note and returns its id. Plain creation always succeeds.
// Encrypted creation needs a non-empty password; only the envelope is kept.
func (s *Store) Create(ctx context.Context, in NoteInput) (NoteID, error) {
	var env Envelope
	if in.Encrypt {
		if in.Password == "" {
			return "", newError(KindPasswordRequired, "", nil)
		}
		var err error
		env, err = SealEnvelope(ctx, in.Content, in.Password, s.opts.KDFIterations)
		if err != nil {
			return "", err
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := s.opts.Now()
	s.mu.Lock()
	meta := Meta{
		ID:        s.newID(),
		Title:     in.Title,
		CreatedAt: now,
		UpdatedAt: now,
		Tags:      NormalizeTags(in.Tags),
		Summary:   in.Summary,
	}
	ns := s.opts.PlainNamespace
	if in.Encrypt {
		s.encrypted[meta.ID] = EncryptedNote{Meta: meta, Envelope: env}
		ns = s.opts.EncryptedNamespace
	} else {
		s.plain[meta.ID] = PlainNote{Meta: meta, Content: in.Content}
	}
	s.mu.Unlock()

	s.saver.markDirty(ns)
	logger.Info("Note created", "id", string(meta.ID), "encrypted", strconv.FormatBool(in.Encrypt))
	return meta.ID, nil
}

func applyMeta(m *Meta, upd NoteUpdate) {
	if upd.Title != nil {
		m.Title = *upd.Title
	}
	if upd.Summary != nil {
		m.Summary = *upd.Summary
	}
	if upd.Tags != nil {
		m.Tags = NormalizeTags(*upd.Tags)
	}
}

// Update changes the given fields of a note. Title, tags and summary are
// metadata and need no password. Changing the content of an encrypted note
// requires its password: the old envelope must open with it, and the new
// content is sealed into a whole new envelope with a fresh salt.
func (s *Store) Update(ctx context.Context, id NoteID, upd NoteUpdate, password string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.update(ctx, id, upd, password)
}

// update is Update for callers already holding writeMu.
func (s *Store) update(ctx context.Context, id NoteID, upd NoteUpdate, password string) error {
	n, err := s.lookup(id)
	if err != nil {
		return err
	}
	if upd.empty() {
		return nil
	}

	switch v := n.(type) {
	case PlainNote:
		applyMeta(&v.Meta, upd)
		if upd.Content != nil {
			v.Content = *upd.Content
		}
		v.UpdatedAt = s.stamp(v.UpdatedAt)
		s.mu.Lock()
		s.plain[id] = v
		s.mu.Unlock()
		s.saver.markDirty(s.opts.PlainNamespace)

	case EncryptedNote:
		if upd.Content != nil {
			if password == "" {
				return newError(KindPasswordRequired, id, nil)
			}
			if _, err := OpenEnvelope(ctx, v.Envelope, password); err != nil {
				return asStoreError(err, id)
			}
			env, err := SealEnvelope(ctx, *upd.Content, password, s.opts.KDFIterations)
			if err != nil {
				return asStoreError(err, id)
			}
			v.Envelope = env
		}
		applyMeta(&v.Meta, upd)
		v.UpdatedAt = s.stamp(v.UpdatedAt)
		s.mu.Lock()
		s.encrypted[id] = v
		s.mu.Unlock()
		s.saver.markDirty(s.opts.EncryptedNamespace)
	}

	logger.Debug("Note updated", "id", string(id))
	return nil
}

// Delete removes a note. Plain notes go unconditionally; an encrypted note
// is removed only after password opens its envelope.
func (s *Store) Delete(ctx context.Context, id NoteID, password string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	n, err := s.lookup(id)
	if err != nil {
		return err
	}

	var ns string
	switch v := n.(type) {
	case PlainNote:
		s.mu.Lock()
		delete(s.plain, id)
		s.mu.Unlock()
		ns = s.opts.PlainNamespace

	case EncryptedNote:
		if password == "" {
			return newError(KindPasswordRequired, id, nil)
		}
		if _, err := OpenEnvelope(ctx, v.Envelope, password); err != nil {
			return asStoreError(err, id)
		}
		s.mu.Lock()
		delete(s.encrypted, id)
		s.mu.Unlock()
		ns = s.opts.EncryptedNamespace
	}

	s.saver.markDirty(ns)
	logger.Info("Note deleted", "id", string(id))
	return nil
}

// Decrypt returns the content of a note without changing anything.
// Plain notes return their content directly. For encrypted notes a wrong
// password yields ErrInvalidPassword and no partial plaintext.
func (s *Store) Decrypt(ctx context.Context, id NoteID, password string) (string, error) {
	n, err := s.lookup(id)
	if err != nil {
		return "", err
	}

	switch v := n.(type) {
	case PlainNote:
		return v.Content, nil
	case EncryptedNote:
		content, err := OpenEnvelope(ctx, v.Envelope, password)
		if err != nil {
			return "", asStoreError(err, id)
		}
		return content, nil
	}
	return "", newError(KindNotFound, id, nil)
}

// TogglePin flips the pin state of either variant and refreshes UpdatedAt.
func (s *Store) TogglePin(id NoteID) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	n, err := s.lookup(id)
	if err != nil {
		return err
	}

	switch v := n.(type) {
	case PlainNote:
		v.IsPinned = !v.IsPinned
		v.UpdatedAt = s.stamp(v.UpdatedAt)
		s.mu.Lock()
		s.plain[id] = v
		s.mu.Unlock()
		s.saver.markDirty(s.opts.PlainNamespace)
	case EncryptedNote:
		v.IsPinned = !v.IsPinned
		v.UpdatedAt = s.stamp(v.UpdatedAt)
		s.mu.Lock()
		s.encrypted[id] = v
		s.mu.Unlock()
		s.saver.markDirty(s.opts.EncryptedNamespace)
	}
	return nil
}

// Get returns a copy of the note with id.
func (s *Store) Get(id NoteID) (Note, error) {
	return s.lookup(id)
}

// List returns every note, pinned first then most recently updated.
func (s *Store) List() []Note {
	return s.Search("")
}

// Search returns notes matching query case-insensitively, sorted like List.
// Plain notes match on title, content and tags; encrypted notes on title
// and tags only. The query is a literal substring: only the empty query
// matches everything, and surrounding spaces are part of it.
func (s *Store) Search(query string) []Note {
	q := strings.ToLower(query)

	s.mu.RLock()
	out := make([]Note, 0, len(s.plain)+len(s.encrypted))
	for _, n := range s.plain {
		if matches(n, q) {
			out = append(out, cloneNote(n))
		}
	}
	for _, n := range s.encrypted {
		if matches(n, q) {
			out = append(out, cloneNote(n))
		}
	}
	s.mu.RUnlock()

	// map iteration is random; fix the tie order before the stable sort
	sort.Slice(out, func(i, j int) bool { return out[i].Header().ID < out[j].Header().ID })
	sortNotes(out)
	if q != "" {
		logger.Debug("Search complete", "matches", strconv.Itoa(len(out)))
	}
	return out
}

// Tags returns the distinct tags in use across all notes, sorted
// case-insensitively.
func (s *Store) Tags() []string {
	s.mu.RLock()
	var all []string
	for _, n := range s.plain {
		all = append(all, n.Tags...)
	}
	for _, n := range s.encrypted {
		all = append(all, n.Tags...)
	}
	s.mu.RUnlock()

	tags := NormalizeTags(all)
	slices.SortFunc(tags, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	return tags
}

// Flush saves every namespace with unsaved changes and reports
// ErrPersistence if any save fails.
func (s *Store) Flush(ctx context.Context) error {
	return s.saver.flush(ctx)
}

// Close flushes pending changes and stops background saves.
func (s *Store) Close(ctx context.Context) error {
	s.saver.stop()
	return s.saver.flush(ctx)
}

// encodeNamespace snapshots one collection, ordered by creation time.
func (s *Store) encodeNamespace(namespace string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch namespace {
	case s.opts.PlainNamespace:
		notes := make([]PlainNote, 0, len(s.plain))
		for _, n := range s.plain {
			notes = append(notes, n)
		}
		slices.SortFunc(notes, func(a, b PlainNote) int { return compareCreated(a.Meta, b.Meta) })
		return encodePlain(s.opts.Codec, notes)
	case s.opts.EncryptedNamespace:
		notes := make([]EncryptedNote, 0, len(s.encrypted))
		for _, n := range s.encrypted {
			notes = append(notes, n)
		}
		slices.SortFunc(notes, func(a, b EncryptedNote) int { return compareCreated(a.Meta, b.Meta) })
		return encodeEncrypted(s.opts.Codec, notes)
	}
	return nil, serr.New("unknown namespace: " + namespace)
}

func compareCreated(a, b Meta) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(string(a.ID), string(b.ID))
}

// asStoreError attaches id to crypto failures and leaves other errors wrapped.
func asStoreError(err error, id NoteID) error {
	if kind := KindOf(err); kind != 0 {
		var cause error
		if e, ok := err.(*Error); ok {
			cause = e.Err
		}
		return newError(kind, id, cause)
	}
	return serr.Wrap(err, "note "+string(id))
}
