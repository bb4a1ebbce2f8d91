package models_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notevault/models"
	"notevault/storage"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// newTestStore opens a store over a fresh Memory adapter with background
// saves disabled.
func newTestStore(t *testing.T, opts models.Options) (*models.Store, *storage.Memory) {
	t.Helper()
	mem := storage.NewMemory()
	if opts.SaveDebounce == 0 {
		opts.SaveDebounce = -1
	}
	s, err := models.Open(context.Background(), mem, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s, mem
}

func ids(notes []models.Note) []models.NoteID {
	out := make([]models.NoteID, len(notes))
	for i, n := range notes {
		out[i] = n.Header().ID
	}
	return out
}

func TestCreatePlainNote(t *testing.T) {
	s, _ := newTestStore(t, models.Options{})
	ctx := context.Background()

	id, err := s.Create(ctx, models.NoteInput{Title: "Groceries", Content: "milk", Tags: []string{"home", " Home ", ""}})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	n, err := s.Get(id)
	require.NoError(t, err)
	plain, ok := n.(models.PlainNote)
	require.True(t, ok, "expected a PlainNote, got %T", n)
	assert.Equal(t, "Groceries", plain.Title)
	assert.Equal(t, "milk", plain.Content)
	assert.Equal(t, []string{"home"}, plain.Tags)
	assert.Equal(t, plain.CreatedAt, plain.UpdatedAt)
	assert.False(t, plain.IsPinned)
}

func TestCreateEncryptedNote(t *testing.T) {
	s, _ := newTestStore(t, models.Options{})
	ctx := context.Background()

	t.Run("empty password is rejected", func(t *testing.T) {
		_, err := s.Create(ctx, models.NoteInput{Title: "x", Content: "y", Encrypt: true})
		require.ErrorIs(t, err, models.ErrPasswordRequired)
		assert.Empty(t, s.List())
	})

	t.Run("only the envelope is stored", func(t *testing.T) {
		id, err := s.Create(ctx, models.NoteInput{Title: "Diary", Content: "dear diary", Encrypt: true, Password: "pw"})
		require.NoError(t, err)

		n, err := s.Get(id)
		require.NoError(t, err)
		enc, ok := n.(models.EncryptedNote)
		require.True(t, ok, "expected an EncryptedNote, got %T", n)
		assert.Equal(t, models.KindEncrypted, enc.Kind())
		assert.NotEmpty(t, enc.Envelope.Payload)
		assert.NotContains(t, enc.Envelope.Payload, "dear diary")

		got, err := s.Decrypt(ctx, id, "pw")
		require.NoError(t, err)
		assert.Equal(t, "dear diary", got)
	})
}

func TestDecrypt(t *testing.T) {
	s, _ := newTestStore(t, models.Options{})
	ctx := context.Background()

	encID, err := s.Create(ctx, models.NoteInput{Title: "secret", Content: "s3cr3t", Encrypt: true, Password: "right"})
	require.NoError(t, err)
	plainID, err := s.Create(ctx, models.NoteInput{Title: "open", Content: "hello"})
	require.NoError(t, err)

	testCases := []struct {
		name     string
		id       models.NoteID
		password string
		want     string
		wantErr  error
	}{
		{"correct password", encID, "right", "s3cr3t", nil},
		{"wrong password", encID, "wrong", "", models.ErrInvalidPassword},
		{"empty password", encID, "", "", models.ErrPasswordRequired},
		{"missing id", "nope", "right", "", models.ErrNotFound},
		{"plain note ignores password", plainID, "", "hello", nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			before, _ := s.Get(tc.id)
			got, err := s.Decrypt(ctx, tc.id, tc.password)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.want, got)

			after, _ := s.Get(tc.id)
			assert.Equal(t, before, after, "decrypt must not mutate the note")
		})
	}
}

func TestDeleteGating(t *testing.T) {
	s, _ := newTestStore(t, models.Options{})
	ctx := context.Background()

	id, err := s.Create(ctx, models.NoteInput{Title: "locked", Content: "x", Encrypt: true, Password: "right"})
	require.NoError(t, err)

	err = s.Delete(ctx, id, "")
	require.ErrorIs(t, err, models.ErrPasswordRequired)
	_, err = s.Get(id)
	require.NoError(t, err, "note must survive an empty password")

	err = s.Delete(ctx, id, "wrong")
	require.ErrorIs(t, err, models.ErrInvalidPassword)
	assert.Equal(t, id, models.NoteID(errorID(err)))
	_, err = s.Get(id)
	require.NoError(t, err, "note must survive a wrong password")

	require.NoError(t, s.Delete(ctx, id, "right"))
	_, err = s.Get(id)
	require.ErrorIs(t, err, models.ErrNotFound)

	err = s.Delete(ctx, id, "right")
	require.ErrorIs(t, err, models.ErrNotFound, "deleting twice reports not found, not a password failure")
}

func errorID(err error) string {
	var e *models.Error
	if errors.As(err, &e) {
		return string(e.ID)
	}
	return ""
}

func TestUpdatePlainNote(t *testing.T) {
	clock := newFakeClock()
	s, _ := newTestStore(t, models.Options{Now: clock.Now})
	ctx := context.Background()

	id, err := s.Create(ctx, models.NoteInput{Title: "draft", Content: "v1"})
	require.NoError(t, err)

	title, content := "final", "v2"
	tags := []string{"work"}
	require.NoError(t, s.Update(ctx, id, models.NoteUpdate{Title: &title, Content: &content, Tags: &tags}, ""))

	n, _ := s.Get(id)
	plain := n.(models.PlainNote)
	assert.Equal(t, "final", plain.Title)
	assert.Equal(t, "v2", plain.Content)
	assert.Equal(t, []string{"work"}, plain.Tags)

	t.Run("empty update changes nothing", func(t *testing.T) {
		require.NoError(t, s.Update(ctx, id, models.NoteUpdate{}, ""))
		again, _ := s.Get(id)
		assert.Equal(t, n, again)
	})

	t.Run("missing id", func(t *testing.T) {
		err := s.Update(ctx, "missing", models.NoteUpdate{Title: &title}, "")
		require.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestUpdateEncryptedNote(t *testing.T) {
	s, _ := newTestStore(t, models.Options{})
	ctx := context.Background()

	id, err := s.Create(ctx, models.NoteInput{Title: "vault", Content: "old", Encrypt: true, Password: "pw"})
	require.NoError(t, err)
	n, _ := s.Get(id)
	oldEnv := n.(models.EncryptedNote).Envelope

	content := "new"

	t.Run("content change needs the password", func(t *testing.T) {
		err := s.Update(ctx, id, models.NoteUpdate{Content: &content}, "")
		require.ErrorIs(t, err, models.ErrPasswordRequired)
	})

	t.Run("wrong password leaves the envelope untouched", func(t *testing.T) {
		err := s.Update(ctx, id, models.NoteUpdate{Content: &content}, "nope")
		require.ErrorIs(t, err, models.ErrInvalidPassword)
		cur, _ := s.Get(id)
		assert.Equal(t, oldEnv, cur.(models.EncryptedNote).Envelope)
	})

	t.Run("correct password replaces the whole envelope", func(t *testing.T) {
		require.NoError(t, s.Update(ctx, id, models.NoteUpdate{Content: &content}, "pw"))
		cur, _ := s.Get(id)
		env := cur.(models.EncryptedNote).Envelope
		assert.NotEqual(t, oldEnv.Salt, env.Salt, "a fresh salt is expected")
		assert.NotEqual(t, oldEnv.Payload, env.Payload)

		got, err := s.Decrypt(ctx, id, "pw")
		require.NoError(t, err)
		assert.Equal(t, "new", got)
	})

	t.Run("metadata changes need no password", func(t *testing.T) {
		before, _ := s.Get(id)
		title := "renamed"
		require.NoError(t, s.Update(ctx, id, models.NoteUpdate{Title: &title}, ""))
		cur, _ := s.Get(id)
		enc := cur.(models.EncryptedNote)
		assert.Equal(t, "renamed", enc.Title)
		assert.Equal(t, before.(models.EncryptedNote).Envelope, enc.Envelope)
	})
}

func TestTogglePin(t *testing.T) {
	clock := newFakeClock()
	s, _ := newTestStore(t, models.Options{Now: clock.Now})
	ctx := context.Background()

	plainID, _ := s.Create(ctx, models.NoteInput{Title: "p", Content: "x"})
	encID, err := s.Create(ctx, models.NoteInput{Title: "e", Content: "x", Encrypt: true, Password: "pw"})
	require.NoError(t, err)

	for _, id := range []models.NoteID{plainID, encID} {
		before, _ := s.Get(id)
		clock.Advance(time.Minute)

		require.NoError(t, s.TogglePin(id))
		after, _ := s.Get(id)
		assert.True(t, after.Header().IsPinned)
		assert.True(t, after.Header().UpdatedAt.After(before.Header().UpdatedAt))

		require.NoError(t, s.TogglePin(id))
		again, _ := s.Get(id)
		assert.False(t, again.Header().IsPinned)
	}

	require.ErrorIs(t, s.TogglePin("missing"), models.ErrNotFound)
}

func TestSearchBoundary(t *testing.T) {
	s, _ := newTestStore(t, models.Options{})
	ctx := context.Background()

	encID, err := s.Create(ctx, models.NoteInput{Title: "budget", Content: "salary", Encrypt: true, Password: "pw", Tags: []string{"Finance"}})
	require.NoError(t, err)
	plainID, err := s.Create(ctx, models.NoteInput{Title: "ideas", Content: "ask about SALARY bands"})
	require.NoError(t, err)

	assert.Equal(t, []models.NoteID{encID}, ids(s.Search("budget")))
	assert.Equal(t, []models.NoteID{encID}, ids(s.Search("BUDGET")))
	assert.Equal(t, []models.NoteID{encID}, ids(s.Search("finance")), "tags of encrypted notes are searchable")
	assert.Equal(t, []models.NoteID{plainID}, ids(s.Search("salary")), "encrypted content must not match")
	assert.Empty(t, s.Search("nothing like this"))
	assert.Len(t, s.Search(""), 2, "the empty query matches everything")
	assert.Equal(t, []models.NoteID{plainID}, ids(s.Search(" ")), "spaces are matched literally")
	assert.Empty(t, s.Search("  "))
	assert.Equal(t, []models.NoteID{plainID}, ids(s.Search("salary bands")))
	assert.Empty(t, s.Search(" salary bands "), "the query is not trimmed")
}

func TestListOrder(t *testing.T) {
	clock := newFakeClock()
	s, _ := newTestStore(t, models.Options{Now: clock.Now})
	ctx := context.Background()

	t0 := clock.Now()
	t1, t2, t3 := t0.Add(time.Hour), t0.Add(2*time.Hour), t0.Add(3*time.Hour)

	a, _ := s.Create(ctx, models.NoteInput{Title: "A"})
	c, _ := s.Create(ctx, models.NoteInput{Title: "C"})

	clock.Set(t1)
	require.NoError(t, s.TogglePin(a))
	clock.Set(t2)
	require.NoError(t, s.TogglePin(c))
	clock.Set(t3)
	b, _ := s.Create(ctx, models.NoteInput{Title: "B"})

	assert.Equal(t, []models.NoteID{c, a, b}, ids(s.List()))
}

func TestGroceriesScenario(t *testing.T) {
	// a frozen clock still yields strictly increasing UpdatedAt
	clock := newFakeClock()
	s, _ := newTestStore(t, models.Options{Now: clock.Now})
	ctx := context.Background()

	id, err := s.Create(ctx, models.NoteInput{Title: "Groceries", Content: "milk, eggs"})
	require.NoError(t, err)
	before, _ := s.Get(id)

	content := "milk, eggs, bread"
	require.NoError(t, s.Update(ctx, id, models.NoteUpdate{Content: &content}, ""))
	after, _ := s.Get(id)
	assert.True(t, after.Header().UpdatedAt.After(before.Header().UpdatedAt))
	assert.Equal(t, before.Header().CreatedAt, after.Header().CreatedAt)

	assert.Equal(t, []models.NoteID{id}, ids(s.Search("eggs")))

	require.NoError(t, s.Delete(ctx, id, ""))
	_, err = s.Get(id)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestTags(t *testing.T) {
	s, _ := newTestStore(t, models.Options{})
	ctx := context.Background()

	_, _ = s.Create(ctx, models.NoteInput{Title: "1", Tags: []string{"work", "Ideas"}})
	_, _ = s.Create(ctx, models.NoteInput{Title: "2", Tags: []string{"Work", "home"}})

	assert.Equal(t, []string{"home", "Ideas", "work"}, s.Tags())
}

func TestReturnedNotesAreCopies(t *testing.T) {
	s, _ := newTestStore(t, models.Options{})
	id, _ := s.Create(context.Background(), models.NoteInput{Title: "t", Tags: []string{"a"}})

	n, _ := s.Get(id)
	n.Header().Tags[0] = "changed"

	again, _ := s.Get(id)
	assert.Equal(t, []string{"a"}, again.Header().Tags)
}

func TestDebouncedSave(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()
	s, err := models.Open(ctx, mem, models.Options{SaveDebounce: 100 * time.Millisecond})
	require.NoError(t, err)
	defer s.Close(ctx)

	for i := 0; i < 5; i++ {
		_, err := s.Create(ctx, models.NoteInput{Title: "burst", Content: "x"})
		require.NoError(t, err)
	}
	assert.Len(t, s.List(), 5, "mutations are visible before any save")
	assert.Zero(t, mem.SaveCount(models.DefaultPlainNamespace))

	require.Eventually(t, func() bool {
		return mem.SaveCount(models.DefaultPlainNamespace) == 1
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, 1, mem.SaveCount(models.DefaultPlainNamespace), "one burst, one save")
	assert.Zero(t, mem.SaveCount(models.DefaultEncryptedNamespace), "clean namespaces are not saved")
}

// flakyAdapter fails saves while failing is set.
type flakyAdapter struct {
	*storage.Memory
	failing atomic.Bool
}

func (f *flakyAdapter) Save(ctx context.Context, ns string, data []byte) error {
	if f.failing.Load() {
		return errors.New("disk full")
	}
	return f.Memory.Save(ctx, ns, data)
}

func TestFlushFailureKeepsStateAndRetries(t *testing.T) {
	ctx := context.Background()
	adapter := &flakyAdapter{Memory: storage.NewMemory()}
	adapter.failing.Store(true)

	s, err := models.Open(ctx, adapter, models.Options{SaveDebounce: -1})
	require.NoError(t, err)

	id, err := s.Create(ctx, models.NoteInput{Title: "keep me"})
	require.NoError(t, err)

	err = s.Flush(ctx)
	require.ErrorIs(t, err, models.ErrPersistence)
	_, err = s.Get(id)
	require.NoError(t, err, "in-memory state stays authoritative")

	adapter.failing.Store(false)
	require.NoError(t, s.Flush(ctx), "the namespace is still dirty and retried")
	assert.Equal(t, 1, adapter.SaveCount(models.DefaultPlainNamespace))
}

type failingLoader struct{ *storage.Memory }

func (failingLoader) Load(context.Context, string) ([]byte, error) {
	return nil, errors.New("permission denied")
}

func TestOpenLoadFailure(t *testing.T) {
	_, err := models.Open(context.Background(), failingLoader{storage.NewMemory()}, models.Options{})
	require.ErrorIs(t, err, models.ErrPersistence)
}

func TestOpenRejectsSharedNamespace(t *testing.T) {
	_, err := models.Open(context.Background(), storage.NewMemory(),
		models.Options{PlainNamespace: "notes", EncryptedNamespace: "notes"})
	require.Error(t, err)
}

func TestReopenRoundTrip(t *testing.T) {
	for _, codecName := range []string{"json", "msgpack"} {
		t.Run(codecName, func(t *testing.T) {
			ctx := context.Background()
			codec, err := models.CodecByName(codecName)
			require.NoError(t, err)

			mem := storage.NewMemory()
			opts := models.Options{Codec: codec, SaveDebounce: -1, PlainNamespace: "p", EncryptedNamespace: "e"}

			s, err := models.Open(ctx, mem, opts)
			require.NoError(t, err)
			plainID, _ := s.Create(ctx, models.NoteInput{Title: "plain", Content: "body", Tags: []string{"x"}, Summary: "short"})
			encID, err := s.Create(ctx, models.NoteInput{Title: "enc", Content: "hidden", Encrypt: true, Password: "pw"})
			require.NoError(t, err)
			require.NoError(t, s.TogglePin(encID))
			want := s.List()
			require.NoError(t, s.Close(ctx))

			reopened, err := models.Open(ctx, mem, opts)
			require.NoError(t, err)
			defer reopened.Close(ctx)

			got := reopened.List()
			require.Len(t, got, 2)
			for i := range want {
				w, g := want[i].Header(), got[i].Header()
				assert.Equal(t, w.ID, g.ID)
				assert.Equal(t, w.Title, g.Title)
				assert.Equal(t, w.Tags, g.Tags)
				assert.Equal(t, w.Summary, g.Summary)
				assert.Equal(t, w.IsPinned, g.IsPinned)
				assert.True(t, w.CreatedAt.Equal(g.CreatedAt))
				assert.True(t, w.UpdatedAt.Equal(g.UpdatedAt))
				assert.Equal(t, want[i].Kind(), got[i].Kind())
			}

			content, err := reopened.Decrypt(ctx, encID, "pw")
			require.NoError(t, err)
			assert.Equal(t, "hidden", content)
			content, err = reopened.Decrypt(ctx, plainID, "")
			require.NoError(t, err)
			assert.Equal(t, "body", content)
		})
	}
}

func TestPersistedRecordShape(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t, models.Options{})

	_, err := s.Create(ctx, models.NoteInput{Title: "plain", Content: "body", Tags: []string{"t"}})
	require.NoError(t, err)
	_, err = s.Create(ctx, models.NoteInput{Title: "enc", Content: "hidden", Encrypt: true, Password: "pw"})
	require.NoError(t, err)
	require.NoError(t, s.Flush(ctx))

	plainData, _ := mem.Load(ctx, models.DefaultPlainNamespace)
	var plain []map[string]any
	require.NoError(t, json.Unmarshal(plainData, &plain))
	require.Len(t, plain, 1)
	assert.Equal(t, false, plain[0]["isEncrypted"])
	assert.Equal(t, "body", plain[0]["content"])
	assert.Equal(t, []any{"t"}, plain[0]["tags"])
	_, err = time.Parse(time.RFC3339Nano, plain[0]["createdAt"].(string))
	assert.NoError(t, err, "dates are ISO-8601")

	encData, _ := mem.Load(ctx, models.DefaultEncryptedNamespace)
	assert.NotContains(t, string(encData), "hidden")
	var enc []map[string]any
	require.NoError(t, json.Unmarshal(encData, &enc))
	require.Len(t, enc, 1)
	assert.Equal(t, true, enc[0]["isEncrypted"])
	assert.NotContains(t, enc[0], "content")
	salt, err := base64.StdEncoding.DecodeString(enc[0]["salt"].(string))
	require.NoError(t, err)
	assert.Len(t, salt, models.SaltSize)
	payload, err := base64.StdEncoding.DecodeString(enc[0]["encryptedContent"].(string))
	require.NoError(t, err)
	assert.Greater(t, len(payload), models.NonceSize)
}

func TestMalformedNamespaceIsDiscarded(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()

	s, err := models.Open(ctx, mem, models.Options{SaveDebounce: -1})
	require.NoError(t, err)
	encID, err := s.Create(ctx, models.NoteInput{Title: "enc", Content: "x", Encrypt: true, Password: "pw"})
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx))

	require.NoError(t, mem.Save(ctx, models.DefaultPlainNamespace, []byte(`[{"id": "broken"`)))

	reopened, err := models.Open(ctx, mem, models.Options{SaveDebounce: -1})
	require.NoError(t, err)
	defer reopened.Close(ctx)

	assert.Equal(t, []models.NoteID{encID}, ids(reopened.List()), "the readable namespace survives")
}

func TestInvalidRecordDiscardsNamespace(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()

	// second record has a salt of the wrong length
	data := `[
		{"id":"a","title":"ok","encryptedContent":"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA","salt":"AAAAAAAAAAAAAAAAAAAAAA==","createdAt":"2024-01-01T00:00:00Z","updatedAt":"2024-01-01T00:00:00Z","isPinned":false,"isEncrypted":true,"tags":[]},
		{"id":"b","title":"bad","encryptedContent":"AAAA","salt":"AAAA","createdAt":"2024-01-01T00:00:00Z","updatedAt":"2024-01-01T00:00:00Z","isPinned":false,"isEncrypted":true,"tags":[]}
	]`
	require.NoError(t, mem.Save(ctx, models.DefaultEncryptedNamespace, []byte(data)))

	s, err := models.Open(ctx, mem, models.Options{SaveDebounce: -1})
	require.NoError(t, err)
	defer s.Close(ctx)
	assert.Empty(t, s.List())
}

func TestCodecByName(t *testing.T) {
	for _, name := range []string{"", "json", "msgpack"} {
		c, err := models.CodecByName(name)
		require.NoError(t, err, name)
		require.NotNil(t, c)
	}
	_, err := models.CodecByName("xml")
	require.Error(t, err)
}

func TestIterationSettingChangeKeepsNotesReadable(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()

	s, err := models.Open(ctx, mem, models.Options{SaveDebounce: -1})
	require.NoError(t, err)
	oldID, err := s.Create(ctx, models.NoteInput{Title: "old", Content: "sealed at the default", Encrypt: true, Password: "pw"})
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx))

	stronger := models.Options{SaveDebounce: -1, KDFIterations: 200_000}
	reopened, err := models.Open(ctx, mem, stronger)
	require.NoError(t, err)

	content, err := reopened.Decrypt(ctx, oldID, "pw")
	require.NoError(t, err, "the stored count opens the note, not the configured one")
	assert.Equal(t, "sealed at the default", content)

	newID, err := reopened.Create(ctx, models.NoteInput{Title: "new", Content: "sealed stronger", Encrypt: true, Password: "pw"})
	require.NoError(t, err)
	n, err := reopened.Get(newID)
	require.NoError(t, err)
	assert.Equal(t, 200_000, n.(models.EncryptedNote).Envelope.Iterations)

	require.NoError(t, reopened.Delete(ctx, oldID, "pw"))
	require.NoError(t, reopened.Close(ctx))

	// and back to the default setting
	back, err := models.Open(ctx, mem, models.Options{SaveDebounce: -1})
	require.NoError(t, err)
	defer back.Close(ctx)
	content, err = back.Decrypt(ctx, newID, "pw")
	require.NoError(t, err)
	assert.Equal(t, "sealed stronger", content)
	require.NoError(t, back.Delete(ctx, newID, "pw"))
	assert.Empty(t, back.List())
}

func TestRecordIterations(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t, models.Options{KDFIterations: 120_000})
	_, err := s.Create(ctx, models.NoteInput{Title: "enc", Content: "x", Encrypt: true, Password: "pw"})
	require.NoError(t, err)
	require.NoError(t, s.Flush(ctx))

	data, _ := mem.Load(ctx, models.DefaultEncryptedNamespace)
	var recs []map[string]any
	require.NoError(t, json.Unmarshal(data, &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, float64(120_000), recs[0]["iterations"])

	// a count below the floor cannot have been written by us
	weak := `[{"id":"w","title":"weak","encryptedContent":"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA","salt":"AAAAAAAAAAAAAAAAAAAAAA==","iterations":1000,"createdAt":"2024-01-01T00:00:00Z","updatedAt":"2024-01-01T00:00:00Z","isPinned":false,"isEncrypted":true,"tags":[]}]`
	other := storage.NewMemory()
	require.NoError(t, other.Save(ctx, models.DefaultEncryptedNamespace, []byte(weak)))
	reopened, err := models.Open(ctx, other, models.Options{SaveDebounce: -1})
	require.NoError(t, err)
	defer reopened.Close(ctx)
	assert.Empty(t, reopened.List())
}

func TestDuplicateAcrossNamespacesIsRewritten(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()

	s, err := models.Open(ctx, mem, models.Options{SaveDebounce: -1})
	require.NoError(t, err)
	encID, err := s.Create(ctx, models.NoteInput{Title: "enc", Content: "x", Encrypt: true, Password: "pw"})
	require.NoError(t, err)
	keepID, err := s.Create(ctx, models.NoteInput{Title: "keep", Content: "y"})
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx))

	// plant a plain copy of the encrypted note's id
	plainData, _ := mem.Load(ctx, models.DefaultPlainNamespace)
	var recs []map[string]any
	require.NoError(t, json.Unmarshal(plainData, &recs))
	clash := map[string]any{}
	for k, v := range recs[0] {
		clash[k] = v
	}
	clash["id"] = string(encID)
	clash["content"] = "leaked copy"
	recs = append(recs, clash)
	planted, err := json.Marshal(recs)
	require.NoError(t, err)
	require.NoError(t, mem.Save(ctx, models.DefaultPlainNamespace, planted))
	saves := mem.SaveCount(models.DefaultPlainNamespace)

	reopened, err := models.Open(ctx, mem, models.Options{SaveDebounce: -1})
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.NoteID{encID, keepID}, ids(reopened.List()))
	n, err := reopened.Get(encID)
	require.NoError(t, err)
	assert.Equal(t, models.KindEncrypted, n.Kind(), "the encrypted copy wins")
	require.NoError(t, reopened.Close(ctx))

	assert.Equal(t, saves+1, mem.SaveCount(models.DefaultPlainNamespace), "the plain namespace is rewritten")
	plainData, _ = mem.Load(ctx, models.DefaultPlainNamespace)
	assert.NotContains(t, string(plainData), string(encID))
	assert.NotContains(t, string(plainData), "leaked copy")
	assert.Contains(t, string(plainData), string(keepID))
}

func TestConcurrentEncryptedUpdates(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	s, err := models.Open(ctx, mem, models.Options{SaveDebounce: 10 * time.Millisecond})
	require.NoError(t, err)
	defer s.Close(ctx)

	id, err := s.Create(ctx, models.NoteInput{Title: "shared", Content: "v0", Encrypt: true, Password: "pw"})
	require.NoError(t, err)
	before, err := s.Get(id)
	require.NoError(t, err)

	const writers = 6
	submitted := make(map[string]bool, writers)
	var wg sync.WaitGroup
	errs := make(chan error, 2*writers)
	for i := 0; i < writers; i++ {
		content := "v" + string(rune('1'+i))
		submitted[content] = true
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs <- s.Update(ctx, id, models.NoteUpdate{Content: &content}, "pw")
		}()
		go func() {
			defer wg.Done()
			errs <- s.TogglePin(id)
			_ = s.Search("shared")
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.Decrypt(ctx, id, "pw")
	require.NoError(t, err, "the envelope is never a mix of two writes")
	assert.True(t, submitted[got], "final content %q was never submitted", got)

	after, err := s.Get(id)
	require.NoError(t, err)
	assert.True(t, after.Header().UpdatedAt.After(before.Header().UpdatedAt))
	assert.False(t, after.Header().IsPinned, "an even number of toggles")

	// the background save catches up with the last write
	require.NoError(t, s.Flush(ctx))
	reopened, err := models.Open(ctx, mem, models.Options{SaveDebounce: -1})
	require.NoError(t, err)
	defer reopened.Close(ctx)
	persisted, err := reopened.Decrypt(ctx, id, "pw")
	require.NoError(t, err)
	assert.Equal(t, got, persisted)
}
