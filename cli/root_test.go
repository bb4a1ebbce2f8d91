package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/rohanthewiz/rweb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notevault/config"
	"notevault/models"
	"notevault/web"
)

func memoryApp(debounce time.Duration) *app {
	return &app{cfg: config.Config{
		Backend:       "memory",
		Codec:         "json",
		Namespaces:    config.Namespaces{Plain: models.DefaultPlainNamespace, Encrypted: models.DefaultEncryptedNamespace},
		SaveDebounce:  debounce,
		KDFIterations: models.MinIterations,
	}}
}

func TestOpenStoreHonorsSaveDebounce(t *testing.T) {
	ctx := context.Background()
	a := memoryApp(20 * time.Millisecond)
	require.NoError(t, a.openStore(ctx))
	defer a.close(ctx)

	_, err := a.store.Create(ctx, models.NoteInput{Title: "t", Content: "x"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		data, err := a.backend.Load(ctx, models.DefaultPlainNamespace)
		return err == nil && len(data) > 0
	}, 2*time.Second, 10*time.Millisecond, "the configured debounce saves without waiting for close")
}

func TestServeUntilDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a := memoryApp(time.Hour)
	require.NoError(t, a.openStore(ctx))
	_, err := a.store.Create(ctx, models.NoteInput{Title: "served", Content: "x"})
	require.NoError(t, err)

	ready := make(chan struct{}, 1)
	srv := web.NewServer(a.store, rweb.ServerOptions{Address: "localhost:", ReadyChan: ready})
	done := make(chan error, 1)
	go func() { done <- serveUntilDone(ctx, srv, "localhost:") }()
	<-ready

	resp, err := http.Get(fmt.Sprintf("http://localhost:%s/api/v1/notes", srv.GetListenPort()))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	var body struct {
		Success bool `json:"success"`
		Data    []struct {
			Title string `json:"title"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.True(t, body.Success)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "served", body.Data[0].Title)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after cancel")
	}

	// the hour-long debounce never fired; close still persists the note
	backend := a.backend
	require.NoError(t, a.close(context.Background()))
	data, err := backend.Load(context.Background(), models.DefaultPlainNamespace)
	require.NoError(t, err)
	assert.Contains(t, string(data), "served")
}
