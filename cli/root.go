// Package cli is the notevault command line: a cobra command tree over a
// models.Store opened from the configured backend.
package cli

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
	"github.com/spf13/cobra"

	"notevault/config"
	"notevault/models"
	"notevault/storage"
)

// PasswordEnv, when set, answers every password prompt without a terminal.
const PasswordEnv = "NOTEVAULT_PASSWORD"

// app carries the state shared by one command invocation.
type app struct {
	cfgFile string
	cfg     config.Config
	backend storage.Backend
	store   *models.Store
	prompt  models.PasswordPrompt
}

// Option customizes the root command, mostly for tests.
type Option func(*app)

// WithPrompt replaces the terminal password prompt.
func WithPrompt(p models.PasswordPrompt) Option {
	return func(a *app) { a.prompt = p }
}

// Execute builds the root command and runs it against os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd creates a fresh command tree. Each call has its own state, so
// tests can run many in one process.
func NewRootCmd(opts ...Option) *cobra.Command {
	a := &app{}
	for _, opt := range opts {
		opt(a)
	}

	cmd := &cobra.Command{
		Use:   "notevault",
		Short: "Personal notes with optional per-note encryption",
		Long: `notevault keeps personal notes on local storage. Any note can be
encrypted with its own password: the content is sealed with AES-GCM under a
PBKDF2-derived key, while title, tags and pin state stay searchable.

Passwords are read from a terminal prompt, or from $` + PasswordEnv + ` when set.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default notevault.yaml in the data dir or working dir)")
	cmd.PersistentFlags().String("data-dir", "", "directory holding note data")
	cmd.PersistentFlags().String("backend", "", "storage backend: memory, file, duckdb, sqlite")
	cmd.PersistentFlags().String("codec", "", "namespace encoding: json, msgpack")
	cmd.PersistentFlags().String("listen", "", "address for serve (default "+config.DefaultListen+")")

	cmd.AddCommand(
		newCreateCmd(a),
		newListCmd(a),
		newSearchCmd(a),
		newShowCmd(a),
		newEditCmd(a),
		newPinCmd(a),
		newDeleteCmd(a),
		newTagsCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newInitCmd(a),
		newServeCmd(a),
	)
	return cmd
}

// loadConfig runs before every command.
func (a *app) loadConfig(cmd *cobra.Command) error {
	path := a.cfgFile
	if cmd.Name() == "init" {
		// init creates the file --config names
		path = ""
	}
	cfg, err := config.Load(cmd, path)
	if err != nil {
		return err
	}
	a.cfg = cfg
	if cfg.LogLevel != "" {
		logger.SetLogLevel(cfg.LogLevel)
	}
	if a.prompt == nil {
		a.prompt = defaultPrompt(cmd)
	}
	return nil
}

func (a *app) openStore(ctx context.Context) error {
	backend, err := storage.OpenBackend(a.cfg.Backend, a.cfg.DataDir, a.cfg.FileExt())
	if err != nil {
		return serr.Wrap(err, "failed to open storage")
	}
	// save_debounce applies as configured; close flushes whatever is left
	opts, err := a.cfg.StoreOptions()
	if err != nil {
		backend.Close()
		return err
	}

	store, err := models.Open(ctx, backend, opts)
	if err != nil {
		backend.Close()
		return err
	}
	a.backend, a.store = backend, store
	return nil
}

// run wraps a command body with an open store, which is flushed and closed
// whether or not the body fails.
func (a *app) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
			cmd.SetContext(ctx)
		}
		if err := a.openStore(ctx); err != nil {
			return err
		}
		err := fn(cmd, args)
		return errors.Join(err, a.close(ctx))
	}
}

func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.store != nil {
		if err := a.store.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		a.store = nil
	}
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			errs = append(errs, serr.Wrap(err, "failed to close storage"))
		}
		a.backend = nil
	}
	return errors.Join(errs...)
}

// defaultPrompt answers from the environment when PasswordEnv is set and
// falls back to an interactive prompt on the command's terminal.
func defaultPrompt(cmd *cobra.Command) models.PasswordPrompt {
	if pw, ok := os.LookupEnv(PasswordEnv); ok {
		return func(context.Context, models.PasswordRequest) (string, error) {
			return pw, nil
		}
	}
	return TerminalPrompt(cmd.InOrStdin(), cmd.ErrOrStderr())
}

// cachedPrompt asks once and reuses the answer for the rest of the command.
func cachedPrompt(p models.PasswordPrompt) models.PasswordPrompt {
	var (
		asked bool
		pw    string
	)
	return func(ctx context.Context, req models.PasswordRequest) (string, error) {
		if asked {
			return pw, nil
		}
		v, err := p(ctx, req)
		if err != nil {
			return "", err
		}
		asked, pw = true, v
		return pw, nil
	}
}

// resolveID accepts a full note id or a unique prefix of one.
func (a *app) resolveID(arg string) (models.NoteID, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", serr.New("note id is required")
	}
	if _, err := a.store.Get(models.NoteID(arg)); err == nil {
		return models.NoteID(arg), nil
	}

	var found []models.NoteID
	for _, n := range a.store.List() {
		if id := n.Header().ID; strings.HasPrefix(string(id), arg) {
			found = append(found, id)
		}
	}
	switch len(found) {
	case 0:
		return "", models.ErrNotFound
	case 1:
		return found[0], nil
	}
	return "", serr.New("id prefix " + arg + " matches more than one note")
}
