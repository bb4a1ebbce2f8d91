package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rohanthewiz/serr"
	"github.com/spf13/cobra"

	"notevault/config"
	"notevault/models"
)

func newCreateCmd(a *app) *cobra.Command {
	var (
		content, tags, summary string
		encrypt                bool
	)
	cmd := &cobra.Command{
		Use:   "new <title>",
		Short: "Create a note",
		Long: `Create a note. Content comes from --content, or from stdin when the flag
is omitted. With --encrypt the note is sealed under a password and stays
encrypted for its whole life.`,
		Args: cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("content") {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return serr.Wrap(err, "failed to read content from stdin")
				}
				content = string(data)
			}

			in := models.NoteInput{
				Title:   args[0],
				Content: content,
				Summary: summary,
				Tags:    models.ParseTags(tags),
				Encrypt: encrypt,
			}
			if encrypt {
				pw, err := a.prompt(cmd.Context(), models.PasswordRequest{Title: in.Title, Purpose: models.PurposeCreate})
				if err != nil {
					return err
				}
				in.Password = pw
			}

			id, err := a.store.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&content, "content", "c", "", "note content")
	cmd.Flags().StringVarP(&tags, "tags", "t", "", "comma-separated tags")
	cmd.Flags().StringVar(&summary, "summary", "", "short summary, stored in the clear")
	cmd.Flags().BoolVarP(&encrypt, "encrypt", "e", false, "encrypt the content under a password")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var tag string
	var pinned bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List notes, pinned first then most recently updated",
		Args:    cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			notes := a.store.List()
			if tag != "" || pinned {
				notes = filterNotes(notes, tag, pinned)
			}
			printNotes(cmd.OutOrStdout(), notes)
			return nil
		}),
	}
	cmd.Flags().StringVar(&tag, "tag", "", "only notes carrying this tag")
	cmd.Flags().BoolVar(&pinned, "pinned", false, "only pinned notes")
	return cmd
}

func filterNotes(notes []models.Note, tag string, pinned bool) []models.Note {
	out := notes[:0]
	for _, n := range notes {
		h := n.Header()
		if pinned && !h.IsPinned {
			continue
		}
		if tag != "" && !hasTag(h.Tags, tag) {
			continue
		}
		out = append(out, n)
	}
	return out
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}

func printNotes(w io.Writer, notes []models.Note) {
	if len(notes) == 0 {
		fmt.Fprintln(w, "No notes found.")
		return
	}
	st := newStyles(w)
	for _, n := range notes {
		fmt.Fprintln(w, st.listLine(n))
	}
}

func newSearchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search titles and tags, and the content of plain notes",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			printNotes(cmd.OutOrStdout(), a.store.Search(strings.Join(args, " ")))
			return nil
		}),
	}
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a note, decrypting it if needed",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			id, err := a.resolveID(args[0])
			if err != nil {
				return err
			}
			n, err := a.store.Get(id)
			if err != nil {
				return err
			}
			content, err := a.store.DecryptWith(cmd.Context(), id, a.prompt)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), newStyles(cmd.OutOrStdout()).detail(n, content))
			return nil
		}),
	}
}

func newEditCmd(a *app) *cobra.Command {
	var title, content, tags, summary string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a note's title, content, tags or summary",
		Long: `Change any of a note's fields. Only the flags given are applied. Title,
tags and summary of an encrypted note change without its password; new
content is re-encrypted and needs it.`,
		Args: cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			id, err := a.resolveID(args[0])
			if err != nil {
				return err
			}

			var upd models.NoteUpdate
			flags := cmd.Flags()
			if flags.Changed("title") {
				upd.Title = &title
			}
			if flags.Changed("summary") {
				upd.Summary = &summary
			}
			if flags.Changed("tags") {
				t := models.ParseTags(tags)
				upd.Tags = &t
			}
			if flags.Changed("content") {
				upd.Content = &content
			}
			if upd == (models.NoteUpdate{}) {
				return serr.New("nothing to change; pass at least one of --title, --content, --tags, --summary")
			}

			prompt := cachedPrompt(a.prompt)
			var before string
			if upd.Content != nil {
				if before, err = a.store.DecryptWith(cmd.Context(), id, prompt); err != nil {
					return err
				}
			}
			if err := a.store.UpdateWith(cmd.Context(), id, upd, prompt); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Updated", shortID(id))
			if upd.Content != nil {
				fmt.Fprintln(out, changeSummary(before, content))
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVarP(&content, "content", "c", "", "new content")
	cmd.Flags().StringVarP(&tags, "tags", "t", "", "replacement comma-separated tags")
	cmd.Flags().StringVar(&summary, "summary", "", "new summary")
	return cmd
}

func newPinCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pin <id>",
		Short: "Toggle a note's pin",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			id, err := a.resolveID(args[0])
			if err != nil {
				return err
			}
			if err := a.store.TogglePin(id); err != nil {
				return err
			}
			n, err := a.store.Get(id)
			if err != nil {
				return err
			}
			state := "Unpinned"
			if n.Header().IsPinned {
				state = "Pinned"
			}
			fmt.Fprintln(cmd.OutOrStdout(), state, shortID(id))
			return nil
		}),
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a note; encrypted notes need their password",
		Args:    cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			id, err := a.resolveID(args[0])
			if err != nil {
				return err
			}
			if err := a.store.DeleteWith(cmd.Context(), id, a.prompt); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Deleted", shortID(id))
			return nil
		}),
	}
}

func newTagsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List every tag in use",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			for _, t := range a.store.Tags() {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		}),
	}
}

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write all notes to a bundle; encrypted notes stay encrypted",
		Long:  `Write all notes to a msgpack bundle. Use "-" for stdout.`,
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			if args[0] == "-" {
				return a.store.Export(cmd.OutOrStdout())
			}
			f, err := os.OpenFile(args[0], os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
			if err != nil {
				return serr.Wrap(err, "failed to create export file")
			}
			if err := a.store.Export(f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return serr.Wrap(err, "failed to close export file")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Exported to", args[0])
			return nil
		}),
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Add every note from an export bundle under new ids",
		Long:  `Add every note from a bundle written by export. Use "-" for stdin.`,
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return serr.Wrap(err, "failed to open import file")
				}
				defer f.Close()
				r = f
			}
			res, err := a.store.Import(r)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d notes (%d failed)\n", res.Imported, res.Total, res.Failed)
			return nil
		}),
	}
}

func newInitCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to a config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfgFile
			if path == "" {
				path = filepath.Join(config.DefaultDataDir(), "notevault.yaml")
			}
			if _, err := os.Stat(path); err == nil && !force {
				return serr.New("config file " + path + " exists; use --force to overwrite")
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return serr.Wrap(err, "failed to check config file")
			}
			if err := config.Write(path, a.cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}
