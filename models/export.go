package models

import (
	"io"
	"strconv"
	"time"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
	"github.com/vmihailenco/msgpack/v5"
)

const exportVersion = "1.0"

type exportBundle struct {
	Version    string            `msgpack:"version"`
	ExportedAt time.Time         `msgpack:"exportedAt"`
	Plain      []plainRecord     `msgpack:"plain"`
	Encrypted  []encryptedRecord `msgpack:"encrypted"`
}

// ImportResult counts what Import did.
type ImportResult struct {
	Imported int
	Failed   int
	Total    int
}

// Export writes every note as a msgpack bundle. Encrypted notes are
// written as their envelopes and stay encrypted.
func (s *Store) Export(w io.Writer) error {
	s.mu.RLock()
	b := exportBundle{
		Version:    exportVersion,
		ExportedAt: s.opts.Now().UTC(),
		Plain:      make([]plainRecord, 0, len(s.plain)),
		Encrypted:  make([]encryptedRecord, 0, len(s.encrypted)),
	}
	for _, n := range s.plain {
		b.Plain = append(b.Plain, toPlainRecord(n))
	}
	for _, n := range s.encrypted {
		b.Encrypted = append(b.Encrypted, toEncryptedRecord(n))
	}
	s.mu.RUnlock()

	if err := msgpack.NewEncoder(w).Encode(&b); err != nil {
		return serr.Wrap(err, "failed to write export bundle")
	}
	logger.Info("Notes exported", "plain", strconv.Itoa(len(b.Plain)), "encrypted", strconv.Itoa(len(b.Encrypted)))
	return nil
}

// Import reads a bundle written by Export and adds every valid note under
// a fresh id. Envelopes are copied verbatim, so imported encrypted notes
// open with their original passwords. Invalid records are skipped and
// counted as failed.
func (s *Store) Import(r io.Reader) (ImportResult, error) {
	var b exportBundle
	if err := msgpack.NewDecoder(r).Decode(&b); err != nil {
		return ImportResult{}, serr.Wrap(err, "failed to read export bundle")
	}

	res := ImportResult{Total: len(b.Plain) + len(b.Encrypted)}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()

	var plainAdded, encAdded bool
	for _, rec := range b.Plain {
		n, err := rec.toNote()
		if err != nil {
			logger.LogErr(err, "failed to import note", "title", rec.Title)
			res.Failed++
			continue
		}
		n.ID = s.newID()
		s.plain[n.ID] = n
		plainAdded = true
		res.Imported++
	}
	for _, rec := range b.Encrypted {
		n, err := rec.toNote()
		if err != nil {
			logger.LogErr(err, "failed to import note", "title", rec.Title)
			res.Failed++
			continue
		}
		n.ID = s.newID()
		s.encrypted[n.ID] = n
		encAdded = true
		res.Imported++
	}
	s.mu.Unlock()

	if plainAdded {
		s.saver.markDirty(s.opts.PlainNamespace)
	}
	if encAdded {
		s.saver.markDirty(s.opts.EncryptedNamespace)
	}
	logger.Info("Notes imported", "imported", strconv.Itoa(res.Imported), "failed", strconv.Itoa(res.Failed))
	return res, nil
}
