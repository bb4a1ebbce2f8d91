package models

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// Adapter is the durable byte store behind a Store. Namespaces are
// independent; Load returns (nil, nil) for a namespace never saved.
type Adapter interface {
	Load(ctx context.Context, namespace string) ([]byte, error)
	Save(ctx context.Context, namespace string, data []byte) error
}

// saver batches mutations into one save per dirty namespace once the
// store has been quiet for delay. In-memory state stays authoritative;
// a failed save leaves the namespace dirty for the next mutation or Flush.
type saver struct {
	adapter  Adapter
	delay    time.Duration
	snapshot func(namespace string) ([]byte, error)

	mu    sync.Mutex
	dirty map[string]bool
	timer *time.Timer

	saveMu sync.Mutex // one save pass at a time
}

func newSaver(adapter Adapter, delay time.Duration, snapshot func(string) ([]byte, error)) *saver {
	return &saver{
		adapter:  adapter,
		delay:    delay,
		snapshot: snapshot,
		dirty:    make(map[string]bool),
	}
}

// markDirty records a mutation in namespace and re-arms the quiet timer.
// A negative delay disables background saves; only Flush writes.
func (s *saver) markDirty(namespace string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dirty[namespace] = true
	if s.delay < 0 {
		return
	}
	if s.timer == nil {
		s.timer = time.AfterFunc(s.delay, s.fire)
	} else {
		s.timer.Reset(s.delay)
	}
	logger.Debug("Save scheduled", "namespace", namespace)
}

func (s *saver) isDirty(namespace string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty[namespace]
}

func (s *saver) fire() {
	if err := s.flush(context.Background()); err != nil {
		logger.LogErr(err, "background save failed, will retry on next change")
	}
}

// flush saves every dirty namespace now.
func (s *saver) flush(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	pending := make([]string, 0, len(s.dirty))
	for ns, d := range s.dirty {
		if d {
			pending = append(pending, ns)
		}
	}
	clear(s.dirty)
	s.mu.Unlock()

	var errs []error
	for _, ns := range pending {
		if err := s.saveOne(ctx, ns); err != nil {
			s.mu.Lock()
			s.dirty[ns] = true
			s.mu.Unlock()
			logger.LogErr(err, "failed to save namespace", "namespace", ns)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return newError(KindPersistence, "", errors.Join(errs...))
	}
	return nil
}

func (s *saver) saveOne(ctx context.Context, namespace string) error {
	data, err := s.snapshot(namespace)
	if err != nil {
		return err
	}
	if err := s.adapter.Save(ctx, namespace, data); err != nil {
		return serr.Wrap(err, "failed to save namespace "+namespace)
	}
	logger.Debug("Namespace saved", "namespace", namespace)
	return nil
}

// stop cancels any pending background save.
func (s *saver) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
}
