// Package store is the in-process note store: notes live in memory, keyed by
// collection path, optionally mirrored to a JSON state file, and every change
// is pushed to the collection's subscribers as a full snapshot.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"memory-assistant/internal/hub"
	"memory-assistant/internal/model"
	"memory-assistant/internal/persist"
)

var ErrEmptyNoteID = errors.New("empty note id")

type Store struct {
	mu                sync.RWMutex
	notesByCollection map[string]map[string]model.Note

	stateFile string
	persistMu sync.Mutex

	feeds     *hub.Hub[model.Snapshot]
	publishMu sync.Mutex
}

type Options struct {
	StateFile string
}

func New() *Store {
	return NewWithOptions(Options{})
}

func NewWithOptions(opts Options) *Store {
	s := &Store{
		notesByCollection: make(map[string]map[string]model.Note),
		stateFile:         opts.StateFile,
		feeds:             hub.New[model.Snapshot](),
	}

	if s.stateFile != "" {
		if err := s.loadFromFile(s.stateFile); err != nil {
			logrus.WithError(err).WithField("file", s.stateFile).Error("notes persistence: load failed")
		}
	}
	return s
}

type persistedNotesFile struct {
	Version     int                     `json:"version"`
	Collections map[string][]model.Note `json:"collections"`
	SavedAt     int64                   `json:"savedAt"`
}

func (s *Store) loadFromFile(path string) error {
	var file persistedNotesFile
	ok, err := persist.ReadJSON(path, &file)
	if err != nil || !ok {
		return err
	}
	if file.Version != 1 {
		return errors.Errorf("unsupported notes state version %d", file.Version)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for collection, notes := range file.Collections {
		for _, n := range notes {
			if n.ID == "" {
				continue
			}
			if s.notesByCollection[collection] == nil {
				s.notesByCollection[collection] = make(map[string]model.Note)
			}
			s.notesByCollection[collection][n.ID] = n
		}
	}
	return nil
}

func (s *Store) persist() {
	if s.stateFile == "" {
		return
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	file := persistedNotesFile{
		Version:     1,
		Collections: make(map[string][]model.Note, len(s.notesByCollection)),
		SavedAt:     time.Now().UnixMilli(),
	}
	for collection := range s.notesByCollection {
		file.Collections[collection] = s.sortedLocked(collection)
	}
	s.mu.RUnlock()

	if err := persist.WriteJSON(s.stateFile, file); err != nil {
		logrus.WithError(err).WithField("file", s.stateFile).Error("notes persistence: write failed")
	}
}

func (s *Store) sortedLocked(collection string) []model.Note {
	set := s.notesByCollection[collection]
	result := make([]model.Note, 0, len(set))
	for _, n := range set {
		result = append(result, n)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (s *Store) snapshot(collection string) model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	notes := s.sortedLocked(collection)
	snap := make(model.Snapshot, 0, len(notes))
	for _, n := range notes {
		snap = append(snap, n.Record())
	}
	return snap
}

func (s *Store) publish(collection string) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	s.feeds.Publish(collection, s.snapshot(collection))
}

func (s *Store) Create(ctx context.Context, scope model.Scope, note model.Note) (model.Note, error) {
	if err := ctx.Err(); err != nil {
		return model.Note{}, err
	}
	collection, err := scope.Path()
	if err != nil {
		return model.Note{}, errors.Wrap(err, "resolving collection")
	}

	note.ID = uuid.NewString()

	s.mu.Lock()
	if s.notesByCollection[collection] == nil {
		s.notesByCollection[collection] = make(map[string]model.Note)
	}
	s.notesByCollection[collection][note.ID] = note
	s.mu.Unlock()

	s.persist()
	s.publish(collection)
	return note, nil
}

// Delete removes noteID. Unknown ids are not an error.
func (s *Store) Delete(ctx context.Context, scope model.Scope, noteID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if noteID == "" {
		return ErrEmptyNoteID
	}
	collection, err := scope.Path()
	if err != nil {
		return errors.Wrap(err, "resolving collection")
	}

	s.mu.Lock()
	set := s.notesByCollection[collection]
	_, existed := set[noteID]
	if existed {
		delete(set, noteID)
		if len(set) == 0 {
			delete(s.notesByCollection, collection)
		}
	}
	s.mu.Unlock()

	if !existed {
		return nil
	}
	s.persist()
	s.publish(collection)
	return nil
}

func (s *Store) List(scope model.Scope) ([]model.Note, error) {
	collection, err := scope.Path()
	if err != nil {
		return nil, errors.Wrap(err, "resolving collection")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked(collection), nil
}

// Subscribe delivers the current snapshot before returning and then one
// snapshot per change. Callbacks run synchronously on the writer's
// goroutine and must not write to the store.
func (s *Store) Subscribe(scope model.Scope, onSnapshot func(model.Snapshot), onError func(error)) (func(), error) {
	collection, err := scope.Path()
	if err != nil {
		return nil, errors.Wrap(err, "resolving collection")
	}

	sub := &hub.Subscription[model.Snapshot]{
		Topic: collection,
		Subscriber: hub.Funcs[model.Snapshot]{OnDeliver: func(snap model.Snapshot) error {
			onSnapshot(snap)
			return nil
		}},
	}

	s.publishMu.Lock()
	s.feeds.Register(sub)
	onSnapshot(s.snapshot(collection))
	s.publishMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.feeds.Unregister(sub) })
	}, nil
}

func (s *Store) Subscribers(scope model.Scope) int {
	collection, err := scope.Path()
	if err != nil {
		return 0
	}
	return s.feeds.Count(collection)
}
