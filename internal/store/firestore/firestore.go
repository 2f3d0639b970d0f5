// Package firestore stores notes in Cloud Firestore under the shared
// artifacts/{appId}/users/{uid}/notes layout.
package firestore

import (
	"context"
	"sync"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"memory-assistant/internal/model"
)

var ErrEmptyNoteID = errors.New("empty note id")

type Store struct {
	client *firestore.Client
}

func New(client *firestore.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) collection(scope model.Scope) (*firestore.CollectionRef, error) {
	path, err := scope.Path()
	if err != nil {
		return nil, errors.Wrap(err, "resolving collection")
	}
	coll := s.client.Collection(path)
	if coll == nil {
		return nil, errors.Errorf("invalid collection path %q", path)
	}
	return coll, nil
}

func (s *Store) Create(ctx context.Context, scope model.Scope, note model.Note) (model.Note, error) {
	coll, err := s.collection(scope)
	if err != nil {
		return model.Note{}, err
	}
	ref, _, err := coll.Add(ctx, note.Fields())
	if err != nil {
		return model.Note{}, errors.Wrap(err, "adding note")
	}
	note.ID = ref.ID
	return note, nil
}

// Delete removes noteID. Deleting a missing document succeeds.
func (s *Store) Delete(ctx context.Context, scope model.Scope, noteID string) error {
	if noteID == "" {
		return ErrEmptyNoteID
	}
	coll, err := s.collection(scope)
	if err != nil {
		return err
	}
	if _, err := coll.Doc(noteID).Delete(ctx); err != nil {
		return errors.Wrapf(err, "deleting note %s", noteID)
	}
	return nil
}

// Subscribe listens on the user's collection. Snapshots arrive on a
// background goroutine, the first one once the listener has synced.
func (s *Store) Subscribe(scope model.Scope, onSnapshot func(model.Snapshot), onError func(error)) (func(), error) {
	coll, err := s.collection(scope)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	it := coll.Snapshots(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			qs, err := it.Next()
			if err != nil {
				if ctx.Err() == nil && !isStopped(err) {
					logrus.WithError(err).WithField("collection", coll.Path).Warn("firestore: listener failed")
					onError(errors.Wrap(err, "listening for notes"))
				}
				return
			}
			docs, err := qs.Documents.GetAll()
			if err != nil {
				if ctx.Err() == nil && !isStopped(err) {
					onError(errors.Wrap(err, "reading snapshot"))
				}
				return
			}
			snap := make(model.Snapshot, 0, len(docs))
			for _, doc := range docs {
				snap = append(snap, recordFromData(doc.Ref.ID, doc.Data()))
			}
			if ctx.Err() != nil {
				return
			}
			onSnapshot(snap)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			it.Stop()
		})
	}, nil
}

// isStopped reports errors produced by a listener that was shut down rather
// than one that failed.
func isStopped(err error) bool {
	if errors.Is(err, iterator.Done) || errors.Is(err, context.Canceled) {
		return true
	}
	return status.Code(err) == codes.Canceled
}

func recordFromData(id string, data map[string]any) model.Record {
	fields := make(map[string]any, len(data))
	for k, v := range data {
		fields[k] = v
	}
	return model.Record{ID: id, Fields: fields}
}
