// Package sqlstore keeps notes in a local SQLite database through gorm.
package sqlstore

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"memory-assistant/internal/hub"
	"memory-assistant/internal/model"
)

var ErrEmptyNoteID = errors.New("empty note id")

type noteRow struct {
	ID         string `gorm:"primaryKey"`
	Collection string `gorm:"index;not null"`
	Content    string `gorm:"not null"`
	Link       string
	Created    string `gorm:"column:created_at"`
}

func (noteRow) TableName() string { return "notes" }

func (r noteRow) note() model.Note {
	return model.Note{ID: r.ID, Content: r.Content, Link: r.Link, CreatedAt: r.Created}
}

// feedEvent carries either a fresh snapshot or the query error that ends a feed.
type feedEvent struct {
	snapshot model.Snapshot
	err      error
}

type Store struct {
	db *gorm.DB

	feeds     *hub.Hub[feedEvent]
	publishMu sync.Mutex
}

// Open opens (creating if needed) the database at path and migrates the
// notes table.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	if err := db.AutoMigrate(&noteRow{}); err != nil {
		return nil, errors.Wrap(err, "migrating notes table")
	}
	return &Store{db: db, feeds: hub.New[feedEvent]()}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) rows(ctx context.Context, collection string) ([]noteRow, error) {
	var rows []noteRow
	err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (s *Store) snapshot(collection string) (model.Snapshot, error) {
	rows, err := s.rows(context.Background(), collection)
	if err != nil {
		return nil, errors.Wrap(err, "querying notes")
	}
	snap := make(model.Snapshot, 0, len(rows))
	for _, r := range rows {
		snap = append(snap, r.note().Record())
	}
	return snap, nil
}

func (s *Store) publish(collection string) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	if s.feeds.Count(collection) == 0 {
		return
	}
	snap, err := s.snapshot(collection)
	if err != nil {
		logrus.WithError(err).WithField("collection", collection).Error("sqlstore: snapshot failed")
	}
	s.feeds.Publish(collection, feedEvent{snapshot: snap, err: err})
}

func (s *Store) Create(ctx context.Context, scope model.Scope, note model.Note) (model.Note, error) {
	collection, err := scope.Path()
	if err != nil {
		return model.Note{}, errors.Wrap(err, "resolving collection")
	}

	note.ID = uuid.NewString()
	row := noteRow{
		ID:         note.ID,
		Collection: collection,
		Content:    note.Content,
		Link:       note.Link,
		Created:    note.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.Note{}, errors.Wrap(err, "inserting note")
	}

	s.publish(collection)
	return note, nil
}

func (s *Store) Delete(ctx context.Context, scope model.Scope, noteID string) error {
	if noteID == "" {
		return ErrEmptyNoteID
	}
	collection, err := scope.Path()
	if err != nil {
		return errors.Wrap(err, "resolving collection")
	}

	res := s.db.WithContext(ctx).
		Where("id = ? AND collection = ?", noteID, collection).
		Delete(&noteRow{})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "deleting note %s", noteID)
	}
	if res.RowsAffected > 0 {
		s.publish(collection)
	}
	return nil
}

func (s *Store) List(ctx context.Context, scope model.Scope) ([]model.Note, error) {
	collection, err := scope.Path()
	if err != nil {
		return nil, errors.Wrap(err, "resolving collection")
	}
	rows, err := s.rows(ctx, collection)
	if err != nil {
		return nil, errors.Wrap(err, "querying notes")
	}
	notes := make([]model.Note, 0, len(rows))
	for _, r := range rows {
		notes = append(notes, r.note())
	}
	return notes, nil
}

// Subscribe delivers the current snapshot before returning. A failed query
// after that is reported once through onError and ends the feed.
func (s *Store) Subscribe(scope model.Scope, onSnapshot func(model.Snapshot), onError func(error)) (func(), error) {
	collection, err := scope.Path()
	if err != nil {
		return nil, errors.Wrap(err, "resolving collection")
	}

	sub := &hub.Subscription[feedEvent]{
		Topic: collection,
		Subscriber: hub.Funcs[feedEvent]{OnDeliver: func(ev feedEvent) error {
			if ev.err != nil {
				onError(ev.err)
				return ev.err
			}
			onSnapshot(ev.snapshot)
			return nil
		}},
	}

	s.publishMu.Lock()
	snap, err := s.snapshot(collection)
	if err != nil {
		s.publishMu.Unlock()
		return nil, err
	}
	s.feeds.Register(sub)
	onSnapshot(snap)
	s.publishMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.feeds.Unregister(sub) })
	}, nil
}
