package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang/snappy"
	"gorm.io/gorm"
)

// ErrNotFound is returned by GetData when no row exists for
// (sessionID, kind), and by GetSession when no session row has the id.
var ErrNotFound = errors.New("session_data: not found")

// Store persists sessions and session_data. session_data payloads are
// snappy-compressed before they touch the database; a session row's
// settings and processing blobs are stored as plain JSON.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the sessions and session_data tables.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&SessionRow{}, &SessionDataRow{})
}

func (s *Store) PutSession(ctx context.Context, row SessionRow) error {
	row.UpdatedAt = time.Now().UTC()
	return s.db.WithContext(ctx).Save(&row).Error
}

func (s *Store) GetSession(ctx context.Context, id string) (SessionRow, error) {
	var row SessionRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return SessionRow{}, ErrNotFound
	}
	return row, err
}

// PutData compresses value as JSON+snappy and upserts it under
// (sessionID, kind).
func (s *Store) PutData(ctx context.Context, sessionID, kind string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	compressed := snappy.Encode(nil, raw)
	row := SessionDataRow{
		SessionID: sessionID,
		Kind:      kind,
		Payload:   compressed,
		UpdatedAt: time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Save(&row).Error
}

// GetData decompresses and unmarshals the payload for (sessionID, kind)
// into out, which must be a pointer.
func (s *Store) GetData(ctx context.Context, sessionID, kind string, out any) error {
	var row SessionDataRow
	err := s.db.WithContext(ctx).First(&row, "session_id = ? AND kind = ?", sessionID, kind).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	raw, err := snappy.Decode(nil, row.Payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
