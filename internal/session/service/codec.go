package service

import (
	"encoding/json"

	domain "github.com/revspine/reconciler/internal/session/domain"
	"github.com/revspine/reconciler/internal/session/store"
)

// encodeSession splits a domain.Session into the sessions row shape: the
// top-level fields plus two independently-marshaled JSON blobs for the
// settings and the processing log. Reads always load and decode both.
func encodeSession(session domain.Session) (store.SessionRow, error) {
	settings, err := json.Marshal(session.Settings)
	if err != nil {
		return store.SessionRow{}, err
	}
	processing, err := json.Marshal(session.Processing)
	if err != nil {
		return store.SessionRow{}, err
	}
	return store.SessionRow{
		ID:         session.ID,
		Status:     string(session.Status),
		Settings:   settings,
		Processing: processing,
		CreatedAt:  session.CreatedAt,
		UpdatedAt:  session.UpdatedAt,
	}, nil
}

func decodeSession(row store.SessionRow) (domain.Session, error) {
	session := domain.Session{
		ID:        row.ID,
		Status:    domain.Status(row.Status),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if len(row.Settings) > 0 {
		if err := json.Unmarshal(row.Settings, &session.Settings); err != nil {
			return domain.Session{}, err
		}
	}
	if len(row.Processing) > 0 {
		if err := json.Unmarshal(row.Processing, &session.Processing); err != nil {
			return domain.Session{}, err
		}
	}
	return session, nil
}
