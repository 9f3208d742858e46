package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-smarthome/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CredentialStore keeps one smarthome_user_profiles row per user.
type CredentialStore struct {
	db   *bun.DB
	repo repository.Repository[*userProfileRecord]
	now  func() time.Time
}

func NewCredentialStore(db *bun.DB) (*CredentialStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*userProfileRecord](db, userProfileHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid user profile repository wiring: %w", err)
		}
	}
	return &CredentialStore{db: db, repo: repo, now: time.Now}, nil
}

func (s *CredentialStore) Get(ctx context.Context, userID string) (core.TokenRecord, error) {
	if s == nil || s.repo == nil {
		return core.TokenRecord{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return core.TokenRecord{}, fmt.Errorf("sqlstore: user id is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("user_id", "=", userID),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.TokenRecord{}, err
	}
	if len(records) == 0 {
		return core.TokenRecord{}, fmt.Errorf("sqlstore: token record for user %q: %w", userID, core.ErrRecordNotFound)
	}
	return records[0].toDomain(), nil
}

// GetByDevice resolves the owner of endpointID through smarthome_devices.
func (s *CredentialStore) GetByDevice(ctx context.Context, endpointID string) (core.TokenRecord, error) {
	if s == nil || s.db == nil {
		return core.TokenRecord{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	endpointID = strings.TrimSpace(endpointID)
	if endpointID == "" {
		return core.TokenRecord{}, fmt.Errorf("sqlstore: endpoint id is required")
	}
	var device deviceRecord
	err := s.db.NewSelect().
		Model(&device).
		Where("?TableAlias.endpoint_id = ?", endpointID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.TokenRecord{}, fmt.Errorf("sqlstore: device %q: %w", endpointID, core.ErrRecordNotFound)
		}
		return core.TokenRecord{}, err
	}
	return s.Get(ctx, device.UserID)
}

func (s *CredentialStore) Put(ctx context.Context, record core.TokenRecord) (core.TokenRecord, error) {
	if s == nil || s.db == nil {
		return core.TokenRecord{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	record.UserID = strings.TrimSpace(record.UserID)
	if record.UserID == "" {
		return core.TokenRecord{}, fmt.Errorf("sqlstore: user id is required")
	}
	now := s.clock()

	var stored core.TokenRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, found, lookupErr := s.lookupTx(ctx, tx, record.UserID)
		if lookupErr != nil {
			return lookupErr
		}
		if !found {
			created := newUserProfileRecord(record, now)
			created.ID = uuid.NewString()
			if _, insertErr := tx.NewInsert().Model(created).Exec(ctx); insertErr != nil {
				return insertErr
			}
			stored = created.toDomain()
			return nil
		}

		existing.AccessToken = record.AccessToken
		existing.RefreshToken = record.RefreshToken
		existing.IssuedAt = record.IssuedAt
		existing.ExpiresIn = record.ExpiresIn
		existing.UpdatedAt = now
		if _, updateErr := tx.NewUpdate().
			Model(existing).
			Column("access_token", "refresh_token", "issued_at", "expires_in", "updated_at").
			Where("id = ?", existing.ID).
			Exec(ctx); updateErr != nil {
			return updateErr
		}
		stored = existing.toDomain()
		return nil
	})
	if err != nil {
		return core.TokenRecord{}, err
	}
	return stored, nil
}

func (s *CredentialStore) UpdateAccessToken(ctx context.Context, userID string, update core.TokenUpdate) (core.TokenRecord, error) {
	if s == nil || s.db == nil {
		return core.TokenRecord{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return core.TokenRecord{}, fmt.Errorf("sqlstore: user id is required")
	}
	if strings.TrimSpace(update.AccessToken) == "" {
		return core.TokenRecord{}, fmt.Errorf("sqlstore: access token is required")
	}
	now := s.clock()

	var stored core.TokenRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, found, lookupErr := s.lookupTx(ctx, tx, userID)
		if lookupErr != nil {
			return lookupErr
		}
		if !found {
			return fmt.Errorf("sqlstore: token record for user %q: %w", userID, core.ErrRecordNotFound)
		}
		existing.AccessToken = update.AccessToken
		if strings.TrimSpace(update.RefreshToken) != "" {
			existing.RefreshToken = update.RefreshToken
		}
		existing.IssuedAt = update.IssuedAt
		existing.ExpiresIn = update.ExpiresIn
		existing.UpdatedAt = now
		if _, updateErr := tx.NewUpdate().
			Model(existing).
			Column("access_token", "refresh_token", "issued_at", "expires_in", "updated_at").
			Where("id = ?", existing.ID).
			Exec(ctx); updateErr != nil {
			return updateErr
		}
		stored = existing.toDomain()
		return nil
	})
	if err != nil {
		return core.TokenRecord{}, err
	}
	return stored, nil
}

func (s *CredentialStore) lookupTx(ctx context.Context, tx bun.Tx, userID string) (*userProfileRecord, bool, error) {
	record := &userProfileRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return record, true, nil
}

func (s *CredentialStore) clock() time.Time {
	if s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}
