package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-smarthome/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DeviceStore maps endpoint ids to their owning user.
type DeviceStore struct {
	db   *bun.DB
	repo repository.Repository[*deviceRecord]
	now  func() time.Time
}

func NewDeviceStore(db *bun.DB) (*DeviceStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*deviceRecord](db, deviceHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid device repository wiring: %w", err)
		}
	}
	return &DeviceStore{db: db, repo: repo, now: time.Now}, nil
}

// Upsert inserts the device or replaces its owner and friendly name.
func (s *DeviceStore) Upsert(ctx context.Context, record core.DeviceRecord) (core.DeviceRecord, error) {
	if s == nil || s.db == nil || s.repo == nil {
		return core.DeviceRecord{}, fmt.Errorf("sqlstore: device store is not configured")
	}
	record = record.Normalized()
	if record.EndpointID == "" {
		return core.DeviceRecord{}, fmt.Errorf("sqlstore: endpoint id is required")
	}
	if record.UserID == "" {
		return core.DeviceRecord{}, fmt.Errorf("sqlstore: user id is required")
	}
	now := time.Now().UTC()
	if s.now != nil {
		now = s.now().UTC()
	}

	var stored core.DeviceRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := &deviceRecord{}
		lookupErr := tx.NewSelect().
			Model(existing).
			Where("?TableAlias.endpoint_id = ?", record.EndpointID).
			Limit(1).
			Scan(ctx)
		if lookupErr != nil && !errors.Is(lookupErr, sql.ErrNoRows) {
			return lookupErr
		}
		if errors.Is(lookupErr, sql.ErrNoRows) {
			created := newDeviceRecord(record, now)
			created.ID = uuid.NewString()
			inserted, createErr := s.repo.CreateTx(ctx, tx, created)
			if createErr != nil {
				return createErr
			}
			stored = inserted.toDomain()
			return nil
		}

		existing.UserID = record.UserID
		existing.FriendlyName = record.FriendlyName
		existing.UpdatedAt = now
		if _, updateErr := tx.NewUpdate().
			Model(existing).
			Column("user_id", "friendly_name", "updated_at").
			Where("id = ?", existing.ID).
			Exec(ctx); updateErr != nil {
			return updateErr
		}
		stored = existing.toDomain()
		return nil
	})
	if err != nil {
		return core.DeviceRecord{}, err
	}
	return stored, nil
}

func (s *DeviceStore) GetByEndpoint(ctx context.Context, endpointID string) (core.DeviceRecord, error) {
	if s == nil || s.repo == nil {
		return core.DeviceRecord{}, fmt.Errorf("sqlstore: device store is not configured")
	}
	record := core.DeviceRecord{EndpointID: endpointID}.Normalized()
	if record.EndpointID == "" {
		return core.DeviceRecord{}, fmt.Errorf("sqlstore: endpoint id is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("endpoint_id", "=", record.EndpointID),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.DeviceRecord{}, err
	}
	if len(records) == 0 {
		return core.DeviceRecord{}, fmt.Errorf("sqlstore: device %q: %w", record.EndpointID, core.ErrRecordNotFound)
	}
	return records[0].toDomain(), nil
}
