package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-smarthome/core"
	"github.com/uptrace/bun"
)

type userProfileRecord struct {
	bun.BaseModel `bun:"table:smarthome_user_profiles,alias:sup"`

	ID           string    `bun:"id,pk"`
	UserID       string    `bun:"user_id,notnull"`
	AccessToken  string    `bun:"access_token,notnull"`
	RefreshToken string    `bun:"refresh_token,notnull"`
	IssuedAt     int64     `bun:"issued_at,notnull"`
	ExpiresIn    int64     `bun:"expires_in,notnull"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type deviceRecord struct {
	bun.BaseModel `bun:"table:smarthome_devices,alias:sd"`

	ID           string    `bun:"id,pk"`
	EndpointID   string    `bun:"endpoint_id,notnull"`
	UserID       string    `bun:"user_id,notnull"`
	FriendlyName string    `bun:"friendly_name,notnull"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newUserProfileRecord(record core.TokenRecord, now time.Time) *userProfileRecord {
	return &userProfileRecord{
		UserID:       strings.TrimSpace(record.UserID),
		AccessToken:  record.AccessToken,
		RefreshToken: record.RefreshToken,
		IssuedAt:     record.IssuedAt,
		ExpiresIn:    record.ExpiresIn,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (r *userProfileRecord) toDomain() core.TokenRecord {
	if r == nil {
		return core.TokenRecord{}
	}
	return core.TokenRecord{
		UserID:       r.UserID,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		IssuedAt:     r.IssuedAt,
		ExpiresIn:    r.ExpiresIn,
	}
}

func newDeviceRecord(record core.DeviceRecord, now time.Time) *deviceRecord {
	record = record.Normalized()
	return &deviceRecord{
		EndpointID:   record.EndpointID,
		UserID:       record.UserID,
		FriendlyName: record.FriendlyName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (r *deviceRecord) toDomain() core.DeviceRecord {
	if r == nil {
		return core.DeviceRecord{}
	}
	return core.DeviceRecord{
		EndpointID:   r.EndpointID,
		UserID:       r.UserID,
		FriendlyName: r.FriendlyName,
	}
}
