package core

import (
	"encoding/json"
	"strings"
	"time"
)

const DefaultExpiresInSeconds int64 = 3600

// TokenRecord is the delegated credential persisted per end user. IssuedAt is
// expressed in epoch seconds (UTC), ExpiresIn in seconds.
type TokenRecord struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	IssuedAt     int64
	ExpiresIn    int64
}

func (r TokenRecord) effectiveExpiresIn() int64 {
	if r.ExpiresIn <= 0 {
		return DefaultExpiresInSeconds
	}
	return r.ExpiresIn
}

// ExpiresAt returns the epoch second at which the access token stops being valid.
func (r TokenRecord) ExpiresAt() int64 {
	return r.IssuedAt + r.effectiveExpiresIn()
}

// IsValidAt reports whether the access token is still usable at now.
func (r TokenRecord) IsValidAt(now time.Time) bool {
	return r.ExpiresAt() > now.UTC().Unix()
}

func (r TokenRecord) Normalized() TokenRecord {
	r.UserID = strings.TrimSpace(r.UserID)
	r.AccessToken = strings.TrimSpace(r.AccessToken)
	r.RefreshToken = strings.TrimSpace(r.RefreshToken)
	if r.ExpiresIn <= 0 {
		r.ExpiresIn = DefaultExpiresInSeconds
	}
	return r
}

// TokenUpdate carries the fields replaced by a successful refresh. An empty
// RefreshToken keeps the stored one.
type TokenUpdate struct {
	AccessToken  string
	RefreshToken string
	IssuedAt     int64
	ExpiresIn    int64
}

type TokenStatus struct {
	UserID    string
	Valid     bool
	IssuedAt  int64
	ExpiresAt int64
}

type DeviceRecord struct {
	EndpointID   string
	UserID       string
	FriendlyName string
}

func (r DeviceRecord) Normalized() DeviceRecord {
	r.EndpointID = strings.TrimSpace(r.EndpointID)
	r.UserID = strings.TrimSpace(r.UserID)
	r.FriendlyName = strings.TrimSpace(r.FriendlyName)
	return r
}

type Capability struct {
	Type                string
	Interface           string
	Version             string
	Supported           []string
	ProactivelyReported bool
	Retrievable         bool
}

// DeviceDescriptor is a catalog entry as reported by the partner cloud.
type DeviceDescriptor struct {
	EndpointID        string
	ManufacturerName  string
	FriendlyName      string
	Description       string
	DisplayCategories []string
	Cookie            map[string]string
	Capabilities      []Capability
}

type Directive struct {
	Namespace        string
	Name             string
	MessageID        string
	CorrelationToken string
	PayloadVersion   string
	EndpointID       string
	BearerToken      string
	Payload          json.RawMessage
}

func (d Directive) Normalized() Directive {
	d.Namespace = strings.TrimSpace(d.Namespace)
	d.Name = strings.TrimSpace(d.Name)
	d.MessageID = strings.TrimSpace(d.MessageID)
	d.CorrelationToken = strings.TrimSpace(d.CorrelationToken)
	d.EndpointID = strings.TrimSpace(d.EndpointID)
	d.BearerToken = strings.TrimSpace(d.BearerToken)
	return d
}

type DeviceStatus struct {
	EndpointID string
	Status     string
}

type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
}

type CustomerProfile struct {
	UserID string
	Name   string
	Email  string
}

type PropertyState struct {
	Namespace     string
	Name          string
	Value         any
	TimeOfSample  time.Time
	UncertaintyMs int64
}

type ChangeReport struct {
	MessageID   string
	AccessToken string
	EndpointID  string
	Cause       string
	Properties  []PropertyState
}
