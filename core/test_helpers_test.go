package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

type memoryCredentialStore struct {
	mu        sync.Mutex
	records   map[string]TokenRecord
	devices   map[string]string
	updates   int32
	updateErr error
	getErr    error
}

func newMemoryCredentialStore(records ...TokenRecord) *memoryCredentialStore {
	store := &memoryCredentialStore{
		records: map[string]TokenRecord{},
		devices: map[string]string{},
	}
	for _, record := range records {
		store.records[record.UserID] = record
	}
	return store
}

func (s *memoryCredentialStore) Get(_ context.Context, userID string) (TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return TokenRecord{}, s.getErr
	}
	record, ok := s.records[userID]
	if !ok {
		return TokenRecord{}, fmt.Errorf("memory: user %q: %w", userID, ErrRecordNotFound)
	}
	return record, nil
}

func (s *memoryCredentialStore) GetByDevice(ctx context.Context, endpointID string) (TokenRecord, error) {
	s.mu.Lock()
	userID, ok := s.devices[endpointID]
	s.mu.Unlock()
	if !ok {
		return TokenRecord{}, ErrRecordNotFound
	}
	return s.Get(ctx, userID)
}

func (s *memoryCredentialStore) Put(_ context.Context, record TokenRecord) (TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.UserID] = record
	return record, nil
}

func (s *memoryCredentialStore) UpdateAccessToken(_ context.Context, userID string, update TokenUpdate) (TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return TokenRecord{}, s.updateErr
	}
	record, ok := s.records[userID]
	if !ok {
		return TokenRecord{}, ErrRecordNotFound
	}
	atomic.AddInt32(&s.updates, 1)
	record.AccessToken = update.AccessToken
	if update.RefreshToken != "" {
		record.RefreshToken = update.RefreshToken
	}
	record.IssuedAt = update.IssuedAt
	record.ExpiresIn = update.ExpiresIn
	s.records[userID] = record
	return record, nil
}

func (s *memoryCredentialStore) snapshot(userID string) TokenRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[userID]
}

type stubIdentityProvider struct {
	calls   int32
	grant   TokenGrant
	err     error
	delay   time.Duration
	release chan struct{}
}

func (p *stubIdentityProvider) ExchangeCode(context.Context, string) (TokenGrant, error) {
	return p.grant, p.err
}

func (p *stubIdentityProvider) Refresh(ctx context.Context, refreshToken string) (TokenGrant, error) {
	atomic.AddInt32(&p.calls, 1)
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return TokenGrant{}, ctx.Err()
		}
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if refreshToken == "" {
		return TokenGrant{}, errors.New("stub: empty refresh token")
	}
	return p.grant, p.err
}

func (p *stubIdentityProvider) refreshCalls() int {
	return int(atomic.LoadInt32(&p.calls))
}

type recordingMetrics struct {
	mu       sync.Mutex
	counters map[string]int64
}

func (r *recordingMetrics) IncCounter(_ context.Context, name string, value int64, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counters == nil {
		r.counters = map[string]int64{}
	}
	r.counters[name] += value
}

func (r *recordingMetrics) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func fixedClock(unix int64) func() time.Time {
	return func() time.Time {
		return time.Unix(unix, 0).UTC()
	}
}
