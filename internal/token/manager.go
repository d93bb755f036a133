// Package token owns the access-token lifecycle for athletes.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"example.com/stravasync/internal/domain"
	"example.com/stravasync/internal/logging"
	"example.com/stravasync/internal/observability"
)

// Refresher exchanges a refresh token for a new credential at the provider.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (domain.Credential, error)
}

// Option configures optional behaviour for the Manager.
type Option func(*Manager)

// WithLogger overrides the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) { m.logger = logging.OrNop(logger) }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager hands out valid access tokens, refreshing them when expired.
type Manager struct {
	store     domain.CredentialStore
	refresher Refresher
	now       func() time.Time
	logger    *zap.Logger
}

// NewManager constructs a Manager.
func NewManager(store domain.CredentialStore, refresher Refresher, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		refresher: refresher,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ValidToken returns a usable access token for athleteID. The store is written only
// when a refresh happens, and then with all three token fields at once.
func (m *Manager) ValidToken(ctx context.Context, athleteID int64) (string, error) {
	cred, err := m.store.GetCredential(ctx, athleteID)
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}
	if cred == nil {
		return "", domain.ErrCredentialNotFound
	}

	if !cred.Expired(m.now()) {
		return cred.AccessToken, nil
	}

	refreshed, err := m.refresher.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		observability.RecordTokenRefresh(false)
		m.logger.Warn("token refresh rejected", zap.Int64("athlete_id", athleteID), zap.Error(err))
		if errors.Is(err, domain.ErrTokenRefreshFailed) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", domain.ErrTokenRefreshFailed, err)
	}
	observability.RecordTokenRefresh(true)

	next := domain.Credential{
		AthleteID:    athleteID,
		AccessToken:  refreshed.AccessToken,
		RefreshToken: refreshed.RefreshToken,
		ExpiresAt:    refreshed.ExpiresAt,
	}
	if next.RefreshToken == "" {
		next.RefreshToken = cred.RefreshToken
	}
	if err := m.store.SetCredential(ctx, next); err != nil {
		return "", fmt.Errorf("store refreshed credential: %w", err)
	}

	m.logger.Debug("access token refreshed", zap.Int64("athlete_id", athleteID), zap.Int64("expires_at", next.ExpiresAt))
	return next.AccessToken, nil
}
