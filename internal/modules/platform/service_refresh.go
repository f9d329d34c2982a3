package platform

import (
	"context"

	"github.com/adsight/adsight-api/internal/policy"
)

// RefreshAllUserTokens walks every stored connection for the user and
// refreshes the ones whose tokens are expired or inside the expiry
// threshold. One failing provider never aborts the pass: its outcome is
// recorded as reconnect_required and the remaining providers proceed.
func (s *service) RefreshAllUserTokens(ctx context.Context, userID string) (*RefreshReport, error) {
	providers, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	report := &RefreshReport{
		Success: true,
		Results: make(map[policy.Platform]RefreshOutcome, len(providers)),
	}

	now := s.now()
	for _, stored := range providers {
		if !stored.NeedsRefresh(now) {
			report.Results[stored.Provider] = RefreshOutcome{Status: RefreshStatusValid}
			continue
		}
		report.Results[stored.Provider] = s.refreshOne(ctx, stored)
	}
	return report, nil
}

func (s *service) refreshOne(ctx context.Context, stored *AuthProvider) RefreshOutcome {
	provider, err := s.providers(s.config, stored.Provider)
	if err != nil {
		return RefreshOutcome{Status: RefreshStatusReconnectRequired, Error: err.Error()}
	}

	token, err := provider.Refresh(ctx, stored)
	if err != nil {
		s.logger.Warn("token refresh failed", "platform", stored.Provider, "userId", stored.UserID, "error", err)
		return RefreshOutcome{Status: RefreshStatusReconnectRequired, Error: err.Error()}
	}

	refreshToken := stored.RefreshToken
	if token.RefreshToken != "" {
		refreshToken = &token.RefreshToken
	}
	expiresAt := stored.ExpiresAt
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		expiresAt = &expiry
	}

	if err := s.repo.UpdateToken(ctx, stored.ID, token.AccessToken, refreshToken, expiresAt); err != nil {
		s.logger.Error("failed to persist refreshed token", "platform", stored.Provider, "error", err)
		return RefreshOutcome{Status: RefreshStatusReconnectRequired, Error: err.Error()}
	}

	s.logger.Info("token refreshed", "platform", stored.Provider, "userId", stored.UserID)
	return RefreshOutcome{Status: RefreshStatusRefreshed}
}
