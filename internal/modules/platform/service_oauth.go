package platform

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/adsight/adsight-api/internal/modules/user"
	"github.com/adsight/adsight-api/internal/policy"
	"github.com/adsight/adsight-api/internal/session"
)

// pendingTTL bounds how long an initiated OAuth flow stays valid.
const pendingTTL = 10 * 60 // seconds

func (s *service) InitiateConnect(ctx context.Context, userID string, p policy.Platform, sess *session.Data) (string, error) {
	if !p.Valid() {
		return "", ErrUnsupportedPlatform
	}

	provider, err := s.providers(s.config, p)
	if err != nil {
		return "", err
	}

	if userID == "" && provider.RequiresExistingUser() {
		return "", user.ErrUnauthorized.WithDetail("sign in before connecting this platform")
	}

	// Plan gating only applies to authenticated users; a fresh
	// sign-in-via-provider flow starts on the freemium tier, which always
	// includes the platforms that can establish identity.
	if userID != "" {
		u, err := s.users.FindByID(ctx, userID)
		if err != nil {
			return "", err
		}
		if !policy.CanUsePlatform(u.Plan, p) {
			return "", ErrPlatformNotAllowed
		}

		// Reconnecting an existing platform never counts against the cap.
		if _, err := s.repo.FindByUserAndProvider(ctx, userID, p); err != nil {
			if !errors.Is(err, user.ErrNotFound) {
				return "", err
			}
			count, err := s.repo.CountByUser(ctx, userID)
			if err != nil {
				return "", err
			}
			if !policy.CanConnectPlatform(u.Plan, count) {
				return "", ErrPlatformLimit
			}
		}
	}

	state, err := session.NewStateNonce()
	if err != nil {
		return "", fmt.Errorf("failed to generate state nonce: %w", err)
	}
	verifier := oauth2.GenerateVerifier()
	sess.Pending = &session.PendingOAuth{
		State:     state,
		Provider:  p,
		Verifier:  verifier,
		ExpiresAt: s.now().Unix() + pendingTTL,
	}

	authURL := provider.Config().AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oauth2.AccessTypeOffline,
	)

	s.logger.Info("oauth flow initiated", "platform", p, "userId", userID)
	return authURL, nil
}

// CallbackInput carries everything the callback handler extracted from the
// request: query parameters and the decoded (possibly nil) session.
type CallbackInput struct {
	Platform policy.Platform
	Code     string
	State    string
	ErrParam string // the provider's error query parameter, if present
	Session  *session.Data
}

// CallbackResult is the outcome of the callback. ErrorCode is empty on
// success; Session is the rebuilt session to encode into the cookie (nil
// when the flow failed before a user was resolved).
type CallbackResult struct {
	RedirectURL string
	ErrorCode   string
	Session     *session.Data
	User        *user.User
}

func (s *service) HandleCallback(ctx context.Context, in CallbackInput) *CallbackResult {
	if in.ErrParam != "" {
		return s.callbackError(in, CallbackErrUserDenied)
	}
	if in.Code == "" || in.State == "" {
		return s.callbackError(in, CallbackErrMissingParams)
	}

	pending := s.consumePending(in)
	if pending == nil {
		return s.callbackError(in, CallbackErrInvalidState)
	}

	provider, err := s.providers(s.config, in.Platform)
	if err != nil {
		return s.callbackError(in, CallbackErrFailed)
	}

	if in.Session.UserID == "" && provider.RequiresExistingUser() {
		return s.callbackError(in, CallbackErrNotAuthenticated)
	}

	token, err := provider.Exchange(ctx, in.Code, pending.Verifier)
	if err != nil {
		s.logger.Error("oauth code exchange failed", "platform", in.Platform, "error", err)
		return s.callbackError(in, CallbackErrFailed)
	}

	info, err := provider.AccountInfo(ctx, token)
	if err != nil {
		if errors.Is(err, errNoBusinessAccounts) {
			return s.callbackError(in, CallbackErrNoBusinessAccounts)
		}
		s.logger.Error("oauth profile fetch failed", "platform", in.Platform, "error", err)
		return s.callbackError(in, CallbackErrFailed)
	}

	u, err := s.resolveUser(ctx, in, info)
	if err != nil {
		s.logger.Error("oauth identity resolution failed", "platform", in.Platform, "error", err)
		return s.callbackError(in, CallbackErrFailed)
	}

	if err := s.persistConnection(ctx, u.ID, in.Platform, token, info); err != nil {
		s.logger.Error("failed to persist platform connection", "platform", in.Platform, "error", err)
		return s.callbackError(in, CallbackErrFailed)
	}

	sess, err := s.rebuildSession(ctx, u)
	if err != nil {
		// The connection is stored; a stale session is recoverable on the
		// next sign-in rather than worth failing the flow for.
		s.logger.Warn("failed to rebuild session after callback", "error", err)
		sess = &session.Data{UserID: u.ID, Plan: u.Plan, Email: u.Email, Username: u.Username}
	}

	s.logger.Info("platform connected", "userId", u.ID, "platform", in.Platform)
	return &CallbackResult{
		RedirectURL: s.config.AppBaseURL + "/profile?tab=connections",
		Session:     sess,
		User:        u,
	}
}

// consumePending validates and clears the session's pending OAuth record.
// Returns nil when the state does not bind this callback to an initiation.
func (s *service) consumePending(in CallbackInput) *session.PendingOAuth {
	if in.Session == nil || in.Session.Pending == nil {
		return nil
	}
	pending := in.Session.Pending
	in.Session.Pending = nil

	if pending.State != in.State {
		return nil
	}
	if pending.Provider != in.Platform {
		return nil
	}
	if pending.ExpiresAt < s.now().Unix() {
		return nil
	}
	return pending
}

// resolveUser links the provider identity to a user: the session user when
// present, else an existing linked account, else a lookup by email, else a
// brand-new freemium user.
func (s *service) resolveUser(ctx context.Context, in CallbackInput, info *accountInfo) (*user.User, error) {
	if in.Session.UserID != "" {
		return s.users.FindByID(ctx, in.Session.UserID)
	}

	if existing, err := s.repo.FindByProviderAccount(ctx, in.Platform, info.ID); err == nil {
		return s.users.FindByID(ctx, existing.UserID)
	} else if !errors.Is(err, user.ErrNotFound) {
		return nil, err
	}

	email := info.Email
	if email == "" {
		// Some providers (Instagram, Twitter) expose no email; synthesize a
		// stable placeholder keyed by the provider identity.
		email = fmt.Sprintf("%s_%s@temp.local", in.Platform, info.ID)
	}

	if existing, err := s.users.FindByEmail(ctx, email); err == nil {
		return existing, nil
	} else if !errors.Is(err, user.ErrNotFound) {
		return nil, err
	}

	return s.createUserFromProvider(ctx, in.Platform, email, info)
}

func (s *service) createUserFromProvider(ctx context.Context, p policy.Platform, email string, info *accountInfo) (*user.User, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	username, err := s.availableUsername(ctx, p, info)
	if err != nil {
		return nil, err
	}

	u := &user.User{
		ID:       id.String(),
		Email:    email,
		Username: username,
		Plan:     policy.PlanFreemium,
	}
	if info.Image != "" {
		u.Image = &info.Image
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("user created from oauth callback", "userId", u.ID, "platform", p)
	return u, nil
}

// availableUsername derives a username from the provider profile, suffixing
// it with part of the provider account id when the plain form is taken.
func (s *service) availableUsername(ctx context.Context, p policy.Platform, info *accountInfo) (string, error) {
	base := strings.ToLower(strings.ReplaceAll(info.Username, " ", "_"))
	if base == "" {
		base = fmt.Sprintf("%s_%s", p, info.ID)
	}

	if _, err := s.users.FindByUsername(ctx, base); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return base, nil
		}
		return "", err
	}

	suffix := info.ID
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return fmt.Sprintf("%s_%s", base, suffix), nil
}

func (s *service) persistConnection(ctx context.Context, userID string, p policy.Platform, token *oauth2.Token, info *accountInfo) error {
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}

	conn := &AuthProvider{
		ID:                id.String(),
		UserID:            userID,
		Provider:          p,
		ProviderAccountID: info.ID,
		AccessToken:       token.AccessToken,
		CanManageAds:      info.CanManageAds,
		CanPublishContent: info.CanPublishContent,
		CanAccessInsights: info.CanAccessInsights,
		FollowerCount:     info.FollowerCount,
		MediaCount:        info.MediaCount,
	}
	if info.Username != "" {
		conn.Username = &info.Username
	}
	if token.RefreshToken != "" {
		conn.RefreshToken = &token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		conn.ExpiresAt = &expiry
	}

	return s.repo.Upsert(ctx, conn)
}

// rebuildSession assembles a fresh session payload from the store.
func (s *service) rebuildSession(ctx context.Context, u *user.User) (*session.Data, error) {
	summaries, err := s.SessionSummaries(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	sess := &session.Data{
		UserID:    u.ID,
		Plan:      u.Plan,
		Email:     u.Email,
		Username:  u.Username,
		Platforms: summaries,
	}
	if u.Image != nil {
		sess.Image = *u.Image
	}
	return sess, nil
}

// callbackError builds the failure redirect, preserving the caller's session
// (minus the consumed pending record) so an authenticated user stays signed in.
func (s *service) callbackError(in CallbackInput, code string) *CallbackResult {
	s.logger.Warn("oauth callback rejected", "platform", in.Platform, "code", code)
	return &CallbackResult{
		RedirectURL: s.config.AppBaseURL + "/profile?error=" + code,
		ErrorCode:   code,
		Session:     in.Session,
	}
}
