package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/amazon"
	"golang.org/x/oauth2/facebook"

	"github.com/adsight/adsight-api/internal/config"
	"github.com/adsight/adsight-api/internal/policy"
)

const graphAPIBase = "https://graph.facebook.com/v19.0"

// accountInfo holds the standardized account information extracted from a
// provider after the token exchange.
type accountInfo struct {
	ID                string
	Email             string // empty when the provider does not expose one
	Username          string
	Image             string
	FollowerCount     int64
	MediaCount        int64
	CanManageAds      bool
	CanPublishContent bool
	CanAccessInsights bool
}

// OAuthProvider is the per-platform strategy behind the connect flow.
type OAuthProvider interface {
	// Config returns the oauth2 configuration used for the authorization URL
	// and the code exchange.
	Config() *oauth2.Config

	// Exchange trades the authorization code for a token, applying any
	// platform-specific post-processing (e.g. Facebook's long-lived upgrade).
	Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error)

	// AccountInfo fetches the provider-side profile for the token.
	AccountInfo(ctx context.Context, token *oauth2.Token) (*accountInfo, error)

	// Refresh obtains a new token for an existing connection. Returning an
	// error means the user must reconnect.
	Refresh(ctx context.Context, stored *AuthProvider) (*oauth2.Token, error)

	// RequiresExistingUser reports whether this platform can only be linked
	// to an already-authenticated user (it cannot establish identity itself).
	RequiresExistingUser() bool
}

// newOAuthProvider is a factory function returning the implementation for a
// platform. Instagram rides on the Facebook app credentials.
func newOAuthProvider(cfg *config.Config, p policy.Platform) (OAuthProvider, error) {
	switch p {
	case policy.PlatformFacebook:
		return &facebookProvider{
			config: &oauth2.Config{
				ClientID:     cfg.Facebook.ClientID,
				ClientSecret: cfg.Facebook.ClientSecret,
				RedirectURL:  cfg.Facebook.RedirectURL,
				Endpoint:     facebook.Endpoint,
				Scopes:       []string{"email", "public_profile", "pages_show_list", "ads_read", "read_insights"},
			},
		}, nil
	case policy.PlatformInstagram:
		return &instagramProvider{
			facebookProvider: facebookProvider{
				config: &oauth2.Config{
					ClientID:     cfg.Facebook.ClientID,
					ClientSecret: cfg.Facebook.ClientSecret,
					RedirectURL:  cfg.Facebook.RedirectURL,
					Endpoint:     facebook.Endpoint,
					Scopes:       []string{"instagram_basic", "instagram_manage_insights", "pages_show_list", "business_management"},
				},
			},
		}, nil
	case policy.PlatformTwitter:
		return &twitterProvider{
			config: &oauth2.Config{
				ClientID:     cfg.Twitter.ClientID,
				ClientSecret: cfg.Twitter.ClientSecret,
				RedirectURL:  cfg.Twitter.RedirectURL,
				Endpoint: oauth2.Endpoint{
					AuthURL:  "https://twitter.com/i/oauth2/authorize",
					TokenURL: "https://api.twitter.com/2/oauth2/token",
				},
				Scopes: []string{"tweet.read", "users.read", "offline.access"},
			},
		}, nil
	case policy.PlatformAmazon:
		return &amazonProvider{
			config: &oauth2.Config{
				ClientID:     cfg.Amazon.ClientID,
				ClientSecret: cfg.Amazon.ClientSecret,
				RedirectURL:  cfg.Amazon.RedirectURL,
				Endpoint:     amazon.Endpoint,
				Scopes:       []string{"profile", "advertising::campaign_management"},
			},
		}, nil
	case policy.PlatformTikTok:
		return &tiktokProvider{
			config: &oauth2.Config{
				ClientID:     cfg.TikTok.ClientID,
				ClientSecret: cfg.TikTok.ClientSecret,
				RedirectURL:  cfg.TikTok.RedirectURL,
				Endpoint: oauth2.Endpoint{
					AuthURL:  "https://www.tiktok.com/v2/auth/authorize/",
					TokenURL: "https://open.tiktokapis.com/v2/oauth/token/",
				},
				Scopes: []string{"user.info.basic", "user.info.stats"},
			},
		}, nil
	default:
		return nil, ErrUnsupportedPlatform.WithDetail(fmt.Sprintf("unsupported platform: %s", p))
	}
}

// --- Facebook ---

type facebookProvider struct {
	config *oauth2.Config
}

func (f *facebookProvider) Config() *oauth2.Config     { return f.config }
func (f *facebookProvider) RequiresExistingUser() bool { return false }

// Exchange trades the code for a short-lived token, then upgrades it to a
// long-lived (60-day) one. When the second exchange fails the short-lived
// token is kept: a degraded connection beats a failed one.
func (f *facebookProvider) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	token, err := f.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("facebook code exchange failed: %w", err)
	}

	longLived, err := f.exchangeLongLived(ctx, token.AccessToken)
	if err != nil {
		return token, nil
	}
	return longLived, nil
}

// exchangeLongLived performs Facebook's fb_exchange_token grant.
func (f *facebookProvider) exchangeLongLived(ctx context.Context, shortLived string) (*oauth2.Token, error) {
	q := url.Values{}
	q.Set("grant_type", "fb_exchange_token")
	q.Set("client_id", f.config.ClientID)
	q.Set("client_secret", f.config.ClientSecret)
	q.Set("fb_exchange_token", shortLived)

	var out struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := getJSON(ctx, http.DefaultClient, graphAPIBase+"/oauth/access_token?"+q.Encode(), &out); err != nil {
		return nil, fmt.Errorf("long-lived token exchange failed: %w", err)
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("long-lived token exchange returned no token")
	}

	token := &oauth2.Token{
		AccessToken: out.AccessToken,
		TokenType:   out.TokenType,
	}
	if out.ExpiresIn > 0 {
		token.Expiry = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
	}
	return token, nil
}

func (f *facebookProvider) AccountInfo(ctx context.Context, token *oauth2.Token) (*accountInfo, error) {
	client := f.config.Client(ctx, token)

	var me struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture struct {
			Data struct {
				URL string `json:"url"`
			} `json:"data"`
		} `json:"picture"`
	}
	if err := getJSON(ctx, client, graphAPIBase+"/me?fields=id,name,email,picture", &me); err != nil {
		return nil, fmt.Errorf("failed to fetch facebook profile: %w", err)
	}

	return &accountInfo{
		ID:                me.ID,
		Email:             me.Email,
		Username:          me.Name,
		Image:             me.Picture.Data.URL,
		CanManageAds:      true,
		CanPublishContent: true,
		CanAccessInsights: true,
	}, nil
}

// Refresh re-runs the long-lived exchange with the stored token. Facebook has
// no refresh_token grant; an expired long-lived token forces a reconnect.
func (f *facebookProvider) Refresh(ctx context.Context, stored *AuthProvider) (*oauth2.Token, error) {
	return f.exchangeLongLived(ctx, stored.AccessToken)
}

// --- Instagram ---

// instagramProvider rides on Facebook's Graph API: Instagram Business
// accounts are reached through the authorized Facebook identity's pages.
type instagramProvider struct {
	facebookProvider
}

type instagramBusinessAccount struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	FollowerCount int64  `json:"followers_count"`
	MediaCount    int64  `json:"media_count"`
}

// businessAccounts lists the Instagram Business Accounts under the Facebook
// identity's pages.
func (ig *instagramProvider) businessAccounts(ctx context.Context, token *oauth2.Token) ([]instagramBusinessAccount, error) {
	client := ig.config.Client(ctx, token)

	var pages struct {
		Data []struct {
			InstagramBusinessAccount *instagramBusinessAccount `json:"instagram_business_account"`
		} `json:"data"`
	}
	url := graphAPIBase + "/me/accounts?fields=instagram_business_account{id,username,followers_count,media_count}"
	if err := getJSON(ctx, client, url, &pages); err != nil {
		return nil, fmt.Errorf("failed to list instagram business accounts: %w", err)
	}

	var accounts []instagramBusinessAccount
	for _, page := range pages.Data {
		if page.InstagramBusinessAccount != nil {
			accounts = append(accounts, *page.InstagramBusinessAccount)
		}
	}
	return accounts, nil
}

// AccountInfo requires at least one Instagram Business Account; zero accounts
// is a terminal error for the connect flow.
func (ig *instagramProvider) AccountInfo(ctx context.Context, token *oauth2.Token) (*accountInfo, error) {
	accounts, err := ig.businessAccounts(ctx, token)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, errNoBusinessAccounts
	}

	// The first business account becomes the primary connection.
	primary := accounts[0]
	return &accountInfo{
		ID:                primary.ID,
		Username:          primary.Username,
		FollowerCount:     primary.FollowerCount,
		MediaCount:        primary.MediaCount,
		CanPublishContent: true,
		CanAccessInsights: true,
	}, nil
}

// The Graph API exposes no email for a business account; when no session
// user exists the service falls back to a placeholder identity.
func (ig *instagramProvider) RequiresExistingUser() bool { return false }

// --- Twitter ---

type twitterProvider struct {
	config *oauth2.Config
}

func (t *twitterProvider) Config() *oauth2.Config     { return t.config }
func (t *twitterProvider) RequiresExistingUser() bool { return false }

func (t *twitterProvider) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	return t.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
}

func (t *twitterProvider) AccountInfo(ctx context.Context, token *oauth2.Token) (*accountInfo, error) {
	client := t.config.Client(ctx, token)

	var out struct {
		Data struct {
			ID              string `json:"id"`
			Username        string `json:"username"`
			ProfileImageURL string `json:"profile_image_url"`
			PublicMetrics   struct {
				FollowersCount int64 `json:"followers_count"`
				TweetCount     int64 `json:"tweet_count"`
			} `json:"public_metrics"`
		} `json:"data"`
	}
	url := "https://api.twitter.com/2/users/me?user.fields=profile_image_url,public_metrics"
	if err := getJSON(ctx, client, url, &out); err != nil {
		return nil, fmt.Errorf("failed to fetch twitter profile: %w", err)
	}

	// Twitter does not expose an email through this endpoint.
	return &accountInfo{
		ID:                out.Data.ID,
		Username:          out.Data.Username,
		Image:             out.Data.ProfileImageURL,
		FollowerCount:     out.Data.PublicMetrics.FollowersCount,
		MediaCount:        out.Data.PublicMetrics.TweetCount,
		CanPublishContent: true,
		CanAccessInsights: true,
	}, nil
}

func (t *twitterProvider) Refresh(ctx context.Context, stored *AuthProvider) (*oauth2.Token, error) {
	return refreshWithGrant(ctx, t.config, stored)
}

// --- Amazon ---

type amazonProvider struct {
	config *oauth2.Config
}

func (a *amazonProvider) Config() *oauth2.Config { return a.config }

// Amazon Ads connections attach to the advertising dashboard of an existing
// account; the flow never creates a user.
func (a *amazonProvider) RequiresExistingUser() bool { return true }

func (a *amazonProvider) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	return a.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
}

func (a *amazonProvider) AccountInfo(ctx context.Context, token *oauth2.Token) (*accountInfo, error) {
	client := a.config.Client(ctx, token)

	var out struct {
		UserID string `json:"user_id"`
		Email  string `json:"email"`
		Name   string `json:"name"`
	}
	if err := getJSON(ctx, client, "https://api.amazon.com/user/profile", &out); err != nil {
		return nil, fmt.Errorf("failed to fetch amazon profile: %w", err)
	}

	return &accountInfo{
		ID:           out.UserID,
		Email:        out.Email,
		Username:     out.Name,
		CanManageAds: true,
	}, nil
}

func (a *amazonProvider) Refresh(ctx context.Context, stored *AuthProvider) (*oauth2.Token, error) {
	return refreshWithGrant(ctx, a.config, stored)
}

// --- TikTok ---

type tiktokProvider struct {
	config *oauth2.Config
}

func (t *tiktokProvider) Config() *oauth2.Config     { return t.config }
func (t *tiktokProvider) RequiresExistingUser() bool { return true }

func (t *tiktokProvider) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	return t.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
}

func (t *tiktokProvider) AccountInfo(ctx context.Context, token *oauth2.Token) (*accountInfo, error) {
	client := t.config.Client(ctx, token)

	var out struct {
		Data struct {
			User struct {
				OpenID        string `json:"open_id"`
				DisplayName   string `json:"display_name"`
				AvatarURL     string `json:"avatar_url"`
				FollowerCount int64  `json:"follower_count"`
				VideoCount    int64  `json:"video_count"`
			} `json:"user"`
		} `json:"data"`
	}
	url := "https://open.tiktokapis.com/v2/user/info/?fields=open_id,display_name,avatar_url,follower_count,video_count"
	if err := getJSON(ctx, client, url, &out); err != nil {
		return nil, fmt.Errorf("failed to fetch tiktok profile: %w", err)
	}

	return &accountInfo{
		ID:                out.Data.User.OpenID,
		Username:          out.Data.User.DisplayName,
		Image:             out.Data.User.AvatarURL,
		FollowerCount:     out.Data.User.FollowerCount,
		MediaCount:        out.Data.User.VideoCount,
		CanPublishContent: true,
		CanAccessInsights: true,
	}, nil
}

func (t *tiktokProvider) Refresh(ctx context.Context, stored *AuthProvider) (*oauth2.Token, error) {
	return refreshWithGrant(ctx, t.config, stored)
}

// --- Shared helpers ---

// refreshWithGrant runs the standard refresh_token grant via the oauth2
// TokenSource machinery.
func refreshWithGrant(ctx context.Context, cfg *oauth2.Config, stored *AuthProvider) (*oauth2.Token, error) {
	if stored.RefreshToken == nil || *stored.RefreshToken == "" {
		return nil, fmt.Errorf("no refresh token stored for %s", stored.Provider)
	}

	// An already-expired token forces TokenSource to hit the token endpoint.
	seed := &oauth2.Token{
		RefreshToken: *stored.RefreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	}
	token, err := cfg.TokenSource(ctx, seed).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh grant failed for %s: %w", stored.Provider, err)
	}
	return token, nil
}

// getJSON issues a GET and decodes the JSON body, surfacing non-2xx statuses
// as errors without leaking the raw body upstream.
func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("provider API returned status %d", resp.StatusCode)
	}
	return json.Unmarshal(body, out)
}
