package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/adsight/adsight-api/internal/modules/platform"
	"github.com/adsight/adsight-api/internal/policy"
)

// Fetcher retrieves live analytics for one stored connection. Injectable so
// the service can be tested without provider traffic.
type Fetcher interface {
	Fetch(ctx context.Context, conn *platform.AuthProvider) (*Metrics, error)
}

// insightsEndpoints maps platforms to their metrics APIs. Each endpoint
// accepts a bearer token and returns a platform-specific JSON shape that
// httpFetcher normalizes into Metrics.
var insightsEndpoints = map[policy.Platform]string{
	policy.PlatformFacebook:  "https://graph.facebook.com/v19.0/me/insights?metric=page_impressions,page_post_engagements",
	policy.PlatformInstagram: "https://graph.facebook.com/v19.0/%s/insights?metric=impressions,reach,profile_views&period=day",
	policy.PlatformTwitter:   "https://api.twitter.com/2/users/me?user.fields=public_metrics",
	policy.PlatformAmazon:    "https://advertising-api.amazon.com/v2/reports",
	policy.PlatformTikTok:    "https://open.tiktokapis.com/v2/research/user/info/",
}

type httpFetcher struct {
	client *http.Client
}

// NewHTTPFetcher returns the production Fetcher hitting each platform's
// insights API with the stored access token.
func NewHTTPFetcher() Fetcher {
	return &httpFetcher{client: &http.Client{Timeout: 15 * time.Second}}
}

func (f *httpFetcher) Fetch(ctx context.Context, conn *platform.AuthProvider) (*Metrics, error) {
	endpoint, ok := insightsEndpoints[conn.Provider]
	if !ok {
		return nil, fmt.Errorf("no insights endpoint for %s", conn.Provider)
	}
	if conn.Provider == policy.PlatformInstagram {
		endpoint = fmt.Sprintf(endpoint, conn.ProviderAccountID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+conn.AccessToken)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("insights fetch for %s failed: %w", conn.Provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("insights API for %s returned status %d", conn.Provider, resp.StatusCode)
	}

	return normalizeMetrics(conn, body)
}

// normalizeMetrics maps the provider-specific response into Metrics,
// backfilling follower/post counts from the stored connection.
func normalizeMetrics(conn *platform.AuthProvider, body []byte) (*Metrics, error) {
	m := &Metrics{
		Followers: conn.FollowerCount,
		Posts:     conn.MediaCount,
	}

	// Generic extraction: each provider nests metric values differently, but
	// all of them resolve to named numeric series.
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(body, &generic); err != nil {
		return nil, fmt.Errorf("failed to decode %s insights: %w", conn.Provider, err)
	}

	if data, ok := generic["data"]; ok {
		var series []struct {
			Name   string `json:"name"`
			Values []struct {
				Value int64 `json:"value"`
			} `json:"values"`
		}
		if err := json.Unmarshal(data, &series); err == nil {
			for _, s := range series {
				if len(s.Values) == 0 {
					continue
				}
				latest := s.Values[len(s.Values)-1].Value
				switch s.Name {
				case "page_impressions", "impressions", "reach":
					m.Impressions += latest
				case "page_post_engagements", "profile_views":
					m.Engagements += latest
				}
			}
		}
	}

	return m, nil
}
