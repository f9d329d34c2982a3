package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adsight/adsight-api/internal/modules/platform"
	"github.com/adsight/adsight-api/internal/modules/user"
	"github.com/adsight/adsight-api/internal/policy"
	"github.com/adsight/adsight-api/internal/session"
)

// --- Fakes ---

type fakePlatforms struct {
	conns   map[string][]*platform.AuthProvider
	listErr error
}

func (f *fakePlatforms) ActiveProviders(_ context.Context, userID string) ([]*platform.AuthProvider, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.conns[userID], nil
}

func (f *fakePlatforms) InitiateConnect(context.Context, string, policy.Platform, *session.Data) (string, error) {
	panic("not used")
}
func (f *fakePlatforms) HandleCallback(context.Context, platform.CallbackInput) *platform.CallbackResult {
	panic("not used")
}
func (f *fakePlatforms) Disconnect(context.Context, string, policy.Platform) error {
	panic("not used")
}
func (f *fakePlatforms) SessionSummaries(context.Context, string) (map[policy.Platform]*session.PlatformSummary, error) {
	panic("not used")
}
func (f *fakePlatforms) RefreshAllUserTokens(context.Context, string) (*platform.RefreshReport, error) {
	panic("not used")
}

type fakeUsers struct {
	users map[string]*user.User
}

func (f *fakeUsers) FindByID(_ context.Context, id string) (*user.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, user.ErrNotFound
}

func (f *fakeUsers) Create(context.Context, *user.User) error                  { panic("not used") }
func (f *fakeUsers) FindByEmail(context.Context, string) (*user.User, error)   { panic("not used") }
func (f *fakeUsers) FindByUsername(context.Context, string) (*user.User, error) { panic("not used") }
func (f *fakeUsers) Update(context.Context, *user.User) error                  { panic("not used") }
func (f *fakeUsers) UpdatePlan(context.Context, string, policy.Plan) error     { panic("not used") }
func (f *fakeUsers) UpdateLastLogin(context.Context, string, time.Time) error  { panic("not used") }
func (f *fakeUsers) UpdatePassword(context.Context, string, string) error      { panic("not used") }
func (f *fakeUsers) CreateToken(context.Context, *user.Token) error            { panic("not used") }
func (f *fakeUsers) FindTokenByHash(context.Context, string, user.TokenType) (*user.Token, error) {
	panic("not used")
}
func (f *fakeUsers) DeleteToken(context.Context, string) error { panic("not used") }
func (f *fakeUsers) DeleteTokensByUserAndType(context.Context, string, user.TokenType) error {
	panic("not used")
}
func (f *fakeUsers) DeleteExpiredTokens(context.Context) error { panic("not used") }

type fakeFetcher struct {
	calls   atomic.Int64
	block   chan struct{} // when non-nil, Fetch waits until closed
	err     error
	metrics Metrics
}

func (f *fakeFetcher) Fetch(_ context.Context, _ *platform.AuthProvider) (*Metrics, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	m := f.metrics
	return &m, nil
}

func newTestService(platforms *fakePlatforms, users *fakeUsers, fetcher Fetcher) Service {
	return NewService(&Config{
		Platforms: platforms,
		Users:     users,
		Fetcher:   fetcher,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func premiumUser() *fakeUsers {
	return &fakeUsers{users: map[string]*user.User{
		"user-1": {ID: "user-1", Plan: policy.PlanPremiumMonth},
	}}
}

func connected(p policy.Platform) *fakePlatforms {
	return &fakePlatforms{conns: map[string][]*platform.AuthProvider{
		"user-1": {{ID: "c1", UserID: "user-1", Provider: p, FollowerCount: 500, MediaCount: 20}},
	}}
}

// --- Tests ---

func TestAnalytics_LiveResultTagged(t *testing.T) {
	fetcher := &fakeFetcher{metrics: Metrics{Followers: 1000, Impressions: 50000}}
	svc := newTestService(connected(policy.PlatformFacebook), premiumUser(), fetcher)

	result, err := svc.Analytics(context.Background(), "user-1", policy.PlatformFacebook)
	require.NoError(t, err)

	assert.Equal(t, SourceLive, result.Source)
	assert.Equal(t, int64(1000), result.Data.Followers)
	assert.Equal(t, policy.PlatformFacebook, result.Platform)
}

func TestAnalytics_UpstreamFailureFallsBackTagged(t *testing.T) {
	summary, _ := json.Marshal(Metrics{Followers: 800, Impressions: 12000})
	platforms := &fakePlatforms{conns: map[string][]*platform.AuthProvider{
		"user-1": {{ID: "c1", UserID: "user-1", Provider: policy.PlatformFacebook, AnalyticsSummary: summary}},
	}}
	fetcher := &fakeFetcher{err: fmt.Errorf("upstream 503")}
	svc := newTestService(platforms, premiumUser(), fetcher)

	result, err := svc.Analytics(context.Background(), "user-1", policy.PlatformFacebook)
	require.NoError(t, err)

	assert.Equal(t, SourceFallback, result.Source, "synthetic data must be visibly tagged")
	assert.Equal(t, int64(800), result.Data.Followers)
	assert.Equal(t, int64(12000), result.Data.Impressions)
}

func TestAnalytics_FallbackWithoutStoredSummary(t *testing.T) {
	fetcher := &fakeFetcher{err: fmt.Errorf("timeout")}
	svc := newTestService(connected(policy.PlatformFacebook), premiumUser(), fetcher)

	result, err := svc.Analytics(context.Background(), "user-1", policy.PlatformFacebook)
	require.NoError(t, err)

	assert.Equal(t, SourceFallback, result.Source)
	assert.Equal(t, int64(500), result.Data.Followers, "degrades to the connection's cached counters")
}

func TestAnalytics_NotConnectedIs404(t *testing.T) {
	svc := newTestService(&fakePlatforms{conns: map[string][]*platform.AuthProvider{}}, premiumUser(), &fakeFetcher{})

	_, err := svc.Analytics(context.Background(), "user-1", policy.PlatformFacebook)
	assert.ErrorIs(t, err, platform.ErrPlatformNotConnected)
}

func TestAnalytics_PlanGated(t *testing.T) {
	users := &fakeUsers{users: map[string]*user.User{
		"user-1": {ID: "user-1", Plan: policy.PlanFreemium},
	}}
	svc := newTestService(connected(policy.PlatformTikTok), users, &fakeFetcher{})

	_, err := svc.Analytics(context.Background(), "user-1", policy.PlatformTikTok)
	assert.ErrorIs(t, err, platform.ErrPlatformNotAllowed)
}

func TestAnalytics_UnsupportedPlatform(t *testing.T) {
	svc := newTestService(connected(policy.PlatformFacebook), premiumUser(), &fakeFetcher{})

	_, err := svc.Analytics(context.Background(), "user-1", policy.Platform("myspace"))
	assert.ErrorIs(t, err, platform.ErrUnsupportedPlatform)
}

func TestAnalytics_ConcurrentRequestsDeduplicated(t *testing.T) {
	fetcher := &fakeFetcher{
		metrics: Metrics{Followers: 42},
		block:   make(chan struct{}),
	}
	svc := newTestService(connected(policy.PlatformFacebook), premiumUser(), fetcher)

	const concurrency = 8
	var wg sync.WaitGroup
	results := make([]*AnalyticsResult, concurrency)
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := svc.Analytics(context.Background(), "user-1", policy.PlatformFacebook)
			assert.NoError(t, err)
			results[i] = result
		}(i)
	}

	// Let the goroutines pile up behind the single in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(fetcher.block)
	wg.Wait()

	assert.Equal(t, int64(1), fetcher.calls.Load(), "concurrent identical requests share one upstream call")
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, int64(42), r.Data.Followers)
	}
}

func TestData_AggregatesAcrossPlatforms(t *testing.T) {
	platforms := &fakePlatforms{conns: map[string][]*platform.AuthProvider{
		"user-1": {
			{ID: "c1", UserID: "user-1", Provider: policy.PlatformFacebook},
			{ID: "c2", UserID: "user-1", Provider: policy.PlatformInstagram},
		},
	}}
	fetcher := &fakeFetcher{metrics: Metrics{Followers: 100, Impressions: 1000, AdSpend: 12.5}}
	svc := newTestService(platforms, premiumUser(), fetcher)

	data, err := svc.Data(context.Background(), "user-1")
	require.NoError(t, err)

	require.Len(t, data.Platforms, 2)
	assert.Equal(t, int64(200), data.Totals.Followers)
	assert.Equal(t, int64(2000), data.Totals.Impressions)
	assert.InDelta(t, 25.0, data.Totals.AdSpend, 0.001)
}

func TestData_EmptyWithoutConnections(t *testing.T) {
	svc := newTestService(&fakePlatforms{conns: map[string][]*platform.AuthProvider{}}, premiumUser(), &fakeFetcher{})

	data, err := svc.Data(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, data.Platforms)
	assert.Zero(t, data.Totals.Followers)
}

func TestDeduper_RemovesEntriesAfterError(t *testing.T) {
	d := NewDeduper()

	_, err := d.Do("key", func() (any, error) { return nil, fmt.Errorf("boom") })
	require.Error(t, err)

	// A failed call must not poison the key for subsequent callers.
	val, err := d.Do("key", func() (any, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
}
