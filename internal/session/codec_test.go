package session

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adsight/adsight-api/internal/policy"
)

func testCodec(t *testing.T) *Codec {
	t.Helper()
	return NewCodec("test-session-secret-0123456789abcdef", time.Hour)
}

func sampleData() *Data {
	return &Data{
		UserID:   "0191e4c2-8f33-7000-a000-000000000001",
		Plan:     policy.PlanPremiumMonth,
		Email:    "a@x.com",
		Username: "alice",
		Image:    "https://cdn.example.com/a.png",
		Platforms: map[policy.Platform]*PlatformSummary{
			policy.PlatformFacebook: {
				AccountID:   "fb-123",
				Username:    "alice.fb",
				TokenExpiry: time.Now().Add(time.Hour).Unix(),
			},
			policy.PlatformAmazon: {AccountID: "amzn-1"},
		},
		Pending: &PendingOAuth{
			State:     "nonce-abc",
			Provider:  policy.PlatformTwitter,
			ExpiresAt: time.Now().Add(10 * time.Minute).Unix(),
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	codec := testCodec(t)
	data := sampleData()

	cookie, err := codec.Encode(data)
	require.NoError(t, err)
	require.NotEmpty(t, cookie)

	decoded, err := codec.Decode(cookie)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestDecodeFailsClosed(t *testing.T) {
	codec := testCodec(t)

	cases := map[string]string{
		"empty":       "",
		"garbage":     "not-a-jwt",
		"truncated":   "eyJhbGciOiJIUzI1NiJ9",
		"wrong parts": "a.b",
	}
	for name, value := range cases {
		_, err := codec.Decode(value)
		assert.Error(t, err, name)
	}
}

func TestDecodeRejectsForeignSignature(t *testing.T) {
	data := sampleData()
	cookie, err := NewCodec("other-secret-other-secret-other!", time.Hour).Encode(data)
	require.NoError(t, err)

	_, err = testCodec(t).Decode(cookie)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestDecodeRejectsExpired(t *testing.T) {
	codec := testCodec(t)
	cookie, err := codec.Encode(sampleData())
	require.NoError(t, err)

	codec.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = codec.Decode(cookie)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestDecodeRejectsTamperedPayload(t *testing.T) {
	codec := testCodec(t)
	cookie, err := codec.Encode(sampleData())
	require.NoError(t, err)

	parts := strings.Split(cookie, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	_, err = codec.Decode(tampered)
	assert.Error(t, err)
}

func TestPlatformMerge(t *testing.T) {
	d := &Data{}
	assert.Nil(t, d.Platform(policy.PlatformTikTok))

	d.SetPlatform(policy.PlatformTikTok, &PlatformSummary{AccountID: "tt-1"})
	require.NotNil(t, d.Platform(policy.PlatformTikTok))
	assert.Equal(t, "tt-1", d.Platform(policy.PlatformTikTok).AccountID)

	d.RemovePlatform(policy.PlatformTikTok)
	assert.Nil(t, d.Platform(policy.PlatformTikTok))
}

func TestNewStateNonce(t *testing.T) {
	a, err := NewStateNonce()
	require.NoError(t, err)
	b, err := NewStateNonce()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	// 32 bytes base64url without padding.
	assert.Len(t, a, 43)
}
