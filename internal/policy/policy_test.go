package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlatformAccess_Deterministic(t *testing.T) {
	for _, plan := range []Plan{PlanFreemium, PlanPremiumMonth, PlanPremiumYear} {
		assert.Equal(t, PlatformAccess(plan), PlatformAccess(plan))
		assert.Equal(t, FeatureAccess(plan), FeatureAccess(plan))
	}
}

func TestPlatformAccess_Tiers(t *testing.T) {
	free := PlatformAccess(PlanFreemium)
	assert.True(t, free[PlatformFacebook])
	assert.True(t, free[PlatformInstagram])
	assert.False(t, free[PlatformTwitter])
	assert.False(t, free[PlatformAmazon])
	assert.False(t, free[PlatformTikTok])

	for _, plan := range []Plan{PlanPremiumMonth, PlanPremiumYear} {
		access := PlatformAccess(plan)
		for _, p := range Platforms {
			assert.True(t, access[p], "premium should include %s", p)
		}
	}
}

func TestFeatureAccess_Tiers(t *testing.T) {
	free := FeatureAccess(PlanFreemium)
	assert.True(t, free[FeatureAnalytics])
	assert.False(t, free[FeatureAdManagement])
	assert.False(t, free[FeatureExport])

	premium := FeatureAccess(PlanPremiumMonth)
	assert.True(t, premium[FeatureAdManagement])
	assert.True(t, premium[FeatureExport])
}

func TestCanConnectPlatform_Caps(t *testing.T) {
	assert.True(t, CanConnectPlatform(PlanFreemium, 0))
	assert.True(t, CanConnectPlatform(PlanFreemium, 1))
	assert.False(t, CanConnectPlatform(PlanFreemium, 2))

	assert.True(t, CanConnectPlatform(PlanPremiumMonth, 2))
	assert.True(t, CanConnectPlatform(PlanPremiumYear, 4))
	assert.False(t, CanConnectPlatform(PlanPremiumMonth, 5))
}

func TestUnknownPlanFallsBackToFreemium(t *testing.T) {
	unknown := Plan("ENTERPRISE_TRIAL")
	assert.Equal(t, PlatformAccess(PlanFreemium), PlatformAccess(unknown))
	assert.Equal(t, FeatureAccess(PlanFreemium), FeatureAccess(unknown))
	assert.False(t, CanConnectPlatform(unknown, 2))
}

func TestPlatformValid(t *testing.T) {
	for _, p := range Platforms {
		assert.True(t, p.Valid())
	}
	assert.False(t, Platform("myspace").Valid())
}
