// Package policy centralizes the plan-to-capability mapping. Every gate in
// the API (middleware, handlers, services) consults these functions so the
// rules never drift between call sites.
//
// All functions are pure and total over the closed plan enum: an
// unrecognized plan value falls back to the most restrictive (freemium)
// policy, never to an error.
package policy

// Plan is a subscription tier.
type Plan string

const (
	PlanFreemium     Plan = "FREEMIUM"
	PlanPremiumMonth Plan = "PREMIUM_MONTHLY"
	PlanPremiumYear  Plan = "PREMIUM_YEARLY"
)

// Platform is a connectable third-party platform.
type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformTwitter   Platform = "twitter"
	PlatformAmazon    Platform = "amazon"
	PlatformTikTok    Platform = "tiktok"
)

// Platforms lists every supported platform, in stable order.
var Platforms = []Platform{
	PlatformFacebook,
	PlatformInstagram,
	PlatformTwitter,
	PlatformAmazon,
	PlatformTikTok,
}

// Valid reports whether p is one of the supported platforms.
func (p Platform) Valid() bool {
	for _, known := range Platforms {
		if p == known {
			return true
		}
	}
	return false
}

// Feature is a plan-gated product capability.
type Feature string

const (
	FeatureAnalytics       Feature = "analytics"
	FeatureAdManagement    Feature = "ad_management"
	FeatureContentInsights Feature = "content_insights"
	FeatureExport          Feature = "export"
)

// Connection caps per tier.
const (
	freemiumPlatformCap = 2
	premiumPlatformCap  = 5
)

func isPremium(plan Plan) bool {
	return plan == PlanPremiumMonth || plan == PlanPremiumYear
}

// PlatformAccess returns the connectable-platform map for a plan. Freemium
// covers the two basic social platforms; premium unlocks all of them.
func PlatformAccess(plan Plan) map[Platform]bool {
	premium := isPremium(plan)
	return map[Platform]bool{
		PlatformFacebook:  true,
		PlatformInstagram: true,
		PlatformTwitter:   premium,
		PlatformAmazon:    premium,
		PlatformTikTok:    premium,
	}
}

// FeatureAccess returns the feature map for a plan.
func FeatureAccess(plan Plan) map[Feature]bool {
	premium := isPremium(plan)
	return map[Feature]bool{
		FeatureAnalytics:       true,
		FeatureContentInsights: true,
		FeatureAdManagement:    premium,
		FeatureExport:          premium,
	}
}

// CanConnectPlatform reports whether a plan allows connecting one more
// platform given the current connection count.
func CanConnectPlatform(plan Plan, currentCount int) bool {
	cap := freemiumPlatformCap
	if isPremium(plan) {
		cap = premiumPlatformCap
	}
	return currentCount < cap
}

// CanUsePlatform reports whether a plan includes access to a platform.
func CanUsePlatform(plan Plan, platform Platform) bool {
	return PlatformAccess(plan)[platform]
}

// CanUseFeature reports whether a plan includes a feature.
func CanUseFeature(plan Plan, feature Feature) bool {
	return FeatureAccess(plan)[feature]
}
