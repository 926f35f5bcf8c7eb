package enums

import "fmt"

// Feature names an entitlement-gated capability.
type Feature string

const (
	FeatureReleaseCreation   Feature = "release_creation"
	FeatureAIAgent           Feature = "ai_agent"
	FeatureFanZone           Feature = "fan_zone"
	FeatureTipJar            Feature = "tip_jar"
	FeaturePaidSubscriptions Feature = "paid_subscriptions"
)

var validFeatures = []Feature{
	FeatureReleaseCreation,
	FeatureAIAgent,
	FeatureFanZone,
	FeatureTipJar,
	FeaturePaidSubscriptions,
}

// IsValid reports whether the value is a known Feature.
func (f Feature) IsValid() bool {
	for _, candidate := range validFeatures {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFeature converts raw input into a Feature.
func ParseFeature(value string) (Feature, error) {
	for _, candidate := range validFeatures {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid feature %q", value)
}

// FanZoneTab names a section of the fan zone dashboard.
type FanZoneTab string

const (
	FanZoneTabDashboard   FanZoneTab = "dashboard"
	FanZoneTabFans        FanZoneTab = "fans"
	FanZoneTabCampaigns   FanZoneTab = "campaigns"
	FanZoneTabAutomations FanZoneTab = "automations"
	FanZoneTabSegments    FanZoneTab = "segments"
	FanZoneTabImport      FanZoneTab = "import"
)

var validFanZoneTabs = []FanZoneTab{
	FanZoneTabDashboard,
	FanZoneTabFans,
	FanZoneTabCampaigns,
	FanZoneTabAutomations,
	FanZoneTabSegments,
	FanZoneTabImport,
}

// IsValid reports whether the value is a known FanZoneTab.
func (t FanZoneTab) IsValid() bool {
	for _, candidate := range validFanZoneTabs {
		if candidate == t {
			return true
		}
	}
	return false
}
