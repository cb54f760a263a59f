package scout

// Tier is a risk category derived from a 0-10 safety score.
type Tier int

const (
	TierVeryLowRisk Tier = iota
	TierLowRisk
	TierModerateRisk
	TierHighRisk
	TierVeryHighRisk
)

// AlternativesThreshold is the score below which nearby alternatives are offered.
const AlternativesThreshold = 7

// TierForScore maps a score onto the five fixed risk tiers.
func TierForScore(score float64) Tier {
	switch {
	case score >= 9:
		return TierVeryLowRisk
	case score >= 7:
		return TierLowRisk
	case score >= 5:
		return TierModerateRisk
	case score >= 3:
		return TierHighRisk
	default:
		return TierVeryHighRisk
	}
}

func (t Tier) String() string {
	switch t {
	case TierVeryLowRisk:
		return "very-low-risk"
	case TierLowRisk:
		return "low-risk"
	case TierModerateRisk:
		return "moderate-risk"
	case TierHighRisk:
		return "high-risk"
	default:
		return "very-high-risk"
	}
}

// Title is the human readable form of the tier.
func (t Tier) Title() string {
	switch t {
	case TierVeryLowRisk:
		return "Very Low Risk"
	case TierLowRisk:
		return "Low Risk"
	case TierModerateRisk:
		return "Moderate Risk"
	case TierHighRisk:
		return "High Risk"
	default:
		return "Very High Risk"
	}
}
