package cost

// PricingVersion identifies the per-unit rate table below. Each recorded
// detail carries the version it was priced with.
const PricingVersion = "2024-06"

// Service names used as ledger keys
const (
	ServiceClaude      = "claude"
	ServiceTwilioSMS   = "twilio_sms"
	ServiceTwilioVoice = "twilio_voice"
	ServiceElevenLabs  = "elevenlabs"
	ServiceStripe      = "stripe"
	ServiceGoogleMaps  = "google_maps"
)

// TokenRates are USD per token
type TokenRates struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

// Tier names a Claude pricing tier
type Tier string

const (
	TierSonnet Tier = "sonnet"
	TierHaiku  Tier = "haiku"
)

// Rates per tier
var ClaudeRates = map[Tier]TokenRates{
	TierSonnet: {Input: 3.0 / 1_000_000, Output: 15.0 / 1_000_000},
	TierHaiku:  {Input: 0.25 / 1_000_000, Output: 1.25 / 1_000_000},
}

const (
	TwilioSMSPerSegment   = 0.0079
	TwilioVoicePerMinute  = 0.014
	ElevenLabsPerThousand = 0.30
	StripePercentFee      = 0.029
	StripeFixedFee        = 0.30
	GoogleMapsPerRequest  = 0.005
)

// ClaudeTokenCost returns the USD cost of a call on the given tier
func ClaudeTokenCost(tier Tier, tokensIn, tokensOut int) float64 {
	rates, ok := ClaudeRates[tier]
	if !ok {
		rates = ClaudeRates[TierSonnet]
	}
	return float64(tokensIn)*rates.Input + float64(tokensOut)*rates.Output
}
