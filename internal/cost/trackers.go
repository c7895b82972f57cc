package cost

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrUnsupportedService is returned for services without a unit tracker
	ErrUnsupportedService = errors.New("unsupported service")

	// ErrInvalidUnits is returned for negative or fractional counts
	ErrInvalidUnits = errors.New("invalid units")
)

// UnitServices lists the services TrackServiceUsage accepts
var UnitServices = []string{
	ServiceTwilioSMS,
	ServiceTwilioVoice,
	ServiceElevenLabs,
	ServiceStripe,
	ServiceGoogleMaps,
}

// TrackServiceUsage routes a usage report to the service's tracker. Units are
// SMS segments, voice minutes, characters, payment USD or map requests.
// A missing tenant drops the event and returns a nil snapshot.
func (m *Monitor) TrackServiceUsage(tenantID, service string, units float64) (*Snapshot, error) {
	if units < 0 || math.IsNaN(units) || math.IsInf(units, 0) {
		return nil, fmt.Errorf("%s: %w", service, ErrInvalidUnits)
	}

	count := func() (int, error) {
		if units != math.Trunc(units) {
			return 0, fmt.Errorf("%s counts whole units: %w", service, ErrInvalidUnits)
		}
		return int(units), nil
	}

	switch service {
	case ServiceTwilioSMS:
		n, err := count()
		if err != nil {
			return nil, err
		}
		return m.TrackTwilioSMS(tenantID, n), nil
	case ServiceTwilioVoice:
		return m.TrackTwilioVoice(tenantID, units), nil
	case ServiceElevenLabs:
		n, err := count()
		if err != nil {
			return nil, err
		}
		return m.TrackElevenLabs(tenantID, n), nil
	case ServiceStripe:
		return m.TrackStripePayment(tenantID, units), nil
	case ServiceGoogleMaps:
		n, err := count()
		if err != nil {
			return nil, err
		}
		return m.TrackGoogleMaps(tenantID, n), nil
	default:
		return nil, fmt.Errorf("%q: %w", service, ErrUnsupportedService)
	}
}

// TierForModel maps a model name to its pricing tier
func TierForModel(model string) Tier {
	if strings.Contains(strings.ToLower(model), "haiku") {
		return TierHaiku
	}
	return TierSonnet
}

// TrackClaudeUsage records the token cost of one Claude call
func (m *Monitor) TrackClaudeUsage(tenantID, model string, tokensIn, tokensOut int) *Snapshot {
	tier := TierForModel(model)
	amount := ClaudeTokenCost(tier, tokensIn, tokensOut)
	return m.TrackCost(tenantID, ServiceClaude, amount, map[string]interface{}{
		"model":      model,
		"tier":       string(tier),
		"tokens_in":  tokensIn,
		"tokens_out": tokensOut,
	})
}

// TrackTwilioSMS records outbound SMS segments
func (m *Monitor) TrackTwilioSMS(tenantID string, segments int) *Snapshot {
	return m.TrackCost(tenantID, ServiceTwilioSMS, float64(segments)*TwilioSMSPerSegment, map[string]interface{}{
		"segments": segments,
	})
}

// TrackTwilioVoice records call minutes
func (m *Monitor) TrackTwilioVoice(tenantID string, minutes float64) *Snapshot {
	return m.TrackCost(tenantID, ServiceTwilioVoice, minutes*TwilioVoicePerMinute, map[string]interface{}{
		"minutes": minutes,
	})
}

// TrackElevenLabs records synthesized characters
func (m *Monitor) TrackElevenLabs(tenantID string, characters int) *Snapshot {
	return m.TrackCost(tenantID, ServiceElevenLabs, float64(characters)/1000*ElevenLabsPerThousand, map[string]interface{}{
		"characters": characters,
	})
}

// TrackStripePayment records the processing fee of a payment amount in USD
func (m *Monitor) TrackStripePayment(tenantID string, paymentAmount float64) *Snapshot {
	fee := paymentAmount*StripePercentFee + StripeFixedFee
	return m.TrackCost(tenantID, ServiceStripe, fee, map[string]interface{}{
		"payment_amount": paymentAmount,
	})
}

// TrackGoogleMaps records map API requests
func (m *Monitor) TrackGoogleMaps(tenantID string, requests int) *Snapshot {
	return m.TrackCost(tenantID, ServiceGoogleMaps, float64(requests)*GoogleMapsPerRequest, map[string]interface{}{
		"requests": requests,
	})
}
