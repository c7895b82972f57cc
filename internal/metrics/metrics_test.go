package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSetDegraded(t *testing.T) {
	SetDegraded(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(degradedModeGauge))

	SetDegraded(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(degradedModeGauge))
}

func TestAddCost(t *testing.T) {
	Init()
	before := testutil.ToFloat64(costRecordedCounter.WithLabelValues("twilio_sms"))

	AddCost("twilio_sms", 0.0079)
	AddCost("twilio_sms", 0)
	AddCost("twilio_sms", -1)

	after := testutil.ToFloat64(costRecordedCounter.WithLabelValues("twilio_sms"))
	assert.InDelta(t, 0.0079, after-before, 1e-9)
}

func TestIncAutoHealAction(t *testing.T) {
	Init()
	before := testutil.ToFloat64(autohealActionsCounter.WithLabelValues("memory", "true"))
	IncAutoHealAction("memory", true)
	assert.Equal(t, before+1, testutil.ToFloat64(autohealActionsCounter.WithLabelValues("memory", "true")))
}
