package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndIncrement(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)

	before := testutil.ToFloat64(scanEventsTotal)
	IncScanEvent()
	assert.Equal(t, before+1, testutil.ToFloat64(scanEventsTotal))

	IncBlock("high")
	assert.GreaterOrEqual(t, testutil.ToFloat64(blocksTotal.WithLabelValues("high")), 1.0)

	SetActiveBlocks(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(activeBlocks))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["honeypot_scan_events_total"])
	assert.True(t, names["honeypot_active_blocks"])
}
