package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAccumulatesFunnel(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.Record(StageAlpha, VerdictReceived)
	m.Record(StageAlpha, VerdictPassed)
	m.Record(StageAlpha, VerdictReceived)
	m.Record(StageAlpha, VerdictRejected)

	snap := m.Snapshot()
	alpha := snap.Stages[StageAlpha]
	assert.Equal(t, int64(2), alpha.Received)
	assert.Equal(t, int64(1), alpha.Passed)
	assert.Equal(t, int64(1), alpha.Rejected)
	assert.InDelta(t, 0.5, alpha.PassRate, 1e-9)
}

func TestSnapshotIncludesAllStages(t *testing.T) {
	m := NewMetrics(nil)
	snap := m.Snapshot()
	for _, stage := range []Stage{StageAlpha, StageBeta, StageGamma, StageDelta} {
		_, ok := snap.Stages[stage]
		require.True(t, ok, "stage %s missing from snapshot", stage)
	}
}

func TestModelStatsAndQueueDepth(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.SetModelStats(0.62, 140)
	m.SetQueueDepth(7)

	snap := m.Snapshot()
	assert.Equal(t, 0.62, snap.ModelAccuracy)
	assert.Equal(t, 140, snap.ModelSamples)
	assert.Equal(t, 7, snap.QueueDepth)
}

func TestSnapshotIsACopy(t *testing.T) {
	m := NewMetrics(nil)
	m.Record(StageBeta, VerdictReceived)

	snap := m.Snapshot()
	beta := snap.Stages[StageBeta]
	beta.Received = 99
	snap.Stages[StageBeta] = beta

	assert.Equal(t, int64(1), m.Snapshot().Stages[StageBeta].Received)
}
