package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordRun(t *testing.T) {
	before := testutil.ToFloat64(runsTotal.WithLabelValues("batch", "success"))
	RecordRun("batch", "success", 2*time.Second)
	assert.InDelta(t, before+1, testutil.ToFloat64(runsTotal.WithLabelValues("batch", "success")), 0.001)
	assert.Positive(t, testutil.ToFloat64(lastRunTimestamp))
}

func TestLabelCounters(t *testing.T) {
	before := testutil.ToFloat64(labelEdits.WithLabelValues("radarr", "add"))
	AddLabelEdits("radarr", "add", 5)
	assert.InDelta(t, before+5, testutil.ToFloat64(labelEdits.WithLabelValues("radarr", "add")), 0.001)

	beforeDel := testutil.ToFloat64(labelsDeleted.WithLabelValues("radarr"))
	IncLabelDeleted("radarr")
	assert.InDelta(t, beforeDel+1, testutil.ToFloat64(labelsDeleted.WithLabelValues("radarr")), 0.001)
}
