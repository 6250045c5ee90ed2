package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordModelCall(t *testing.T) {
	before := testutil.ToFloat64(ModelCallErrors.WithLabelValues("ollama", "embed"))

	RecordModelCall("ollama", "embed", time.Now(), nil)
	RecordModelCall("ollama", "embed", time.Now(), errors.New("timeout"))

	if got := testutil.ToFloat64(ModelCallErrors.WithLabelValues("ollama", "embed")); got != before+1 {
		t.Errorf("expected %v errors, got %v", before+1, got)
	}
}

func TestRecordRegions(t *testing.T) {
	torso := testutil.ToFloat64(RegionsDetected.WithLabelValues("torso"))
	none := testutil.ToFloat64(NoDetections)

	RecordRegions([]string{"torso", "legs"})
	RecordRegions(nil)

	if got := testutil.ToFloat64(RegionsDetected.WithLabelValues("torso")); got != torso+1 {
		t.Errorf("expected torso count %v, got %v", torso+1, got)
	}
	if got := testutil.ToFloat64(NoDetections); got != none+1 {
		t.Errorf("expected no-detection count %v, got %v", none+1, got)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/health", "200"))
	RecordAPIRequest("GET", "/health", "200", 3*time.Millisecond)
	if got := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/health", "200")); got != before+1 {
		t.Errorf("expected %v, got %v", before+1, got)
	}
}

func TestRecordCompatQuery(t *testing.T) {
	before := testutil.ToFloat64(CompatQueries.WithLabelValues("compatible_items", "ok"))
	RecordCompatQuery("compatible_items", "ok")
	if got := testutil.ToFloat64(CompatQueries.WithLabelValues("compatible_items", "ok")); got != before+1 {
		t.Errorf("expected %v, got %v", before+1, got)
	}
}
