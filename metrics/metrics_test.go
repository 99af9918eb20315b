package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDeployment_IncrementsCounterAndObservesDuration(t *testing.T) {
	m := New()

	before := testutil.ToFloat64(m.DeploymentsTotal.WithLabelValues("success", "default_standalone"))
	m.RecordDeployment("success", "default_standalone", 12.5)
	after := testutil.ToFloat64(m.DeploymentsTotal.WithLabelValues("success", "default_standalone"))

	if after != before+1 {
		t.Errorf("DeploymentsTotal counter = %v, want %v", after, before+1)
	}
}

func TestNew_ReturnsSameSharedInstance(t *testing.T) {
	first := New()
	second := New()
	if first != second {
		t.Error("expected New() to return the same process-wide instance on repeated calls")
	}
}
