package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	IndexerHeight.Set(800000)
	BlocksProcessed.Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "stampindexer_indexer_height") {
		t.Error("expected indexer_height metric in output")
	}
	if !strings.Contains(body, "stampindexer_blocks_processed_total") {
		t.Error("expected blocks_processed_total metric in output")
	}
}

func TestStampsClassifiedCountsByOutcome(t *testing.T) {
	StampsClassified.WithLabelValues("btc_stamp").Inc()
	StampsClassified.WithLabelValues("cursed").Inc()
	StampsClassified.WithLabelValues("cursed").Inc()

	if got := testutil.ToFloat64(StampsClassified.WithLabelValues("cursed")); got != 2 {
		t.Errorf("cursed count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(StampsClassified.WithLabelValues("btc_stamp")); got != 1 {
		t.Errorf("btc_stamp count = %v, want 1", got)
	}
}
