package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.CollectorResult("ok")
	m.CollectorResult("ok")
	m.CollectorResult("fetch_failed")
	m.LoaderRow("skipped")
	m.RecordsWritten(3)

	if got := testutil.ToFloat64(m.fetchResults.WithLabelValues("ok")); got != 2 {
		t.Errorf("Expected 2 ok results, got %v", got)
	}
	if got := testutil.ToFloat64(m.fetchResults.WithLabelValues("fetch_failed")); got != 1 {
		t.Errorf("Expected 1 failed result, got %v", got)
	}
	if got := testutil.ToFloat64(m.loadRows.WithLabelValues("skipped")); got != 1 {
		t.Errorf("Expected 1 skipped row, got %v", got)
	}
	if got := testutil.ToFloat64(m.recordsWritten); got != 3 {
		t.Errorf("Expected 3 records written, got %v", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.CollectorResult("ok")
	m.ObserveFetch(time.Second)
	m.RecordsWritten(1)
	m.LoaderRow("inserted")
	m.ObserveStage("connect", time.Millisecond)
	if m.Registry() != nil {
		t.Error("Expected nil registry")
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.LoaderRow("inserted")
	m.ObserveFetch(50 * time.Millisecond)

	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := server.Client().Get(server.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`pokemon_loader_rows_total{outcome="inserted"} 1`,
		"pokemon_fetch_duration_seconds_count 1",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("Expected %q in metrics output", want)
		}
	}
}
