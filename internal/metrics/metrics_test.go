package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterIdempotentAndHelpersWork(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}

	IncStart("gateway")
	IncStart("gateway")
	IncStop("gateway")
	IncStartFailure("gateway")
	IncWatchdogCheck("gateway", true)
	IncWatchdogCheck("gateway", false)
	IncWatchdogRestart("gateway")
	SetUp("gateway", true)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	wantNames := map[string]bool{
		"warden_service_starts_total":         false,
		"warden_service_stops_total":          false,
		"warden_service_start_failures_total": false,
		"warden_watchdog_checks_total":        false,
		"warden_watchdog_restarts_total":      false,
		"warden_service_up":                   false,
	}
	for _, mf := range mfs {
		n := mf.GetName()
		if _, ok := wantNames[n]; ok {
			wantNames[n] = true
			if len(mf.GetMetric()) == 0 {
				t.Fatalf("metric %s has no samples", n)
			}
		}
	}
	for n, ok := range wantNames {
		if !ok {
			t.Fatalf("expected to find metric %s", n)
		}
	}
}

func TestHelpersNoOpBeforeRegister(t *testing.T) {
	originalState := regOK.Load()
	regOK.Store(false)
	defer regOK.Store(originalState)

	IncStart("x")
	IncStop("x")
	IncStartFailure("x")
	IncWatchdogCheck("x", true)
	IncWatchdogRestart("x")
	SetUp("x", false)
	// No panic means success.
}

func TestHandlerServesMetrics(t *testing.T) {
	regOK.Store(false)
	if err := Register(prometheus.DefaultRegisterer); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	IncStart("gateway")

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != 200 {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), "warden_service_starts_total") {
		t.Fatalf("metrics output missing starts_total")
	}
}
