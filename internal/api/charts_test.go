package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// debugRequest hits a /debug route. The debug handler only answers
// loopback callers, so the request needs a local RemoteAddr.
func debugRequest(t *testing.T, ts *testServer, target string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "127.0.0.1:5555"
	w := httptest.NewRecorder()
	ts.mux.ServeHTTP(w, req)
	return w
}

func TestAffectChart(t *testing.T) {
	ts := setupTestServer(t)
	seedReadings(t, ts, "P001", 68, 74, 71)
	runInference(t, ts, "P001")

	w := debugRequest(t, ts, "/debug/charts/affect?participant_id=P001")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Expected HTML content type, got %q", ct)
	}
	if !strings.Contains(w.Body.String(), "echarts") {
		t.Error("Expected a rendered chart in the response body")
	}
}

func TestAffectChartNoData(t *testing.T) {
	ts := setupTestServer(t)

	w := debugRequest(t, ts, "/debug/charts/affect?participant_id=P001")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 with no states, got %d", w.Code)
	}
}

func TestAffectChartRequiresParticipant(t *testing.T) {
	ts := setupTestServer(t)

	w := debugRequest(t, ts, "/debug/charts/affect")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}
