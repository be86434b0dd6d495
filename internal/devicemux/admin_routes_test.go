package devicemux

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

// localHostRequest stamps the request with a loopback RemoteAddr so
// tsweb's debug access check lets it through.
func localHostRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

func TestAttachAdminRoutes_SendCommandAPI(t *testing.T) {
	port := NewTestDevicePort("")
	mux := NewDeviceMux(port)

	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	tests := []struct {
		name   string
		method string
		form   url.Values
		status int
		body   string
	}{
		{"allowed query command", http.MethodPost, url.Values{"command": {"CFG?"}}, http.StatusOK, "CFG?"},
		{"allowed verb with argument", http.MethodPost, url.Values{"command": {"RATE 5"}}, http.StatusOK, "RATE 5"},
		{"empty command rejected", http.MethodPost, url.Values{"command": {""}}, http.StatusBadRequest, "Missing command"},
		{"blank command rejected", http.MethodPost, url.Values{"command": {"   "}}, http.StatusBadRequest, "Missing command"},
		{"command off the allow list", http.MethodPost, url.Values{"command": {"XYZZY"}}, http.StatusBadRequest, "Invalid command"},
		{"GET rejected", http.MethodGet, nil, http.StatusMethodNotAllowed, "Method not allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.form != nil {
				body = strings.NewReader(tt.form.Encode())
			}
			req := localHostRequest(tt.method, "/debug/send-command-api", body)
			if tt.form != nil {
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			}

			w := httptest.NewRecorder()
			httpMux.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d. Body: %s", w.Code, tt.status, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), tt.body) {
				t.Errorf("body %q missing %q", w.Body.String(), tt.body)
			}
		})
	}
}

// A port write failure surfaces as a 500 rather than a silent drop.
func TestAttachAdminRoutes_SendCommandAPI_WriteError(t *testing.T) {
	port := NewTestDevicePort("")
	mux := NewDeviceMux(port)

	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	port.SetWriteError(io.ErrShortWrite)

	form := url.Values{"command": {"CFG?"}}
	req := localHostRequest(http.MethodPost, "/debug/send-command-api", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := httptest.NewRecorder()
	httpMux.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500. Body: %s", w.Code, w.Body.String())
	}
}

func TestAttachAdminRoutes_SendCommandPage(t *testing.T) {
	port := NewTestDevicePort("")
	mux := NewDeviceMux(port)

	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	req := localHostRequest(http.MethodGet, "/debug/send-command", nil)
	w := httptest.NewRecorder()

	httpMux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200. Body: %s", w.Code, w.Body.String())
	}

	body := w.Body.String()
	if !strings.Contains(body, "<html") {
		t.Error("response doesn't appear to be HTML")
	}
	if !strings.Contains(body, "send-command-api") {
		t.Error("expected the page to wire the command form to send-command-api")
	}
}

func TestAttachAdminRoutes_Tail_MethodNotAllowed(t *testing.T) {
	port := NewTestDevicePort("")
	mux := NewDeviceMux(port)

	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	req := localHostRequest(http.MethodPost, "/debug/tail", nil)
	w := httptest.NewRecorder()

	httpMux.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestAttachAdminRoutes_Tail_StreamsLines(t *testing.T) {
	port := NewTestDevicePort("HR:70,SPO2:98\n")
	mux := NewDeviceMux(port)

	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	reqCtx, cancelReq := context.WithCancel(context.Background())
	req := localHostRequest(http.MethodGet, "/debug/tail", nil).WithContext(reqCtx)
	w := httptest.NewRecorder()

	handlerDone := make(chan struct{})
	go func() {
		defer close(handlerDone)
		httpMux.ServeHTTP(w, req)
	}()

	// Let the handler subscribe before the monitor starts reading, so the
	// first line is not broadcast into an empty subscriber map.
	time.Sleep(50 * time.Millisecond)

	monitorCtx, cancelMonitor := context.WithCancel(context.Background())
	defer cancelMonitor()
	go mux.Monitor(monitorCtx)

	// Give the line time to arrive, then disconnect the client.
	time.Sleep(100 * time.Millisecond)
	cancelReq()

	select {
	case <-handlerDone:
	case <-time.After(1 * time.Second):
		t.Fatal("tail handler did not exit after client disconnect")
	}

	body := w.Body.String()
	if !strings.Contains(body, ": ping") {
		t.Errorf("expected initial ping, got %q", body)
	}
	if !strings.Contains(body, "data: HR:70,SPO2:98") {
		t.Errorf("expected device line on the stream, got %q", body)
	}

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content-type = %q, want text/event-stream", ct)
	}
}

// TestDisabledDeviceMux verifies the no-op mux shuts down cleanly.
func TestDisabledDeviceMux(t *testing.T) {
	mux := NewDisabledDeviceMux()

	if err := mux.Initialize(); err != nil {
		t.Errorf("Initialize returned error: %v", err)
	}
	if err := mux.SendCommand("CFG?"); err != nil {
		t.Errorf("SendCommand returned error: %v", err)
	}

	_, ch := mux.Subscribe()

	if err := mux.Close(); err != nil {
		t.Errorf("Close returned error: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("expected subscriber channel closed on Close")
	}

	// Subscribing after close returns a closed channel.
	_, ch = mux.Subscribe()
	if _, ok := <-ch; ok {
		t.Error("expected closed channel when subscribing after Close")
	}
}
