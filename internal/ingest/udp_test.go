package ingest

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/halcyon-health/affect.report/internal/timeutil"
)

func TestNewUDPListener_Defaults(t *testing.T) {
	config := UDPListenerConfig{
		Address: ":9999",
		RcvBuf:  1024 * 1024,
	}

	listener := NewUDPListener(config)

	if listener == nil {
		t.Fatal("NewUDPListener returned nil")
	}
	if listener.address != ":9999" {
		t.Errorf("Expected address ':9999', got '%s'", listener.address)
	}
	if listener.logInterval != time.Minute {
		t.Errorf("Expected default log interval 1 minute, got %v", listener.logInterval)
	}
}

func TestHandleDatagramSingle(t *testing.T) {
	p, store := newTestProcessor(t, nil)
	listener := NewUDPListener(UDPListenerConfig{Processor: p})

	payload := []byte(`{"participant_id":"P001","metric_type":"heart_rate","value":72}`)
	if err := listener.handleDatagram(context.Background(), payload); err != nil {
		t.Fatalf("handleDatagram failed: %v", err)
	}

	if len(store.readings) != 1 {
		t.Fatalf("expected 1 reading, got %d", len(store.readings))
	}
	if store.readings[0].Value != 72 {
		t.Errorf("value = %v, want 72", store.readings[0].Value)
	}
}

func TestHandleDatagramBatch(t *testing.T) {
	p, store := newTestProcessor(t, nil)
	listener := NewUDPListener(UDPListenerConfig{Processor: p})

	payload := []byte(` [
		{"participant_id":"P001","metric_type":"heart_rate","value":72},
		{"participant_id":"P001","metric_type":"breathing_rate","value":14}
	]`)
	if err := listener.handleDatagram(context.Background(), payload); err != nil {
		t.Fatalf("handleDatagram failed: %v", err)
	}

	if len(store.readings) != 2 {
		t.Errorf("expected 2 readings, got %d", len(store.readings))
	}
}

func TestHandleDatagramMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"truncated JSON", `{"participant_id":"P0`},
		{"wrong shape", `"just a string"`},
		{"batch with bad entry", `[{"participant_id":"P001","metric_type":"heart_rate","value":72},{"value":1}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, store := newTestProcessor(t, nil)
			listener := NewUDPListener(UDPListenerConfig{Processor: p})

			if err := listener.handleDatagram(context.Background(), []byte(tt.payload)); err == nil {
				t.Fatal("expected error for malformed payload")
			}
			if len(store.readings) != 0 {
				t.Errorf("malformed datagram persisted %d readings", len(store.readings))
			}
		})
	}
}

// TestUDPListenerEndToEnd exercises the socket loop: send real datagrams,
// including a malformed one, and confirm accept and drop counts.
func TestUDPListenerEndToEnd(t *testing.T) {
	store := &recordingStore{}
	p := NewProcessor(store, nil, timeutil.RealClock{})
	listener := NewUDPListener(UDPListenerConfig{
		Address:   "127.0.0.1:0",
		Processor: p,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- listener.Start(ctx) }()

	// Wait for the socket to bind.
	var addr net.Addr
	for i := 0; i < 100; i++ {
		if addr = listener.LocalAddr(); addr != nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if addr == nil {
		t.Fatal("listener did not bind in time")
	}

	conn, err := net.Dial("udp", addr.String())
	if err != nil {
		t.Fatalf("failed to dial listener: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(`{"participant_id":"P001","metric_type":"heart_rate","value":72}`)); err != nil {
		t.Fatalf("failed to send datagram: %v", err)
	}
	if _, err := conn.Write([]byte(`not json`)); err != nil {
		t.Fatalf("failed to send datagram: %v", err)
	}

	// Poll for the listener to process both datagrams.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if listener.Datagrams() >= 2 && listener.Dropped() >= 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if got := listener.Datagrams(); got < 2 {
		t.Errorf("datagrams = %d, want >= 2", got)
	}
	if got := listener.Dropped(); got != 1 {
		t.Errorf("dropped = %d, want 1", got)
	}
	if stats := p.Stats(); stats.Accepted != 1 {
		t.Errorf("accepted = %d, want 1", stats.Accepted)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("Start returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("listener did not stop after cancellation")
	}
}
