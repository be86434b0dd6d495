package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sync/atomic"
	"time"

	"github.com/halcyon-health/affect.report/internal/affect"
)

// UDPListenerConfig contains configuration options for the UDP ingest
// listener.
type UDPListenerConfig struct {
	Address     string
	RcvBuf      int
	LogInterval time.Duration
	Processor   *Processor
}

// UDPListener receives JSON reading datagrams from on-LAN wearable
// bridges. Each datagram carries one reading object or an array of them.
// Malformed datagrams are counted and dropped; the listener never fails
// because of payload content.
type UDPListener struct {
	address     string
	rcvBuf      int
	logInterval time.Duration
	processor   *Processor
	conn        *net.UDPConn

	datagrams int64
	dropped   int64
}

// NewUDPListener creates a UDP listener with the provided configuration.
func NewUDPListener(config UDPListenerConfig) *UDPListener {
	logInterval := config.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}
	return &UDPListener{
		address:     config.Address,
		rcvBuf:      config.RcvBuf,
		logInterval: logInterval,
		processor:   config.Processor,
	}
}

// Datagrams returns the number of datagrams received since startup.
func (l *UDPListener) Datagrams() int64 { return atomic.LoadInt64(&l.datagrams) }

// Dropped returns the number of datagrams dropped as malformed.
func (l *UDPListener) Dropped() int64 { return atomic.LoadInt64(&l.dropped) }

// Start begins listening for datagrams and blocks until ctx is done.
func (l *UDPListener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	l.conn = conn
	defer conn.Close()

	if l.rcvBuf > 0 {
		if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
			log.Printf("[Ingest] warning: failed to set UDP receive buffer to %d: %v", l.rcvBuf, err)
		}
	}

	log.Printf("[Ingest] UDP listener started on %s", conn.LocalAddr())

	go l.startStatsLogging(ctx)

	buffer := make([]byte, 65536)

	for {
		select {
		case <-ctx.Done():
			log.Print("[Ingest] UDP listener stopping due to context cancellation")
			return ctx.Err()
		default:
			// Read deadline keeps the loop responsive to cancellation.
			conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

			n, src, err := conn.ReadFromUDP(buffer)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("[Ingest] UDP read error: %v", err)
				continue
			}

			atomic.AddInt64(&l.datagrams, 1)
			if err := l.handleDatagram(ctx, buffer[:n]); err != nil {
				atomic.AddInt64(&l.dropped, 1)
				log.Printf("[Ingest] dropped datagram from %v: %v", src, err)
			}
		}
	}
}

// LocalAddr returns the bound address, or nil before Start.
func (l *UDPListener) LocalAddr() net.Addr {
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// handleDatagram decodes one datagram payload and hands it to the
// processor. A leading '[' selects batch decoding.
func (l *UDPListener) handleDatagram(ctx context.Context, payload []byte) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty payload")
	}

	if trimmed[0] == '[' {
		var readings []affect.SensorReading
		if err := json.Unmarshal(trimmed, &readings); err != nil {
			return fmt.Errorf("invalid batch JSON: %w", err)
		}
		return l.processor.ProcessBatch(ctx, readings)
	}

	var reading affect.SensorReading
	if err := json.Unmarshal(trimmed, &reading); err != nil {
		return fmt.Errorf("invalid reading JSON: %w", err)
	}
	return l.processor.Process(ctx, &reading)
}

// startStatsLogging periodically logs datagram counters.
func (l *UDPListener) startStatsLogging(ctx context.Context) {
	ticker := time.NewTicker(l.logInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := l.processor.Stats()
			log.Printf("[Ingest] UDP datagrams=%d dropped=%d readings_accepted=%d rejected=%d alerts=%d",
				l.Datagrams(), l.Dropped(), stats.Accepted, stats.Rejected, stats.Alerts)
		}
	}
}
