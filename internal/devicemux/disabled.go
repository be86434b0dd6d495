package devicemux

import (
	"context"
	"io"
	"net/http"
	"sync"

	"tailscale.com/tsweb"
)

// DisabledDeviceMux satisfies DeviceMuxInterface without any hardware
// behind it, for running the server with -disable-device. Commands are
// accepted and dropped and the line stream never produces anything.
// Subscriber channels are still tracked so Unsubscribe and Close unblock
// readers the same way the real mux does.
type DisabledDeviceMux struct {
	mu          sync.Mutex
	subscribers map[string]chan string
	closing     bool
}

func NewDisabledDeviceMux() *DisabledDeviceMux {
	return &DisabledDeviceMux{subscribers: make(map[string]chan string)}
}

func (d *DisabledDeviceMux) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		// Hand back a closed channel so the caller's read loop exits
		// instead of blocking forever.
		close(ch)
		return id, ch
	}
	d.subscribers[id] = ch
	return id, ch
}

func (d *DisabledDeviceMux) Unsubscribe(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ch, ok := d.subscribers[id]; ok {
		close(ch)
		delete(d.subscribers, id)
	}
}

func (d *DisabledDeviceMux) SendCommand(string) error { return nil }

func (d *DisabledDeviceMux) Monitor(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }

func (d *DisabledDeviceMux) Initialize() error { return nil }

func (d *DisabledDeviceMux) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		return nil
	}
	d.closing = true
	for id, ch := range d.subscribers {
		close(ch)
		delete(d.subscribers, id)
	}
	return nil
}

func (d *DisabledDeviceMux) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleSilentFunc("device", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "device disabled\n")
	})
}
