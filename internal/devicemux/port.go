package devicemux

import (
	"io"
)

// DevicePorter is the minimal surface the mux needs from a device port.
// go.bug.st/serial ports satisfy it, as do the in-memory test ports.
type DevicePorter interface {
	io.ReadWriter
	io.Closer
}
