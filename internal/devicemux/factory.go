package devicemux

import (
	"fmt"

	"go.bug.st/serial"
)

// NewRealDeviceMux opens the dock's serial port at path and wraps it in a
// DeviceMux. Unset PortOptions fields fall back to the dock factory
// settings via SerialMode.
func NewRealDeviceMux(path string, opts PortOptions) (*DeviceMux[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, fmt.Errorf("device port options: %w", err)
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open device port %s: %w", path, err)
	}

	return NewDeviceMux[serial.Port](port), nil
}
