package devicemux

import (
	"fmt"
	"slices"
	"strings"

	"go.bug.st/serial"
)

// dockBauds lists the line rates the dock firmware can be driven at.
// 115200 is the factory default.
var dockBauds = []int{9600, 19200, 38400, 57600, 115200, 230400}

// parityNames maps accepted spellings to the single-letter canonical form.
var parityNames = map[string]string{
	"":     "N",
	"N":    "N",
	"NONE": "N",
	"E":    "E",
	"EVEN": "E",
	"O":    "O",
	"ODD":  "O",
}

// parityModes maps the canonical form to the serial library's constants.
var parityModes = map[string]serial.Parity{
	"N": serial.NoParity,
	"E": serial.EvenParity,
	"O": serial.OddParity,
}

// PortOptions describes the serial link to a charging dock. The zero value
// normalises to the dock factory settings (115200 8N1), so callers only set
// what they override. The JSON tags are for the admin status endpoint,
// which reports the active configuration.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

// Normalize applies dock defaults to unset fields and rejects settings the
// firmware does not support.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = 115200
	}
	if !slices.Contains(dockBauds, opts.BaudRate) {
		return opts, fmt.Errorf("unsupported baud rate %d: dock supports %v", opts.BaudRate, dockBauds)
	}

	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}

	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	parity, ok := parityNames[strings.TrimSpace(strings.ToUpper(opts.Parity))]
	if !ok {
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}
	opts.Parity = parity

	return opts, nil
}

// Equal reports whether two PortOptions describe the same link once
// normalised. Options that fail normalisation compare unequal.
func (o PortOptions) Equal(other PortOptions) bool {
	a, errA := o.Normalize()
	b, errB := other.Normalize()
	if errA != nil || errB != nil {
		return false
	}
	return a == b
}

// SerialMode converts the options into the serial.Mode required by
// go.bug.st/serial when opening the port.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	return &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.StopBits(opts.StopBits),
		Parity:   parityModes[opts.Parity],
	}, nil
}
