package devicemux

import (
	"slices"
	"strings"
)

// Define allow list of dock console command verbs
var allowedCommands = []string{
	// Clock & Session
	"T",   // Set the dock epoch clock (T=<unix seconds>)
	"C?",  // Query the dock clock
	"RST", // Reset the streaming session
	"FMT", // Set line format (FMT LINES | FMT JSON)

	// Stream Selection
	"STREAM",  // Select primary vitals channels (STREAM HR,RR,BR,TEMP,SPO2)
	"STREAM+", // Append activity channels (STREAM+ STEPS,SLEEP)
	"STREAM-", // Remove channels from the stream
	"RATE",    // Set emit cadence in seconds (RATE 1)

	// Queries
	"CFG?", // Dump active configuration as a JSON status line
	"BAT?", // Query battery percentage
	"ID?",  // Query board serial number
	"VER?", // Query firmware version
	"MEM?", // Query buffered backlog depth

	// Buffer Control
	"FLUSH", // Flush lines buffered while undocked
	"DROP",  // Discard buffered lines without emitting

	// Power
	"SLP",  // Put the board into low-power sleep
	"WAKE", // Wake the board from sleep
}

// ValidCommand reports whether the command's verb is on the allow list.
// Arguments after '=' or a space are not checked; the board rejects
// malformed arguments itself.
func ValidCommand(command string) bool {
	verb := strings.TrimSpace(command)
	if i := strings.IndexAny(verb, "= "); i >= 0 {
		verb = verb[:i]
	}
	if verb == "" {
		return false
	}
	return slices.Contains(allowedCommands, verb)
}
