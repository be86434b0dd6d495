package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})
	Logf("ingest accepted %d readings", 3)

	if got != "ingest accepted 3 readings" {
		t.Errorf("Custom logger saw %q", got)
	}

	// nil installs a no-op that swallows lines without panicking
	SetLogger(nil)
	got = ""
	Logf("dropped line")
	if got != "" {
		t.Errorf("No-op logger should not have produced output, got %q", got)
	}
}

func TestLogfDefault(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should not be nil by default")
	}

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Logf panicked: %v", r)
		}
	}()

	Logf("probe: %s", "value")
}

func TestPrefixed(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})

	logf := Prefixed("Cache")
	logf("read failed for %s", "P001")

	if len(lines) != 1 {
		t.Fatalf("Expected 1 line, got %d", len(lines))
	}
	if lines[0] != "[Cache] read failed for P001" {
		t.Errorf("Expected tagged line, got %q", lines[0])
	}

	// Prefixed logfs follow later SetLogger swaps.
	var after []string
	SetLogger(func(format string, v ...interface{}) {
		after = append(after, fmt.Sprintf(format, v...))
	})
	logf("evicted %d keys", 2)

	if len(after) != 1 || after[0] != "[Cache] evicted 2 keys" {
		t.Errorf("Expected the swapped sink to receive the tagged line, got %v", after)
	}
}
