package units

import (
	"testing"
)

func TestIsTimezoneValid(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
		expected bool
	}{
		{"valid UTC", "UTC", true},
		{"valid US Eastern", "America/New_York", true},
		{"valid outside catalog", "Pacific/Honolulu", true},
		{"invalid", "Invalid/Timezone", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := IsTimezoneValid(tt.timezone)
			if res != tt.expected {
				t.Errorf("IsTimezoneValid(%s) = %v, want %v", tt.timezone, res, tt.expected)
			}
		})
	}
}

func TestCommonTimezonesAllLoad(t *testing.T) {
	for _, tz := range CommonTimezones {
		if !IsTimezoneValid(tz) {
			t.Errorf("catalog entry %s does not load from tz database", tz)
		}
	}
}

func TestLocationFor(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
		expected string
	}{
		{"known timezone", "Asia/Tokyo", "Asia/Tokyo"},
		{"empty falls back to UTC", "", "UTC"},
		{"bad name falls back to UTC", "Not/AZone", "UTC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := LocationFor(tt.timezone)
			if loc.String() != tt.expected {
				t.Errorf("LocationFor(%q) = %s, want %s", tt.timezone, loc, tt.expected)
			}
		})
	}
}
