package units

import (
	"time"
)

// CommonTimezones is the curated catalog served to enrollment clients,
// grouped by region. It covers the zones studies are actually run in;
// a participant anywhere else can still be stored with any tz database
// name, the catalog only feeds client dropdowns.
var CommonTimezones = []string{
	"UTC",

	// Americas
	"America/Anchorage",
	"America/Los_Angeles",
	"America/Denver",
	"America/Phoenix",
	"America/Chicago",
	"America/New_York",
	"America/Toronto",
	"America/Mexico_City",
	"America/Bogota",
	"America/Santiago",
	"America/Sao_Paulo",

	// Europe and Africa
	"Europe/London",
	"Europe/Dublin",
	"Europe/Paris",
	"Europe/Berlin",
	"Europe/Madrid",
	"Europe/Stockholm",
	"Europe/Athens",
	"Europe/Istanbul",
	"Africa/Cairo",
	"Africa/Lagos",
	"Africa/Johannesburg",
	"Africa/Nairobi",

	// Asia and Oceania
	"Asia/Dubai",
	"Asia/Karachi",
	"Asia/Kolkata",
	"Asia/Dhaka",
	"Asia/Bangkok",
	"Asia/Singapore",
	"Asia/Hong_Kong",
	"Asia/Shanghai",
	"Asia/Tokyo",
	"Asia/Seoul",
	"Australia/Perth",
	"Australia/Adelaide",
	"Australia/Sydney",
	"Pacific/Auckland",
}

// IsTimezoneValid checks if the given timezone loads from the system tz
// database. Any valid tz name is accepted for a participant, not just the
// curated catalog.
func IsTimezoneValid(tz string) bool {
	if tz == "" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// LocationFor loads a participant's timezone, falling back to UTC when the
// stored value is empty or no longer resolvable. Prompt scheduling always
// has a usable location.
func LocationFor(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}
