package inventory

import (
	"time"

	"github.com/patchpilot/patchpilot/internal/version"
)

// DefaultInactiveAfter is how long a device may go without checking in
// before it is considered inactive.
const DefaultInactiveAfter = 30 * 24 * time.Hour

// Classification buckets a fleet snapshot. Every input device lands in
// exactly one bucket; inactivity wins over version staleness because an
// unreachable device cannot act on an update plan anyway.
type Classification struct {
	Current  []DeviceRecord
	Outdated []DeviceRecord
	Inactive []DeviceRecord
}

// Total returns the number of classified devices.
func (c Classification) Total() int {
	return len(c.Current) + len(c.Outdated) + len(c.Inactive)
}

// OutdatedIDs returns the ids of the outdated bucket, in input order.
func (c Classification) OutdatedIDs() []int {
	ids := make([]int, 0, len(c.Outdated))
	for _, d := range c.Outdated {
		ids = append(ids, d.ID)
	}
	return ids
}

// Classify splits devices into current, outdated, and inactive buckets
// against the given latest OS version. A device is inactive when it has
// never checked in or its last check-in is older than inactiveAfter
// (zero means DefaultInactiveAfter), measured from now.
func Classify(devices []DeviceRecord, latest string, inactiveAfter time.Duration, now time.Time) Classification {
	if inactiveAfter == 0 {
		inactiveAfter = DefaultInactiveAfter
	}
	cutoff := now.Add(-inactiveAfter)

	var c Classification
	for _, d := range devices {
		switch {
		case d.LastCheckIn == nil || d.LastCheckIn.Before(cutoff):
			c.Inactive = append(c.Inactive, d)
		case version.IsOutdated(d.OSVersion, latest):
			c.Outdated = append(c.Outdated, d)
		default:
			c.Current = append(c.Current, d)
		}
	}
	return c
}
