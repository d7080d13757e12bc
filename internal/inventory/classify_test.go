package inventory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/patchpilot/patchpilot/internal/inventory"
)

func device(id int, osVersion string, lastCheckIn *time.Time) inventory.DeviceRecord {
	return inventory.DeviceRecord{ID: id, OSVersion: osVersion, LastCheckIn: lastCheckIn}
}

func TestClassify(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-2 * 24 * time.Hour)
	stale := now.Add(-45 * 24 * time.Hour)

	devices := []inventory.DeviceRecord{
		device(1, "15.3.0", &recent), // current
		device(2, "15.2.1", &recent), // outdated
		device(3, "15.3.0", &stale),  // inactive despite current version
		device(4, "14.0.0", nil),     // never checked in: inactive wins
		device(5, "15.3", &recent),   // two components, still current
	}

	c := inventory.Classify(devices, "15.3.0", 30*24*time.Hour, now)

	assert.Equal(t, 5, c.Total())
	assert.Len(t, c.Current, 2)
	assert.Len(t, c.Outdated, 1)
	assert.Len(t, c.Inactive, 2)
	assert.Equal(t, []int{2}, c.OutdatedIDs())
}

func TestClassify_DefaultThreshold(t *testing.T) {
	now := time.Now()
	old := now.Add(-31 * 24 * time.Hour)

	c := inventory.Classify([]inventory.DeviceRecord{device(1, "15.3.0", &old)}, "15.3.0", 0, now)

	assert.Len(t, c.Inactive, 1)
}

func TestClassify_Empty(t *testing.T) {
	c := inventory.Classify(nil, "15.3.0", 0, time.Now())
	assert.Zero(t, c.Total())
}
