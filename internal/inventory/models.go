// Package inventory retrieves and classifies the device fleet from a
// saved backend search.
package inventory

import "time"

// DeviceRecord is an immutable snapshot of one device from a single
// fetch. Identity key is ID.
type DeviceRecord struct {
	ID           int
	Name         string
	SerialNumber string
	EmailAddress string
	OSVersion    string

	// LastCheckIn is nil when the device has never checked in.
	LastCheckIn *time.Time

	Model string
}

// Search is a parsed saved-search result.
type Search struct {
	ID      int
	Name    string
	Devices []DeviceRecord
}
