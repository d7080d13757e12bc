package inventory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// checkInLayout is the timestamp format the classic API uses for the
// last check-in field.
const checkInLayout = "2006-01-02 15:04:05"

// searchPayload mirrors the classic-API advanced search response. The
// computers field stays raw so ValidatePayload can distinguish "absent"
// from "present but empty".
type searchPayload struct {
	AdvancedComputerSearch *struct {
		ID        int             `json:"id"`
		Name      string          `json:"name"`
		Computers json.RawMessage `json:"computers"`
	} `json:"advanced_computer_search"`
}

type computerEntry struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	SerialNumber string `json:"Serial_Number"`
	EmailAddress string `json:"Email_Address"`
	OSVersion    string `json:"Operating_System_Version"`
	LastCheckIn  string `json:"Last_Check_in"`
	Model        string `json:"Model"`
}

// ValidatePayload checks that a raw payload has the shape every consumer
// relies on: a nested advanced_computer_search object whose computers
// field is a JSON array. Rejects unless all of that is present, so a
// backend format change or a truncated cache file fails closed.
func ValidatePayload(payload []byte) error {
	var p searchPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("payload is not valid JSON: %w", err)
	}
	if p.AdvancedComputerSearch == nil {
		return fmt.Errorf("payload has no advanced_computer_search object")
	}
	computers := bytes.TrimSpace(p.AdvancedComputerSearch.Computers)
	if len(computers) == 0 || computers[0] != '[' {
		return fmt.Errorf("payload has no computers array")
	}
	return nil
}

// ParsePayload converts a validated raw payload into the domain model.
// Devices with an empty or unparseable check-in timestamp get a nil
// LastCheckIn.
func ParsePayload(payload []byte) (*Search, error) {
	var p searchPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("parsing search payload: %w", err)
	}
	if p.AdvancedComputerSearch == nil {
		return nil, fmt.Errorf("search payload has no advanced_computer_search object")
	}

	var entries []computerEntry
	if err := json.Unmarshal(p.AdvancedComputerSearch.Computers, &entries); err != nil {
		return nil, fmt.Errorf("parsing computers array: %w", err)
	}

	search := &Search{
		ID:      p.AdvancedComputerSearch.ID,
		Name:    p.AdvancedComputerSearch.Name,
		Devices: make([]DeviceRecord, 0, len(entries)),
	}
	for _, e := range entries {
		record := DeviceRecord{
			ID:           e.ID,
			Name:         e.Name,
			SerialNumber: e.SerialNumber,
			EmailAddress: e.EmailAddress,
			OSVersion:    e.OSVersion,
			Model:        e.Model,
		}
		if e.LastCheckIn != "" {
			if ts, err := time.Parse(checkInLayout, e.LastCheckIn); err == nil {
				record.LastCheckIn = &ts
			}
		}
		search.Devices = append(search.Devices, record)
	}
	return search, nil
}
