// Package export renders device lists for use outside the tool.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/patchpilot/patchpilot/internal/inventory"
)

// checkInColumn mirrors the backend's check-in timestamp format so
// exported rows round-trip against other tooling.
const checkInColumn = "2006-01-02 15:04:05"

// WriteCSV writes a header row plus one row per device.
func WriteCSV(w io.Writer, devices []inventory.DeviceRecord) error {
	cw := csv.NewWriter(w)

	header := []string{"id", "name", "serial_number", "email", "os_version", "last_check_in", "model"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for _, d := range devices {
		lastCheckIn := ""
		if d.LastCheckIn != nil {
			lastCheckIn = d.LastCheckIn.Format(checkInColumn)
		}
		row := []string{
			strconv.Itoa(d.ID),
			d.Name,
			d.SerialNumber,
			d.EmailAddress,
			d.OSVersion,
			lastCheckIn,
			d.Model,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
