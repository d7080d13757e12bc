package menu

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/patchpilot/patchpilot/internal/dispatch"
	"github.com/patchpilot/patchpilot/internal/inventory"
	"github.com/patchpilot/patchpilot/internal/jamf"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

const checkInDisplay = "2006-01-02 15:04"

func renderMenu(w io.Writer, searchID string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("patchpilot")+dimStyle.Render(" (search "+searchID+")"))
	fmt.Fprintln(w, "  1) show all devices")
	fmt.Fprintln(w, "  2) show outdated devices")
	fmt.Fprintln(w, "  3) show inactive devices")
	fmt.Fprintln(w, "  4) schedule updates for outdated devices")
	fmt.Fprintln(w, "  5) export devices to CSV")
	fmt.Fprintln(w, "  6) list saved searches")
	fmt.Fprintln(w, "  7) change search")
	fmt.Fprintln(w, "  8) update credentials")
	fmt.Fprintln(w, "  q) quit")
	fmt.Fprint(w, "> ")
}

func renderDevices(w io.Writer, header string, devices []inventory.DeviceRecord) {
	fmt.Fprintln(w, titleStyle.Render(header))
	if len(devices) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  (none)"))
		return
	}
	for _, d := range devices {
		checkIn := "never"
		if d.LastCheckIn != nil {
			checkIn = d.LastCheckIn.Format(checkInDisplay)
		}
		fmt.Fprintf(w, "  %-6d %-20s %-14s os %-9s last seen %s\n",
			d.ID, d.Name, d.SerialNumber, d.OSVersion, checkIn)
	}
}

func renderClassification(w io.Writer, c inventory.Classification, latest string) {
	fmt.Fprintf(w, "%s %s\n", titleStyle.Render("fleet against"), latest)
	fmt.Fprintf(w, "  %s %d current, %s %d outdated, %s %d inactive (%d total)\n",
		okStyle.Render("●"), len(c.Current),
		warnStyle.Render("●"), len(c.Outdated),
		dimStyle.Render("●"), len(c.Inactive),
		c.Total())
}

func renderOutcome(w io.Writer, outcome dispatch.Outcome) {
	fmt.Fprintln(w, titleStyle.Render("dispatch summary"))
	fmt.Fprintf(w, "  %s  %s  total %d\n",
		okStyle.Render(fmt.Sprintf("succeeded %d", outcome.Succeeded)),
		badStyle.Render(fmt.Sprintf("failed %d", outcome.Failed)),
		outcome.Total)
	for _, r := range outcome.Results {
		if r.Status == dispatch.StatusSucceeded {
			continue
		}
		fmt.Fprintf(w, "  %s device %d after %d attempt(s): %v\n",
			badStyle.Render("✗"), r.DeviceID, r.Attempts, r.Err)
	}
}

func renderSearches(w io.Writer, refs []jamf.SearchRef) {
	fmt.Fprintln(w, titleStyle.Render("saved searches"))
	if len(refs) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  (none)"))
		return
	}
	for _, ref := range refs {
		fmt.Fprintf(w, "  %-6d %s\n", ref.ID, ref.Name)
	}
}

func renderError(w io.Writer, msg string, err error) {
	fmt.Fprintln(w, badStyle.Render(strings.TrimSpace(msg+": "+err.Error())))
}
