// Package menu is the interactive shell: a pure input-to-command
// mapping plus a thin I/O loop over the inventory and dispatch services.
package menu

import "strings"

// Command is one user-selectable action.
type Command int

const (
	CommandShowAll Command = iota
	CommandShowOutdated
	CommandShowInactive
	CommandScheduleUpdates
	CommandExportCSV
	CommandListSearches
	CommandChangeSearch
	CommandUpdateCredentials
	CommandQuit
)

func (c Command) String() string {
	switch c {
	case CommandShowAll:
		return "show all devices"
	case CommandShowOutdated:
		return "show outdated devices"
	case CommandShowInactive:
		return "show inactive devices"
	case CommandScheduleUpdates:
		return "schedule updates"
	case CommandExportCSV:
		return "export csv"
	case CommandListSearches:
		return "list searches"
	case CommandChangeSearch:
		return "change search"
	case CommandUpdateCredentials:
		return "update credentials"
	case CommandQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// ParseCommand maps raw menu input to a command. The mapping is pure so
// it can be tested apart from the I/O loop; unrecognized input returns
// ok == false and the caller re-prompts.
func ParseCommand(input string) (Command, bool) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "1":
		return CommandShowAll, true
	case "2":
		return CommandShowOutdated, true
	case "3":
		return CommandShowInactive, true
	case "4":
		return CommandScheduleUpdates, true
	case "5":
		return CommandExportCSV, true
	case "6":
		return CommandListSearches, true
	case "7":
		return CommandChangeSearch, true
	case "8":
		return CommandUpdateCredentials, true
	case "q", "quit", "exit":
		return CommandQuit, true
	default:
		return 0, false
	}
}
