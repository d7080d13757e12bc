package menu

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/rs/zerolog"

	"github.com/patchpilot/patchpilot/internal/config"
	"github.com/patchpilot/patchpilot/internal/dispatch"
	"github.com/patchpilot/patchpilot/internal/export"
	"github.com/patchpilot/patchpilot/internal/inventory"
	"github.com/patchpilot/patchpilot/internal/jamf"
	"github.com/patchpilot/patchpilot/internal/schedule"
)

// Services are the backend-bound components the app drives. Rebuilt by
// the owner when credentials change.
type Services struct {
	Client     *jamf.Client
	Fetcher    *inventory.Fetcher
	Dispatcher *dispatch.Dispatcher
}

// AppConfig holds configuration for the interactive app.
type AppConfig struct {
	// Services are the initial backend-bound components (required).
	Services Services

	// Credentials is the loaded session configuration (required).
	Credentials *config.Credentials

	// CredentialsPath is where credential updates are persisted.
	CredentialsPath string

	// Reconnect rebuilds the services after a credentials update
	// (required if the update command is used).
	Reconnect func(*config.Credentials) (Services, error)

	// In and Out default to stdin/stdout.
	In  io.Reader
	Out io.Writer

	// Logger for app operations.
	Logger zerolog.Logger
}

// App is the interactive menu loop. All state lives here: the current
// search id, the reference OS version, and the live services.
type App struct {
	services  Services
	creds     *config.Credentials
	credsPath string
	reconnect func(*config.Credentials) (Services, error)
	in        *bufio.Scanner
	out       io.Writer
	logger    zerolog.Logger

	searchID string
	latest   string

	// schedulePrompt collects the schedule time and the final go/no-go.
	// A field so the decision handling is testable without a TTY.
	schedulePrompt func(count int) (time.Time, bool, error)
}

// NewApp creates the interactive app.
func NewApp(cfg AppConfig) *App {
	in := cfg.In
	if in == nil {
		in = os.Stdin
	}
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	a := &App{
		services:  cfg.Services,
		creds:     cfg.Credentials,
		credsPath: cfg.CredentialsPath,
		reconnect: cfg.Reconnect,
		in:        bufio.NewScanner(in),
		out:       out,
		logger:    cfg.Logger,
		searchID:  cfg.Credentials.DefaultSearchID,
	}
	a.schedulePrompt = a.promptSchedule
	return a
}

// Close ends the session by invalidating the current bearer token.
func (a *App) Close(ctx context.Context) {
	a.services.Client.InvalidateToken(ctx)
}

// Run drives the menu until the user quits or input ends.
func (a *App) Run(ctx context.Context) error {
	for {
		renderMenu(a.out, a.searchID)
		if !a.in.Scan() {
			return a.in.Err()
		}

		command, ok := ParseCommand(a.in.Text())
		if !ok {
			fmt.Fprintln(a.out, warnStyle.Render("unrecognized choice"))
			continue
		}

		if command == CommandQuit {
			return nil
		}
		a.dispatchCommand(ctx, command)
	}
}

func (a *App) dispatchCommand(ctx context.Context, command Command) {
	switch command {
	case CommandShowAll, CommandShowOutdated, CommandShowInactive:
		a.showBucket(ctx, command)
	case CommandScheduleUpdates:
		a.scheduleUpdates(ctx)
	case CommandExportCSV:
		a.exportCSV(ctx)
	case CommandListSearches:
		a.listSearches(ctx)
	case CommandChangeSearch:
		a.changeSearch()
	case CommandUpdateCredentials:
		a.updateCredentials()
	}
}

// fetch retrieves the current search with a single retry: a rejected
// token gets refreshed first, a transport failure is retried as-is.
// Schema and rate-limit failures surface immediately.
func (a *App) fetch(ctx context.Context) (*inventory.Search, error) {
	search, err := a.services.Fetcher.Fetch(ctx, a.searchID)
	if err == nil {
		return search, nil
	}

	switch {
	case inventory.IsFetchKind(err, inventory.Unauthorized):
		a.logger.Info().Msg("token rejected, refreshing and retrying fetch")
		if acquireErr := a.services.Client.AcquireToken(ctx); acquireErr != nil {
			return nil, fmt.Errorf("refreshing token: %w", acquireErr)
		}
	case inventory.IsFetchKind(err, inventory.ConnectionFailed):
		a.logger.Info().Msg("transport failure, retrying fetch once")
	default:
		return nil, err
	}
	return a.services.Fetcher.Fetch(ctx, a.searchID)
}

func (a *App) classify(ctx context.Context) (inventory.Classification, bool) {
	search, err := a.fetch(ctx)
	if err != nil {
		renderError(a.out, "inventory fetch failed", err)
		return inventory.Classification{}, false
	}

	if err := a.promptLatestVersion(); err != nil {
		renderError(a.out, "prompt aborted", err)
		return inventory.Classification{}, false
	}

	c := inventory.Classify(search.Devices, a.latest, 0, time.Now())
	renderClassification(a.out, c, a.latest)
	return c, true
}

func (a *App) showBucket(ctx context.Context, command Command) {
	c, ok := a.classify(ctx)
	if !ok {
		return
	}
	switch command {
	case CommandShowOutdated:
		renderDevices(a.out, "outdated devices", c.Outdated)
	case CommandShowInactive:
		renderDevices(a.out, "inactive devices", c.Inactive)
	default:
		renderDevices(a.out, "current devices", c.Current)
		renderDevices(a.out, "outdated devices", c.Outdated)
		renderDevices(a.out, "inactive devices", c.Inactive)
	}
}

func (a *App) scheduleUpdates(ctx context.Context) {
	c, ok := a.classify(ctx)
	if !ok {
		return
	}
	if len(c.Outdated) == 0 {
		fmt.Fprintln(a.out, okStyle.Render("no outdated devices, nothing to schedule"))
		return
	}

	when, confirmed, err := a.schedulePrompt(len(c.Outdated))
	if err != nil {
		renderError(a.out, "schedule aborted", err)
		return
	}
	if !confirmed {
		fmt.Fprintln(a.out, dimStyle.Render("cancelled, no plans submitted"))
		return
	}

	outcome := a.services.Dispatcher.Dispatch(ctx, c.OutdatedIDs(), when)
	renderOutcome(a.out, outcome)
}

func (a *App) promptSchedule(count int) (time.Time, bool, error) {
	var when time.Time
	var input string
	var confirmed bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title(fmt.Sprintf("Schedule time for %d device(s) (YYYY-MM-DD HH:MM)", count)).
			Value(&input).
			Validate(func(s string) error {
				parsed, err := schedule.Parse(s, time.Now())
				if err != nil {
					return err
				}
				when = parsed
				return nil
			}),
		huh.NewConfirm().
			Title("Submit update plans?").
			Affirmative("Schedule").
			Negative("Cancel").
			Value(&confirmed),
	))
	if err := form.Run(); err != nil {
		return time.Time{}, false, err
	}
	return when, confirmed, nil
}

func (a *App) exportCSV(ctx context.Context) {
	search, err := a.fetch(ctx)
	if err != nil {
		renderError(a.out, "inventory fetch failed", err)
		return
	}

	path := "devices.csv"
	if err := huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Export path").Value(&path),
	)).Run(); err != nil {
		renderError(a.out, "export aborted", err)
		return
	}

	f, err := os.Create(path)
	if err != nil {
		renderError(a.out, "creating export file", err)
		return
	}
	defer f.Close()

	if err := export.WriteCSV(f, search.Devices); err != nil {
		renderError(a.out, "writing export file", err)
		return
	}
	fmt.Fprintln(a.out, okStyle.Render(fmt.Sprintf("exported %d device(s) to %s", len(search.Devices), path)))
}

func (a *App) listSearches(ctx context.Context) {
	refs, err := a.services.Client.ListSearches(ctx)
	if err != nil {
		renderError(a.out, "listing searches failed", err)
		return
	}
	renderSearches(a.out, refs)
}

func (a *App) changeSearch() {
	input := a.searchID
	if err := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Search id").
			Value(&input).
			Validate(func(s string) error {
				if _, err := strconv.Atoi(strings.TrimSpace(s)); err != nil {
					return fmt.Errorf("search id must be a number")
				}
				return nil
			}),
	)).Run(); err != nil {
		renderError(a.out, "prompt aborted", err)
		return
	}
	a.searchID = strings.TrimSpace(input)
	fmt.Fprintln(a.out, okStyle.Render("active search is now "+a.searchID))
}

func (a *App) promptLatestVersion() error {
	if a.latest != "" {
		return nil
	}
	return huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Latest OS version to compare against").
			Value(&a.latest).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("version is required")
				}
				return nil
			}),
	)).Run()
}

func (a *App) updateCredentials() {
	updated := *a.creds
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Backend URL").Value(&updated.BackendURL),
		huh.NewInput().Title("Client id").Value(&updated.ClientID),
		huh.NewInput().Title("Client secret").EchoMode(huh.EchoModePassword).Value(&updated.ClientSecret),
		huh.NewInput().Title("Default search id").Value(&updated.DefaultSearchID),
	))
	if err := form.Run(); err != nil {
		renderError(a.out, "prompt aborted", err)
		return
	}

	if err := config.Save(a.credsPath, &updated); err != nil {
		renderError(a.out, "saving credentials", err)
		return
	}

	services, err := a.reconnect(&updated)
	if err != nil {
		renderError(a.out, "reconnecting with new credentials", err)
		return
	}

	// The old session token dies with the old client.
	a.services.Client.InvalidateToken(context.Background())

	a.creds = &updated
	a.services = services
	a.searchID = updated.DefaultSearchID
	fmt.Fprintln(a.out, okStyle.Render("credentials updated"))
}
