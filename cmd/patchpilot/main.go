// Package main provides the entrypoint for the patchpilot CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/patchpilot/patchpilot/internal/cache"
	"github.com/patchpilot/patchpilot/internal/config"
	"github.com/patchpilot/patchpilot/internal/dispatch"
	"github.com/patchpilot/patchpilot/internal/inventory"
	"github.com/patchpilot/patchpilot/internal/jamf"
	"github.com/patchpilot/patchpilot/internal/menu"
	"github.com/patchpilot/patchpilot/internal/resilience"
	"github.com/patchpilot/patchpilot/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "patchpilot"

	var (
		credsPath string
		cacheDir  string
		searchID  string
		logLevel  string
	)
	pflag.StringVar(&credsPath, "config", "", "credentials file (default ~/.patchpilot/credentials)")
	pflag.StringVar(&cacheDir, "cache-dir", "", "search cache directory (default ~/.patchpilot/cache)")
	pflag.StringVar(&searchID, "search-id", "", "override the default saved search id")
	pflag.StringVar(&logLevel, "log-level", "warn", "log level (trace, debug, info, warn, error)")
	pflag.Parse()

	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q\n", logLevel)
		os.Exit(1)
	}

	log := zerolog.New(os.Stderr).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("run_id", uuid.NewString()).
		Logger()

	log.Info().Str("version", Version).Str("build_time", BuildTime).Msg("starting patchpilot")

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Enabled:        os.Getenv("OTEL_ENABLED") == "true",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if credsPath == "" {
		credsPath, err = config.DefaultPath()
		if err != nil {
			log.Fatal().Err(err).Msg("cannot resolve credentials path")
		}
	}

	creds, err := loadOrPromptCredentials(credsPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cannot load credentials:", err)
		os.Exit(1)
	}
	if searchID != "" {
		creds.DefaultSearchID = searchID
	}

	if cacheDir == "" {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			log.Fatal().Err(homeErr).Msg("cannot resolve cache dir")
		}
		cacheDir = home + "/.patchpilot/cache"
	}

	connect := func(creds *config.Credentials) (menu.Services, error) {
		client := jamf.NewClient(jamf.ClientConfig{
			BaseURL:      creds.BackendURL,
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Logger:       log,
		})

		store, err := cache.NewStore(cache.StoreConfig{
			Dir:      cacheDir,
			TTL:      300 * time.Second,
			Validate: inventory.ValidatePayload,
			Logger:   log,
		})
		if err != nil {
			return menu.Services{}, err
		}

		return menu.Services{
			Client: client,
			Fetcher: inventory.NewFetcher(inventory.FetcherConfig{
				Client: client,
				Cache:  store,
				Logger: log,
			}),
			Dispatcher: dispatch.NewDispatcher(dispatch.DispatcherConfig{
				Backend: client,
				Retry:   resilience.DefaultPolicy(),
				Logger:  log,
			}),
		}, nil
	}

	services, err := connect(creds)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cannot initialize:", err)
		os.Exit(1)
	}

	// Bootstrap authentication: one retry, then fatal with the cause.
	if err := services.Client.AcquireToken(ctx); err != nil {
		log.Warn().Err(err).Msg("token acquisition failed, retrying once")
		if err := services.Client.AcquireToken(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "cannot authenticate against", creds.BackendURL+":", err)
			os.Exit(1)
		}
	}

	app := menu.NewApp(menu.AppConfig{
		Services:        services,
		Credentials:     creds,
		CredentialsPath: credsPath,
		Reconnect: func(updated *config.Credentials) (menu.Services, error) {
			next, err := connect(updated)
			if err != nil {
				return menu.Services{}, err
			}
			if err := next.Client.AcquireToken(ctx); err != nil {
				return menu.Services{}, err
			}
			return next, nil
		},
		Logger: log,
	})
	defer app.Close(context.Background())

	if err := app.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "session ended with error:", err)
		os.Exit(1)
	}
}

// loadOrPromptCredentials reads the credentials file, prompting for and
// persisting a fresh set when none exists yet.
func loadOrPromptCredentials(path string) (*config.Credentials, error) {
	creds, err := config.Load(path)
	if err == nil {
		return creds, nil
	}
	if !errors.Is(err, config.ErrNotFound) {
		return nil, err
	}

	fresh := &config.Credentials{}
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Backend URL").
			Placeholder("https://example.jamfcloud.com").
			Value(&fresh.BackendURL).
			Validate(func(s string) error {
				if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
					return fmt.Errorf("must start with http:// or https://")
				}
				return nil
			}),
		huh.NewInput().Title("Client id").Value(&fresh.ClientID).
			Validate(required("client id")),
		huh.NewInput().Title("Client secret").EchoMode(huh.EchoModePassword).Value(&fresh.ClientSecret).
			Validate(required("client secret")),
		huh.NewInput().Title("Default search id").Value(&fresh.DefaultSearchID),
	))
	if err := form.Run(); err != nil {
		return nil, err
	}

	if err := config.Save(path, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

func required(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}
