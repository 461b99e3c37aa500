package app

import (
	"context"
	"os"
	"strings"
	"time"

	"journal_backend/internal/auth"
	"journal_backend/internal/config"
	"journal_backend/internal/graph"
	"journal_backend/internal/journal"
	"journal_backend/internal/notifications"
	"journal_backend/internal/retry"
	"journal_backend/internal/sheets"
	"journal_backend/internal/telemetry"
	"journal_backend/internal/workbook"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupEnvironment loads .env file and configures zerolog output and log level.
func SetupEnvironment() {
	// Load .env file if it exists
	err := godotenv.Load()

	production := os.Getenv("ENV") == "production"
	if production {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = log.Output(os.Stderr)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	levelStr := os.Getenv("LOGLEVEL")
	level, known := LogLevel(levelStr, production)
	zerolog.SetGlobalLevel(level)
	if !known {
		log.Warn().Msgf("Unknown LOGLEVEL '%s', defaulting to info.", levelStr)
	}

	// wait until now to report on the .env file so we have the chance to set up logging first
	if err == nil {
		log.Debug().Msg("Loaded environment variables from .env file.")
	} else {
		log.Debug().Msg("No .env file found or error loading .env file; proceeding with existing environment variables.")
	}
}

// LogLevel maps a LOGLEVEL value onto a zerolog level. An empty value means
// warn in production and info elsewhere; known is false for unrecognized
// values, which fall back to info.
func LogLevel(value string, production bool) (level zerolog.Level, known bool) {
	switch strings.ToLower(value) {
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "fatal":
		return zerolog.FatalLevel, true
	case "panic":
		return zerolog.PanicLevel, true
	case "disabled":
		return zerolog.Disabled, true
	case "":
		if production {
			return zerolog.WarnLevel, true
		}
		return zerolog.InfoLevel, true
	default:
		return zerolog.InfoLevel, false
	}
}

// InitializeBackend builds the workbook backend selected by WORKBOOK_BACKEND
// and the journal options that describe it. A backend that cannot be built
// is replaced by one that fails every call, so the server still starts.
func InitializeBackend(ctx context.Context, cfg config.AppConfig, collector telemetry.Collector) (workbook.Backend, journal.Options) {
	log.Debug().Str("backend", cfg.Workbook.Backend).Msg("Initializing workbook backend")
	opts := journal.Options{Worksheet: cfg.Workbook.Worksheet}

	switch cfg.Workbook.Backend {
	case config.BackendSheets:
		opts.Identity = cfg.Sheets.SpreadsheetID
		opts.IdentitySetting = "SPREADSHEET_ID"
		client, err := sheets.NewClient(ctx, sheets.Config{
			CredentialsFile: cfg.Sheets.CredentialsFile,
			SpreadsheetID:   cfg.Sheets.SpreadsheetID,
			Worksheet:       cfg.Workbook.Worksheet,
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to create sheets client")
			return workbook.Unavailable(config.BackendSheets, err), opts
		}
		log.Info().Str("spreadsheet_id", cfg.Sheets.SpreadsheetID).Msg("Using Google Sheets backend")
		return client, opts

	default:
		tokens := auth.NewProvider(auth.Config{
			TenantID:     cfg.Graph.TenantID,
			ClientID:     cfg.Graph.ClientID,
			ClientSecret: cfg.Graph.ClientSecret,
			TokenURL:     cfg.Graph.TokenURL(),
			Scope:        cfg.Graph.Scope,
			Margin:       cfg.Graph.TokenMargin,
		}, auth.WithCollector(collector))

		client := graph.NewClient(graph.Config{
			BaseURL:   cfg.Graph.BaseURL,
			UserID:    cfg.Graph.UserID,
			Worksheet: cfg.Workbook.Worksheet,
			FilePath:  cfg.Graph.FilePath,
			SiteHost:  cfg.Graph.SiteHost,
			SitePath:  cfg.Graph.SitePath,
			FileIDTTL: cfg.Graph.FileIDTTL,
			Resolve:   cfg.Resilience.Resolve,
		}, tokens)

		opts.Identity = client.Identity()
		opts.IdentitySetting = "USER_ID"
		if cfg.Graph.UsesSite() {
			opts.IdentitySetting = "SHAREPOINT_SITE_HOST"
		}
		log.Info().
			Str("file", cfg.Graph.FilePath).
			Bool("sharepoint", cfg.Graph.UsesSite()).
			Msg("Using Microsoft Graph backend")
		return client, opts
	}
}

// InitializeNotificationClient creates and returns the notification client
func InitializeNotificationClient(cfg config.NotifyConfig) *notifications.Client {
	log.Debug().
		Bool("enabled", cfg.Enabled).
		Str("base_url", cfg.BaseURL).
		Str("topic", cfg.Topic).
		Msg("Initializing notification client")

	client := notifications.NewClient(notifications.Config{
		BaseURL:  cfg.BaseURL,
		Topic:    cfg.Topic,
		Priority: cfg.Priority,
		Enabled:  cfg.Enabled,
		Retry: retry.Config{
			MaxRetries: max(cfg.MaxRetries, 0),
			BaseDelay:  cfg.BaseDelay,
			MaxDelay:   cfg.MaxDelay,
			Timeout:    10 * time.Second,
		},
	})

	if client.Enabled() {
		log.Info().Str("topic", cfg.Topic).Msg("Notifications enabled")
	} else {
		log.Debug().Msg("Notifications disabled")
	}

	return client
}

// NewJournal wires the configured backend, accessor and notifier into a
// journal service.
func NewJournal(ctx context.Context, cfg config.AppConfig, collector telemetry.Collector) *journal.Service {
	backend, opts := InitializeBackend(ctx, cfg, collector)
	opts.Notifier = InitializeNotificationClient(cfg.Notify)

	accessor := workbook.NewAccessor(backend, workbook.Options{
		Read:      cfg.Resilience.Read,
		Write:     cfg.Resilience.Write,
		Collector: collector,
	})
	return journal.NewService(accessor, opts)
}
