package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	BackendGraph  = "graph"
	BackendSheets = "sheets"
)

type WorkbookConfig struct {
	Backend   string `env:"WORKBOOK_BACKEND" envDefault:"graph"`
	Worksheet string `env:"EXCEL_WORKSHEET_NAME"`
}

// GraphConfig carries the Microsoft Graph settings. Nothing here is required
// at load time; absent values fail the operations that need them.
type GraphConfig struct {
	TenantID     string `env:"TENANT_ID"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	UserID       string `env:"USER_ID"`

	FilePath string `env:"EXCEL_FILE_PATH" envDefault:"formula.xlsx"`
	SiteHost string `env:"SHAREPOINT_SITE_HOST"`
	SitePath string `env:"SHAREPOINT_SITE_PATH"`

	BaseURL      string        `env:"GRAPH_BASE_URL" envDefault:"https://graph.microsoft.com/v1.0"`
	AuthorityURL string        `env:"GRAPH_AUTHORITY_URL" envDefault:"https://login.microsoftonline.com"`
	Scope        string        `env:"GRAPH_SCOPE" envDefault:"https://graph.microsoft.com/.default"`
	TokenMargin  time.Duration `env:"GRAPH_TOKEN_MARGIN" envDefault:"5m"`
	FileIDTTL    time.Duration `env:"GRAPH_FILE_ID_TTL" envDefault:"0s"`
}

// UsesSite reports whether the workbook is resolved through a SharePoint site.
func (c GraphConfig) UsesSite() bool {
	return c.SiteHost != "" && c.SitePath != ""
}

// TokenURL is the tenant's v2 token endpoint.
func (c GraphConfig) TokenURL() string {
	return fmt.Sprintf("%s/%s/oauth2/v2.0/token", c.AuthorityURL, c.TenantID)
}

type SheetsConfig struct {
	CredentialsFile string `env:"GOOGLE_APPLICATION_CREDENTIALS" envDefault:"credentials.json"`
	SpreadsheetID   string `env:"SPREADSHEET_ID"`
}

type ServerConfig struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	AllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"https://frontend-production-73ab.up.railway.app,http://localhost:5000,http://127.0.0.1:5000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func (c ServerConfig) Addr() string {
	return ":" + c.Port
}

type NotifyConfig struct {
	Enabled    bool          `env:"NTFY_ENABLED" envDefault:"false"`
	BaseURL    string        `env:"NTFY_URL" envDefault:"https://ntfy.sh"`
	Topic      string        `env:"NTFY_TOPIC" envDefault:"trade-journal"`
	Priority   string        `env:"NTFY_PRIORITY" envDefault:"high"`
	MaxRetries int           `env:"NTFY_MAX_RETRIES" envDefault:"3"`
	BaseDelay  time.Duration `env:"NTFY_RETRY_BASE_DELAY" envDefault:"1s"`
	MaxDelay   time.Duration `env:"NTFY_RETRY_MAX_DELAY" envDefault:"30s"`
}

type AppConfig struct {
	Workbook   WorkbookConfig
	Graph      GraphConfig
	Sheets     SheetsConfig
	Server     ServerConfig
	Resilience ResilienceConfig
	Notify     NotifyConfig
}

func LoadWorkbook() (WorkbookConfig, error) {
	var cfg WorkbookConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	switch cfg.Backend {
	case BackendGraph, BackendSheets:
		return cfg, nil
	default:
		return cfg, fmt.Errorf("unknown WORKBOOK_BACKEND %q", cfg.Backend)
	}
}

func LoadGraph() (GraphConfig, error) {
	var cfg GraphConfig
	err := env.Parse(&cfg)
	return cfg, err
}

func LoadSheets() (SheetsConfig, error) {
	var cfg SheetsConfig
	err := env.Parse(&cfg)
	return cfg, err
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}

func LoadNotify() (NotifyConfig, error) {
	var cfg NotifyConfig
	err := env.Parse(&cfg)
	return cfg, err
}

func LoadApp() (AppConfig, error) {
	workbookCfg, err := LoadWorkbook()
	if err != nil {
		return AppConfig{}, err
	}
	graphCfg, err := LoadGraph()
	if err != nil {
		return AppConfig{}, err
	}
	sheetsCfg, err := LoadSheets()
	if err != nil {
		return AppConfig{}, err
	}
	serverCfg, err := LoadServer()
	if err != nil {
		return AppConfig{}, err
	}
	resilienceCfg, err := LoadResilience()
	if err != nil {
		return AppConfig{}, err
	}
	notifyCfg, err := LoadNotify()
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Workbook:   workbookCfg,
		Graph:      graphCfg,
		Sheets:     sheetsCfg,
		Server:     serverCfg,
		Resilience: resilienceCfg,
		Notify:     notifyCfg,
	}, nil
}
