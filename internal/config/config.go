package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/vetbook/internal/app"
	"github.com/danmuck/vetbook/internal/auth"
)

// ServerConfig is the TOML shape of a vetbookd config file. The server
// template is rendered from it and LoadServiceConfig decodes into it.
type ServerConfig struct {
	Name        string   `toml:"name"`
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`

	DataPath    string `toml:"data_path"`
	CatalogPath string `toml:"catalog_path" comment:"empty uses the built-in catalog"`
	SeedCatalog bool   `toml:"seed_catalog" comment:"seeds only while the catalog is empty"`

	TokenSecret string `toml:"token_secret" comment:"at least 32 bytes"`
	TokenTTL    string `toml:"token_ttl"`
	AdminToken  string `toml:"admin_token"`

	BootstrapAdminEmail    string `toml:"bootstrap_admin_email"`
	BootstrapAdminPassword string `toml:"bootstrap_admin_password"`
	BootstrapAdminName     string `toml:"bootstrap_admin_name"`

	Timezone        string `toml:"timezone"`
	BookingLeadTime string `toml:"booking_lead_time"`
	MaxScheduleDays int    `toml:"max_schedule_days"`
	ShutdownTimeout string `toml:"shutdown_timeout"`

	TLSCertFile string `toml:"tls_cert_file" comment:"both set serves HTTPS"`
	TLSKeyFile  string `toml:"tls_key_file"`
}

// LoadServiceConfig overlays the keys present in path onto the runtime
// defaults. An empty path yields the defaults. Unknown keys are rejected.
func LoadServiceConfig(path string) (app.ServiceConfig, error) {
	cfg := app.DefaultServiceConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw ServerConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return app.ServiceConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return app.ServiceConfig{}, fmt.Errorf("config parse failed (%s): unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("name") {
		if v := strings.TrimSpace(raw.Name); v != "" {
			cfg.Name = v
		}
	}
	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}
	if meta.IsDefined("data_path") {
		cfg.DataPath = strings.TrimSpace(raw.DataPath)
	}
	if meta.IsDefined("catalog_path") {
		cfg.CatalogPath = strings.TrimSpace(raw.CatalogPath)
	}
	if meta.IsDefined("seed_catalog") {
		cfg.SeedCatalog = raw.SeedCatalog
	}
	if meta.IsDefined("token_secret") {
		cfg.TokenSecret = raw.TokenSecret
	}
	if meta.IsDefined("token_ttl") {
		d, err := parseDuration("token_ttl", raw.TokenTTL)
		if err != nil {
			return app.ServiceConfig{}, err
		}
		cfg.TokenTTL = d
	}
	if meta.IsDefined("admin_token") {
		cfg.AdminToken = raw.AdminToken
	}
	if meta.IsDefined("bootstrap_admin_email") {
		cfg.Admin.Email = strings.TrimSpace(raw.BootstrapAdminEmail)
	}
	if meta.IsDefined("bootstrap_admin_password") {
		cfg.Admin.Password = raw.BootstrapAdminPassword
	}
	if meta.IsDefined("bootstrap_admin_name") {
		cfg.Admin.Name = strings.TrimSpace(raw.BootstrapAdminName)
	}
	if meta.IsDefined("timezone") {
		loc, err := time.LoadLocation(strings.TrimSpace(raw.Timezone))
		if err != nil {
			return app.ServiceConfig{}, fmt.Errorf("timezone invalid: %w", err)
		}
		cfg.Location = loc
	}
	if meta.IsDefined("booking_lead_time") {
		d, err := parseDuration("booking_lead_time", raw.BookingLeadTime)
		if err != nil {
			return app.ServiceConfig{}, err
		}
		cfg.LeadTime = d
	}
	if meta.IsDefined("max_schedule_days") {
		if raw.MaxScheduleDays <= 0 {
			return app.ServiceConfig{}, fmt.Errorf("max_schedule_days must be positive")
		}
		cfg.MaxScheduleDays = raw.MaxScheduleDays
	}
	if meta.IsDefined("shutdown_timeout") {
		d, err := parseDuration("shutdown_timeout", raw.ShutdownTimeout)
		if err != nil {
			return app.ServiceConfig{}, err
		}
		cfg.ShutdownTimeout = d
	}
	if meta.IsDefined("tls_cert_file") {
		cfg.TLSCertFile = strings.TrimSpace(raw.TLSCertFile)
	}
	if meta.IsDefined("tls_key_file") {
		cfg.TLSKeyFile = strings.TrimSpace(raw.TLSKeyFile)
	}

	if (cfg.Admin.Email == "") != (cfg.Admin.Password == "") {
		return app.ServiceConfig{}, fmt.Errorf("bootstrap_admin_email and bootstrap_admin_password must be set together")
	}
	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		return app.ServiceConfig{}, fmt.Errorf("tls_cert_file and tls_key_file must be set together")
	}
	return cfg, nil
}

// ValidateServe reports what Bootstrap would refuse before the data file is
// touched. Offline commands do not need it.
func ValidateServe(cfg app.ServiceConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("server config missing name")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("server config missing addr")
	}
	if strings.TrimSpace(cfg.DataPath) == "" {
		return fmt.Errorf("server config missing data_path")
	}
	if _, err := auth.NewTokenIssuer(cfg.TokenSecret, cfg.TokenTTL, nil); err != nil {
		return fmt.Errorf("token_secret: %w", err)
	}
	return nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s invalid: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s cannot be negative", key)
	}
	return d, nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
