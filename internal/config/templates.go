package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "server", "vetbookd":
		data, err := toml.Marshal(exampleServerConfig())
		if err != nil {
			return "", fmt.Errorf("render server template: %w", err)
		}
		return string(data), nil
	case "catalog":
		return catalogTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func exampleServerConfig() ServerConfig {
	return ServerConfig{
		Name:                   "vetbook",
		Addr:                   ":8080",
		CorsOrigins:            []string{"http://localhost:3000"},
		DataPath:               "local/vetbook.db",
		SeedCatalog:            true,
		TokenSecret:            "change-me-to-a-long-random-secret-value",
		TokenTTL:               "24h",
		BootstrapAdminEmail:    "admin@clinic.local",
		BootstrapAdminPassword: "change-me-now",
		BootstrapAdminName:     "Recepción",
		Timezone:               "America/Santiago",
		BookingLeadTime:        "2h",
		MaxScheduleDays:        92,
		ShutdownTimeout:        "10s",
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const catalogTemplate = `services:
  - name: Consulta general
    price: 25000
    duration_minutes: 30
    home_visit: true

communes:
  - name: Providencia
    surcharge: 3000

faqs:
  - question: ¿Cómo reservo una hora?
    answer: Elige servicio, mascota y horario.
`
