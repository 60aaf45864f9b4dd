package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/danmuck/vetbook/internal/catalog"
	"github.com/danmuck/vetbook/internal/config"
)

func main() {
	kind := flag.String("kind", "server", "config kind: server|catalog")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to per-kind path)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		path := *input
		if path == "" {
			path = defaultPath(*kind)
		}
		summary, err := validateConfig(*kind, path)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated %s config at %s (%s)", *kind, path, summary)
		return
	}

	target := *output
	if target == "" {
		target = defaultPath(*kind)
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}

// validateConfig runs the loader vetbookd itself uses for the given kind.
func validateConfig(kind, path string) (string, error) {
	switch kind {
	case "server", "vetbookd":
		cfg, err := config.LoadServiceConfig(path)
		if err != nil {
			return "", err
		}
		if err := config.ValidateServe(cfg); err != nil {
			return "", err
		}
		return fmt.Sprintf("addr=%s tz=%s", cfg.Addr, cfg.Location), nil
	case "catalog":
		fx, err := catalog.Load(path)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d entries", fx.Len()), nil
	default:
		return "", fmt.Errorf("unknown kind: %s", kind)
	}
}

func defaultPath(kind string) string {
	switch kind {
	case "server", "vetbookd":
		return "cmd/vetbookd/config.toml"
	case "catalog":
		return "cmd/vetbookd/catalog.yaml"
	default:
		log.Fatalf("unknown kind: %s", kind)
		return ""
	}
}
