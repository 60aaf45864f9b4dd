// Package catalog loads the clinic's initial services, communes and FAQs from
// YAML and seeds them into an empty clinic.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/danmuck/vetbook/internal/booking"
	logs "github.com/danmuck/vetbook/internal/logging"
	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

var ErrEmptyFixture = errors.New("catalog: fixture has no entries")

// Fixture is the on-disk catalog shape.
type Fixture struct {
	Services []booking.ServiceInput `yaml:"services"`
	Communes []booking.CommuneInput `yaml:"communes"`
	FAQs     []booking.FAQInput     `yaml:"faqs"`
}

func (f Fixture) Len() int {
	return len(f.Services) + len(f.Communes) + len(f.FAQs)
}

// Target is the subset of the clinic the seeder writes through. SeedCatalog
// must write everything or nothing.
type Target interface {
	SeedCatalog(services []booking.ServiceInput, communes []booking.CommuneInput, faqs []booking.FAQInput) (booking.SeedCounts, error)
}

type Result = booking.SeedCounts

// Default returns the built-in catalog.
func Default() (Fixture, error) {
	return Parse(defaultCatalog)
}

// Load reads a fixture file. An empty path yields the built-in catalog.
func Load(path string) (Fixture, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("catalog load failed (%s): %w", path, err)
	}
	fx, err := Parse(data)
	if err != nil {
		return Fixture{}, fmt.Errorf("catalog parse failed (%s): %w", path, err)
	}
	return fx, nil
}

// Parse decodes a fixture, rejecting unknown keys.
func Parse(data []byte) (Fixture, error) {
	var fx Fixture
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil {
		return Fixture{}, err
	}
	if fx.Len() == 0 {
		return Fixture{}, ErrEmptyFixture
	}
	return fx, nil
}

// Seed writes fx into target when the target catalog is still empty. A failed
// seed leaves the catalog empty so the next boot retries it.
func Seed(target Target, fx Fixture) (Result, error) {
	res, err := target.SeedCatalog(fx.Services, fx.Communes, fx.FAQs)
	if err != nil {
		return Result{}, err
	}
	if res.Skipped {
		logs.Debugf("catalog.Seed skipped: catalog already populated")
		return res, nil
	}
	logs.Infof("catalog.Seed services=%d communes=%d faqs=%d", res.Services, res.Communes, res.FAQs)
	return res, nil
}
