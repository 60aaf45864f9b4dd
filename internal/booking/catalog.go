package booking

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/danmuck/vetbook/internal/store"
)

// Service is one bookable clinic service. Prices are whole CLP.
type Service struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	Price           int64     `json:"price"`
	DurationMinutes int       `json:"duration_minutes"`
	Active          bool      `json:"active"`
	HomeVisit       bool      `json:"home_visit"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type ServiceInput struct {
	Name            string `json:"name" yaml:"name"`
	Description     string `json:"description" yaml:"description"`
	Price           int64  `json:"price" yaml:"price"`
	DurationMinutes int    `json:"duration_minutes" yaml:"duration_minutes"`
	Active          *bool  `json:"active" yaml:"active"`
	HomeVisit       bool   `json:"home_visit" yaml:"home_visit"`
}

// Commune is a delivery area for home visits with its flat surcharge.
type Commune struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Surcharge int64     `json:"surcharge"`
	Active    bool      `json:"active"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CommuneInput struct {
	Name      string `json:"name" yaml:"name"`
	Surcharge int64  `json:"surcharge" yaml:"surcharge"`
	Active    *bool  `json:"active" yaml:"active"`
}

func nameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// bindName moves the unique-name index entry of id from oldName to newName.
func bindName(tx *store.Tx, index, kind, oldName, newName, id string) error {
	if err := store.PutIndex(tx, index, nameKey(newName), id); err != nil {
		if errors.Is(err, store.ErrIndexTaken) {
			return conflictf("%s named %q already exists", kind, newName)
		}
		return err
	}
	if oldName != "" && nameKey(oldName) != nameKey(newName) {
		return store.DeleteIndex(tx, index, nameKey(oldName))
	}
	return nil
}

func validateServiceInput(in ServiceInput) (string, error) {
	name := strings.Join(strings.Fields(in.Name), " ")
	switch {
	case name == "":
		return "", invalidf("service name is required")
	case len([]rune(name)) > 80:
		return "", invalidf("service name longer than 80 characters")
	case in.Price <= 0:
		return "", invalidf("service price must be positive")
	case in.DurationMinutes <= 0 || in.DurationMinutes > 480:
		return "", invalidf("service duration must be between 1 and 480 minutes")
	}
	return name, nil
}

func (c *Clinic) CreateService(in ServiceInput) (Service, error) {
	var s Service
	err := c.store.Update(func(tx *store.Tx) error {
		var err error
		s, err = c.createServiceTx(tx, in)
		return err
	})
	if err != nil {
		return Service{}, err
	}
	return s, nil
}

func (c *Clinic) createServiceTx(tx *store.Tx, in ServiceInput) (Service, error) {
	name, err := validateServiceInput(in)
	if err != nil {
		return Service{}, err
	}
	s := Service{
		ID:              c.newID(),
		Name:            name,
		Description:     strings.TrimSpace(in.Description),
		Price:           in.Price,
		DurationMinutes: in.DurationMinutes,
		Active:          boolOr(in.Active, true),
		HomeVisit:       in.HomeVisit,
		UpdatedAt:       c.now().UTC(),
	}
	if err := bindName(tx, serviceNameIndex, "service", "", s.Name, s.ID); err != nil {
		return Service{}, err
	}
	return s, store.Put(tx, servicesCollection, s.ID, s)
}

// UpdateService replaces the editable fields of a service. A nil Active keeps
// the current flag.
func (c *Clinic) UpdateService(id string, in ServiceInput) (Service, error) {
	name, err := validateServiceInput(in)
	if err != nil {
		return Service{}, err
	}
	var s Service
	err = c.store.Update(func(tx *store.Tx) error {
		if err := get(tx, servicesCollection, "service", id, &s); err != nil {
			return err
		}
		if err := bindName(tx, serviceNameIndex, "service", s.Name, name, s.ID); err != nil {
			return err
		}
		s.Name = name
		s.Description = strings.TrimSpace(in.Description)
		s.Price = in.Price
		s.DurationMinutes = in.DurationMinutes
		s.Active = boolOr(in.Active, s.Active)
		s.HomeVisit = in.HomeVisit
		s.UpdatedAt = c.now().UTC()
		return store.Put(tx, servicesCollection, s.ID, s)
	})
	if err != nil {
		return Service{}, err
	}
	return s, nil
}

func (c *Clinic) Service(id string) (Service, error) {
	var s Service
	err := c.store.View(func(tx *store.Tx) error {
		return get(tx, servicesCollection, "service", id, &s)
	})
	return s, err
}

// ListServices returns services ordered by name; inactive ones only when asked.
func (c *Clinic) ListServices(includeInactive bool) ([]Service, error) {
	var out []Service
	err := c.store.View(func(tx *store.Tx) error {
		var err error
		out, err = store.Filter(tx, servicesCollection, func(s Service) bool {
			return includeInactive || s.Active
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return nameKey(out[i].Name) < nameKey(out[j].Name) })
	return out, nil
}

func validateCommuneInput(in CommuneInput) (string, error) {
	name := strings.Join(strings.Fields(in.Name), " ")
	switch {
	case name == "":
		return "", invalidf("commune name is required")
	case len([]rune(name)) > 80:
		return "", invalidf("commune name longer than 80 characters")
	case in.Surcharge < 0:
		return "", invalidf("commune surcharge cannot be negative")
	}
	return name, nil
}

func (c *Clinic) CreateCommune(in CommuneInput) (Commune, error) {
	var cm Commune
	err := c.store.Update(func(tx *store.Tx) error {
		var err error
		cm, err = c.createCommuneTx(tx, in)
		return err
	})
	if err != nil {
		return Commune{}, err
	}
	return cm, nil
}

func (c *Clinic) createCommuneTx(tx *store.Tx, in CommuneInput) (Commune, error) {
	name, err := validateCommuneInput(in)
	if err != nil {
		return Commune{}, err
	}
	cm := Commune{
		ID:        c.newID(),
		Name:      name,
		Surcharge: in.Surcharge,
		Active:    boolOr(in.Active, true),
		UpdatedAt: c.now().UTC(),
	}
	if err := bindName(tx, communeNameIndex, "commune", "", cm.Name, cm.ID); err != nil {
		return Commune{}, err
	}
	return cm, store.Put(tx, communesCollection, cm.ID, cm)
}

func (c *Clinic) UpdateCommune(id string, in CommuneInput) (Commune, error) {
	name, err := validateCommuneInput(in)
	if err != nil {
		return Commune{}, err
	}
	var cm Commune
	err = c.store.Update(func(tx *store.Tx) error {
		if err := get(tx, communesCollection, "commune", id, &cm); err != nil {
			return err
		}
		if err := bindName(tx, communeNameIndex, "commune", cm.Name, name, cm.ID); err != nil {
			return err
		}
		cm.Name = name
		cm.Surcharge = in.Surcharge
		cm.Active = boolOr(in.Active, cm.Active)
		cm.UpdatedAt = c.now().UTC()
		return store.Put(tx, communesCollection, cm.ID, cm)
	})
	if err != nil {
		return Commune{}, err
	}
	return cm, nil
}

func (c *Clinic) ListCommunes(includeInactive bool) ([]Commune, error) {
	var out []Commune
	err := c.store.View(func(tx *store.Tx) error {
		var err error
		out, err = store.Filter(tx, communesCollection, func(cm Commune) bool {
			return includeInactive || cm.Active
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return nameKey(out[i].Name) < nameKey(out[j].Name) })
	return out, nil
}

// CatalogEmpty reports whether the catalog collections hold no records yet.
func (c *Clinic) CatalogEmpty() (bool, error) {
	var empty bool
	err := c.store.View(func(tx *store.Tx) error {
		var err error
		empty, err = catalogEmptyTx(tx)
		return err
	})
	return empty, err
}

func catalogEmptyTx(tx *store.Tx) (bool, error) {
	for _, coll := range []string{servicesCollection, communesCollection, faqsCollection} {
		n, err := store.Count(tx, coll)
		if err != nil {
			return false, err
		}
		if n > 0 {
			return false, nil
		}
	}
	return true, nil
}

// SeedCounts is what SeedCatalog wrote. Skipped means the catalog already had
// records and nothing was written.
type SeedCounts struct {
	Skipped  bool
	Services int
	Communes int
	FAQs     int
}

// SeedCatalog writes the given records into an empty catalog in a single
// transaction. Any invalid record rolls the whole seed back.
func (c *Clinic) SeedCatalog(services []ServiceInput, communes []CommuneInput, faqs []FAQInput) (SeedCounts, error) {
	var res SeedCounts
	err := c.store.Update(func(tx *store.Tx) error {
		res = SeedCounts{}
		empty, err := catalogEmptyTx(tx)
		if err != nil {
			return err
		}
		if !empty {
			res.Skipped = true
			return nil
		}
		for i, in := range services {
			if _, err := c.createServiceTx(tx, in); err != nil {
				return fmt.Errorf("service[%d] %q: %w", i, in.Name, err)
			}
			res.Services++
		}
		for i, in := range communes {
			if _, err := c.createCommuneTx(tx, in); err != nil {
				return fmt.Errorf("commune[%d] %q: %w", i, in.Name, err)
			}
			res.Communes++
		}
		for i, in := range faqs {
			if _, err := c.createFAQTx(tx, in); err != nil {
				return fmt.Errorf("faq[%d]: %w", i, err)
			}
			res.FAQs++
		}
		return nil
	})
	if err != nil {
		return SeedCounts{}, err
	}
	return res, nil
}
