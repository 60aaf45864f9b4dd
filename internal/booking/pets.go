package booking

import (
	"sort"
	"strings"
	"time"

	"github.com/danmuck/vetbook/internal/store"
)

type Species string

const (
	SpeciesDog     Species = "dog"
	SpeciesCat     Species = "cat"
	SpeciesBird    Species = "bird"
	SpeciesRabbit  Species = "rabbit"
	SpeciesReptile Species = "reptile"
	SpeciesOther   Species = "other"
)

type Sex string

const (
	SexMale    Sex = "male"
	SexFemale  Sex = "female"
	SexUnknown Sex = "unknown"
)

const (
	dateLayout     = "2006-01-02"
	maxPetNameLen  = 60
	maxPetNotesLen = 500
	maxPetWeightKg = 200
	maxPetBreedLen = 60
)

type Pet struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Species   Species   `json:"species"`
	Breed     string    `json:"breed,omitempty"`
	Sex       Sex       `json:"sex"`
	BirthDate string    `json:"birth_date,omitempty"`
	WeightKg  float64   `json:"weight_kg,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PetInput carries the owner-editable pet fields.
type PetInput struct {
	Name      string  `json:"name"`
	Species   string  `json:"species"`
	Breed     string  `json:"breed"`
	Sex       string  `json:"sex"`
	BirthDate string  `json:"birth_date"`
	WeightKg  float64 `json:"weight_kg"`
	Notes     string  `json:"notes"`
}

func parseSpecies(raw string) (Species, error) {
	switch s := Species(strings.ToLower(strings.TrimSpace(raw))); s {
	case SpeciesDog, SpeciesCat, SpeciesBird, SpeciesRabbit, SpeciesReptile, SpeciesOther:
		return s, nil
	case "":
		return "", invalidf("species is required")
	default:
		return "", invalidf("unknown species %q", raw)
	}
}

func parseSex(raw string) (Sex, error) {
	switch s := Sex(strings.ToLower(strings.TrimSpace(raw))); s {
	case "":
		return SexUnknown, nil
	case SexMale, SexFemale, SexUnknown:
		return s, nil
	default:
		return "", invalidf("unknown sex %q", raw)
	}
}

func (c *Clinic) applyPetInput(p *Pet, in PetInput) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return invalidf("pet name is required")
	}
	if len([]rune(name)) > maxPetNameLen {
		return invalidf("pet name longer than %d characters", maxPetNameLen)
	}
	species, err := parseSpecies(in.Species)
	if err != nil {
		return err
	}
	sex, err := parseSex(in.Sex)
	if err != nil {
		return err
	}
	breed := strings.TrimSpace(in.Breed)
	if len([]rune(breed)) > maxPetBreedLen {
		return invalidf("breed longer than %d characters", maxPetBreedLen)
	}
	birth := strings.TrimSpace(in.BirthDate)
	if birth != "" {
		d, err := time.ParseInLocation(dateLayout, birth, c.loc)
		if err != nil {
			return invalidf("birth_date must be YYYY-MM-DD")
		}
		if d.After(c.now()) {
			return invalidf("birth_date is in the future")
		}
	}
	if in.WeightKg < 0 || in.WeightKg > maxPetWeightKg {
		return invalidf("weight_kg must be between 0 and %d", maxPetWeightKg)
	}
	notes := strings.TrimSpace(in.Notes)
	if len([]rune(notes)) > maxPetNotesLen {
		return invalidf("notes longer than %d characters", maxPetNotesLen)
	}

	p.Name = name
	p.Species = species
	p.Breed = breed
	p.Sex = sex
	p.BirthDate = birth
	p.WeightKg = in.WeightKg
	p.Notes = notes
	return nil
}

// RegisterPet creates a pet owned by ownerID.
func (c *Clinic) RegisterPet(ownerID string, in PetInput) (Pet, error) {
	if strings.TrimSpace(ownerID) == "" {
		return Pet{}, ErrForbidden
	}
	now := c.now().UTC()
	p := Pet{ID: c.newID(), OwnerID: ownerID, CreatedAt: now, UpdatedAt: now}
	if err := c.applyPetInput(&p, in); err != nil {
		return Pet{}, err
	}
	err := c.store.Update(func(tx *store.Tx) error {
		return store.Put(tx, petsCollection, p.ID, p)
	})
	if err != nil {
		return Pet{}, err
	}
	return p, nil
}

// ownedPet loads a pet and hides pets that belong to someone else.
func ownedPet(tx *store.Tx, ownerID, petID string) (Pet, error) {
	var p Pet
	if err := get(tx, petsCollection, "pet", petID, &p); err != nil {
		return Pet{}, err
	}
	if p.OwnerID != ownerID {
		return Pet{}, notFound("pet", petID)
	}
	return p, nil
}

func (c *Clinic) Pet(ownerID, petID string) (Pet, error) {
	var p Pet
	err := c.store.View(func(tx *store.Tx) error {
		var err error
		p, err = ownedPet(tx, ownerID, petID)
		return err
	})
	return p, err
}

// ListPets returns the owner's pets ordered by name.
func (c *Clinic) ListPets(ownerID string) ([]Pet, error) {
	var pets []Pet
	err := c.store.View(func(tx *store.Tx) error {
		var err error
		pets, err = store.Filter(tx, petsCollection, func(p Pet) bool { return p.OwnerID == ownerID })
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(pets, func(i, j int) bool {
		if pets[i].Name != pets[j].Name {
			return strings.ToLower(pets[i].Name) < strings.ToLower(pets[j].Name)
		}
		return pets[i].ID < pets[j].ID
	})
	return pets, nil
}

func (c *Clinic) UpdatePet(ownerID, petID string, in PetInput) (Pet, error) {
	var p Pet
	err := c.store.Update(func(tx *store.Tx) error {
		var err error
		p, err = ownedPet(tx, ownerID, petID)
		if err != nil {
			return err
		}
		if err := c.applyPetInput(&p, in); err != nil {
			return err
		}
		p.UpdatedAt = c.now().UTC()
		return store.Put(tx, petsCollection, p.ID, p)
	})
	if err != nil {
		return Pet{}, err
	}
	return p, nil
}

// DeletePet removes a pet unless it still has an upcoming active appointment.
func (c *Clinic) DeletePet(ownerID, petID string) error {
	return c.store.Update(func(tx *store.Tx) error {
		if _, err := ownedPet(tx, ownerID, petID); err != nil {
			return err
		}
		now := c.now()
		upcoming, err := store.Filter(tx, appointmentsCollection, func(a Appointment) bool {
			return a.PetID == petID && a.Status.Active() && a.Start.After(now)
		})
		if err != nil {
			return err
		}
		if len(upcoming) > 0 {
			return conflictf("pet has %d upcoming appointment(s)", len(upcoming))
		}
		return store.Delete(tx, petsCollection, petID)
	})
}
