// Package booking holds the clinic domain: pets, the service catalog,
// commune pricing, availability slots, appointments, reviews and FAQs.
//
// Every operation runs inside one store transaction, so multi-record rules
// (a slot and its appointment change together) hold without extra locking.
package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/vetbook/internal/store"
	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("booking: not found")
	ErrInvalid   = errors.New("booking: invalid input")
	ErrConflict  = errors.New("booking: conflict")
	ErrForbidden = errors.New("booking: forbidden")
)

const (
	petsCollection         = "pets"
	servicesCollection     = "services"
	communesCollection     = "communes"
	slotsCollection        = "slots"
	appointmentsCollection = "appointments"
	reviewsCollection      = "reviews"
	faqsCollection         = "faqs"

	serviceNameIndex = "services.name"
	communeNameIndex = "communes.name"
	slotIndex        = "slots.vet_start"

	DefaultMaxScheduleDays = 92
	DefaultVetID           = "clinic"
)

// Actor is the caller an operation runs on behalf of.
type Actor struct {
	UserID string
	Name   string
	Admin  bool
}

// Options tune clinic-wide rules.
type Options struct {
	// Location is the clinic timezone; schedule dates and times are read in it.
	Location *time.Location
	// LeadTime hides slots starting sooner than now+LeadTime from customers.
	LeadTime        time.Duration
	MaxScheduleDays int
	Now             func() time.Time
}

// Clinic is the booking domain entrypoint.
type Clinic struct {
	store *store.Store

	loc             *time.Location
	leadTime        time.Duration
	maxScheduleDays int
	now             func() time.Time
	newID           func() string
}

func NewClinic(st *store.Store, opts Options) *Clinic {
	c := &Clinic{
		store:           st,
		loc:             opts.Location,
		leadTime:        opts.LeadTime,
		maxScheduleDays: opts.MaxScheduleDays,
		now:             opts.Now,
		newID:           uuid.NewString,
	}
	if c.loc == nil {
		c.loc = time.UTC
	}
	if c.leadTime < 0 {
		c.leadTime = 0
	}
	if c.maxScheduleDays <= 0 {
		c.maxScheduleDays = DefaultMaxScheduleDays
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Location returns the clinic timezone.
func (c *Clinic) Location() *time.Location {
	return c.loc
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, kind, id)
}

func translateMiss(err error, kind, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound(kind, id)
	}
	return err
}

// get wraps store.Get, translating store misses into ErrNotFound for kind.
func get[T any](tx *store.Tx, collection, kind, id string, out *T) error {
	return translateMiss(store.Get(tx, collection, id, out), kind, id)
}
