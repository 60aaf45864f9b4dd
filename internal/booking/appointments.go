package booking

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/danmuck/vetbook/internal/store"
)

type AppointmentStatus string

const (
	StatusBooked    AppointmentStatus = "booked"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Active reports whether the appointment still holds its slot.
func (s AppointmentStatus) Active() bool {
	return s == StatusBooked || s == StatusConfirmed
}

func ParseAppointmentStatus(raw string) (AppointmentStatus, error) {
	switch s := AppointmentStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusBooked, StatusConfirmed, StatusCompleted, StatusCancelled:
		return s, nil
	default:
		return "", invalidf("unknown appointment status %q", raw)
	}
}

// allowed admin transitions; cancellation also goes through Cancel.
var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusBooked:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

func canTransition(from, to AppointmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Appointment struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	PetID       string            `json:"pet_id"`
	PetName     string            `json:"pet_name"`
	SlotID      string            `json:"slot_id"`
	VetID       string            `json:"vet_id"`
	Start       time.Time         `json:"start"`
	End         time.Time         `json:"end"`
	ServiceIDs  []string          `json:"service_ids"`
	Items       []LineItem        `json:"items"`
	HomeVisit   bool              `json:"home_visit"`
	CommuneID   string            `json:"commune_id,omitempty"`
	Address     string            `json:"address,omitempty"`
	Subtotal    int64             `json:"subtotal"`
	Surcharge   int64             `json:"surcharge"`
	Total       int64             `json:"total"`
	Status      AppointmentStatus `json:"status"`
	Notes       string            `json:"notes,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	CancelledAt *time.Time        `json:"cancelled_at,omitempty"`
}

type BookingRequest struct {
	PetID      string   `json:"pet_id"`
	SlotID     string   `json:"slot_id"`
	ServiceIDs []string `json:"service_ids"`
	HomeVisit  bool     `json:"home_visit"`
	CommuneID  string   `json:"commune_id"`
	Address    string   `json:"address"`
	Notes      string   `json:"notes"`
}

// Book reserves a slot for one of the owner's pets. The slot flips to booked
// in the same transaction that stores the appointment.
func (c *Clinic) Book(ownerID string, req BookingRequest) (Appointment, error) {
	address := strings.TrimSpace(req.Address)
	if req.HomeVisit && address == "" {
		return Appointment{}, invalidf("home visits require an address")
	}
	notes := strings.TrimSpace(req.Notes)
	if len([]rune(notes)) > 500 {
		return Appointment{}, invalidf("notes longer than 500 characters")
	}
	if strings.TrimSpace(req.SlotID) == "" {
		return Appointment{}, invalidf("slot_id is required")
	}

	var appt Appointment
	err := c.store.Update(func(tx *store.Tx) error {
		pet, err := ownedPet(tx, ownerID, strings.TrimSpace(req.PetID))
		if err != nil {
			return err
		}
		var slot Slot
		if err := get(tx, slotsCollection, "slot", strings.TrimSpace(req.SlotID), &slot); err != nil {
			return err
		}
		if slot.Status != SlotAvailable {
			return conflictf("slot is no longer available")
		}
		if !c.slotBookable(slot) {
			return invalidf("slot starts too soon to book online")
		}
		quote, err := quoteTx(tx, QuoteRequest{
			ServiceIDs: req.ServiceIDs,
			CommuneID:  req.CommuneID,
			HomeVisit:  req.HomeVisit,
		})
		if err != nil {
			return err
		}

		now := c.now().UTC()
		appt = Appointment{
			ID:        c.newID(),
			UserID:    ownerID,
			PetID:     pet.ID,
			PetName:   pet.Name,
			SlotID:    slot.ID,
			VetID:     slot.VetID,
			Start:     slot.Start,
			End:       slot.End,
			Items:     quote.Items,
			HomeVisit: quote.HomeVisit,
			CommuneID: quote.CommuneID,
			Subtotal:  quote.Subtotal,
			Surcharge: quote.Surcharge,
			Total:     quote.Total,
			Status:    StatusBooked,
			Notes:     notes,
			CreatedAt: now,
			UpdatedAt: now,
		}
		for _, item := range quote.Items {
			appt.ServiceIDs = append(appt.ServiceIDs, item.ServiceID)
		}
		if appt.HomeVisit {
			appt.Address = address
		}

		slot.Status = SlotBooked
		slot.AppointmentID = appt.ID
		if err := store.Put(tx, slotsCollection, slot.ID, slot); err != nil {
			return err
		}
		return store.Put(tx, appointmentsCollection, appt.ID, appt)
	})
	if err != nil {
		return Appointment{}, err
	}
	return appt, nil
}

// visibleAppointment hides other customers' appointments as not found.
func visibleAppointment(tx *store.Tx, actor Actor, id string) (Appointment, error) {
	var a Appointment
	if err := get(tx, appointmentsCollection, "appointment", id, &a); err != nil {
		return Appointment{}, err
	}
	if !actor.Admin && a.UserID != actor.UserID {
		return Appointment{}, notFound("appointment", id)
	}
	return a, nil
}

func (c *Clinic) Appointment(actor Actor, id string) (Appointment, error) {
	var a Appointment
	err := c.store.View(func(tx *store.Tx) error {
		var err error
		a, err = visibleAppointment(tx, actor, id)
		return err
	})
	return a, err
}

// releaseSlot returns the appointment's slot to the available pool.
func releaseSlot(tx *store.Tx, a Appointment) error {
	var s Slot
	if err := store.Get(tx, slotsCollection, a.SlotID, &s); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if s.AppointmentID != a.ID {
		return nil
	}
	s.Status = SlotAvailable
	s.AppointmentID = ""
	return store.Put(tx, slotsCollection, s.ID, s)
}

// Cancel cancels an active appointment. Customers may only cancel their own,
// and only before it starts.
func (c *Clinic) Cancel(actor Actor, id string) (Appointment, error) {
	var a Appointment
	err := c.store.Update(func(tx *store.Tx) error {
		var err error
		a, err = visibleAppointment(tx, actor, id)
		if err != nil {
			return err
		}
		if !a.Status.Active() {
			return conflictf("appointment is %s", a.Status)
		}
		now := c.now()
		if !actor.Admin && !now.Before(a.Start) {
			return conflictf("appointment already started")
		}
		return c.finish(tx, &a, StatusCancelled, now)
	})
	if err != nil {
		return Appointment{}, err
	}
	return a, nil
}

// SetAppointmentStatus applies an admin status transition.
func (c *Clinic) SetAppointmentStatus(id string, to AppointmentStatus) (Appointment, error) {
	var a Appointment
	err := c.store.Update(func(tx *store.Tx) error {
		if err := get(tx, appointmentsCollection, "appointment", id, &a); err != nil {
			return err
		}
		if !canTransition(a.Status, to) {
			return conflictf("cannot move appointment from %s to %s", a.Status, to)
		}
		return c.finish(tx, &a, to, c.now())
	})
	if err != nil {
		return Appointment{}, err
	}
	return a, nil
}

func (c *Clinic) finish(tx *store.Tx, a *Appointment, to AppointmentStatus, now time.Time) error {
	a.Status = to
	a.UpdatedAt = now.UTC()
	if to == StatusCancelled {
		at := now.UTC()
		a.CancelledAt = &at
		if err := releaseSlot(tx, *a); err != nil {
			return err
		}
	}
	return store.Put(tx, appointmentsCollection, a.ID, *a)
}

// ListAppointments returns the owner's appointments, most recent start first.
func (c *Clinic) ListAppointments(ownerID string) ([]Appointment, error) {
	var out []Appointment
	err := c.store.View(func(tx *store.Tx) error {
		var err error
		out, err = store.Filter(tx, appointmentsCollection, func(a Appointment) bool {
			return a.UserID == ownerID
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.After(out[j].Start) })
	return out, nil
}

// ListAllAppointments is the admin agenda, ordered by start. An empty status
// lists every appointment.
func (c *Clinic) ListAllAppointments(status AppointmentStatus) ([]Appointment, error) {
	var out []Appointment
	err := c.store.View(func(tx *store.Tx) error {
		var err error
		out, err = store.Filter(tx, appointmentsCollection, func(a Appointment) bool {
			return status == "" || a.Status == status
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}
