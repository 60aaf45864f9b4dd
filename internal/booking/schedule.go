package booking

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/vetbook/internal/store"
)

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotBooked    SlotStatus = "booked"
	SlotBlocked   SlotStatus = "blocked"
)

const (
	clockLayout    = "15:04"
	minSlotMinutes = 5
	maxSlotMinutes = 240
)

// Slot is one bookable time window of a vet.
type Slot struct {
	ID            string     `json:"id"`
	VetID         string     `json:"vet_id"`
	Start         time.Time  `json:"start"`
	End           time.Time  `json:"end"`
	Status        SlotStatus `json:"status"`
	AppointmentID string     `json:"appointment_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func slotKey(vetID string, start time.Time) string {
	return vetID + "|" + start.UTC().Format(time.RFC3339)
}

// GenerateRequest describes a mass availability generation.
// Dates are YYYY-MM-DD and times HH:MM, both in the clinic timezone.
type GenerateRequest struct {
	VetID       string   `json:"vet_id"`
	From        string   `json:"from"`
	To          string   `json:"to"`
	Weekdays    []string `json:"weekdays"`
	DayStart    string   `json:"day_start"`
	DayEnd      string   `json:"day_end"`
	SlotMinutes int      `json:"slot_minutes"`
}

type GenerateResult struct {
	Created         int `json:"created"`
	SkippedExisting int `json:"skipped_existing"`
	SkippedPast     int `json:"skipped_past"`
	Days            int `json:"days"`
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekday accepts english names, three-letter abbreviations and 0-6
// (Sunday = 0).
func ParseWeekday(raw string) (time.Weekday, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if d, ok := weekdayNames[v]; ok {
		return d, nil
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 6 {
		return time.Weekday(n), nil
	}
	return 0, invalidf("unknown weekday %q", raw)
}

func parseWeekdays(raw []string) (map[time.Weekday]bool, error) {
	out := make(map[time.Weekday]bool, 7)
	if len(raw) == 0 {
		for d := time.Monday; d <= time.Friday; d++ {
			out[d] = true
		}
		return out, nil
	}
	for _, r := range raw {
		d, err := ParseWeekday(r)
		if err != nil {
			return nil, err
		}
		out[d] = true
	}
	return out, nil
}

func parseClock(raw, field string) (int, error) {
	t, err := time.Parse(clockLayout, strings.TrimSpace(raw))
	if err != nil {
		return 0, invalidf("%s must be HH:MM", field)
	}
	return t.Hour()*60 + t.Minute(), nil
}

type generatePlan struct {
	vetID    string
	from, to time.Time
	days     map[time.Weekday]bool
	startMin int
	endMin   int
	step     int
}

func (c *Clinic) planGeneration(req GenerateRequest) (generatePlan, error) {
	p := generatePlan{vetID: strings.TrimSpace(req.VetID), step: req.SlotMinutes}
	if p.vetID == "" {
		p.vetID = DefaultVetID
	}
	var err error
	if p.from, err = time.ParseInLocation(dateLayout, strings.TrimSpace(req.From), c.loc); err != nil {
		return p, invalidf("from must be YYYY-MM-DD")
	}
	if p.to, err = time.ParseInLocation(dateLayout, strings.TrimSpace(req.To), c.loc); err != nil {
		return p, invalidf("to must be YYYY-MM-DD")
	}
	if p.to.Before(p.from) {
		return p, invalidf("to is before from")
	}
	if p.from.AddDate(0, 0, c.maxScheduleDays-1).Before(p.to) {
		return p, invalidf("range spans more than %d days", c.maxScheduleDays)
	}
	if p.days, err = parseWeekdays(req.Weekdays); err != nil {
		return p, err
	}
	if p.startMin, err = parseClock(req.DayStart, "day_start"); err != nil {
		return p, err
	}
	if p.endMin, err = parseClock(req.DayEnd, "day_end"); err != nil {
		return p, err
	}
	if p.startMin >= p.endMin {
		return p, invalidf("day_start must be before day_end")
	}
	if p.step < minSlotMinutes || p.step > maxSlotMinutes {
		return p, invalidf("slot_minutes must be between %d and %d", minSlotMinutes, maxSlotMinutes)
	}
	if p.endMin-p.startMin < p.step {
		return p, invalidf("working day shorter than one slot")
	}
	return p, nil
}

// GenerateMassSchedule creates available slots for every selected weekday in
// [From, To]. Slots in the past or already present for the vet are skipped, so
// repeating a request creates nothing new.
func (c *Clinic) GenerateMassSchedule(req GenerateRequest) (GenerateResult, error) {
	plan, err := c.planGeneration(req)
	if err != nil {
		return GenerateResult{}, err
	}
	now := c.now()
	created := now.UTC()

	var res GenerateResult
	err = c.store.Update(func(tx *store.Tx) error {
		res = GenerateResult{}
		for day := plan.from; !day.After(plan.to); day = day.AddDate(0, 0, 1) {
			if !plan.days[day.Weekday()] {
				continue
			}
			res.Days++
			y, m, d := day.Date()
			for minute := plan.startMin; minute+plan.step <= plan.endMin; minute += plan.step {
				start := time.Date(y, m, d, minute/60, minute%60, 0, 0, c.loc)
				if start.Before(now) {
					res.SkippedPast++
					continue
				}
				key := slotKey(plan.vetID, start)
				if _, err := store.LookupIndex(tx, slotIndex, key); err == nil {
					res.SkippedExisting++
					continue
				}
				s := Slot{
					ID:        c.newID(),
					VetID:     plan.vetID,
					Start:     start.UTC(),
					End:       start.Add(time.Duration(plan.step) * time.Minute).UTC(),
					Status:    SlotAvailable,
					CreatedAt: created,
				}
				if err := store.PutIndex(tx, slotIndex, key, s.ID); err != nil {
					return err
				}
				if err := store.Put(tx, slotsCollection, s.ID, s); err != nil {
					return err
				}
				res.Created++
			}
		}
		return nil
	})
	if err != nil {
		return GenerateResult{}, err
	}
	return res, nil
}

// SlotFilter narrows slot listings. Zero values do not filter.
type SlotFilter struct {
	From   time.Time
	To     time.Time
	VetID  string
	Status SlotStatus
}

func (f SlotFilter) match(s Slot) bool {
	if !f.From.IsZero() && s.Start.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !s.Start.Before(f.To) {
		return false
	}
	if f.VetID != "" && s.VetID != f.VetID {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	return true
}

func sortSlots(slots []Slot) {
	sort.Slice(slots, func(i, j int) bool {
		if !slots[i].Start.Equal(slots[j].Start) {
			return slots[i].Start.Before(slots[j].Start)
		}
		return slots[i].VetID < slots[j].VetID
	})
}

// bookableFrom is the earliest start a customer may still book.
func (c *Clinic) bookableFrom() time.Time {
	return c.now().Add(c.leadTime)
}

func (c *Clinic) slotBookable(s Slot) bool {
	return s.Status == SlotAvailable && !s.Start.Before(c.bookableFrom())
}

// AvailableSlots is the customer view: available slots past the lead time,
// ordered by start.
func (c *Clinic) AvailableSlots(f SlotFilter) ([]Slot, error) {
	f.Status = SlotAvailable
	if earliest := c.bookableFrom(); f.From.IsZero() || f.From.Before(earliest) {
		f.From = earliest
	}
	return c.ListSlots(f)
}

// ListSlots is the admin view over every slot.
func (c *Clinic) ListSlots(f SlotFilter) ([]Slot, error) {
	var out []Slot
	err := c.store.View(func(tx *store.Tx) error {
		var err error
		out, err = store.Filter(tx, slotsCollection, f.match)
		return err
	})
	if err != nil {
		return nil, err
	}
	sortSlots(out)
	return out, nil
}

func (c *Clinic) setSlotStatus(id string, from, to SlotStatus) (Slot, error) {
	var s Slot
	err := c.store.Update(func(tx *store.Tx) error {
		if err := get(tx, slotsCollection, "slot", id, &s); err != nil {
			return err
		}
		if s.Status == to {
			return nil
		}
		if s.Status != from {
			return conflictf("slot is %s", s.Status)
		}
		s.Status = to
		return store.Put(tx, slotsCollection, s.ID, s)
	})
	return s, err
}

// BlockSlot takes an available slot off the customer view.
func (c *Clinic) BlockSlot(id string) (Slot, error) {
	return c.setSlotStatus(id, SlotAvailable, SlotBlocked)
}

func (c *Clinic) UnblockSlot(id string) (Slot, error) {
	return c.setSlotStatus(id, SlotBlocked, SlotAvailable)
}

// DeleteSlot removes a slot that carries no booking.
func (c *Clinic) DeleteSlot(id string) error {
	return c.store.Update(func(tx *store.Tx) error {
		var s Slot
		if err := get(tx, slotsCollection, "slot", id, &s); err != nil {
			return err
		}
		if s.Status == SlotBooked {
			return conflictf("slot is booked by appointment %s", s.AppointmentID)
		}
		if err := store.DeleteIndex(tx, slotIndex, slotKey(s.VetID, s.Start)); err != nil {
			return fmt.Errorf("drop slot index: %w", err)
		}
		return store.Delete(tx, slotsCollection, s.ID)
	})
}
