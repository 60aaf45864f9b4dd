package booking

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBookReservesSlotAndPricesAppointment(t *testing.T) {
	f := newFixture(t)
	p := f.pet(t, "owner-1")
	consult := f.service(t, "Consulta general", 25000, true)
	vacc := f.service(t, "Vacunación", 18000, true)
	nunoa := f.commune(t, "Ñuñoa", 3000)
	slots := f.slots(t)

	appt, err := f.clinic.Book("owner-1", BookingRequest{
		PetID:      p.ID,
		SlotID:     slots[0].ID,
		ServiceIDs: []string{consult.ID, vacc.ID},
		HomeVisit:  true,
		CommuneID:  nunoa.ID,
		Address:    "Av. Irarrázaval 1234",
	})
	require.NoError(t, err)
	require.Equal(t, StatusBooked, appt.Status)
	require.Equal(t, int64(43000), appt.Subtotal)
	require.Equal(t, int64(3000), appt.Surcharge)
	require.Equal(t, int64(46000), appt.Total)
	require.Equal(t, []string{consult.ID, vacc.ID}, appt.ServiceIDs)
	require.Equal(t, slots[0].Start, appt.Start)
	require.Equal(t, p.Name, appt.PetName)

	booked, err := f.clinic.ListSlots(SlotFilter{Status: SlotBooked})
	require.NoError(t, err)
	require.Len(t, booked, 1)
	require.Equal(t, appt.ID, booked[0].AppointmentID)

	visible, err := f.clinic.AvailableSlots(SlotFilter{})
	require.NoError(t, err)
	require.Len(t, visible, 5)

	// second booking on the same slot loses
	other := f.pet(t, "owner-2")
	_, err = f.clinic.Book("owner-2", BookingRequest{PetID: other.ID, SlotID: slots[0].ID, ServiceIDs: []string{consult.ID}})
	require.ErrorIs(t, err, ErrConflict)

	_, err = f.clinic.BlockSlot(slots[0].ID)
	require.ErrorIs(t, err, ErrConflict)
	require.ErrorIs(t, f.clinic.DeleteSlot(slots[0].ID), ErrConflict)
}

func TestBookRejections(t *testing.T) {
	f := newFixture(t)
	p := f.pet(t, "owner-1")
	consult := f.service(t, "Consulta general", 25000, false)
	slots := f.slots(t)
	_, err := f.clinic.BlockSlot(slots[1].ID)
	require.NoError(t, err)

	tests := []struct {
		name  string
		owner string
		req   BookingRequest
		want  error
	}{
		{name: "foreign pet", owner: "owner-2", req: BookingRequest{PetID: p.ID, SlotID: slots[0].ID, ServiceIDs: []string{consult.ID}}, want: ErrNotFound},
		{name: "missing slot id", owner: "owner-1", req: BookingRequest{PetID: p.ID, ServiceIDs: []string{consult.ID}}, want: ErrInvalid},
		{name: "unknown slot", owner: "owner-1", req: BookingRequest{PetID: p.ID, SlotID: "nope", ServiceIDs: []string{consult.ID}}, want: ErrNotFound},
		{name: "blocked slot", owner: "owner-1", req: BookingRequest{PetID: p.ID, SlotID: slots[1].ID, ServiceIDs: []string{consult.ID}}, want: ErrConflict},
		{name: "no services", owner: "owner-1", req: BookingRequest{PetID: p.ID, SlotID: slots[0].ID}, want: ErrInvalid},
		{name: "unknown service", owner: "owner-1", req: BookingRequest{PetID: p.ID, SlotID: slots[0].ID, ServiceIDs: []string{"nope"}}, want: ErrInvalid},
		{name: "home visit without address", owner: "owner-1", req: BookingRequest{PetID: p.ID, SlotID: slots[0].ID, ServiceIDs: []string{consult.ID}, HomeVisit: true}, want: ErrInvalid},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.clinic.Book(tc.owner, tc.req)
			require.ErrorIs(t, err, tc.want)
		})
	}

	// inside the lead time window
	f.clock.now = time.Date(2026, 3, 3, 7, 30, 0, 0, santiago)
	_, err = f.clinic.Book("owner-1", BookingRequest{PetID: p.ID, SlotID: slots[0].ID, ServiceIDs: []string{consult.ID}})
	require.ErrorIs(t, err, ErrInvalid)

	// failed bookings leave the slot untouched
	all, err := f.clinic.ListSlots(SlotFilter{Status: SlotAvailable})
	require.NoError(t, err)
	require.Len(t, all, 5)
}

func TestCancelReleasesSlot(t *testing.T) {
	f := newFixture(t)
	p := f.pet(t, "owner-1")
	consult := f.service(t, "Consulta general", 25000, false)
	slots := f.slots(t)

	appt, err := f.clinic.Book("owner-1", BookingRequest{PetID: p.ID, SlotID: slots[2].ID, ServiceIDs: []string{consult.ID}})
	require.NoError(t, err)

	_, err = f.clinic.Cancel(Actor{UserID: "owner-2"}, appt.ID)
	require.ErrorIs(t, err, ErrNotFound)

	cancelled, err := f.clinic.Cancel(Actor{UserID: "owner-1"}, appt.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	_, err = f.clinic.Cancel(Actor{UserID: "owner-1"}, appt.ID)
	require.ErrorIs(t, err, ErrConflict)

	free, err := f.clinic.ListSlots(SlotFilter{Status: SlotAvailable})
	require.NoError(t, err)
	require.Len(t, free, 6)

	again, err := f.clinic.Book("owner-1", BookingRequest{PetID: p.ID, SlotID: slots[2].ID, ServiceIDs: []string{consult.ID}})
	require.NoError(t, err)
	require.NotEqual(t, appt.ID, again.ID)
}

func TestCustomerCannotCancelStartedAppointment(t *testing.T) {
	f := newFixture(t)
	p := f.pet(t, "owner-1")
	consult := f.service(t, "Consulta general", 25000, false)
	slots := f.slots(t)

	appt, err := f.clinic.Book("owner-1", BookingRequest{PetID: p.ID, SlotID: slots[0].ID, ServiceIDs: []string{consult.ID}})
	require.NoError(t, err)

	f.clock.now = slots[0].Start.Add(5 * time.Minute)
	_, err = f.clinic.Cancel(Actor{UserID: "owner-1"}, appt.ID)
	require.ErrorIs(t, err, ErrConflict)

	_, err = f.clinic.Cancel(Actor{UserID: "admin", Admin: true}, appt.ID)
	require.NoError(t, err)
}

func TestAdminStatusTransitions(t *testing.T) {
	f := newFixture(t)
	p := f.pet(t, "owner-1")
	consult := f.service(t, "Consulta general", 25000, false)
	slots := f.slots(t)

	appt, err := f.clinic.Book("owner-1", BookingRequest{PetID: p.ID, SlotID: slots[0].ID, ServiceIDs: []string{consult.ID}})
	require.NoError(t, err)

	_, err = f.clinic.SetAppointmentStatus(appt.ID, StatusCompleted)
	require.ErrorIs(t, err, ErrConflict)

	confirmed, err := f.clinic.SetAppointmentStatus(appt.ID, StatusConfirmed)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, confirmed.Status)

	done, err := f.clinic.SetAppointmentStatus(appt.ID, StatusCompleted)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, done.Status)

	_, err = f.clinic.SetAppointmentStatus(appt.ID, StatusCancelled)
	require.ErrorIs(t, err, ErrConflict)

	// completed appointments keep their slot
	booked, err := f.clinic.ListSlots(SlotFilter{Status: SlotBooked})
	require.NoError(t, err)
	require.Len(t, booked, 1)

	_, err = f.clinic.SetAppointmentStatus("missing", StatusConfirmed)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = ParseAppointmentStatus("lost")
	require.ErrorIs(t, err, ErrInvalid)
}

func TestListAppointments(t *testing.T) {
	f := newFixture(t)
	p1 := f.pet(t, "owner-1")
	p2 := f.pet(t, "owner-2")
	consult := f.service(t, "Consulta general", 25000, false)
	slots := f.slots(t)

	a1, err := f.clinic.Book("owner-1", BookingRequest{PetID: p1.ID, SlotID: slots[0].ID, ServiceIDs: []string{consult.ID}})
	require.NoError(t, err)
	a2, err := f.clinic.Book("owner-1", BookingRequest{PetID: p1.ID, SlotID: slots[3].ID, ServiceIDs: []string{consult.ID}})
	require.NoError(t, err)
	_, err = f.clinic.Book("owner-2", BookingRequest{PetID: p2.ID, SlotID: slots[1].ID, ServiceIDs: []string{consult.ID}})
	require.NoError(t, err)
	_, err = f.clinic.SetAppointmentStatus(a1.ID, StatusConfirmed)
	require.NoError(t, err)

	mine, err := f.clinic.ListAppointments("owner-1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	require.Equal(t, a2.ID, mine[0].ID)

	all, err := f.clinic.ListAllAppointments("")
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, a1.ID, all[0].ID)

	confirmed, err := f.clinic.ListAllAppointments(StatusConfirmed)
	require.NoError(t, err)
	require.Len(t, confirmed, 1)

	got, err := f.clinic.Appointment(Actor{UserID: "owner-2"}, a1.ID)
	require.ErrorIs(t, err, ErrNotFound)
	got, err = f.clinic.Appointment(Actor{Admin: true}, a1.ID)
	require.NoError(t, err)
	require.Equal(t, a1.ID, got.ID)
}

func TestConcurrentBookingsOnOneSlot(t *testing.T) {
	f := newFixture(t)
	consult := f.service(t, "Consulta general", 25000, false)
	slots := f.slots(t)

	const n = 8
	pets := make([]Pet, n)
	for i := range pets {
		pets[i] = f.pet(t, fmt.Sprintf("owner-%d", i))
	}

	errs := make([]error, n)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range pets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.clinic.Book(pets[i].OwnerID, BookingRequest{
				PetID:      pets[i].ID,
				SlotID:     slots[0].ID,
				ServiceIDs: []string{consult.ID},
			})
		}(i)
	}
	close(start)
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrConflict):
			lost++
		default:
			t.Fatalf("unexpected booking error: %v", err)
		}
	}
	require.Equal(t, 1, won)
	require.Equal(t, n-1, lost)

	booked, err := f.clinic.ListSlots(SlotFilter{Status: SlotBooked})
	require.NoError(t, err)
	require.Len(t, booked, 1)
	all, err := f.clinic.ListAllAppointments("")
	require.NoError(t, err)
	require.Len(t, all, 1)
}
