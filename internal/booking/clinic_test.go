package booking

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/Pallinder/go-randomdata"
	"github.com/danmuck/vetbook/internal/store"
	"github.com/danmuck/vetbook/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

// fixed "now": Monday 2026-03-02 08:00 in Santiago.
var santiago = func() *time.Location {
	loc, err := time.LoadLocation("America/Santiago")
	if err != nil {
		return time.FixedZone("CLT", -3*3600)
	}
	return loc
}()

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

type fixture struct {
	clinic *Clinic
	clock  *testClock
	seq    int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	testlog.Start(t)
	st, err := store.Open(filepath.Join(t.TempDir(), "clinic.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	f := &fixture{clock: &testClock{now: time.Date(2026, 3, 2, 8, 0, 0, 0, santiago)}}
	f.clinic = NewClinic(st, Options{
		Location: santiago,
		LeadTime: 2 * time.Hour,
		Now:      f.clock.Now,
	})
	f.clinic.newID = func() string {
		f.seq++
		return fmt.Sprintf("id-%04d", f.seq)
	}
	return f
}

func (f *fixture) pet(t *testing.T, owner string) Pet {
	t.Helper()
	p, err := f.clinic.RegisterPet(owner, PetInput{
		Name:    randomdata.SillyName(),
		Species: "dog",
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) service(t *testing.T, name string, price int64, homeVisit bool) Service {
	t.Helper()
	s, err := f.clinic.CreateService(ServiceInput{Name: name, Price: price, DurationMinutes: 30, HomeVisit: homeVisit})
	require.NoError(t, err)
	return s
}

func (f *fixture) commune(t *testing.T, name string, surcharge int64) Commune {
	t.Helper()
	cm, err := f.clinic.CreateCommune(CommuneInput{Name: name, Surcharge: surcharge})
	require.NoError(t, err)
	return cm
}

// slots generates one day of 30 minute slots on Tuesday 2026-03-03 09:00-12:00.
func (f *fixture) slots(t *testing.T) []Slot {
	t.Helper()
	_, err := f.clinic.GenerateMassSchedule(GenerateRequest{
		From: "2026-03-03", To: "2026-03-03", DayStart: "09:00", DayEnd: "12:00", SlotMinutes: 30,
	})
	require.NoError(t, err)
	out, err := f.clinic.ListSlots(SlotFilter{})
	require.NoError(t, err)
	require.Len(t, out, 6)
	return out
}

func TestNewClinicDefaults(t *testing.T) {
	c := NewClinic(nil, Options{LeadTime: -time.Hour})
	require.Equal(t, time.UTC, c.Location())
	require.Equal(t, time.Duration(0), c.leadTime)
	require.Equal(t, DefaultMaxScheduleDays, c.maxScheduleDays)
	require.NotNil(t, c.now)
}
