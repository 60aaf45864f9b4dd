package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Pallinder/go-randomdata"
	"github.com/danmuck/vetbook/internal/auth"
	"github.com/danmuck/vetbook/internal/booking"
	logs "github.com/danmuck/vetbook/internal/logging"
	"github.com/danmuck/vetbook/internal/store"
	"github.com/danmuck/vetbook/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSecret     = "0123456789abcdef0123456789abcdef"
	testAdminToken = "automation-token"
	adminEmail     = "admin@vetbook.test"
	adminPassword  = "admin-password"
)

type harness struct {
	engine  *gin.Engine
	clinic  *booking.Clinic
	service booking.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	testlog.Start(t)
	gin.SetMode(gin.TestMode)

	st, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	issuer, err := auth.NewTokenIssuer(testSecret, time.Hour, nil)
	require.NoError(t, err)
	accounts := auth.NewAccounts(st, issuer, auth.WithHashCost(bcrypt.MinCost))
	_, _, err = accounts.EnsureAdmin(adminEmail, adminPassword, "Admin")
	require.NoError(t, err)

	clinic := booking.NewClinic(st, booking.Options{Location: time.UTC})
	svc, err := clinic.CreateService(booking.ServiceInput{Name: "Consulta general", Price: 20000, DurationMinutes: 30})
	require.NoError(t, err)

	srv := New("vetbook-test", Deps{
		Clinic:      clinic,
		Accounts:    accounts,
		Validator:   auth.Chain{auth.StaticToken{Token: testAdminToken}, accounts},
		CorsOrigins: []string{"http://localhost:3000/"},
	})
	return &harness{engine: srv.HTTPRouter(), clinic: clinic, service: svc}
}

func (h *harness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	logs.Debugf("%s %s -> %d %s", method, path, rec.Code, rec.Body.String())
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (h *harness) registerCustomer(t *testing.T) auth.Session {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/auth/register", "", auth.Registration{
		Email:    fmt.Sprintf("%s.%d@vetbook.test", strings.ToLower(randomdata.SillyName()), time.Now().UnixNano()),
		Password: "customer-pass",
		Name:     randomdata.FullName(randomdata.RandomGender),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	session := decode[auth.Session](t, rec)
	require.NotEmpty(t, session.Token)
	require.Equal(t, auth.RoleCustomer, session.Identity.Role)
	return session
}

func (h *harness) adminToken(t *testing.T) string {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/auth/login", "", loginRequest{Email: adminEmail, Password: adminPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[auth.Session](t, rec).Token
}

func TestHealthAndReady(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "vetbook-test", body["service"])

	rec = h.do(t, http.MethodGet, "/ready", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "vetbook_")
}

func TestAuthGates(t *testing.T) {
	h := newHarness(t)
	customer := h.registerCustomer(t)

	require.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodGet, "/me", "", nil).Code)
	require.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodGet, "/me", "garbage", nil).Code)
	require.Equal(t, http.StatusForbidden, h.do(t, http.MethodGet, "/admin/slots", customer.Token, nil).Code)

	rec := h.do(t, http.MethodGet, "/me", customer.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "password_hash")

	rec = h.do(t, http.MethodGet, "/admin/users", testAdminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	users := decode[struct {
		Users []userView `json:"users"`
	}](t, rec)
	require.Len(t, users.Users, 2)

	rec = h.do(t, http.MethodPost, "/auth/login", "", loginRequest{Email: adminEmail, Password: "wrong-password"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "unauthorized", decode[map[string]string](t, rec)["error"])
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	h := newHarness(t)
	reg := auth.Registration{Email: "dup@vetbook.test", Password: "customer-pass", Name: "Dup"}
	require.Equal(t, http.StatusCreated, h.do(t, http.MethodPost, "/auth/register", "", reg).Code)
	require.Equal(t, http.StatusConflict, h.do(t, http.MethodPost, "/auth/register", "", reg).Code)

	reg.Email = "not-an-email"
	require.Equal(t, http.StatusBadRequest, h.do(t, http.MethodPost, "/auth/register", "", reg).Code)
}

func TestBookingFlow(t *testing.T) {
	h := newHarness(t)
	customer := h.registerCustomer(t)
	admin := h.adminToken(t)

	day := time.Now().UTC().AddDate(0, 0, 7).Format(time.DateOnly)
	rec := h.do(t, http.MethodPost, "/admin/schedule/generate", admin, booking.GenerateRequest{
		From:        day,
		To:          day,
		Weekdays:    []string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"},
		DayStart:    "09:00",
		DayEnd:      "10:00",
		SlotMinutes: 30,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, 2, decode[booking.GenerateResult](t, rec).Created)

	rec = h.do(t, http.MethodPost, "/pets", customer.Token, booking.PetInput{Name: "Luna", Species: "cat"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	pet := decode[booking.Pet](t, rec)

	slotsPath := fmt.Sprintf("/slots?from=%s&to=%s", day, day)
	type slotList struct {
		Slots []booking.Slot `json:"slots"`
	}
	slots := decode[slotList](t, h.do(t, http.MethodGet, slotsPath, "", nil)).Slots
	require.Len(t, slots, 2)

	req := booking.BookingRequest{PetID: pet.ID, SlotID: slots[0].ID, ServiceIDs: []string{h.service.ID}}
	rec = h.do(t, http.MethodPost, "/appointments", customer.Token, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	appt := decode[booking.Appointment](t, rec)
	require.Equal(t, booking.StatusBooked, appt.Status)
	require.Equal(t, int64(20000), appt.Total)

	require.Equal(t, http.StatusConflict, h.do(t, http.MethodPost, "/appointments", customer.Token, req).Code)
	require.Len(t, decode[slotList](t, h.do(t, http.MethodGet, slotsPath, "", nil)).Slots, 1)

	other := h.registerCustomer(t)
	require.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/appointments/"+appt.ID, other.Token, nil).Code)
	require.Equal(t, http.StatusNotFound, h.do(t, http.MethodPost, "/appointments/"+appt.ID+"/cancel", other.Token, nil).Code)

	rec = h.do(t, http.MethodPost, "/admin/appointments/"+appt.ID+"/status", admin, statusRequest{Status: "confirmed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, booking.StatusConfirmed, decode[booking.Appointment](t, rec).Status)

	rec = h.do(t, http.MethodPost, "/admin/appointments/"+appt.ID+"/status", admin, statusRequest{Status: "booked"})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(t, http.MethodPost, "/appointments/"+appt.ID+"/cancel", customer.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, booking.StatusCancelled, decode[booking.Appointment](t, rec).Status)
	require.Len(t, decode[slotList](t, h.do(t, http.MethodGet, slotsPath, "", nil)).Slots, 2)

	rec = h.do(t, http.MethodGet, "/admin/appointments?status=cancelled", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), appt.ID)
	require.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/admin/appointments?status=lost", admin, nil).Code)
}

func TestSlotQueryValidation(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/slots?from=03-03-2026", "", nil).Code)
	require.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/slots?from=2026-03-05&to=2026-03-01", "", nil).Code)
	require.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/admin/slots?status=gone", testAdminToken, nil).Code)
}

func TestReviewModerationFlow(t *testing.T) {
	h := newHarness(t)
	customer := h.registerCustomer(t)

	rec := h.do(t, http.MethodPost, "/reviews", customer.Token, booking.ReviewInput{Rating: 5, Text: "Excelente atención"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	review := decode[booking.Review](t, rec)

	public := decode[booking.ReviewSummary](t, h.do(t, http.MethodGet, "/reviews", "", nil))
	require.Zero(t, public.Count)

	rec = h.do(t, http.MethodPost, "/admin/reviews/"+review.ID+"/approve", testAdminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	public = decode[booking.ReviewSummary](t, h.do(t, http.MethodGet, "/reviews", "", nil))
	require.Equal(t, 1, public.Count)
	require.InDelta(t, 5.0, public.Average, 0.001)
	require.Empty(t, public.Reviews[0].UserID)

	require.Equal(t, http.StatusNoContent, h.do(t, http.MethodDelete, "/admin/reviews/"+review.ID, testAdminToken, nil).Code)
	require.Equal(t, http.StatusNotFound, h.do(t, http.MethodDelete, "/admin/reviews/"+review.ID, testAdminToken, nil).Code)
}

func TestAdminFAQAndCatalog(t *testing.T) {
	h := newHarness(t)
	published := false
	rec := h.do(t, http.MethodPost, "/admin/faqs", testAdminToken, booking.FAQInput{
		Question:  "¿Atienden a domicilio?",
		Answer:    "Sí, en las comunas listadas.",
		Published: &published,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	faq := decode[booking.FAQ](t, rec)

	require.NotContains(t, h.do(t, http.MethodGet, "/faqs", "", nil).Body.String(), faq.ID)
	require.Contains(t, h.do(t, http.MethodGet, "/admin/faqs", testAdminToken, nil).Body.String(), faq.ID)

	published = true
	rec = h.do(t, http.MethodPut, "/admin/faqs/"+faq.ID, testAdminToken, booking.FAQInput{
		Question: faq.Question, Answer: faq.Answer, Published: &published,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, h.do(t, http.MethodGet, "/faqs", "", nil).Body.String(), faq.ID)

	rec = h.do(t, http.MethodPost, "/admin/communes", testAdminToken, booking.CommuneInput{Name: "Providencia", Surcharge: 5000})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, http.StatusConflict, h.do(t, http.MethodPost, "/admin/communes", testAdminToken, booking.CommuneInput{Name: "providencia", Surcharge: 1}).Code)

	rec = h.do(t, http.MethodPost, "/admin/services", testAdminToken, booking.ServiceInput{Name: "", Price: 1, DurationMinutes: 30})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuoteEndpoint(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/quote", "", booking.QuoteRequest{ServiceIDs: []string{h.service.ID}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, int64(20000), decode[booking.Quote](t, rec).Total)

	rec = h.do(t, http.MethodPost, "/quote", "", booking.QuoteRequest{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/quote", "", booking.QuoteRequest{ServiceIDs: []string{"no-such-service"}})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestStatusFor(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		err  error
		want int
	}{
		{auth.ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("wrap: %w", booking.ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("pet x: %w", booking.ErrNotFound), http.StatusNotFound},
		{booking.ErrInvalid, http.StatusBadRequest},
		{auth.ErrEmailTaken, http.StatusConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
	logs.Logf("server/errors: %d mappings checked", len(cases))
}

func TestScheduleMetricsIgnoreVetID(t *testing.T) {
	h := newHarness(t)
	day := time.Now().UTC().AddDate(0, 0, 10).Format(time.DateOnly)
	vet := "dr-" + strings.ToLower(randomdata.SillyName())
	rec := h.do(t, http.MethodPost, "/admin/schedule/generate", testAdminToken, booking.GenerateRequest{
		From:        day,
		To:          day,
		Weekdays:    []string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"},
		DayStart:    "09:00",
		DayEnd:      "09:30",
		SlotMinutes: 30,
		VetID:       vet,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := h.do(t, http.MethodGet, "/metrics", "", nil).Body.String()
	require.Contains(t, body, `vetbook_schedule_slots_total{result="created"}`)
	require.NotContains(t, body, vet)
}
