package observability

import (
	"testing"
	"time"

	logs "github.com/danmuck/vetbook/internal/logging"
	"github.com/danmuck/vetbook/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("vetbook-a", "GET", "/health", 200, 12*time.Millisecond)
	RecordAppointmentTransition("confirmed")

	before := testutil.ToFloat64(bookingOutcomes.WithLabelValues("booked", "true"))
	RecordBooking("booked", true)
	if got := testutil.ToFloat64(bookingOutcomes.WithLabelValues("booked", "true")); got != before+1 {
		t.Fatalf("expected booking counter +1, before=%v after=%v", before, got)
	}

	RecordGeneratedSlots(10, 2, 1)
	if got := testutil.ToFloat64(generatedSlots.WithLabelValues("existing")); got < 2 {
		t.Fatalf("expected existing slots counted, got %v", got)
	}

	logs.Logf("observability/metrics: registration idempotent and recording paths executed")
}

func TestGeneratedSlotSeriesStayBounded(t *testing.T) {
	testlog.Start(t)
	for i := 0; i < 20; i++ {
		RecordGeneratedSlots(i, 1, 0)
	}
	if n := testutil.CollectAndCount(generatedSlots); n != 3 {
		t.Fatalf("expected one series per result, got %d", n)
	}
}
