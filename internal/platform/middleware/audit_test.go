package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/analytics/internal/platform/auth"
)

// mockRecorder collects audit entries for assertions.
type mockRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error
}

func (m *mockRecorder) RecordAccess(entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return m.err
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *mockRecorder) last() AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[len(m.entries)-1]
}

func newAuditContext(target, userID string, roles ...string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("User-Agent", "report-client/1.0")
	if userID != "" {
		req = req.WithContext(auth.WithIdentity(req.Context(), userID, roles))
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("clinic_id", "northside")
	c.Set("request_id", "req-123")
	return c, rec
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestAudit_ReportRead(t *testing.T) {
	rec := &mockRecorder{}
	c, _ := newAuditContext("/api/v1/reports/new-patients?start_date=2024-01-01&end_date=2024-01-31&office_id=10&foo=bar", "admin-1", auth.RoleAdmin)

	if err := Audit(zerolog.Nop(), rec)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.count() != 1 {
		t.Fatalf("expected 1 entry, got %d", rec.count())
	}
	e := rec.last()
	if e.Report != "new-patients" || e.ClinicID != "northside" || e.UserID != "admin-1" {
		t.Errorf("unexpected entry %+v", e)
	}
	if e.RequestID != "req-123" || e.StatusCode != http.StatusOK || e.UserAgent != "report-client/1.0" {
		t.Errorf("unexpected request details %+v", e)
	}
	if e.Filters["office_id"] != "10" || e.Filters["start_date"] != "2024-01-01" {
		t.Errorf("filters not captured: %v", e.Filters)
	}
	if _, ok := e.Filters["foo"]; ok {
		t.Error("unknown parameters must not be recorded")
	}
}

func TestAudit_DeniedAccessIsRecorded(t *testing.T) {
	rec := &mockRecorder{}
	c, _ := newAuditContext("/api/v1/reports/patient-retention", "nurse-1", auth.RoleNurse)
	denied := func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusForbidden, "administrative access required")
	}

	err := Audit(zerolog.Nop(), rec)(denied)(c)
	if err == nil {
		t.Fatal("expected the handler error to pass through")
	}
	if rec.last().StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 recorded, got %d", rec.last().StatusCode)
	}
}

func TestAudit_DoctorPathParam(t *testing.T) {
	rec := &mockRecorder{}
	c, _ := newAuditContext("/api/v1/reports/doctor-performance/12", "admin-1", auth.RoleAdmin)
	c.SetParamNames("doctor_id")
	c.SetParamValues("12")

	if err := Audit(zerolog.Nop(), rec)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e := rec.last()
	if e.Report != "doctor-performance" || e.Filters["doctor_id"] != "12" {
		t.Errorf("unexpected entry %+v", e)
	}
}

func TestAudit_SkipsNonReportPaths(t *testing.T) {
	rec := &mockRecorder{}
	for _, path := range []string{"/health", "/health/db", "/api/v1/reportsx"} {
		c, _ := newAuditContext(path, "")
		if err := Audit(zerolog.Nop(), rec)(okHandler)(c); err != nil {
			t.Fatalf("%s: unexpected error: %v", path, err)
		}
	}
	if rec.count() != 0 {
		t.Errorf("expected no entries, got %d", rec.count())
	}
}

func TestAudit_RecorderError_DoesNotBreakRequest(t *testing.T) {
	rec := &mockRecorder{err: errors.New("audit store unavailable")}
	c, resp := newAuditContext("/api/v1/reports", "admin-1", auth.RoleAdmin)

	if err := Audit(zerolog.Nop(), rec)(okHandler)(c); err != nil {
		t.Fatalf("recorder failure must not fail the request: %v", err)
	}
	if resp.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.Code)
	}
}

func TestAudit_NoRecorder_LogOnly(t *testing.T) {
	c, _ := newAuditContext("/api/v1/reports/demographics?dimension=gender", "admin-1", auth.RoleAdmin)
	if err := Audit(zerolog.Nop())(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReportName(t *testing.T) {
	tests := map[string]string{
		"/api/v1/reports":                       "catalog",
		"/api/v1/reports/":                      "catalog",
		"/api/v1/reports/new-patients":          "new-patients",
		"/api/v1/reports/doctor-performance/12": "doctor-performance",
	}
	for path, want := range tests {
		if got := reportName(path); got != want {
			t.Errorf("reportName(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestAuditRecorderFunc(t *testing.T) {
	var got AuditEntry
	f := AuditRecorderFunc(func(e AuditEntry) error {
		got = e
		return nil
	})
	if err := f.RecordAccess(AuditEntry{Report: "referral-funnel"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Report != "referral-funnel" {
		t.Errorf("expected entry to be passed through, got %+v", got)
	}
}
