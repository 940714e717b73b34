package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinic/analytics/internal/platform/auth"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}

func at(s string) time.Time {
	ts, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return ts
}

func day(s string) time.Time {
	ts, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return ts
}

func january() Window {
	return NewWindow(day("2024-01-01"), day("2024-01-31"), time.UTC)
}

func strp(s string) *string { return &s }
func idp(id int64) *int64   { return &id }
func tp(t time.Time) *time.Time {
	return &t
}

var adminCtx = auth.AuthContext{UserID: "admin-1", Roles: []string{auth.RoleAdmin}, ClinicID: "northside"}

// clinicLedger is the shared scenario used by the report tests. The window
// is January 2024 and the previous window is December 2023.
//
//	P1: Dec 10 (doc1), Jan 10 (doc1)          returning
//	P2: Jan 5 (doc1), Feb 10 (doc1)           new, retained
//	P3: Jan 20 cancelled, Jan 22 (doc2)       new, no later visit
//	P4: Jan 2 (doc2), Jan 3 no-show (doc2)    new, later visit is a no-show
//	P5: Dec 15 (doc2)                         new in the previous window
func clinicLedger() *MemoryLedger {
	m := NewMemoryLedger()
	m.Doctors[1] = Doctor{ID: 1, FirstName: "Alice", LastName: "Smith", Specialty: "Cardiology", OfficeID: idp(10)}
	m.Doctors[2] = Doctor{ID: 2, FirstName: "Bob", LastName: "Jones", Specialty: "Pediatrics", OfficeID: idp(20)}
	m.Offices[10] = Office{ID: 10, Name: "Downtown", Location: "Main St"}
	m.Offices[20] = Office{ID: 20, Name: "Uptown", Location: "Hill Rd"}

	m.Patients[1] = Patient{ID: 1, DateOfBirth: tp(day("1990-05-01")), Gender: strp("Female"), InsuranceType: strp("Medicare")}
	m.Patients[2] = Patient{ID: 2, DateOfBirth: tp(day("2010-02-01")), Gender: strp("Male")}
	m.Patients[3] = Patient{ID: 3, DateOfBirth: tp(day("1950-01-01")), Gender: strp("Female")}
	m.Patients[5] = Patient{ID: 5, Gender: strp("Male")}

	m.Visits = []Visit{
		{ID: 1, PatientID: 1, DoctorID: 1, OfficeID: 10, Timestamp: at("2023-12-10 09:00"), Status: StatusCompleted},
		{ID: 2, PatientID: 1, DoctorID: 1, OfficeID: 10, Timestamp: at("2024-01-10 09:00"), Status: StatusCompleted},
		{ID: 3, PatientID: 2, DoctorID: 1, OfficeID: 10, Timestamp: at("2024-01-05 09:00"), Status: StatusCompleted},
		{ID: 4, PatientID: 2, DoctorID: 1, OfficeID: 10, Timestamp: at("2024-02-10 09:00"), Status: StatusCompleted},
		{ID: 5, PatientID: 3, DoctorID: 2, OfficeID: 20, Timestamp: at("2024-01-20 09:00"), Status: StatusCancelled},
		{ID: 6, PatientID: 3, DoctorID: 2, OfficeID: 20, Timestamp: at("2024-01-22 09:00"), Status: StatusCompleted},
		{ID: 7, PatientID: 4, DoctorID: 2, OfficeID: 20, Timestamp: at("2024-01-02 09:00"), Status: StatusCompleted},
		{ID: 8, PatientID: 4, DoctorID: 2, OfficeID: 20, Timestamp: at("2024-01-03 09:00"), Status: StatusNoShow},
		{ID: 9, PatientID: 5, DoctorID: 2, OfficeID: 20, Timestamp: at("2023-12-15 09:00"), Status: StatusCompleted},
	}

	m.Referrals = []Referral{
		{ID: 1, PatientID: 1, ReferringDoctorID: 1, SpecialistDoctorID: 2, Status: ReferralPending, CreatedAt: at("2024-01-03 10:00")},
		{ID: 2, PatientID: 2, ReferringDoctorID: 1, SpecialistDoctorID: 2, Status: ReferralApproved, CreatedAt: at("2024-01-04 10:00"), ApprovedAt: tp(at("2024-01-06 10:00"))},
		{ID: 3, PatientID: 3, ReferringDoctorID: 1, SpecialistDoctorID: 2, Status: ReferralApproved, CreatedAt: at("2024-01-05 10:00"), ApprovedAt: tp(at("2024-01-09 10:00")), LinkedVisitID: idp(6)},
		{ID: 4, PatientID: 4, ReferringDoctorID: 2, SpecialistDoctorID: 1, Status: ReferralDenied, CreatedAt: at("2024-01-10 10:00")},
		{ID: 5, PatientID: 5, ReferringDoctorID: 2, SpecialistDoctorID: 1, Status: ReferralApproved, CreatedAt: at("2023-12-20 10:00")},
	}
	return m
}

func newTestService(reader LedgerReader) *Service {
	svc := NewService(reader, zerolog.Nop())
	svc.SetClock(func() time.Time { return at("2024-02-15 12:00") })
	return svc
}

func januaryFilter(t *testing.T, svc *Service, p FilterParams) Filter {
	t.Helper()
	p.StartDate, p.EndDate = "2024-01-01", "2024-01-31"
	f, err := svc.ParseFilter(p)
	if err != nil {
		t.Fatalf("ParseFilter: %v", err)
	}
	return f
}

// countingReader records how many snapshots were opened.
type countingReader struct {
	LedgerReader
	snapshots int
}

func (r *countingReader) Snapshot(ctx context.Context, fn func(ctx context.Context, l Ledger) error) error {
	r.snapshots++
	return r.LedgerReader.Snapshot(ctx, fn)
}

var errConnRefused = errors.New("dial tcp 10.0.0.5:5432: connect: connection refused")

// failingReader fails every snapshot the way a lost database would.
type failingReader struct{}

func (failingReader) Snapshot(context.Context, func(ctx context.Context, l Ledger) error) error {
	return errConnRefused
}
