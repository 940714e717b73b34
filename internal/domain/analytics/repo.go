package analytics

import (
	"context"
)

// VisitFilter selects appointments from the ledger. Nil ids mean no filter.
type VisitFilter struct {
	Window   Window
	OfficeID *int64
	DoctorID *int64
	Status   *Status
}

// ReferralFilter selects referrals created in a window. DoctorID matches
// either the referring doctor or the specialist.
type ReferralFilter struct {
	Window   Window
	DoctorID *int64
}

// Ledger is the read-only view of the clinic's records needed by the reports.
type Ledger interface {
	FetchVisits(ctx context.Context, f VisitFilter) ([]Visit, error)
	// FetchFullHistory returns every visit of each patient regardless of
	// window or status. Patients without visits may be absent from the map.
	FetchFullHistory(ctx context.Context, patientIDs []int64) (map[int64][]Visit, error)
	FetchPatients(ctx context.Context, ids []int64) (map[int64]Patient, error)
	FetchDoctors(ctx context.Context) (map[int64]Doctor, error)
	FetchOffices(ctx context.Context) (map[int64]Office, error)
	FetchReferrals(ctx context.Context, f ReferralFilter) ([]Referral, error)
}

// LedgerReader runs fn against one consistent snapshot of the ledger. Every
// read a report performs happens inside a single Snapshot call.
type LedgerReader interface {
	Snapshot(ctx context.Context, fn func(ctx context.Context, l Ledger) error) error
}
