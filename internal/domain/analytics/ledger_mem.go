package analytics

import (
	"context"
	"sort"
)

// MemoryLedger is an in-process ledger. It backs the offline CLI and tests
// and is both a Ledger and its own LedgerReader.
type MemoryLedger struct {
	Visits    []Visit
	Patients  map[int64]Patient
	Doctors   map[int64]Doctor
	Offices   map[int64]Office
	Referrals []Referral
}

// NewMemoryLedger returns an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		Patients: make(map[int64]Patient),
		Doctors:  make(map[int64]Doctor),
		Offices:  make(map[int64]Office),
	}
}

// Snapshot calls fn with the ledger itself. The data is not modified by
// readers, so every call observes the same state.
func (m *MemoryLedger) Snapshot(ctx context.Context, fn func(ctx context.Context, l Ledger) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, m)
}

func (m *MemoryLedger) FetchVisits(ctx context.Context, f VisitFilter) ([]Visit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Visit, 0)
	for _, v := range m.Visits {
		if !f.Window.Contains(v.Timestamp) {
			continue
		}
		if f.OfficeID != nil && v.OfficeID != *f.OfficeID {
			continue
		}
		if f.DoctorID != nil && v.DoctorID != *f.DoctorID {
			continue
		}
		if f.Status != nil && v.Status != *f.Status {
			continue
		}
		out = append(out, v)
	}
	sortVisits(out)
	return out, nil
}

func (m *MemoryLedger) FetchFullHistory(ctx context.Context, patientIDs []int64) (map[int64][]Visit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := make(map[int64]struct{}, len(patientIDs))
	for _, id := range patientIDs {
		want[id] = struct{}{}
	}
	out := make(map[int64][]Visit, len(patientIDs))
	for _, v := range m.Visits {
		if _, ok := want[v.PatientID]; ok {
			out[v.PatientID] = append(out[v.PatientID], v)
		}
	}
	for _, h := range out {
		sortVisits(h)
	}
	return out, nil
}

func (m *MemoryLedger) FetchPatients(ctx context.Context, ids []int64) (map[int64]Patient, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[int64]Patient, len(ids))
	for _, id := range ids {
		if p, ok := m.Patients[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *MemoryLedger) FetchDoctors(ctx context.Context) (map[int64]Doctor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[int64]Doctor, len(m.Doctors))
	for id, d := range m.Doctors {
		out[id] = d
	}
	return out, nil
}

func (m *MemoryLedger) FetchOffices(ctx context.Context) (map[int64]Office, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[int64]Office, len(m.Offices))
	for id, o := range m.Offices {
		out[id] = o
	}
	return out, nil
}

func (m *MemoryLedger) FetchReferrals(ctx context.Context, f ReferralFilter) ([]Referral, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Referral, 0)
	for _, r := range m.Referrals {
		if !f.Window.Contains(r.CreatedAt) {
			continue
		}
		if f.DoctorID != nil && r.ReferringDoctorID != *f.DoctorID && r.SpecialistDoctorID != *f.DoctorID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func sortVisits(vs []Visit) {
	sort.Slice(vs, func(i, j int) bool { return vs[i].before(vs[j]) })
}
