package analytics

import (
	"sort"
	"time"
)

// CohortEntry is the resolved acquisition state of one patient.
type CohortEntry struct {
	PatientID             int64
	FirstVisit            Visit
	FirstQualifyingTS     time.Time
	IsNewInWindow         bool
	TotalQualifyingVisits int
}

// Cohort indexes every patient with at least one qualifying visit by id. It is
// built once per report from the lifetime histories and shared by every
// calculation that needs "new patient" semantics.
type Cohort struct {
	Window  Window
	entries map[int64]*CohortEntry
}

// ResolveCohort determines each patient's canonical first qualifying visit:
// the qualifying visit with the smallest timestamp over the full history,
// ties going to the smallest visit id.
func ResolveCohort(histories map[int64][]Visit, w Window) *Cohort {
	c := &Cohort{Window: w, entries: make(map[int64]*CohortEntry, len(histories))}
	for pid, visits := range histories {
		var e *CohortEntry
		for _, v := range visits {
			if !v.Qualifying() {
				continue
			}
			if e == nil {
				e = &CohortEntry{PatientID: pid, FirstVisit: v}
			} else if v.before(e.FirstVisit) {
				e.FirstVisit = v
			}
			e.TotalQualifyingVisits++
		}
		if e == nil {
			continue
		}
		e.FirstQualifyingTS = e.FirstVisit.Timestamp
		e.IsNewInWindow = w.Contains(e.FirstQualifyingTS)
		c.entries[pid] = e
	}
	return c
}

// Get returns the entry for a patient.
func (c *Cohort) Get(patientID int64) (*CohortEntry, bool) {
	e, ok := c.entries[patientID]
	return e, ok
}

// Len is the number of patients with a qualifying visit.
func (c *Cohort) Len() int { return len(c.entries) }

// IsNew reports whether the patient's first qualifying visit lies in the window.
func (c *Cohort) IsNew(patientID int64) bool {
	e, ok := c.entries[patientID]
	return ok && e.IsNewInWindow
}

// NewPatients returns the patients new in the window whose canonical first
// visit satisfies f, ordered by first visit time then patient id.
func (c *Cohort) NewPatients(f Filter) []*CohortEntry {
	out := make([]*CohortEntry, 0)
	for _, e := range c.entries {
		if e.IsNewInWindow && f.MatchVisit(e.FirstVisit) {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out
}

// Entries returns all entries ordered by first visit time then patient id.
func (c *Cohort) Entries() []*CohortEntry {
	out := make([]*CohortEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sortEntries(out)
	return out
}

func sortEntries(es []*CohortEntry) {
	sort.Slice(es, func(i, j int) bool {
		if es[i].FirstQualifyingTS.Equal(es[j].FirstQualifyingTS) {
			return es[i].PatientID < es[j].PatientID
		}
		return es[i].FirstQualifyingTS.Before(es[j].FirstQualifyingTS)
	})
}

// patientIDs returns the distinct patient ids of visits in ascending order.
func patientIDs(visits []Visit) []int64 {
	seen := make(map[int64]struct{}, len(visits))
	ids := make([]int64, 0, len(visits))
	for _, v := range visits {
		if _, ok := seen[v.PatientID]; ok {
			continue
		}
		seen[v.PatientID] = struct{}{}
		ids = append(ids, v.PatientID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
