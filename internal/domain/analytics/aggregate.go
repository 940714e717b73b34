package analytics

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Dimension is a grouping key for aggregated statistics.
type Dimension string

const (
	DimensionDoctor        Dimension = "doctor"
	DimensionOffice        Dimension = "office"
	DimensionAgeGroup      Dimension = "age_group"
	DimensionGender        Dimension = "gender"
	DimensionEthnicity     Dimension = "ethnicity"
	DimensionRace          Dimension = "race"
	DimensionInsuranceType Dimension = "insurance_type"
	DimensionBloodType     Dimension = "blood_type"
)

var dimensions = map[Dimension]bool{
	DimensionDoctor: true, DimensionOffice: true, DimensionAgeGroup: true,
	DimensionGender: true, DimensionEthnicity: true, DimensionRace: true,
	DimensionInsuranceType: true, DimensionBloodType: true,
}

// ParseDimension returns the named dimension. "insurance" and "age" are
// accepted as short forms.
func ParseDimension(s string) (Dimension, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "insurance":
		s = string(DimensionInsuranceType)
	case "age":
		s = string(DimensionAgeGroup)
	}
	d := Dimension(s)
	return d, dimensions[d]
}

// Age bands, in report order.
const (
	AgeUnder18 = "<18"
	Age18to30  = "18-30"
	Age31to45  = "31-45"
	Age46to60  = "46-60"
	AgeOver60  = ">60"
)

// AgeBands lists the fixed age bands in report order.
var AgeBands = []string{AgeUnder18, Age18to30, Age31to45, Age46to60, AgeOver60}

// UnknownGroup labels patients with a missing attribute.
const UnknownGroup = "Unknown"

// AgeAt returns the age in whole years on the given date.
func AgeAt(dob, on time.Time) int {
	age := on.Year() - dob.Year()
	if on.Month() < dob.Month() || (on.Month() == dob.Month() && on.Day() < dob.Day()) {
		age--
	}
	return age
}

// AgeBand maps an age to its fixed band.
func AgeBand(age int) string {
	switch {
	case age < 18:
		return AgeUnder18
	case age <= 30:
		return Age18to30
	case age <= 45:
		return Age31to45
	case age <= 60:
		return Age46to60
	default:
		return AgeOver60
	}
}

// GroupKeyFunc resolves the dimension value of a visit. Doctors and offices supply
// display labels; patients supply demographic attributes.
type GroupKeyFunc func(v Visit) (key, label string)

// DemographicKey returns a GroupKeyFunc for a patient attribute dimension.
func DemographicKey(d Dimension, patients map[int64]Patient, asOf time.Time) GroupKeyFunc {
	return func(v Visit) (string, string) {
		p, ok := patients[v.PatientID]
		if !ok {
			return UnknownGroup, UnknownGroup
		}
		var val string
		switch d {
		case DimensionAgeGroup:
			if p.DateOfBirth != nil {
				val = AgeBand(AgeAt(*p.DateOfBirth, asOf))
			}
		case DimensionGender:
			val = strVal(p.Gender)
		case DimensionEthnicity:
			val = strVal(p.Ethnicity)
		case DimensionRace:
			val = strVal(p.Race)
		case DimensionInsuranceType:
			val = strVal(p.InsuranceType)
		case DimensionBloodType:
			val = strVal(p.BloodType)
		}
		if val == "" {
			return UnknownGroup, UnknownGroup
		}
		return val, val
	}
}

// DoctorKey groups by doctor id.
func DoctorKey(doctors map[int64]Doctor) GroupKeyFunc {
	return func(v Visit) (string, string) {
		return strconv.FormatInt(v.DoctorID, 10), doctorName(doctors, v.DoctorID)
	}
}

// OfficeKey groups by office id.
func OfficeKey(offices map[int64]Office) GroupKeyFunc {
	return func(v Visit) (string, string) {
		return strconv.FormatInt(v.OfficeID, 10), officeName(offices, v.OfficeID)
	}
}

// GroupStats holds per-group visit counts and derived rates.
type GroupStats struct {
	Key              string  `json:"key"`
	Label            string  `json:"label"`
	Total            int     `json:"total_appointments"`
	Completed        int     `json:"completed"`
	Cancelled        int     `json:"cancelled"`
	NoShow           int     `json:"no_show"`
	Scheduled        int     `json:"scheduled"`
	CheckedIn        int     `json:"checked_in"`
	Waiting          int     `json:"waiting"`
	Patients         int     `json:"unique_patients"`
	NewPatients      int     `json:"new_patients"`
	CompletionRate   float64 `json:"completion_rate"`
	NoShowRate       float64 `json:"no_show_rate"`
	CancellationRate float64 `json:"cancellation_rate"`

	patients map[int64]struct{}
	newSeen  map[int64]struct{}
}

func (g *GroupStats) add(v Visit, isNew bool) {
	g.Total++
	switch v.Status {
	case StatusCompleted:
		g.Completed++
	case StatusCancelled:
		g.Cancelled++
	case StatusNoShow:
		g.NoShow++
	case StatusScheduled:
		g.Scheduled++
	case StatusCheckedIn:
		g.CheckedIn++
	case StatusWaiting:
		g.Waiting++
	}
	if v.Qualifying() {
		g.patients[v.PatientID] = struct{}{}
	}
	if isNew {
		g.newSeen[v.PatientID] = struct{}{}
	}
}

func (g *GroupStats) finish() {
	g.Patients = len(g.patients)
	g.NewPatients = len(g.newSeen)
	g.CompletionRate = Percent(g.Completed, g.Total)
	g.NoShowRate = Percent(g.NoShow, g.Total)
	g.CancellationRate = Percent(g.Cancelled, g.Total)
}

// PatientIDs returns the distinct patients with a qualifying visit in the group.
func (g *GroupStats) PatientIDs() []int64 { return sortedIDs(g.patients) }

// NewPatientIDs returns the patients acquired through this group.
func (g *GroupStats) NewPatientIDs() []int64 { return sortedIDs(g.newSeen) }

func sortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Aggregate groups visits by key and computes GroupStats. A patient counts as
// new in a group when the visit being grouped is the patient's canonical first
// qualifying visit and that visit lies in the cohort window. Groups are
// returned in key order; callers apply the report's own ordering.
func Aggregate(visits []Visit, key GroupKeyFunc, cohort *Cohort) []*GroupStats {
	groups := make(map[string]*GroupStats)
	for _, v := range visits {
		k, label := key(v)
		g, ok := groups[k]
		if !ok {
			g = &GroupStats{Key: k, Label: label, patients: map[int64]struct{}{}, newSeen: map[int64]struct{}{}}
			groups[k] = g
		}
		isNew := false
		if cohort != nil {
			if e, ok := cohort.Get(v.PatientID); ok && e.IsNewInWindow && e.FirstVisit.ID == v.ID {
				isNew = true
			}
		}
		g.add(v, isNew)
	}
	out := make([]*GroupStats, 0, len(groups))
	for _, g := range groups {
		g.finish()
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// SortByLabel orders groups by label ascending, Unknown last. For the age
// dimension the fixed band order is used instead.
func SortByLabel(groups []*GroupStats, d Dimension) {
	rank := func(label string) int {
		if label == UnknownGroup {
			return len(AgeBands) + 1
		}
		if d == DimensionAgeGroup {
			for i, b := range AgeBands {
				if b == label {
					return i
				}
			}
		}
		return 0
	}
	sort.SliceStable(groups, func(i, j int) bool {
		ri, rj := rank(groups[i].Label), rank(groups[j].Label)
		if ri != rj {
			return ri < rj
		}
		if groups[i].Label != groups[j].Label {
			return groups[i].Label < groups[j].Label
		}
		return groups[i].Key < groups[j].Key
	})
}

// UnweightedMean averages per-group rates, each group weighing the same
// regardless of its size. It is 0 for no groups.
func UnweightedMean(rates []float64) float64 {
	if len(rates) == 0 {
		return 0
	}
	var sum float64
	for _, r := range rates {
		sum += r
	}
	return Round1(sum / float64(len(rates)))
}
