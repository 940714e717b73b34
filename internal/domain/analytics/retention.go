package analytics

import (
	"math"
	"time"
)

// NewPatientGrace is how long a patient without a return visit is still
// considered new rather than at risk.
const NewPatientGrace = 30 * 24 * time.Hour

// RetentionCategory classifies a newly acquired patient.
type RetentionCategory string

const (
	CategoryRetained RetentionCategory = "Retained"
	CategoryNew      RetentionCategory = "New (< 30 days)"
	CategoryAtRisk   RetentionCategory = "At Risk"
)

// RetentionCategories lists the categories in report order.
var RetentionCategories = []RetentionCategory{CategoryRetained, CategoryNew, CategoryAtRisk}

// Classify places a patient in exactly one retention category.
func Classify(firstVisit time.Time, hasLaterVisit bool, now time.Time) RetentionCategory {
	if hasLaterVisit {
		return CategoryRetained
	}
	if now.Sub(firstVisit) < NewPatientGrace {
		return CategoryNew
	}
	return CategoryAtRisk
}

// HasLaterVisit reports whether history contains a visit timestamped strictly
// after first. With RetentionQualifyingVisit only qualifying visits count.
func HasLaterVisit(history []Visit, first time.Time, basis RetentionBasis) bool {
	for _, v := range history {
		if !v.Timestamp.After(first) {
			continue
		}
		if basis == RetentionQualifyingVisit && !v.Qualifying() {
			continue
		}
		return true
	}
	return false
}

// QualifyingVisitsWithDoctor counts the qualifying visits in history that
// were with doctorID.
func QualifyingVisitsWithDoctor(history []Visit, doctorID int64) int {
	n := 0
	for _, v := range history {
		if v.DoctorID == doctorID && v.Qualifying() {
			n++
		}
	}
	return n
}

// IsRetainedByDoctor is the doctor-scoped retention rule: two or more
// qualifying visits with the same doctor across all time.
func IsRetainedByDoctor(history []Visit, doctorID int64) bool {
	return QualifyingVisitsWithDoctor(history, doctorID) >= 2
}

// RetentionRate is retained/acquired as a percentage rounded to one decimal,
// or 0 when nothing was acquired.
func RetentionRate(retained, acquired int) float64 {
	return Percent(retained, acquired)
}

// AvgVisitsPerPatient is completed/seen rounded to one decimal, or 0 when no
// patients were seen.
func AvgVisitsPerPatient(completed, seen int) float64 {
	if seen <= 0 {
		return 0
	}
	return Round1(float64(completed) / float64(seen))
}

// Percent is a NULL-safe percentage rounded to one decimal.
func Percent(num, den int) float64 {
	if den <= 0 {
		return 0
	}
	return Round1(float64(num) / float64(den) * 100)
}

// Round1 rounds half away from zero to one decimal place.
func Round1(x float64) float64 {
	return math.Round(x*10) / 10
}
