package analytics

import (
	"testing"
	"time"
)

func TestClassify_Scenario(t *testing.T) {
	now := at("2024-01-29 12:00")

	p := []Visit{
		{ID: 1, Timestamp: at("2024-01-05 09:00"), Status: StatusCompleted},
		{ID: 2, Timestamp: at("2024-02-10 09:00"), Status: StatusCompleted},
	}
	if got := Classify(p[0].Timestamp, HasLaterVisit(p, p[0].Timestamp, RetentionAnyVisit), now); got != CategoryRetained {
		t.Errorf("P: got %q, want %q", got, CategoryRetained)
	}

	q := []Visit{{ID: 3, Timestamp: at("2024-01-28 09:00"), Status: StatusCompleted}}
	if got := Classify(q[0].Timestamp, HasLaterVisit(q, q[0].Timestamp, RetentionAnyVisit), now); got != CategoryNew {
		t.Errorf("Q: got %q, want %q", got, CategoryNew)
	}

	r := []Visit{{ID: 4, Timestamp: at("2023-11-01 09:00"), Status: StatusCompleted}}
	if got := Classify(r[0].Timestamp, HasLaterVisit(r, r[0].Timestamp, RetentionAnyVisit), now); got != CategoryAtRisk {
		t.Errorf("R: got %q, want %q", got, CategoryAtRisk)
	}
}

func TestClassify_GraceBoundary(t *testing.T) {
	first := at("2024-01-01 00:00")
	if got := Classify(first, false, first.Add(NewPatientGrace-time.Second)); got != CategoryNew {
		t.Errorf("just inside grace: got %q", got)
	}
	if got := Classify(first, false, first.Add(NewPatientGrace)); got != CategoryAtRisk {
		t.Errorf("exactly 30 days: got %q", got)
	}
}

func TestClassify_Exhaustive(t *testing.T) {
	first := at("2024-01-10 09:00")
	for _, later := range []bool{true, false} {
		for _, offset := range []time.Duration{0, 10 * 24 * time.Hour, 45 * 24 * time.Hour} {
			got := Classify(first, later, first.Add(offset))
			n := 0
			for _, c := range RetentionCategories {
				if c == got {
					n++
				}
			}
			if n != 1 {
				t.Errorf("Classify(later=%v, +%v) = %q is not exactly one category", later, offset, got)
			}
		}
	}
}

func TestHasLaterVisit_Basis(t *testing.T) {
	first := at("2024-01-02 09:00")
	history := []Visit{
		{ID: 1, Timestamp: first, Status: StatusCompleted},
		{ID: 2, Timestamp: at("2024-01-03 09:00"), Status: StatusNoShow},
	}
	if !HasLaterVisit(history, first, RetentionAnyVisit) {
		t.Error("any basis should count the no-show")
	}
	if HasLaterVisit(history, first, RetentionQualifyingVisit) {
		t.Error("qualifying basis should ignore the no-show")
	}

	same := []Visit{{ID: 1, Timestamp: first, Status: StatusCompleted}, {ID: 2, Timestamp: first, Status: StatusCompleted}}
	if HasLaterVisit(same, first, RetentionAnyVisit) {
		t.Error("a visit at the same instant is not strictly later")
	}
}

func TestIsRetainedByDoctor(t *testing.T) {
	history := []Visit{
		{ID: 1, DoctorID: 1, Status: StatusCompleted},
		{ID: 2, DoctorID: 1, Status: StatusCancelled},
		{ID: 3, DoctorID: 2, Status: StatusCompleted},
		{ID: 4, DoctorID: 2, Status: StatusScheduled},
	}
	if IsRetainedByDoctor(history, 1) {
		t.Error("doctor 1 has one qualifying visit")
	}
	if !IsRetainedByDoctor(history, 2) {
		t.Error("doctor 2 has two qualifying visits")
	}
	if n := QualifyingVisitsWithDoctor(history, 3); n != 0 {
		t.Errorf("expected 0 visits with doctor 3, got %d", n)
	}
}

func TestRetentionRate(t *testing.T) {
	tests := []struct {
		retained, acquired int
		want               float64
	}{
		{4, 10, 40.0},
		{0, 0, 0},
		{0, 7, 0},
		{7, 7, 100},
		{1, 3, 33.3},
		{2, 3, 66.7},
	}
	for _, tt := range tests {
		got := RetentionRate(tt.retained, tt.acquired)
		if got != tt.want {
			t.Errorf("RetentionRate(%d, %d) = %v, want %v", tt.retained, tt.acquired, got, tt.want)
		}
		if got < 0 || got > 100 {
			t.Errorf("RetentionRate(%d, %d) = %v out of range", tt.retained, tt.acquired, got)
		}
	}
}

func TestAvgVisitsPerPatient(t *testing.T) {
	if got := AvgVisitsPerPatient(7, 3); got != 2.3 {
		t.Errorf("expected 2.3, got %v", got)
	}
	if got := AvgVisitsPerPatient(5, 0); got != 0 {
		t.Errorf("expected 0 for no patients, got %v", got)
	}
}

func TestPercent_ZeroDenominator(t *testing.T) {
	if got := Percent(5, 0); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
	if got := Percent(1, 8); got != 12.5 {
		t.Errorf("expected 12.5, got %v", got)
	}
}
