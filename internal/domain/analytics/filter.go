package analytics

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// DefaultWindowDays is how far back start_date defaults from end_date.
const DefaultWindowDays = 30

// Window is an inclusive reporting window. Start is midnight of the first day
// and End is the last instant of the final day, both in the report location.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow builds a window covering the calendar days from start through end
// in loc. Only the date portion of start and end is used.
func NewWindow(start, end time.Time, loc *time.Location) Window {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc)
	return Window{Start: s, End: e.AddDate(0, 0, 1).Add(-time.Nanosecond)}
}

// Contains reports whether t falls within the window, both ends inclusive.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// EndExclusive returns midnight after the final day, for half-open SQL ranges.
func (w Window) EndExclusive() time.Time {
	return w.End.Add(time.Nanosecond)
}

// Days is the inclusive number of calendar days covered by the window.
func (w Window) Days() int {
	s := time.Date(w.Start.Year(), w.Start.Month(), w.Start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(w.End.Year(), w.End.Month(), w.End.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(s).Hours()/24) + 1
}

// Period is the JSON form of a window.
type Period struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Period returns the window's calendar dates.
func (w Window) Period() Period {
	return Period{StartDate: w.Start.Format(dateLayout), EndDate: w.End.Format(dateLayout)}
}

// RetentionBasis selects which later visits count toward patient-scoped
// retention.
type RetentionBasis string

const (
	// RetentionAnyVisit counts any later visit regardless of status.
	RetentionAnyVisit RetentionBasis = "any"
	// RetentionQualifyingVisit counts only later qualifying visits.
	RetentionQualifyingVisit RetentionBasis = "qualifying"
)

// ParseRetentionBasis returns the basis named by s, or false.
func ParseRetentionBasis(s string) (RetentionBasis, bool) {
	switch RetentionBasis(strings.ToLower(strings.TrimSpace(s))) {
	case RetentionAnyVisit:
		return RetentionAnyVisit, true
	case RetentionQualifyingVisit:
		return RetentionQualifyingVisit, true
	}
	return "", false
}

// Filter is the structured request filter shared by all reports.
type Filter struct {
	Window         Window
	GroupBy        Granularity
	OfficeID       *int64
	DoctorID       *int64
	Status         *Status
	RetentionBasis RetentionBasis
	Dimension      Dimension
	Limit          int
	Offset         int
}

// MatchVisit reports whether v satisfies the office, doctor and status
// constraints of f. The window is not checked.
func (f Filter) MatchVisit(v Visit) bool {
	if f.OfficeID != nil && v.OfficeID != *f.OfficeID {
		return false
	}
	if f.DoctorID != nil && v.DoctorID != *f.DoctorID {
		return false
	}
	if f.Status != nil && v.Status != *f.Status {
		return false
	}
	return true
}

// VisitFilter is the subset of a Filter understood by the ledger.
func (f Filter) VisitFilter() VisitFilter {
	return VisitFilter{Window: f.Window, OfficeID: f.OfficeID, DoctorID: f.DoctorID, Status: f.Status}
}

// CacheKey is a stable textual form of the filter.
func (f Filter) CacheKey() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%s", f.Window.Start.Format(time.RFC3339), f.Window.End.Format(time.RFC3339Nano), f.GroupBy)
	fmt.Fprintf(&b, "|o=%s|d=%s", optID(f.OfficeID), optID(f.DoctorID))
	if f.Status != nil {
		fmt.Fprintf(&b, "|s=%s", *f.Status)
	}
	fmt.Fprintf(&b, "|r=%s|dim=%s|l=%d|off=%d", f.RetentionBasis, f.Dimension, f.Limit, f.Offset)
	return b.String()
}

func optID(id *int64) string {
	if id == nil {
		return "all"
	}
	return strconv.FormatInt(*id, 10)
}

// FilterParams carries the raw query-string values of a report request.
type FilterParams struct {
	StartDate      string
	EndDate        string
	GroupBy        string
	OfficeID       string
	DoctorID       string
	Status         string
	RetentionBasis string
	Dimension      string
	Limit          int
	Offset         int
}

// ParseFilter validates raw parameters and applies defaults. now anchors the
// default window (today minus 30 days through today) in loc.
func ParseFilter(p FilterParams, now time.Time, loc *time.Location, defaultBasis RetentionBasis) (Filter, error) {
	today := now.In(loc)
	end := today
	if p.EndDate != "" {
		d, err := time.ParseInLocation(dateLayout, p.EndDate, loc)
		if err != nil {
			return Filter{}, &ValidationError{Field: "end_date", Message: "invalid end_date format, use YYYY-MM-DD"}
		}
		end = d
	}
	start := today.AddDate(0, 0, -DefaultWindowDays)
	if p.EndDate != "" && p.StartDate == "" {
		start = end.AddDate(0, 0, -DefaultWindowDays)
	}
	if p.StartDate != "" {
		d, err := time.ParseInLocation(dateLayout, p.StartDate, loc)
		if err != nil {
			return Filter{}, &ValidationError{Field: "start_date", Message: "invalid start_date format, use YYYY-MM-DD"}
		}
		start = d
	}

	f := Filter{
		Window:         NewWindow(start, end, loc),
		GroupBy:        ParseGranularity(p.GroupBy),
		RetentionBasis: defaultBasis,
		Limit:          p.Limit,
		Offset:         p.Offset,
	}
	if f.Window.End.Before(f.Window.Start) {
		return Filter{}, &ValidationError{Field: "start_date", Message: "start_date must not be after end_date"}
	}

	var err error
	if f.OfficeID, err = parseOptionalID("office_id", p.OfficeID); err != nil {
		return Filter{}, err
	}
	if f.DoctorID, err = parseOptionalID("doctor_id", p.DoctorID); err != nil {
		return Filter{}, err
	}
	if p.Status != "" && !strings.EqualFold(p.Status, "all") {
		st, ok := ParseStatus(p.Status)
		if !ok {
			return Filter{}, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", p.Status)}
		}
		f.Status = &st
	}
	if p.RetentionBasis != "" {
		b, ok := ParseRetentionBasis(p.RetentionBasis)
		if !ok {
			return Filter{}, &ValidationError{Field: "retention_basis", Message: "retention_basis must be \"any\" or \"qualifying\""}
		}
		f.RetentionBasis = b
	}
	if f.RetentionBasis == "" {
		f.RetentionBasis = RetentionAnyVisit
	}
	if p.Dimension != "" {
		d, ok := ParseDimension(p.Dimension)
		if !ok {
			return Filter{}, &ValidationError{Field: "dimension", Message: fmt.Sprintf("unknown dimension %q", p.Dimension)}
		}
		f.Dimension = d
	}
	if f.Limit < 0 || f.Offset < 0 {
		return Filter{}, &ValidationError{Field: "limit", Message: "limit and offset must not be negative"}
	}
	return f, nil
}

func parseOptionalID(field, raw string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "all") {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, &ValidationError{Field: field, Message: fmt.Sprintf("invalid %s", field)}
	}
	return &id, nil
}
