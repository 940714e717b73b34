package analytics

import (
	"testing"
	"time"
)

func TestParseGranularity(t *testing.T) {
	tests := map[string]Granularity{
		"day":     GranularityDay,
		"DAY":     GranularityDay,
		"week":    GranularityWeek,
		"month":   GranularityMonth,
		" Month ": GranularityMonth,
		"":        GranularityWeek,
		"year":    GranularityWeek,
		"quarter": GranularityWeek,
	}
	for in, want := range tests {
		if got := ParseGranularity(in); got != want {
			t.Errorf("ParseGranularity(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestBucket(t *testing.T) {
	tests := []struct {
		name      string
		ts        time.Time
		g         Granularity
		wantKey   string
		wantLabel string
	}{
		{"day", at("2024-01-05 15:30"), GranularityDay, "2024-01-05", "Jan 5"},
		{"week mid-week", at("2024-01-05 15:30"), GranularityWeek, "2024-01-01", "Week of Jan 1"},
		{"week on monday", at("2024-01-08 00:00"), GranularityWeek, "2024-01-08", "Week of Jan 8"},
		{"week on sunday", at("2024-01-14 23:59"), GranularityWeek, "2024-01-08", "Week of Jan 8"},
		{"week across year", at("2024-01-02 10:00"), GranularityWeek, "2024-01-01", "Week of Jan 1"},
		{"week into previous year", at("2023-01-01 10:00"), GranularityWeek, "2022-12-26", "Week of Dec 26"},
		{"month", at("2024-02-29 10:00"), GranularityMonth, "2024-02-01", "Feb 2024"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, label := Bucket(tt.ts, tt.g)
			if key != tt.wantKey || label != tt.wantLabel {
				t.Errorf("Bucket(%v, %s) = (%q, %q), want (%q, %q)", tt.ts, tt.g, key, label, tt.wantKey, tt.wantLabel)
			}
		})
	}
}

func TestBucket_WeekKeysAreMondays(t *testing.T) {
	start := at("2023-12-20 13:00")
	for i := 0; i < 400; i++ {
		ts := start.Add(time.Duration(i) * 7 * time.Hour)
		key, _ := Bucket(ts, GranularityWeek)
		d, err := time.Parse(dateLayout, key)
		if err != nil {
			t.Fatalf("bad key %q: %v", key, err)
		}
		if d.Weekday() != time.Monday {
			t.Fatalf("week key %s for %v is a %s", key, ts, d.Weekday())
		}
		if ts.Sub(d) < 0 || ts.Sub(d) >= 7*24*time.Hour {
			t.Fatalf("week key %s does not contain %v", key, ts)
		}
	}
}

func TestBucket_UsesTimestampLocation(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// Monday 02:00 UTC is still Sunday evening in New York.
	ts := at("2024-01-08 02:00")
	if key, _ := Bucket(ts, GranularityWeek); key != "2024-01-08" {
		t.Errorf("UTC key = %s, want 2024-01-08", key)
	}
	if key, _ := Bucket(ts.In(ny), GranularityWeek); key != "2024-01-01" {
		t.Errorf("New York key = %s, want 2024-01-01", key)
	}
}

func TestSeries_SortedWithSecondary(t *testing.T) {
	s := newSeries(GranularityDay, time.UTC, true)
	s.add(at("2024-01-03 10:00"))
	s.add(at("2024-01-01 10:00"))
	s.add(at("2024-01-03 11:00"))
	s.addSecondary(at("2024-01-03 11:00"))

	points := s.sorted()
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].Period != "2024-01-01" || points[0].Count != 1 || *points[0].Secondary != 0 {
		t.Errorf("unexpected first point %+v", points[0])
	}
	if points[1].Period != "2024-01-03" || points[1].Count != 2 || *points[1].Secondary != 1 {
		t.Errorf("unexpected second point %+v", points[1])
	}
}
