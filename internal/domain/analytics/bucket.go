package analytics

import (
	"sort"
	"strings"
	"time"
)

// Granularity is the period used for trend series.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// ParseGranularity accepts day, week or month. Anything else is week.
func ParseGranularity(s string) Granularity {
	switch Granularity(strings.ToLower(strings.TrimSpace(s))) {
	case GranularityDay:
		return GranularityDay
	case GranularityMonth:
		return GranularityMonth
	default:
		return GranularityWeek
	}
}

// BucketStart returns the first day of the bucket containing t, at midnight
// in t's location. Weeks start on Monday.
func BucketStart(t time.Time, g Granularity) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	switch g {
	case GranularityDay:
		return day
	case GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	default:
		weekdayIndex := (int(t.Weekday()) + 6) % 7 // Monday = 0
		return day.AddDate(0, 0, -weekdayIndex)
	}
}

// Bucket maps a timestamp to its bucket key (YYYY-MM-DD of the bucket start)
// and display label.
func Bucket(t time.Time, g Granularity) (key, label string) {
	start := BucketStart(t, g)
	key = start.Format(dateLayout)
	switch g {
	case GranularityDay:
		label = start.Format("Jan 2")
	case GranularityMonth:
		label = start.Format("Jan 2006")
	default:
		label = "Week of " + start.Format("Jan 2")
	}
	return key, label
}

// TrendPoint is one bucket of a trend series.
type TrendPoint struct {
	Period string `json:"period"`
	Label  string `json:"label"`
	Count  int    `json:"count"`
	// Secondary carries a second series when the report has one (retained
	// patients for retention, completed visits for utilization).
	Secondary *int `json:"secondary,omitempty"`
}

// series accumulates counts per bucket.
type series struct {
	g         Granularity
	loc       *time.Location
	secondary bool
	points    map[string]*TrendPoint
}

func newSeries(g Granularity, loc *time.Location, secondary bool) *series {
	return &series{g: g, loc: loc, secondary: secondary, points: make(map[string]*TrendPoint)}
}

func (s *series) point(t time.Time) *TrendPoint {
	key, label := Bucket(t.In(s.loc), s.g)
	p, ok := s.points[key]
	if !ok {
		p = &TrendPoint{Period: key, Label: label}
		if s.secondary {
			p.Secondary = new(int)
		}
		s.points[key] = p
	}
	return p
}

func (s *series) add(t time.Time) {
	s.point(t).Count++
}

func (s *series) addSecondary(t time.Time) {
	*s.point(t).Secondary++
}

// sorted returns buckets with activity in ascending key order.
func (s *series) sorted() []TrendPoint {
	out := make([]TrendPoint, 0, len(s.points))
	for _, p := range s.points {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out
}
