// Package sandbox generates reproducible synthetic clinic ledgers for demo
// environments, load testing and developer on-boarding. The output is an
// analytics.MemoryLedger that can be written as a CSV export and read back
// by the offline report command.
package sandbox

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/clinic/analytics/internal/domain/analytics"
)

// SeedConfig controls the volume and shape of generated data.
type SeedConfig struct {
	OfficeCount      int       `json:"officeCount"`
	DoctorsPerOffice int       `json:"doctorsPerOffice"`
	PatientCount     int       `json:"patientCount"`
	MaxVisits        int       `json:"maxVisits"`
	Start            time.Time `json:"start"`
	Months           int       `json:"months"`
	// Now splits generated visits into past outcomes and future bookings.
	Now          time.Time `json:"now"`
	CancelRate   float64   `json:"cancelRate"`
	NoShowRate   float64   `json:"noShowRate"`
	ReferralRate float64   `json:"referralRate"`
	// UnknownRate is the chance that an optional demographic is left blank.
	UnknownRate float64        `json:"unknownRate"`
	Location    *time.Location `json:"-"`
	Seed        int64          `json:"seed"`
}

// DefaultSeedConfig returns a year of activity for a three-office clinic.
func DefaultSeedConfig() SeedConfig {
	start := time.Date(time.Now().Year()-1, time.January, 1, 0, 0, 0, 0, time.UTC)
	return SeedConfig{
		OfficeCount:      3,
		DoctorsPerOffice: 4,
		PatientCount:     500,
		MaxVisits:        6,
		Start:            start,
		Months:           12,
		Now:              start.AddDate(1, 0, 0),
		CancelRate:       0.08,
		NoShowRate:       0.05,
		ReferralRate:     0.2,
		UnknownRate:      0.1,
		Location:         time.UTC,
	}
}

// Validate rejects configurations that cannot produce a ledger.
func (c SeedConfig) Validate() error {
	switch {
	case c.OfficeCount < 1:
		return fmt.Errorf("office count must be at least 1")
	case c.DoctorsPerOffice < 1:
		return fmt.Errorf("doctors per office must be at least 1")
	case c.PatientCount < 0:
		return fmt.Errorf("patient count must not be negative")
	case c.MaxVisits < 1:
		return fmt.Errorf("max visits must be at least 1")
	case c.Months < 1:
		return fmt.Errorf("months must be at least 1")
	case c.Start.IsZero():
		return fmt.Errorf("start is required")
	}
	for name, rate := range map[string]float64{
		"cancel rate": c.CancelRate, "no-show rate": c.NoShowRate,
		"referral rate": c.ReferralRate, "unknown rate": c.UnknownRate,
	} {
		if rate < 0 || rate > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %g", name, rate)
		}
	}
	if c.CancelRate+c.NoShowRate > 1 {
		return fmt.Errorf("cancel and no-show rates exceed 1")
	}
	return nil
}

// SeedResult summarizes a generated ledger.
type SeedResult struct {
	Offices   int           `json:"offices"`
	Doctors   int           `json:"doctors"`
	Patients  int           `json:"patients"`
	Visits    int           `json:"visits"`
	Referrals int           `json:"referrals"`
	Duration  time.Duration `json:"duration"`
}

var (
	firstNames = []string{
		"James", "Robert", "John", "Michael", "David", "William", "Richard",
		"Mary", "Patricia", "Jennifer", "Linda", "Barbara", "Elizabeth",
		"Susan", "Jessica", "Sarah", "Karen", "Daniel", "Matthew", "Emily",
	}
	lastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia",
		"Miller", "Davis", "Rodriguez", "Martinez", "Hernandez", "Lopez",
		"Gonzalez", "Wilson", "Anderson", "Thomas", "Taylor", "Moore",
	}
	specialties = []string{
		"Family Medicine", "Internal Medicine", "Pediatrics", "Cardiology",
		"Dermatology", "Orthopedics", "Endocrinology", "Neurology",
	}
	officeNames = []string{"Downtown", "Northside", "Lakeshore", "Westfield", "Riverside", "Hillcrest"}
	streets     = []string{
		"123 Main St", "456 Oak Ave", "789 Elm St", "321 Pine Rd",
		"654 Maple Dr", "987 Cedar Ln", "147 Birch Blvd", "258 Walnut Way",
	}
	genders    = []string{"Female", "Male", "Other"}
	ethnicity  = []string{"Hispanic or Latino", "Not Hispanic or Latino"}
	races      = []string{"White", "Black or African American", "Asian", "American Indian or Alaska Native", "Native Hawaiian or Other Pacific Islander"}
	insurance  = []string{"Medicare", "Medicaid", "Private", "Self-Pay", "Tricare"}
	bloodTypes = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}
)

// DataGenerator produces deterministic ledger rows. Ids are sequential per
// table starting at 1.
type DataGenerator struct {
	rng *rand.Rand
	ids map[string]int64
}

// NewDataGenerator returns a generator seeded for reproducibility. If seed is
// 0 a time-based seed is chosen.
func NewDataGenerator(seed int64) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
		ids: make(map[string]int64),
	}
}

func (g *DataGenerator) nextID(table string) int64 {
	g.ids[table]++
	return g.ids[table]
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *DataGenerator) chance(p float64) bool {
	return g.rng.Float64() < p
}

// optional returns nil with probability unknownRate.
func (g *DataGenerator) optional(pool []string, unknownRate float64) *string {
	if g.chance(unknownRate) {
		return nil
	}
	s := g.pick(pool)
	return &s
}

// GenerateOffice produces an office row.
func (g *DataGenerator) GenerateOffice() analytics.Office {
	id := g.nextID("offices")
	name := officeNames[int(id-1)%len(officeNames)]
	if int(id) > len(officeNames) {
		name = fmt.Sprintf("%s %d", name, (int(id)-1)/len(officeNames)+1)
	}
	return analytics.Office{ID: id, Name: name, Location: g.pick(streets)}
}

// GenerateDoctor produces a doctor working at officeID.
func (g *DataGenerator) GenerateDoctor(officeID int64) analytics.Doctor {
	office := officeID
	return analytics.Doctor{
		ID:        g.nextID("doctors"),
		FirstName: g.pick(firstNames),
		LastName:  g.pick(lastNames),
		Specialty: g.pick(specialties),
		OfficeID:  &office,
	}
}

// GeneratePatient produces a patient born between 1940 and 2020.
func (g *DataGenerator) GeneratePatient(unknownRate float64) analytics.Patient {
	p := analytics.Patient{
		ID:            g.nextID("patients"),
		Gender:        g.optional(genders, unknownRate),
		Ethnicity:     g.optional(ethnicity, unknownRate),
		Race:          g.optional(races, unknownRate),
		InsuranceType: g.optional(insurance, unknownRate),
		BloodType:     g.optional(bloodTypes, unknownRate),
	}
	if !g.chance(unknownRate) {
		dob := time.Date(1940+g.rng.Intn(81), time.Month(1+g.rng.Intn(12)), 1+g.rng.Intn(28), 0, 0, 0, 0, time.UTC)
		p.DateOfBirth = &dob
	}
	return p
}

// visitTime returns a slot during office hours on the given day.
func (g *DataGenerator) visitTime(day time.Time, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 8+g.rng.Intn(9), 15*g.rng.Intn(4), 0, 0, loc)
}

// Seeder builds a complete ledger from a SeedConfig.
type Seeder struct {
	generator *DataGenerator
	config    SeedConfig
	mu        sync.RWMutex
	ledger    *analytics.MemoryLedger
}

// NewSeeder creates a Seeder with the given config.
func NewSeeder(config SeedConfig) *Seeder {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.Now.IsZero() {
		config.Now = time.Now()
	}
	return &Seeder{
		generator: NewDataGenerator(config.Seed),
		config:    config,
		ledger:    analytics.NewMemoryLedger(),
	}
}

// Generate replaces the current ledger with a freshly generated one.
func (s *Seeder) Generate() (*SeedResult, error) {
	if err := s.config.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.config
	g := s.generator
	m := analytics.NewMemoryLedger()

	var doctorIDs []int64
	for i := 0; i < cfg.OfficeCount; i++ {
		office := g.GenerateOffice()
		m.Offices[office.ID] = office
		for j := 0; j < cfg.DoctorsPerOffice; j++ {
			d := g.GenerateDoctor(office.ID)
			m.Doctors[d.ID] = d
			doctorIDs = append(doctorIDs, d.ID)
		}
	}

	end := cfg.Start.AddDate(0, cfg.Months, 0)
	span := int(end.Sub(cfg.Start).Hours() / 24)

	for i := 0; i < cfg.PatientCount; i++ {
		p := g.GeneratePatient(cfg.UnknownRate)
		m.Patients[p.ID] = p

		primary := doctorIDs[g.rng.Intn(len(doctorIDs))]
		day := cfg.Start.AddDate(0, 0, g.rng.Intn(span))
		visits := 1 + g.rng.Intn(cfg.MaxVisits)
		var lastCompleted analytics.Visit
		completed := false
		for v := 0; v < visits && day.Before(end); v++ {
			doctorID := primary
			if g.chance(0.2) {
				doctorID = doctorIDs[g.rng.Intn(len(doctorIDs))]
			}
			visit := s.newVisit(m, p.ID, doctorID, g.visitTime(day, cfg.Location))
			m.Visits = append(m.Visits, visit)
			if visit.Status == analytics.StatusCompleted {
				lastCompleted, completed = visit, true
			}
			day = day.AddDate(0, 0, 14+g.rng.Intn(107))
		}

		if completed && len(doctorIDs) > 1 && g.chance(cfg.ReferralRate) {
			m.Referrals = append(m.Referrals, s.newReferral(m, lastCompleted, doctorIDs))
		}
	}

	sort.SliceStable(m.Visits, func(i, j int) bool {
		a, b := m.Visits[i], m.Visits[j]
		if a.Timestamp.Equal(b.Timestamp) {
			return a.ID < b.ID
		}
		return a.Timestamp.Before(b.Timestamp)
	})
	s.ledger = m
	return &SeedResult{
		Offices:   len(m.Offices),
		Doctors:   len(m.Doctors),
		Patients:  len(m.Patients),
		Visits:    len(m.Visits),
		Referrals: len(m.Referrals),
		Duration:  time.Since(start),
	}, nil
}

func (s *Seeder) newVisit(m *analytics.MemoryLedger, patientID, doctorID int64, ts time.Time) analytics.Visit {
	g := s.generator
	v := analytics.Visit{
		ID:        g.nextID("appointments"),
		PatientID: patientID,
		DoctorID:  doctorID,
		OfficeID:  *m.Doctors[doctorID].OfficeID,
		Timestamp: ts,
	}
	if !ts.Before(s.config.Now) {
		v.Status = analytics.StatusScheduled
		return v
	}
	switch r := g.rng.Float64(); {
	case r < s.config.CancelRate:
		v.Status = analytics.StatusCancelled
	case r < s.config.CancelRate+s.config.NoShowRate:
		v.Status = analytics.StatusNoShow
	default:
		v.Status = analytics.StatusCompleted
	}
	return v
}

// newReferral refers the patient of from to another doctor. Approved
// referrals are usually booked with the specialist a few weeks later.
func (s *Seeder) newReferral(m *analytics.MemoryLedger, from analytics.Visit, doctorIDs []int64) analytics.Referral {
	g := s.generator
	specialist := from.DoctorID
	for specialist == from.DoctorID {
		specialist = doctorIDs[g.rng.Intn(len(doctorIDs))]
	}
	ref := analytics.Referral{
		ID:                 g.nextID("referrals"),
		PatientID:          from.PatientID,
		ReferringDoctorID:  from.DoctorID,
		SpecialistDoctorID: specialist,
		Status:             analytics.ReferralPending,
		CreatedAt:          from.Timestamp.Add(time.Hour),
	}

	switch r := g.rng.Float64(); {
	case r < 0.15:
		ref.Status = analytics.ReferralDenied
	case r < 0.85:
		ref.Status = analytics.ReferralApproved
		approved := ref.CreatedAt.AddDate(0, 0, 1+g.rng.Intn(7))
		ref.ApprovedAt = &approved
		if g.chance(0.7) {
			day := approved.AddDate(0, 0, 7+g.rng.Intn(21))
			visit := s.newVisit(m, from.PatientID, specialist, g.visitTime(day, s.config.Location))
			m.Visits = append(m.Visits, visit)
			ref.LinkedVisitID = &visit.ID
		}
	}
	return ref
}

// Ledger returns the most recently generated ledger with visits in
// chronological order.
func (s *Seeder) Ledger() *analytics.MemoryLedger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger
}

// ExportCSV writes the generated ledger in the CSV export layout.
func (s *Seeder) ExportCSV(dir string) error {
	return analytics.WriteCSVDir(dir, s.Ledger())
}
