package analytics

import (
	"sort"
	"strconv"
	"time"

	"github.com/clinic/analytics/pkg/pagination"
)

// dataset is everything one report reads from a ledger snapshot.
type dataset struct {
	filter    Filter
	visits    []Visit
	histories map[int64][]Visit
	cohort    *Cohort
	doctors   map[int64]Doctor
	offices   map[int64]Office
	patients  map[int64]Patient

	prevFilter Filter
	prevCohort *Cohort
}

// =========== New patients ===========

type NewPatientsSummary struct {
	NewPatients         int     `json:"new_patients"`
	PreviousNewPatients int     `json:"previous_period_new_patients"`
	GrowthRate          float64 `json:"growth_rate"`
	TotalPatientsSeen   int     `json:"total_patients_seen"`
	ReturningPatients   int     `json:"returning_patients"`
	Period              Period  `json:"period"`
	PreviousPeriod      Period  `json:"previous_period"`
}

type DoctorAcquisition struct {
	DoctorID    int64   `json:"doctor_id"`
	DoctorName  string  `json:"doctor_name"`
	Specialty   string  `json:"specialty"`
	NewPatients int     `json:"new_patients"`
	Percentage  float64 `json:"percentage"`
}

type OfficeAcquisition struct {
	OfficeID    int64   `json:"office_id"`
	OfficeName  string  `json:"office_name"`
	NewPatients int     `json:"new_patients"`
	Percentage  float64 `json:"percentage"`
}

type NewPatientsReport struct {
	Success   bool                `json:"success"`
	Summary   NewPatientsSummary  `json:"summary"`
	ByDoctor  []DoctorAcquisition `json:"by_doctor"`
	ByOffice  []OfficeAcquisition `json:"by_office"`
	TrendData []TrendPoint        `json:"trend_data"`
}

func buildNewPatients(d *dataset) *NewPatientsReport {
	f := d.filter
	acquired := d.cohort.NewPatients(f)
	prev := 0
	if d.prevCohort != nil {
		prev = len(d.prevCohort.NewPatients(d.prevFilter))
	}

	// A seen patient is returning only when their first qualifying visit
	// predates the window, whatever office or doctor it was with.
	seen := make(map[int64]struct{})
	returning := 0
	for _, v := range d.visits {
		if !v.Qualifying() {
			continue
		}
		if _, ok := seen[v.PatientID]; ok {
			continue
		}
		seen[v.PatientID] = struct{}{}
		if !d.cohort.IsNew(v.PatientID) {
			returning++
		}
	}

	byDoctor := make(map[int64]int)
	byOffice := make(map[int64]int)
	trend := newSeries(f.GroupBy, f.Window.Start.Location(), false)
	for _, e := range acquired {
		byDoctor[e.FirstVisit.DoctorID]++
		byOffice[e.FirstVisit.OfficeID]++
		trend.add(e.FirstQualifyingTS)
	}

	r := &NewPatientsReport{
		Success: true,
		Summary: NewPatientsSummary{
			NewPatients:         len(acquired),
			PreviousNewPatients: prev,
			GrowthRate:          GrowthRate(len(acquired), prev),
			TotalPatientsSeen:   len(seen),
			ReturningPatients:   returning,
			Period:              f.Window.Period(),
			PreviousPeriod:      d.prevFilter.Window.Period(),
		},
		ByDoctor:  make([]DoctorAcquisition, 0, len(byDoctor)),
		ByOffice:  make([]OfficeAcquisition, 0, len(byOffice)),
		TrendData: trend.sorted(),
	}

	for id, n := range byDoctor {
		doc := d.doctors[id]
		r.ByDoctor = append(r.ByDoctor, DoctorAcquisition{
			DoctorID:    id,
			DoctorName:  doctorName(d.doctors, id),
			Specialty:   doc.Specialty,
			NewPatients: n,
			Percentage:  Percent(n, len(acquired)),
		})
	}
	sort.Slice(r.ByDoctor, func(i, j int) bool {
		a, b := r.ByDoctor[i], r.ByDoctor[j]
		if a.NewPatients != b.NewPatients {
			return a.NewPatients > b.NewPatients
		}
		if a.DoctorName != b.DoctorName {
			return a.DoctorName < b.DoctorName
		}
		return a.DoctorID < b.DoctorID
	})

	for id, n := range byOffice {
		r.ByOffice = append(r.ByOffice, OfficeAcquisition{
			OfficeID:    id,
			OfficeName:  officeName(d.offices, id),
			NewPatients: n,
			Percentage:  Percent(n, len(acquired)),
		})
	}
	sort.Slice(r.ByOffice, func(i, j int) bool {
		a, b := r.ByOffice[i], r.ByOffice[j]
		if a.NewPatients != b.NewPatients {
			return a.NewPatients > b.NewPatients
		}
		if a.OfficeName != b.OfficeName {
			return a.OfficeName < b.OfficeName
		}
		return a.OfficeID < b.OfficeID
	})
	return r
}

// =========== Patient retention ===========

type RetentionSummary struct {
	CohortSize     int            `json:"cohort_size"`
	Retained       int            `json:"retained"`
	NewUnder30Days int            `json:"new_under_30_days"`
	AtRisk         int            `json:"at_risk"`
	RetentionRate  float64        `json:"retention_rate"`
	RetentionBasis RetentionBasis `json:"retention_basis"`
	Period         Period         `json:"period"`
	ClassifiedAsOf string         `json:"classified_as_of"`
}

type CategoryCount struct {
	Category   RetentionCategory `json:"category"`
	Count      int               `json:"count"`
	Percentage float64           `json:"percentage"`
}

type PatientRetention struct {
	PatientID        int64             `json:"patient_id"`
	FirstVisit       time.Time         `json:"first_visit"`
	FirstVisitDoctor int64             `json:"first_visit_doctor_id"`
	FirstVisitOffice int64             `json:"first_visit_office_id"`
	LastVisit        time.Time         `json:"last_visit"`
	TotalVisits      int               `json:"total_visits"`
	QualifyingVisits int               `json:"qualifying_visits"`
	Category         RetentionCategory `json:"category"`
}

type RetentionReport struct {
	Success    bool               `json:"success"`
	Summary    RetentionSummary   `json:"summary"`
	Categories []CategoryCount    `json:"categories"`
	Patients   []PatientRetention `json:"patients"`
	Pagination pagination.Meta    `json:"pagination"`
	TrendData  []TrendPoint       `json:"trend_data"`
}

func buildRetention(d *dataset, now time.Time) *RetentionReport {
	f := d.filter
	acquired := d.cohort.NewPatients(f)
	counts := make(map[RetentionCategory]int, len(RetentionCategories))
	rows := make([]PatientRetention, 0, len(acquired))
	trend := newSeries(f.GroupBy, f.Window.Start.Location(), true)

	for _, e := range acquired {
		history := d.histories[e.PatientID]
		cat := Classify(e.FirstQualifyingTS, HasLaterVisit(history, e.FirstQualifyingTS, f.RetentionBasis), now)
		counts[cat]++

		row := PatientRetention{
			PatientID:        e.PatientID,
			FirstVisit:       e.FirstQualifyingTS,
			FirstVisitDoctor: e.FirstVisit.DoctorID,
			FirstVisitOffice: e.FirstVisit.OfficeID,
			LastVisit:        e.FirstQualifyingTS,
			TotalVisits:      len(history),
			QualifyingVisits: e.TotalQualifyingVisits,
			Category:         cat,
		}
		for _, v := range history {
			if v.Timestamp.After(row.LastVisit) {
				row.LastVisit = v.Timestamp
			}
		}
		rows = append(rows, row)

		trend.add(e.FirstQualifyingTS)
		if cat == CategoryRetained {
			trend.addSecondary(e.FirstQualifyingTS)
		}
	}

	page := pagination.Normalize(f.Limit, f.Offset)
	start, end := page.Bounds(len(rows))

	r := &RetentionReport{
		Success: true,
		Summary: RetentionSummary{
			CohortSize:     len(acquired),
			Retained:       counts[CategoryRetained],
			NewUnder30Days: counts[CategoryNew],
			AtRisk:         counts[CategoryAtRisk],
			RetentionRate:  RetentionRate(counts[CategoryRetained], len(acquired)),
			RetentionBasis: f.RetentionBasis,
			Period:         f.Window.Period(),
			ClassifiedAsOf: now.In(f.Window.Start.Location()).Format(dateLayout),
		},
		Categories: make([]CategoryCount, 0, len(RetentionCategories)),
		Patients:   rows[start:end],
		Pagination: pagination.NewMeta(page, len(rows)),
		TrendData:  trend.sorted(),
	}
	for _, c := range RetentionCategories {
		r.Categories = append(r.Categories, CategoryCount{
			Category:   c,
			Count:      counts[c],
			Percentage: Percent(counts[c], len(acquired)),
		})
	}
	return r
}

// =========== Doctor performance ===========

type DoctorPerformance struct {
	DoctorID            int64   `json:"doctor_id"`
	DoctorName          string  `json:"doctor_name"`
	Specialty           string  `json:"specialty"`
	OfficeID            *int64  `json:"office_id,omitempty"`
	TotalAppointments   int     `json:"total_appointments"`
	Completed           int     `json:"completed"`
	Cancelled           int     `json:"cancelled"`
	NoShow              int     `json:"no_show"`
	Scheduled           int     `json:"scheduled"`
	PatientsSeen        int     `json:"patients_seen"`
	NewPatientsAcquired int     `json:"new_patients_acquired"`
	RetainedPatients    int     `json:"retained_patients"`
	RetentionRate       float64 `json:"retention_rate"`
	AvgVisitsPerPatient float64 `json:"avg_visits_per_patient"`
	CompletionRate      float64 `json:"completion_rate"`
	NoShowRate          float64 `json:"no_show_rate"`
}

type DoctorPerformanceSummary struct {
	TotalDoctors          int     `json:"total_doctors"`
	TotalAppointments     int     `json:"total_appointments"`
	TotalNewPatients      int     `json:"total_new_patients"`
	TotalRetainedPatients int     `json:"total_retained_patients"`
	AvgRetentionRate      float64 `json:"avg_retention_rate"`
	AvgCompletionRate     float64 `json:"avg_completion_rate"`
	Period                Period  `json:"period"`
}

type DoctorPerformanceReport struct {
	Success bool                     `json:"success"`
	Summary DoctorPerformanceSummary `json:"summary"`
	Doctors []DoctorPerformance      `json:"doctors"`
}

type DoctorDetailReport struct {
	Success   bool              `json:"success"`
	Doctor    DoctorPerformance `json:"doctor"`
	Period    Period            `json:"period"`
	TrendData []TrendPoint      `json:"trend_data"`
}

func doctorRow(g *GroupStats, id int64, d *dataset) DoctorPerformance {
	doc := d.doctors[id]
	row := DoctorPerformance{
		DoctorID:   id,
		DoctorName: doctorName(d.doctors, id),
		Specialty:  doc.Specialty,
		OfficeID:   doc.OfficeID,
	}
	if g == nil {
		return row
	}
	row.TotalAppointments = g.Total
	row.Completed = g.Completed
	row.Cancelled = g.Cancelled
	row.NoShow = g.NoShow
	row.Scheduled = g.Scheduled
	row.PatientsSeen = g.Patients
	row.NewPatientsAcquired = g.NewPatients
	for _, pid := range g.NewPatientIDs() {
		if IsRetainedByDoctor(d.histories[pid], id) {
			row.RetainedPatients++
		}
	}
	row.RetentionRate = RetentionRate(row.RetainedPatients, row.NewPatientsAcquired)
	row.AvgVisitsPerPatient = AvgVisitsPerPatient(row.Completed, row.PatientsSeen)
	row.CompletionRate = g.CompletionRate
	row.NoShowRate = g.NoShowRate
	return row
}

func buildDoctorPerformance(d *dataset) *DoctorPerformanceReport {
	groups := Aggregate(d.visits, DoctorKey(d.doctors), d.cohort)
	r := &DoctorPerformanceReport{
		Success: true,
		Doctors: make([]DoctorPerformance, 0, len(groups)),
	}
	retention := make([]float64, 0, len(groups))
	completion := make([]float64, 0, len(groups))
	for _, g := range groups {
		id, _ := strconv.ParseInt(g.Key, 10, 64)
		row := doctorRow(g, id, d)
		r.Doctors = append(r.Doctors, row)
		r.Summary.TotalAppointments += row.TotalAppointments
		r.Summary.TotalNewPatients += row.NewPatientsAcquired
		r.Summary.TotalRetainedPatients += row.RetainedPatients
		retention = append(retention, row.RetentionRate)
		completion = append(completion, row.CompletionRate)
	}
	sort.Slice(r.Doctors, func(i, j int) bool {
		a, b := r.Doctors[i], r.Doctors[j]
		if a.NewPatientsAcquired != b.NewPatientsAcquired {
			return a.NewPatientsAcquired > b.NewPatientsAcquired
		}
		if a.DoctorName != b.DoctorName {
			return a.DoctorName < b.DoctorName
		}
		return a.DoctorID < b.DoctorID
	})
	r.Summary.TotalDoctors = len(r.Doctors)
	r.Summary.AvgRetentionRate = UnweightedMean(retention)
	r.Summary.AvgCompletionRate = UnweightedMean(completion)
	r.Summary.Period = d.filter.Window.Period()
	return r
}

func buildDoctorDetail(d *dataset, doctorID int64) *DoctorDetailReport {
	var group *GroupStats
	for _, g := range Aggregate(d.visits, DoctorKey(d.doctors), d.cohort) {
		if g.Key == strconv.FormatInt(doctorID, 10) {
			group = g
		}
	}
	trend := newSeries(d.filter.GroupBy, d.filter.Window.Start.Location(), true)
	for _, v := range d.visits {
		trend.add(v.Timestamp)
		if v.Status == StatusCompleted {
			trend.addSecondary(v.Timestamp)
		}
	}
	return &DoctorDetailReport{
		Success:   true,
		Doctor:    doctorRow(group, doctorID, d),
		Period:    d.filter.Window.Period(),
		TrendData: trend.sorted(),
	}
}

// =========== Office utilization ===========

type OfficeUtilization struct {
	OfficeID          int64   `json:"office_id"`
	OfficeName        string  `json:"office_name"`
	Location          string  `json:"location"`
	TotalAppointments int     `json:"total_appointments"`
	Completed         int     `json:"completed"`
	Cancelled         int     `json:"cancelled"`
	NoShow            int     `json:"no_show"`
	Scheduled         int     `json:"scheduled"`
	CheckedIn         int     `json:"checked_in"`
	Waiting           int     `json:"waiting"`
	UniquePatients    int     `json:"unique_patients"`
	NewPatients       int     `json:"new_patients"`
	ActiveDoctors     int     `json:"active_doctors"`
	CompletionRate    float64 `json:"completion_rate"`
	NoShowRate        float64 `json:"no_show_rate"`
	CancellationRate  float64 `json:"cancellation_rate"`
}

type OfficeUtilizationSummary struct {
	TotalOffices      int     `json:"total_offices"`
	TotalAppointments int     `json:"total_appointments"`
	AvgNoShowRate     float64 `json:"avg_no_show_rate"`
	AvgCompletionRate float64 `json:"avg_completion_rate"`
	Period            Period  `json:"period"`
}

type OfficeUtilizationReport struct {
	Success   bool                     `json:"success"`
	Summary   OfficeUtilizationSummary `json:"summary"`
	Offices   []OfficeUtilization      `json:"offices"`
	TrendData []TrendPoint             `json:"trend_data"`
}

func buildOfficeUtilization(d *dataset) *OfficeUtilizationReport {
	groups := Aggregate(d.visits, OfficeKey(d.offices), d.cohort)

	doctors := make(map[int64]map[int64]struct{})
	trend := newSeries(d.filter.GroupBy, d.filter.Window.Start.Location(), true)
	for _, v := range d.visits {
		if doctors[v.OfficeID] == nil {
			doctors[v.OfficeID] = make(map[int64]struct{})
		}
		doctors[v.OfficeID][v.DoctorID] = struct{}{}
		trend.add(v.Timestamp)
		if v.Status == StatusCompleted {
			trend.addSecondary(v.Timestamp)
		}
	}

	r := &OfficeUtilizationReport{
		Success:   true,
		Offices:   make([]OfficeUtilization, 0, len(groups)),
		TrendData: trend.sorted(),
	}
	noShow := make([]float64, 0, len(groups))
	completion := make([]float64, 0, len(groups))
	for _, g := range groups {
		id, _ := strconv.ParseInt(g.Key, 10, 64)
		r.Offices = append(r.Offices, OfficeUtilization{
			OfficeID:          id,
			OfficeName:        g.Label,
			Location:          d.offices[id].Location,
			TotalAppointments: g.Total,
			Completed:         g.Completed,
			Cancelled:         g.Cancelled,
			NoShow:            g.NoShow,
			Scheduled:         g.Scheduled,
			CheckedIn:         g.CheckedIn,
			Waiting:           g.Waiting,
			UniquePatients:    g.Patients,
			NewPatients:       g.NewPatients,
			ActiveDoctors:     len(doctors[id]),
			CompletionRate:    g.CompletionRate,
			NoShowRate:        g.NoShowRate,
			CancellationRate:  g.CancellationRate,
		})
		r.Summary.TotalAppointments += g.Total
		noShow = append(noShow, g.NoShowRate)
		completion = append(completion, g.CompletionRate)
	}
	sort.Slice(r.Offices, func(i, j int) bool {
		a, b := r.Offices[i], r.Offices[j]
		if a.OfficeName != b.OfficeName {
			return a.OfficeName < b.OfficeName
		}
		return a.OfficeID < b.OfficeID
	})
	r.Summary.TotalOffices = len(r.Offices)
	r.Summary.AvgNoShowRate = UnweightedMean(noShow)
	r.Summary.AvgCompletionRate = UnweightedMean(completion)
	r.Summary.Period = d.filter.Window.Period()
	return r
}

// =========== Demographics ===========

type DemographicGroup struct {
	Label       string  `json:"label"`
	Patients    int     `json:"patients"`
	NewPatients int     `json:"new_patients"`
	Visits      int     `json:"visits"`
	Completed   int     `json:"completed"`
	NoShow      int     `json:"no_show"`
	NoShowRate  float64 `json:"no_show_rate"`
	Percentage  float64 `json:"percentage"`
}

type DemographicsSummary struct {
	Dimension     Dimension `json:"dimension"`
	TotalPatients int       `json:"total_patients"`
	NewPatients   int       `json:"new_patients"`
	TotalVisits   int       `json:"total_visits"`
	Period        Period    `json:"period"`
}

type DemographicsReport struct {
	Success bool                `json:"success"`
	Summary DemographicsSummary `json:"summary"`
	Groups  []DemographicGroup  `json:"groups"`
}

func buildDemographics(d *dataset) *DemographicsReport {
	dim := d.filter.Dimension
	if dim == "" {
		dim = DimensionAgeGroup
	}
	var key GroupKeyFunc
	switch dim {
	case DimensionDoctor:
		key = DoctorKey(d.doctors)
	case DimensionOffice:
		key = OfficeKey(d.offices)
	default:
		key = DemographicKey(dim, d.patients, d.filter.Window.End)
	}

	seen := make(map[int64]struct{})
	newSeen := make(map[int64]struct{})
	for _, v := range d.visits {
		if !v.Qualifying() {
			continue
		}
		seen[v.PatientID] = struct{}{}
		if e, ok := d.cohort.Get(v.PatientID); ok && e.IsNewInWindow && e.FirstVisit.ID == v.ID {
			newSeen[v.PatientID] = struct{}{}
		}
	}

	groups := Aggregate(d.visits, key, d.cohort)
	SortByLabel(groups, dim)

	r := &DemographicsReport{
		Success: true,
		Summary: DemographicsSummary{
			Dimension:     dim,
			TotalPatients: len(seen),
			NewPatients:   len(newSeen),
			TotalVisits:   len(d.visits),
			Period:        d.filter.Window.Period(),
		},
		Groups: make([]DemographicGroup, 0, len(groups)),
	}
	for _, g := range groups {
		r.Groups = append(r.Groups, DemographicGroup{
			Label:       g.Label,
			Patients:    g.Patients,
			NewPatients: g.NewPatients,
			Visits:      g.Total,
			Completed:   g.Completed,
			NoShow:      g.NoShow,
			NoShowRate:  g.NoShowRate,
			Percentage:  Percent(g.Patients, len(seen)),
		})
	}
	return r
}

// =========== Referral funnel ===========

type ReferralSummary struct {
	Total             int     `json:"total"`
	Pending           int     `json:"pending"`
	Approved          int     `json:"approved"`
	Denied            int     `json:"denied"`
	Booked            int     `json:"booked"`
	ApprovalRate      float64 `json:"approval_rate"`
	BookingRate       float64 `json:"booking_rate"`
	AvgDaysToApproval float64 `json:"avg_days_to_approval"`
	Period            Period  `json:"period"`
}

type SpecialistReferrals struct {
	DoctorID     int64   `json:"doctor_id"`
	DoctorName   string  `json:"doctor_name"`
	Specialty    string  `json:"specialty"`
	Total        int     `json:"total"`
	Pending      int     `json:"pending"`
	Approved     int     `json:"approved"`
	Denied       int     `json:"denied"`
	Booked       int     `json:"booked"`
	ApprovalRate float64 `json:"approval_rate"`
}

type StageCount struct {
	Stage      FunnelStage `json:"stage"`
	Count      int         `json:"count"`
	Percentage float64     `json:"percentage"`
}

type ReferralFunnelReport struct {
	Success      bool                  `json:"success"`
	Summary      ReferralSummary       `json:"summary"`
	Stages       []StageCount          `json:"stages"`
	BySpecialist []SpecialistReferrals `json:"by_specialist"`
	TrendData    []TrendPoint          `json:"trend_data"`
}

type funnelCounts struct {
	total, pending, approved, denied, booked int
}

func (c *funnelCounts) add(r Referral) {
	c.total++
	switch r.Stage() {
	case StagePending:
		c.pending++
	case StageDenied:
		c.denied++
	case StageBooked:
		c.booked++
	}
	if r.Approved() {
		c.approved++
	}
}

func buildReferralFunnel(d *dataset, referrals []Referral) *ReferralFunnelReport {
	var all funnelCounts
	stages := make(map[FunnelStage]int, len(FunnelStages))
	bySpecialist := make(map[int64]*funnelCounts)
	trend := newSeries(d.filter.GroupBy, d.filter.Window.Start.Location(), true)

	var approvalDays float64
	var timed int
	for _, ref := range referrals {
		all.add(ref)
		stages[ref.Stage()]++
		c, ok := bySpecialist[ref.SpecialistDoctorID]
		if !ok {
			c = &funnelCounts{}
			bySpecialist[ref.SpecialistDoctorID] = c
		}
		c.add(ref)

		trend.add(ref.CreatedAt)
		if ref.Approved() {
			trend.addSecondary(ref.CreatedAt)
			if ref.ApprovedAt != nil && !ref.ApprovedAt.Before(ref.CreatedAt) {
				approvalDays += ref.ApprovedAt.Sub(ref.CreatedAt).Hours() / 24
				timed++
			}
		}
	}

	r := &ReferralFunnelReport{
		Success: true,
		Summary: ReferralSummary{
			Total:        all.total,
			Pending:      all.pending,
			Approved:     all.approved,
			Denied:       all.denied,
			Booked:       all.booked,
			ApprovalRate: Percent(all.approved, all.total),
			BookingRate:  Percent(all.booked, all.approved),
			Period:       d.filter.Window.Period(),
		},
		Stages:       make([]StageCount, 0, len(FunnelStages)),
		BySpecialist: make([]SpecialistReferrals, 0, len(bySpecialist)),
		TrendData:    trend.sorted(),
	}
	if timed > 0 {
		r.Summary.AvgDaysToApproval = Round1(approvalDays / float64(timed))
	}
	for _, s := range FunnelStages {
		r.Stages = append(r.Stages, StageCount{Stage: s, Count: stages[s], Percentage: Percent(stages[s], all.total)})
	}
	for id, c := range bySpecialist {
		r.BySpecialist = append(r.BySpecialist, SpecialistReferrals{
			DoctorID:     id,
			DoctorName:   doctorName(d.doctors, id),
			Specialty:    d.doctors[id].Specialty,
			Total:        c.total,
			Pending:      c.pending,
			Approved:     c.approved,
			Denied:       c.denied,
			Booked:       c.booked,
			ApprovalRate: Percent(c.approved, c.total),
		})
	}
	sort.Slice(r.BySpecialist, func(i, j int) bool {
		a, b := r.BySpecialist[i], r.BySpecialist[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		if a.DoctorName != b.DoctorName {
			return a.DoctorName < b.DoctorName
		}
		return a.DoctorID < b.DoctorID
	})
	return r
}

func doctorName(doctors map[int64]Doctor, id int64) string {
	if d, ok := doctors[id]; ok && d.Name() != "" {
		return d.Name()
	}
	return "Doctor #" + strconv.FormatInt(id, 10)
}

func officeName(offices map[int64]Office, id int64) string {
	if o, ok := offices[id]; ok && o.Name != "" {
		return o.Name
	}
	return "Office #" + strconv.FormatInt(id, 10)
}
