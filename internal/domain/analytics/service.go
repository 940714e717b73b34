package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinic/analytics/internal/platform/auth"
	"github.com/clinic/analytics/internal/platform/cache"
)

// Report names, used in routes, the catalog, cache keys and logs.
const (
	ReportNewPatients       = "new-patients"
	ReportPatientRetention  = "patient-retention"
	ReportDoctorPerformance = "doctor-performance"
	ReportDoctorDetail      = "doctor-performance-detail"
	ReportOfficeUtilization = "office-utilization"
	ReportDemographics      = "demographics"
	ReportReferralFunnel    = "referral-funnel"
)

// Report outcomes passed to a ReportObserver.
const (
	OutcomeGenerated = "generated"
	OutcomeCached    = "cached"
	OutcomeDenied    = "denied"
	OutcomeFailed    = "failed"
)

// ReportObserver receives one call per report request, for metrics.
type ReportObserver interface {
	ObserveReport(report, outcome string, elapsed time.Duration)
}

type Service struct {
	reader   LedgerReader
	logger   zerolog.Logger
	cache    cache.Store
	cacheTTL time.Duration
	now      func() time.Time
	loc      *time.Location
	basis    RetentionBasis
	observer ReportObserver
}

func NewService(reader LedgerReader, logger zerolog.Logger) *Service {
	return &Service{
		reader: reader,
		logger: logger.With().Str("component", "analytics").Logger(),
		now:    time.Now,
		loc:    time.UTC,
		basis:  RetentionAnyVisit,
	}
}

// SetCache enables payload caching. A nil store or non-positive ttl disables it.
func (s *Service) SetCache(store cache.Store, ttl time.Duration) {
	if store == nil || ttl <= 0 {
		s.cache, s.cacheTTL = nil, 0
		return
	}
	s.cache, s.cacheTTL = store, ttl
}

// SetObserver registers a ReportObserver.
func (s *Service) SetObserver(o ReportObserver) { s.observer = o }

func (s *Service) observe(report, outcome string, start time.Time) {
	if s.observer != nil {
		s.observer.ObserveReport(report, outcome, time.Since(start))
	}
}

// SetClock replaces the clock used for default windows and retention
// classification.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// SetLocation sets the time zone in which dates and buckets are interpreted.
func (s *Service) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

// SetRetentionBasis sets the default basis when a request does not name one.
func (s *Service) SetRetentionBasis(b RetentionBasis) {
	if b != "" {
		s.basis = b
	}
}

// ParseFilter validates request parameters against the service's clock,
// location and default retention basis.
func (s *Service) ParseFilter(p FilterParams) (Filter, error) {
	return ParseFilter(p, s.now(), s.loc, s.basis)
}

func authorize(a auth.AuthContext) error {
	if !a.IsAdmin() {
		return &AuthorizationError{UserID: a.UserID}
	}
	return nil
}

// loadOptions selects the optional reads of a report.
type loadOptions struct {
	doctors  bool
	offices  bool
	patients bool
	previous bool
}

// load reads everything a report needs from one snapshot.
func (s *Service) load(ctx context.Context, f Filter, opts loadOptions) (*dataset, error) {
	d := &dataset{filter: f}
	err := s.reader.Snapshot(ctx, func(ctx context.Context, l Ledger) error {
		var err error
		if d.visits, err = l.FetchVisits(ctx, f.VisitFilter()); err != nil {
			return upstream("fetch visits", err)
		}
		ids := patientIDs(d.visits)

		var prevVisits []Visit
		if opts.previous {
			d.prevFilter = f
			d.prevFilter.Window = PreviousWindow(f.Window)
			if prevVisits, err = l.FetchVisits(ctx, d.prevFilter.VisitFilter()); err != nil {
				return upstream("fetch previous visits", err)
			}
			ids = patientIDs(append(append([]Visit(nil), d.visits...), prevVisits...))
		}

		if d.histories, err = l.FetchFullHistory(ctx, ids); err != nil {
			return upstream("fetch history", err)
		}
		if opts.doctors {
			if d.doctors, err = l.FetchDoctors(ctx); err != nil {
				return upstream("fetch doctors", err)
			}
		}
		if opts.offices {
			if d.offices, err = l.FetchOffices(ctx); err != nil {
				return upstream("fetch offices", err)
			}
		}
		if opts.patients {
			if d.patients, err = l.FetchPatients(ctx, patientIDs(d.visits)); err != nil {
				return upstream("fetch patients", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, upstream("snapshot", err)
	}

	d.cohort = ResolveCohort(d.histories, f.Window)
	if opts.previous {
		d.prevCohort = ResolveCohort(d.histories, d.prevFilter.Window)
	}
	return d, nil
}

// checkAccess authorizes the caller and records denials.
func (s *Service) checkAccess(report string, a auth.AuthContext, start time.Time) error {
	if err := authorize(a); err != nil {
		s.logger.Warn().Str("report", report).Str("user_id", a.UserID).Msg("report access denied")
		s.observe(report, OutcomeDenied, start)
		return err
	}
	return nil
}

// run authorizes the caller, consults the cache and otherwise computes the
// payload with build. Failed computations are never cached.
func run[T any](ctx context.Context, s *Service, a auth.AuthContext, report, key string, build func(ctx context.Context) (*T, error)) (*T, error) {
	start := time.Now()
	if err := s.checkAccess(report, a, start); err != nil {
		return nil, err
	}

	cacheKey := a.ClinicID + "|" + report + "|" + key
	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, cacheKey); err != nil {
			s.logger.Warn().Err(err).Str("report", report).Msg("report cache read failed")
		} else if ok {
			var out T
			if err := json.Unmarshal(data, &out); err == nil {
				s.logger.Debug().Str("report", report).Msg("report served from cache")
				s.observe(report, OutcomeCached, start)
				return &out, nil
			}
		}
	}

	out, err := build(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("report", report).Str("clinic_id", a.ClinicID).Msg("report generation failed")
		s.observe(report, OutcomeFailed, start)
		return nil, err
	}
	s.observe(report, OutcomeGenerated, start)
	s.logger.Debug().Str("report", report).Str("clinic_id", a.ClinicID).
		Dur("elapsed", time.Since(start)).Msg("report generated")

	if s.cache != nil {
		if data, err := json.Marshal(out); err == nil {
			if err := s.cache.Set(ctx, cacheKey, data, s.cacheTTL); err != nil {
				s.logger.Warn().Err(err).Str("report", report).Msg("report cache write failed")
			}
		}
	}
	return out, nil
}

// NewPatients reports patients acquired in the window with a comparison
// against the preceding window of equal length.
func (s *Service) NewPatients(ctx context.Context, a auth.AuthContext, f Filter) (*NewPatientsReport, error) {
	return run(ctx, s, a, ReportNewPatients, f.CacheKey(), func(ctx context.Context) (*NewPatientsReport, error) {
		d, err := s.load(ctx, f, loadOptions{doctors: true, offices: true, previous: true})
		if err != nil {
			return nil, err
		}
		return buildNewPatients(d), nil
	})
}

// PatientRetention classifies the patients acquired in the window. The
// classification instant is the current minute and is part of the cache key.
func (s *Service) PatientRetention(ctx context.Context, a auth.AuthContext, f Filter) (*RetentionReport, error) {
	now := s.now().Truncate(time.Minute)
	key := f.CacheKey() + "|now=" + now.UTC().Format(time.RFC3339)
	return run(ctx, s, a, ReportPatientRetention, key, func(ctx context.Context) (*RetentionReport, error) {
		d, err := s.load(ctx, f, loadOptions{})
		if err != nil {
			return nil, err
		}
		return buildRetention(d, now), nil
	})
}

// DoctorPerformance reports acquisition, retention and throughput per doctor.
func (s *Service) DoctorPerformance(ctx context.Context, a auth.AuthContext, f Filter) (*DoctorPerformanceReport, error) {
	return run(ctx, s, a, ReportDoctorPerformance, f.CacheKey(), func(ctx context.Context) (*DoctorPerformanceReport, error) {
		d, err := s.load(ctx, f, loadOptions{doctors: true})
		if err != nil {
			return nil, err
		}
		return buildDoctorPerformance(d), nil
	})
}

// DoctorDetail is the doctor-scoped performance report. f.DoctorID is required.
func (s *Service) DoctorDetail(ctx context.Context, a auth.AuthContext, f Filter) (*DoctorDetailReport, error) {
	if err := s.checkAccess(ReportDoctorDetail, a, time.Now()); err != nil {
		return nil, err
	}
	if f.DoctorID == nil {
		return nil, &ValidationError{Field: "doctor_id", Message: "doctor_id is required"}
	}
	doctorID := *f.DoctorID
	return run(ctx, s, a, ReportDoctorDetail, f.CacheKey(), func(ctx context.Context) (*DoctorDetailReport, error) {
		d, err := s.load(ctx, f, loadOptions{doctors: true})
		if err != nil {
			return nil, err
		}
		return buildDoctorDetail(d, doctorID), nil
	})
}

// OfficeUtilization reports visit volume and outcome rates per office.
func (s *Service) OfficeUtilization(ctx context.Context, a auth.AuthContext, f Filter) (*OfficeUtilizationReport, error) {
	return run(ctx, s, a, ReportOfficeUtilization, f.CacheKey(), func(ctx context.Context) (*OfficeUtilizationReport, error) {
		d, err := s.load(ctx, f, loadOptions{offices: true})
		if err != nil {
			return nil, err
		}
		return buildOfficeUtilization(d), nil
	})
}

// Demographics breaks down the patients seen in the window by one dimension.
func (s *Service) Demographics(ctx context.Context, a auth.AuthContext, f Filter) (*DemographicsReport, error) {
	return run(ctx, s, a, ReportDemographics, f.CacheKey(), func(ctx context.Context) (*DemographicsReport, error) {
		opts := loadOptions{patients: true}
		switch f.Dimension {
		case DimensionDoctor:
			opts = loadOptions{doctors: true}
		case DimensionOffice:
			opts = loadOptions{offices: true}
		}
		d, err := s.load(ctx, f, opts)
		if err != nil {
			return nil, err
		}
		return buildDemographics(d), nil
	})
}

// ReferralFunnel reports referrals created in the window by funnel stage.
func (s *Service) ReferralFunnel(ctx context.Context, a auth.AuthContext, f Filter) (*ReferralFunnelReport, error) {
	return run(ctx, s, a, ReportReferralFunnel, f.CacheKey(), func(ctx context.Context) (*ReferralFunnelReport, error) {
		var (
			referrals []Referral
			doctors   map[int64]Doctor
		)
		err := s.reader.Snapshot(ctx, func(ctx context.Context, l Ledger) error {
			var err error
			if referrals, err = l.FetchReferrals(ctx, ReferralFilter{Window: f.Window, DoctorID: f.DoctorID}); err != nil {
				return upstream("fetch referrals", err)
			}
			if doctors, err = l.FetchDoctors(ctx); err != nil {
				return upstream("fetch doctors", err)
			}
			return nil
		})
		if err != nil {
			return nil, upstream("snapshot", err)
		}
		return buildReferralFunnel(&dataset{filter: f, doctors: doctors}, referrals), nil
	})
}

// Run produces the named report. It backs callers that select a report by
// name, such as the command line.
func (s *Service) Run(ctx context.Context, report string, a auth.AuthContext, f Filter) (interface{}, error) {
	switch report {
	case ReportNewPatients:
		return s.NewPatients(ctx, a, f)
	case ReportPatientRetention:
		return s.PatientRetention(ctx, a, f)
	case ReportDoctorPerformance:
		if f.DoctorID != nil {
			return s.DoctorDetail(ctx, a, f)
		}
		return s.DoctorPerformance(ctx, a, f)
	case ReportDoctorDetail:
		return s.DoctorDetail(ctx, a, f)
	case ReportOfficeUtilization:
		return s.OfficeUtilization(ctx, a, f)
	case ReportDemographics:
		return s.Demographics(ctx, a, f)
	case ReportReferralFunnel:
		return s.ReferralFunnel(ctx, a, f)
	}
	return nil, &ValidationError{Field: "report", Message: fmt.Sprintf("unknown report %q", report)}
}
