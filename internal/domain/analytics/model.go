package analytics

import (
	"strings"
	"time"
)

// Status is the lifecycle state of an appointment as recorded by the
// scheduling and check-in flows.
type Status string

const (
	StatusScheduled Status = "Scheduled"
	StatusCheckedIn Status = "Checked-in"
	StatusWaiting   Status = "Waiting"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
	StatusNoShow    Status = "No-Show"
)

var statusAliases = map[string]Status{
	"scheduled":  StatusScheduled,
	"checked-in": StatusCheckedIn,
	"checked_in": StatusCheckedIn,
	"checkedin":  StatusCheckedIn,
	"waiting":    StatusWaiting,
	"completed":  StatusCompleted,
	"cancelled":  StatusCancelled,
	"canceled":   StatusCancelled,
	"no-show":    StatusNoShow,
	"no_show":    StatusNoShow,
	"noshow":     StatusNoShow,
}

// ParseStatus normalizes the spellings used by the clinic database and by
// query strings. The boolean is false for unknown values.
func ParseStatus(s string) (Status, bool) {
	st, ok := statusAliases[strings.ToLower(strings.TrimSpace(s))]
	return st, ok
}

// Qualifying reports whether a visit with this status counts toward cohort
// attribution.
func (s Status) Qualifying() bool {
	return s != StatusCancelled && s != StatusNoShow
}

// Visit maps to the appointments table.
type Visit struct {
	ID        int64     `db:"id" json:"id"`
	PatientID int64     `db:"patient_id" json:"patient_id"`
	DoctorID  int64     `db:"doctor_id" json:"doctor_id"`
	OfficeID  int64     `db:"office_id" json:"office_id"`
	Timestamp time.Time `db:"appointment_time" json:"timestamp"`
	Status    Status    `db:"status" json:"status"`
}

// Qualifying reports whether v is a qualifying visit.
func (v Visit) Qualifying() bool { return v.Status.Qualifying() }

// before orders visits by timestamp, then id.
func (v Visit) before(o Visit) bool {
	if v.Timestamp.Equal(o.Timestamp) {
		return v.ID < o.ID
	}
	return v.Timestamp.Before(o.Timestamp)
}

// Patient maps to the patients table. Demographic attributes are optional.
type Patient struct {
	ID            int64      `db:"id" json:"id"`
	DateOfBirth   *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender        *string    `db:"gender" json:"gender,omitempty"`
	Ethnicity     *string    `db:"ethnicity" json:"ethnicity,omitempty"`
	Race          *string    `db:"race" json:"race,omitempty"`
	InsuranceType *string    `db:"insurance_type" json:"insurance_type,omitempty"`
	BloodType     *string    `db:"blood_type" json:"blood_type,omitempty"`
}

// Doctor maps to the doctors table.
type Doctor struct {
	ID        int64  `db:"id" json:"id"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
	Specialty string `db:"specialty" json:"specialty"`
	OfficeID  *int64 `db:"office_id" json:"office_id,omitempty"`
}

// Name returns the display name used in report rows.
func (d Doctor) Name() string {
	return strings.TrimSpace(d.FirstName + " " + d.LastName)
}

// Office maps to the offices table.
type Office struct {
	ID       int64  `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Location string `db:"location" json:"location"`
}

// Referral maps to the referrals table.
type Referral struct {
	ID                 int64          `db:"id" json:"id"`
	PatientID          int64          `db:"patient_id" json:"patient_id"`
	ReferringDoctorID  int64          `db:"referring_doctor_id" json:"referring_doctor_id"`
	SpecialistDoctorID int64          `db:"specialist_doctor_id" json:"specialist_doctor_id"`
	Status             ReferralStatus `db:"status" json:"status"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	ApprovedAt         *time.Time     `db:"approved_at" json:"approved_at,omitempty"`
	LinkedVisitID      *int64         `db:"linked_visit_id" json:"linked_visit_id,omitempty"`
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
