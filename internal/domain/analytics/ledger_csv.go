package analytics

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CSV file names read by LoadCSVDir. Only the appointments file is required.
const (
	AppointmentsFile = "appointments.csv"
	PatientsFile     = "patients.csv"
	DoctorsFile      = "doctors.csv"
	OfficesFile      = "offices.csv"
	ReferralsFile    = "referrals.csv"
)

var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02 15:04", dateLayout}

// LoadCSVDir reads a ledger export from dir. Each file has a header row;
// columns are matched by name and may appear in any order. Timestamps without
// an offset are read in loc.
func LoadCSVDir(dir string, loc *time.Location) (*MemoryLedger, error) {
	m := NewMemoryLedger()

	if err := readCSV(filepath.Join(dir, AppointmentsFile), true, func(r csvRow) error {
		v, err := r.visit(loc)
		if err != nil {
			return err
		}
		m.Visits = append(m.Visits, v)
		return nil
	}); err != nil {
		return nil, err
	}
	if err := readCSV(filepath.Join(dir, PatientsFile), false, func(r csvRow) error {
		p, err := r.patient(loc)
		if err != nil {
			return err
		}
		m.Patients[p.ID] = p
		return nil
	}); err != nil {
		return nil, err
	}
	if err := readCSV(filepath.Join(dir, DoctorsFile), false, func(r csvRow) error {
		d, err := r.doctor()
		if err != nil {
			return err
		}
		m.Doctors[d.ID] = d
		return nil
	}); err != nil {
		return nil, err
	}
	if err := readCSV(filepath.Join(dir, OfficesFile), false, func(r csvRow) error {
		id, err := r.id("id")
		if err != nil {
			return err
		}
		m.Offices[id] = Office{ID: id, Name: r.get("name"), Location: r.get("location")}
		return nil
	}); err != nil {
		return nil, err
	}
	if err := readCSV(filepath.Join(dir, ReferralsFile), false, func(r csvRow) error {
		ref, err := r.referral(loc)
		if err != nil {
			return err
		}
		m.Referrals = append(m.Referrals, ref)
		return nil
	}); err != nil {
		return nil, err
	}

	sortVisits(m.Visits)
	return m, nil
}

type csvRow struct {
	file   string
	line   int
	cols   map[string]int
	fields []string
}

func (r csvRow) get(name string) string {
	i, ok := r.cols[name]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

func (r csvRow) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%s line %d: %s", r.file, r.line, fmt.Sprintf(format, args...))
}

func (r csvRow) id(name string) (int64, error) {
	raw := r.get(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, r.errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

func (r csvRow) optID(name string) (*int64, error) {
	if r.get(name) == "" {
		return nil, nil
	}
	id, err := r.id(name)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (r csvRow) optString(name string) *string {
	s := r.get(name)
	if s == "" {
		return nil
	}
	return &s
}

func (r csvRow) time(name string, loc *time.Location) (time.Time, error) {
	raw := r.get(name)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, r.errorf("invalid %s %q", name, raw)
}

func (r csvRow) optTime(name string, loc *time.Location) (*time.Time, error) {
	if r.get(name) == "" {
		return nil, nil
	}
	t, err := r.time(name, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r csvRow) visit(loc *time.Location) (Visit, error) {
	var v Visit
	var err error
	if v.ID, err = r.id("id"); err != nil {
		return v, err
	}
	if v.PatientID, err = r.id("patient_id"); err != nil {
		return v, err
	}
	if v.DoctorID, err = r.id("doctor_id"); err != nil {
		return v, err
	}
	if v.OfficeID, err = r.id("office_id"); err != nil {
		return v, err
	}
	tsCol := "appointment_time"
	if _, ok := r.cols[tsCol]; !ok {
		tsCol = "timestamp"
	}
	if v.Timestamp, err = r.time(tsCol, loc); err != nil {
		return v, err
	}
	st, ok := ParseStatus(r.get("status"))
	if !ok {
		return v, r.errorf("unknown status %q", r.get("status"))
	}
	v.Status = st
	return v, nil
}

func (r csvRow) patient(loc *time.Location) (Patient, error) {
	var p Patient
	var err error
	if p.ID, err = r.id("id"); err != nil {
		return p, err
	}
	if p.DateOfBirth, err = r.optTime("date_of_birth", loc); err != nil {
		return p, err
	}
	p.Gender = r.optString("gender")
	p.Ethnicity = r.optString("ethnicity")
	p.Race = r.optString("race")
	p.InsuranceType = r.optString("insurance_type")
	p.BloodType = r.optString("blood_type")
	return p, nil
}

func (r csvRow) doctor() (Doctor, error) {
	var d Doctor
	var err error
	if d.ID, err = r.id("id"); err != nil {
		return d, err
	}
	d.FirstName = r.get("first_name")
	d.LastName = r.get("last_name")
	d.Specialty = r.get("specialty")
	if d.OfficeID, err = r.optID("office_id"); err != nil {
		return d, err
	}
	return d, nil
}

func (r csvRow) referral(loc *time.Location) (Referral, error) {
	var ref Referral
	var err error
	if ref.ID, err = r.id("id"); err != nil {
		return ref, err
	}
	if ref.PatientID, err = r.id("patient_id"); err != nil {
		return ref, err
	}
	if ref.ReferringDoctorID, err = r.id("referring_doctor_id"); err != nil {
		return ref, err
	}
	if ref.SpecialistDoctorID, err = r.id("specialist_doctor_id"); err != nil {
		return ref, err
	}
	st, ok := ParseReferralStatus(r.get("status"))
	if !ok {
		return ref, r.errorf("unknown referral status %q", r.get("status"))
	}
	ref.Status = st
	if ref.CreatedAt, err = r.time("created_at", loc); err != nil {
		return ref, err
	}
	if ref.ApprovedAt, err = r.optTime("approved_at", loc); err != nil {
		return ref, err
	}
	if ref.LinkedVisitID, err = r.optID("linked_visit_id"); err != nil {
		return ref, err
	}
	return ref, nil
}

func readCSV(path string, required bool, fn func(csvRow) error) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) && !required {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s header: %w", filepath.Base(path), err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}

	line := 1
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		line++
		if err != nil {
			return fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		if len(fields) == 1 && strings.TrimSpace(fields[0]) == "" {
			continue
		}
		if err := fn(csvRow{file: filepath.Base(path), line: line, cols: cols, fields: fields}); err != nil {
			return err
		}
	}
}

// WriteCSVDir writes m to dir in the layout LoadCSVDir reads. Rows are
// ordered by id and timestamps carry their offset.
func WriteCSVDir(dir string, m *MemoryLedger) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	visits := append([]Visit(nil), m.Visits...)
	sort.Slice(visits, func(i, j int) bool { return visits[i].ID < visits[j].ID })
	rows := make([][]string, 0, len(visits))
	for _, v := range visits {
		rows = append(rows, []string{
			fmtID(v.ID), fmtID(v.PatientID), fmtID(v.DoctorID), fmtID(v.OfficeID),
			v.Timestamp.Format(time.RFC3339), string(v.Status),
		})
	}
	if err := writeCSVFile(filepath.Join(dir, AppointmentsFile),
		[]string{"id", "patient_id", "doctor_id", "office_id", "appointment_time", "status"}, rows); err != nil {
		return err
	}

	rows = rows[:0]
	for _, id := range sortedKeys(m.Patients) {
		p := m.Patients[id]
		dob := ""
		if p.DateOfBirth != nil {
			dob = p.DateOfBirth.Format(dateLayout)
		}
		rows = append(rows, []string{fmtID(p.ID), dob, strVal(p.Gender), strVal(p.Ethnicity),
			strVal(p.Race), strVal(p.InsuranceType), strVal(p.BloodType)})
	}
	if err := writeCSVFile(filepath.Join(dir, PatientsFile),
		[]string{"id", "date_of_birth", "gender", "ethnicity", "race", "insurance_type", "blood_type"}, rows); err != nil {
		return err
	}

	rows = rows[:0]
	for _, id := range sortedKeys(m.Doctors) {
		d := m.Doctors[id]
		rows = append(rows, []string{fmtID(d.ID), d.FirstName, d.LastName, d.Specialty, fmtOptID(d.OfficeID)})
	}
	if err := writeCSVFile(filepath.Join(dir, DoctorsFile),
		[]string{"id", "first_name", "last_name", "specialty", "office_id"}, rows); err != nil {
		return err
	}

	rows = rows[:0]
	for _, id := range sortedKeys(m.Offices) {
		o := m.Offices[id]
		rows = append(rows, []string{fmtID(o.ID), o.Name, o.Location})
	}
	if err := writeCSVFile(filepath.Join(dir, OfficesFile), []string{"id", "name", "location"}, rows); err != nil {
		return err
	}

	referrals := append([]Referral(nil), m.Referrals...)
	sort.Slice(referrals, func(i, j int) bool { return referrals[i].ID < referrals[j].ID })
	rows = rows[:0]
	for _, ref := range referrals {
		approved := ""
		if ref.ApprovedAt != nil {
			approved = ref.ApprovedAt.Format(time.RFC3339)
		}
		rows = append(rows, []string{fmtID(ref.ID), fmtID(ref.PatientID), fmtID(ref.ReferringDoctorID),
			fmtID(ref.SpecialistDoctorID), string(ref.Status), ref.CreatedAt.Format(time.RFC3339),
			approved, fmtOptID(ref.LinkedVisitID)})
	}
	return writeCSVFile(filepath.Join(dir, ReferralsFile),
		[]string{"id", "patient_id", "referring_doctor_id", "specialist_doctor_id", "status", "created_at", "approved_at", "linked_visit_id"}, rows)
}

func writeCSVFile(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func fmtID(id int64) string { return strconv.FormatInt(id, 10) }

func fmtOptID(id *int64) string {
	if id == nil {
		return ""
	}
	return fmtID(*id)
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
