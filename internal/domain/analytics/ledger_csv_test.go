package analytics

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoadCSVDir(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, AppointmentsFile, "\ufeffid,patient_id,doctor_id,office_id,appointment_time,status\n"+
		"2,1,1,10,2024-01-10 09:00:00,completed\n"+
		"1,1,1,10,2023-12-10T09:00:00Z,Completed\n"+
		"3,2,2,20,2024-01-05,no_show\n"+
		"\n")
	writeCSV(t, dir, PatientsFile, "id,date_of_birth,gender,insurance_type\n"+
		"1,1990-05-01,Female,Medicare\n"+
		"2,,,\n")
	writeCSV(t, dir, DoctorsFile, "id,first_name,last_name,specialty,office_id\n"+
		"1,Alice,Smith,Cardiology,10\n"+
		"2,Bob,Jones,Pediatrics,\n")
	writeCSV(t, dir, OfficesFile, "name,id,location\nDowntown,10,Main St\n")
	writeCSV(t, dir, ReferralsFile, "id,patient_id,referring_doctor_id,specialist_doctor_id,status,created_at,approved_at,linked_visit_id\n"+
		"1,2,1,2,approved,2024-01-04 10:00,2024-01-06 10:00,3\n")

	m, err := LoadCSVDir(dir, time.UTC)
	require.NoError(t, err)

	require.Len(t, m.Visits, 3)
	assert.Equal(t, int64(1), m.Visits[0].ID, "visits are sorted chronologically")
	assert.Equal(t, StatusNoShow, m.Visits[1].Status)
	assert.Equal(t, StatusCompleted, m.Visits[2].Status)

	require.Len(t, m.Patients, 2)
	assert.Equal(t, "Medicare", *m.Patients[1].InsuranceType)
	assert.Nil(t, m.Patients[2].DateOfBirth)
	assert.Nil(t, m.Patients[2].Gender)

	assert.Equal(t, "Alice Smith", m.Doctors[1].Name())
	assert.Nil(t, m.Doctors[2].OfficeID)
	assert.Equal(t, "Downtown", m.Offices[10].Name)

	require.Len(t, m.Referrals, 1)
	assert.Equal(t, StageBooked, m.Referrals[0].Stage())
	require.NotNil(t, m.Referrals[0].ApprovedAt)
}

func TestLoadCSVDir_OnlyAppointments(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, AppointmentsFile, "id,patient_id,doctor_id,office_id,timestamp,status\n1,1,1,10,2024-01-10 09:00,Scheduled\n")

	m, err := LoadCSVDir(dir, time.UTC)
	require.NoError(t, err)
	assert.Len(t, m.Visits, 1)
	assert.Empty(t, m.Patients)
	assert.Empty(t, m.Referrals)
}

func TestLoadCSVDir_LocalTimestamps(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, AppointmentsFile, "id,patient_id,doctor_id,office_id,appointment_time,status\n1,1,1,10,2024-01-31 23:30,Completed\n")
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}

	m, err := LoadCSVDir(dir, ny)
	require.NoError(t, err)
	visits, err := m.FetchVisits(context.Background(), VisitFilter{Window: NewWindow(day("2024-01-01"), day("2024-01-31"), ny)})
	require.NoError(t, err)
	assert.Len(t, visits, 1, "late evening local time stays on its local date")
}

func TestLoadCSVDir_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad id", "id,patient_id,doctor_id,office_id,appointment_time,status\nx,1,1,10,2024-01-10,Completed\n", "appointments.csv line 2: invalid id"},
		{"bad status", "id,patient_id,doctor_id,office_id,appointment_time,status\n1,1,1,10,2024-01-10,Rescheduled\n", "unknown status"},
		{"bad time", "id,patient_id,doctor_id,office_id,appointment_time,status\n1,1,1,10,10/01/2024,Completed\n", "invalid appointment_time"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeCSV(t, dir, AppointmentsFile, tt.content)
			_, err := LoadCSVDir(dir, time.UTC)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadCSVDir_MissingAppointments(t *testing.T) {
	_, err := LoadCSVDir(t.TempDir(), time.UTC)
	require.Error(t, err)
	assert.Contains(t, err.Error(), AppointmentsFile)
}

func TestWriteCSVDir_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "export")
	original := clinicLedger()
	require.NoError(t, WriteCSVDir(dir, original))

	loaded, err := LoadCSVDir(dir, time.UTC)
	require.NoError(t, err)

	require.Len(t, loaded.Visits, len(original.Visits))
	byID := make(map[int64]Visit, len(loaded.Visits))
	for _, v := range loaded.Visits {
		byID[v.ID] = v
	}
	for _, want := range original.Visits {
		got, ok := byID[want.ID]
		require.True(t, ok, "visit %d missing", want.ID)
		assert.True(t, want.Timestamp.Equal(got.Timestamp), "visit %d timestamp", want.ID)
		assert.Equal(t, want.Status, got.Status)
		assert.Equal(t, want.OfficeID, got.OfficeID)
	}
	assert.Equal(t, original.Doctors, loaded.Doctors)
	assert.Equal(t, original.Offices, loaded.Offices)
	require.Len(t, loaded.Patients, len(original.Patients))
	assert.Nil(t, loaded.Patients[5].DateOfBirth)
	require.Len(t, loaded.Referrals, len(original.Referrals))
	assert.Equal(t, idp(6), loaded.Referrals[2].LinkedVisitID)

	for _, report := range []string{ReportNewPatients, ReportPatientRetention, ReportReferralFunnel, ReportDemographics} {
		want, err := newTestService(original).Run(context.Background(), report, adminCtx, januaryFilter(t, newTestService(original), FilterParams{}))
		require.NoError(t, err)
		got, err := newTestService(loaded).Run(context.Background(), report, adminCtx, januaryFilter(t, newTestService(loaded), FilterParams{}))
		require.NoError(t, err)
		assert.Equal(t, want, got, report)
	}
}
