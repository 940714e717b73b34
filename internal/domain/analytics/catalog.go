package analytics

import "github.com/clinic/analytics/internal/platform/openapi"

// ReportDefinition describes one report for the catalog endpoint.
type ReportDefinition struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Path        string   `json:"path"`
	Parameters  []string `json:"parameters"`
}

var commonParameters = []string{"start_date", "end_date", "group_by", "office_id", "doctor_id", "status"}

func params(extra ...string) []string {
	out := make([]string, 0, len(commonParameters)+len(extra))
	out = append(out, commonParameters...)
	return append(out, extra...)
}

// Catalog lists the available reports.
var Catalog = []ReportDefinition{
	{
		ID:          ReportNewPatients,
		Name:        "New Patients",
		Description: "Patients whose first qualifying visit falls in the window, by doctor and office, with growth against the previous window",
		Path:        "/reports/new-patients",
		Parameters:  params(),
	},
	{
		ID:          ReportPatientRetention,
		Name:        "Patient Retention",
		Description: "Newly acquired patients classified as Retained, New (< 30 days) or At Risk",
		Path:        "/reports/patient-retention",
		Parameters:  params("retention_basis", "limit", "offset"),
	},
	{
		ID:          ReportDoctorPerformance,
		Name:        "Doctor Performance",
		Description: "Visit outcomes, acquisition and doctor-scoped retention per doctor",
		Path:        "/reports/doctor-performance",
		Parameters:  params(),
	},
	{
		ID:          ReportDoctorDetail,
		Name:        "Doctor Performance Detail",
		Description: "Performance of one doctor with a visit volume trend",
		Path:        "/reports/doctor-performance/:doctor_id",
		Parameters:  params(),
	},
	{
		ID:          ReportOfficeUtilization,
		Name:        "Office Utilization",
		Description: "Visit volume and completion, no-show and cancellation rates per office",
		Path:        "/reports/office-utilization",
		Parameters:  params(),
	},
	{
		ID:          ReportDemographics,
		Name:        "Demographics",
		Description: "Patients seen in the window broken down by one demographic dimension",
		Path:        "/reports/demographics",
		Parameters:  params("dimension"),
	},
	{
		ID:          ReportReferralFunnel,
		Name:        "Referral Funnel",
		Description: "Referrals created in the window by funnel stage and specialist",
		Path:        "/reports/referral-funnel",
		Parameters:  []string{"start_date", "end_date", "group_by", "doctor_id"},
	},
}

// FindReport looks up a catalog entry by id.
func FindReport(id string) *ReportDefinition {
	for i := range Catalog {
		if Catalog[i].ID == id {
			return &Catalog[i]
		}
	}
	return nil
}

var parameterDocs = []openapi.Parameter{
	{Name: "start_date", Description: "First day of the window, YYYY-MM-DD (default: end_date minus 30 days)", Schema: map[string]interface{}{"type": "string", "format": "date"}},
	{Name: "end_date", Description: "Last day of the window, inclusive, YYYY-MM-DD (default: today)", Schema: map[string]interface{}{"type": "string", "format": "date"}},
	{Name: "group_by", Description: "Trend granularity", Schema: map[string]interface{}{"type": "string", "enum": []string{"day", "week", "month"}, "default": "week"}},
	{Name: "office_id", Description: "Office id or \"all\""},
	{Name: "doctor_id", Description: "Doctor id or \"all\""},
	{Name: "status", Description: "Appointment status or \"all\""},
	{Name: "retention_basis", Description: "Which later visits count toward retention", Schema: map[string]interface{}{"type": "string", "enum": []string{"any", "qualifying"}}},
	{Name: "dimension", Description: "Demographic dimension", Schema: map[string]interface{}{"type": "string", "enum": []string{"age_group", "gender", "insurance_type", "ethnicity", "race", "blood_type", "doctor", "office"}, "default": "age_group"}},
	{Name: "limit", Description: "Maximum patient rows, 0 for all", Schema: map[string]interface{}{"type": "integer", "minimum": 0}},
	{Name: "offset", Description: "Patient rows to skip", Schema: map[string]interface{}{"type": "integer", "minimum": 0}},
}

// NewOpenAPIGenerator describes the catalog as an OpenAPI document.
func NewOpenAPIGenerator(version, baseURL string) *openapi.Generator {
	g := openapi.NewGenerator("Clinic Analytics API", version, baseURL)
	for _, p := range parameterDocs {
		g.DefineParameter(p)
	}
	g.AddOperation(openapi.Operation{
		ID:      "list-reports",
		Summary: "List available reports",
		Path:    "/reports",
		Tag:     "catalog",
	})
	for _, r := range Catalog {
		g.AddOperation(openapi.Operation{
			ID:          r.ID,
			Summary:     r.Name,
			Description: r.Description,
			Path:        r.Path,
			Tag:         "reports",
			Parameters:  r.Parameters,
		})
	}
	return g
}
