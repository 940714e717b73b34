package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/clinic/analytics/internal/config"
	"github.com/clinic/analytics/internal/domain/analytics"
	"github.com/clinic/analytics/internal/platform/auth"
	"github.com/clinic/analytics/internal/platform/blobstore"
	"github.com/clinic/analytics/internal/platform/db"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [name]",
		Short: "Generate a report and print it as JSON or YAML",
		Long: "Generate a report from the clinic database, or from a CSV export when --data-dir is set.\n" +
			"Without a name the available reports are listed.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return listReports(cmd.OutOrStdout())
			}
			return runReport(cmd, args[0])
		},
	}

	f := cmd.Flags()
	f.String("data-dir", "", "Directory holding a CSV ledger export (appointments.csv, patients.csv, ...)")
	f.String("clinic", "", "Clinic identifier (defaults to DEFAULT_CLINIC)")
	f.String("start", "", "Window start date (YYYY-MM-DD)")
	f.String("end", "", "Window end date (YYYY-MM-DD)")
	f.String("group-by", "", "Trend granularity: day, week or month")
	f.String("office", "", "Restrict to one office id")
	f.String("doctor", "", "Restrict to one doctor id")
	f.String("status", "", "Restrict to one appointment status")
	f.String("retention-basis", "", "Retention basis: any or qualifying")
	f.String("dimension", "", "Demographics dimension")
	f.Int("limit", 0, "Maximum retention rows (0 for all)")
	f.Int("offset", 0, "Retention rows to skip")
	f.String("format", "json", "Output format: json or yaml")
	f.String("archive", "", "Also store the report in an archive (directory, s3://bucket/prefix or mem://); defaults to REPORT_ARCHIVE_URL")
	return cmd
}

func listReports(out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REPORT\tNAME\tPATH")
	for _, r := range analytics.Catalog {
		fmt.Fprintf(w, "%s\t%s\t/api/v1%s\n", r.ID, r.Name, r.Path)
	}
	return w.Flush()
}

func reportParams(cmd *cobra.Command) analytics.FilterParams {
	f := cmd.Flags()
	get := func(name string) string {
		v, _ := f.GetString(name)
		return v
	}
	limit, _ := f.GetInt("limit")
	offset, _ := f.GetInt("offset")
	return analytics.FilterParams{
		StartDate:      get("start"),
		EndDate:        get("end"),
		GroupBy:        get("group-by"),
		OfficeID:       get("office"),
		DoctorID:       get("doctor"),
		Status:         get("status"),
		RetentionBasis: get("retention-basis"),
		Dimension:      get("dimension"),
		Limit:          limit,
		Offset:         offset,
	}
}

func runReport(cmd *cobra.Command, name string) error {
	if analytics.FindReport(name) == nil {
		return fmt.Errorf("unknown report %q (run \"report\" without arguments to list them)", name)
	}
	format, _ := cmd.Flags().GetString("format")
	if format != formatJSON && format != formatYAML {
		return fmt.Errorf("--format must be %q or %q", formatJSON, formatYAML)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	logger := newLogger("", os.Stderr).Level(zerologLevel(cfg))

	clinic, _ := cmd.Flags().GetString("clinic")
	if clinic == "" {
		clinic = cfg.DefaultClinic
	}
	caller := auth.AuthContext{UserID: "cli", Roles: []string{auth.RoleAdmin}, ClinicID: clinic}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RequestTimeout)
		defer cancel()
	}

	var (
		svc    *analytics.Service
		filter analytics.Filter
		out    interface{}
	)
	build := func(ctx context.Context) error {
		var err error
		if filter, err = svc.ParseFilter(reportParams(cmd)); err != nil {
			return err
		}
		out, err = svc.Run(ctx, name, caller, filter)
		return err
	}

	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		ledger, err := analytics.LoadCSVDir(dir, loc)
		if err != nil {
			return err
		}
		svc = newReportService(ledger, cfg, loc, logger)
		if err := build(ctx); err != nil {
			return err
		}
	} else {
		if err := cfg.RequireDatabase(); err != nil {
			return fmt.Errorf("%w (or pass --data-dir)", err)
		}
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: 2})
		if err != nil {
			return err
		}
		defer pool.Close()
		svc = newReportService(analytics.NewLedgerReaderPG(pool), cfg, loc, logger)
		if err := db.WithClinicConn(ctx, pool, clinic, build); err != nil {
			return err
		}
	}

	doc, err := encodeReport(out, format)
	if err != nil {
		return err
	}

	archiveURL, _ := cmd.Flags().GetString("archive")
	if archiveURL == "" {
		archiveURL = cfg.ReportArchiveURL
	}
	if archiveURL != "" {
		meta, err := archiveReport(ctx, archiveURL, clinic, name, filter, format, doc)
		if err != nil {
			return err
		}
		logger.Info().Str("key", meta.Key).Str("sha256", meta.Hash).Msg("report archived")
	}

	_, err = cmd.OutOrStdout().Write(doc)
	return err
}

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// encodeReport renders a report document. YAML keeps the JSON field names.
func encodeReport(report interface{}, format string) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	if format != formatYAML {
		return append(data, '\n'), nil
	}

	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	out, err := yaml.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("encode report as yaml: %w", err)
	}
	return out, nil
}

// archiveKey names an archived report: <clinic>/<report>/<start>_<end>.<ext>.
func archiveKey(clinic, report string, f analytics.Filter, format string) string {
	p := f.Window.Period()
	return fmt.Sprintf("%s/%s/%s_%s.%s", clinic, report, p.StartDate, p.EndDate, format)
}

func archiveReport(ctx context.Context, archiveURL, clinic, report string, f analytics.Filter, format string, doc []byte) (*blobstore.BlobMetadata, error) {
	store, err := blobstore.Open(ctx, archiveURL)
	if err != nil {
		return nil, err
	}
	contentType := "application/json"
	if format == formatYAML {
		contentType = "application/yaml"
	}
	meta, err := store.Put(ctx, blobstore.BlobMetadata{
		Key:         archiveKey(clinic, report, f, format),
		ContentType: contentType,
		Tags:        map[string]string{"clinic": clinic, "report": report},
	}, doc)
	if err != nil {
		return nil, fmt.Errorf("archive report: %w", err)
	}
	return meta, nil
}

func newReportService(reader analytics.LedgerReader, cfg *config.Config, loc *time.Location, logger zerolog.Logger) *analytics.Service {
	svc := analytics.NewService(reader, logger)
	svc.SetLocation(loc)
	if basis, ok := analytics.ParseRetentionBasis(cfg.RetentionBasis); ok {
		svc.SetRetentionBasis(basis)
	}
	return svc
}

func zerologLevel(cfg *config.Config) zerolog.Level {
	if cfg.IsDev() {
		return zerolog.InfoLevel
	}
	return zerolog.WarnLevel
}
