package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/clinic/analytics/internal/config"
	"github.com/clinic/analytics/internal/platform/sandbox"
)

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write a synthetic clinic ledger as a CSV export",
		Long:  "Generate a reproducible synthetic ledger and write it in the layout read by report --data-dir.",
		RunE:  runSeed,
	}

	defaults := sandbox.DefaultSeedConfig()
	f := cmd.Flags()
	f.String("out", "", "Output directory")
	f.Int("offices", defaults.OfficeCount, "Number of offices")
	f.Int("doctors-per-office", defaults.DoctorsPerOffice, "Doctors working at each office")
	f.Int("patients", defaults.PatientCount, "Number of patients")
	f.Int("max-visits", defaults.MaxVisits, "Maximum visits per patient")
	f.String("start", defaults.Start.Format("2006-01-02"), "First day of generated activity (YYYY-MM-DD)")
	f.Int("months", defaults.Months, "Months of activity")
	f.Float64("referral-rate", defaults.ReferralRate, "Share of patients referred to a specialist")
	f.Int64("seed", 1, "Random seed (0 for time-based)")
	return cmd
}

func runSeed(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	out, _ := f.GetString("out")
	if out == "" {
		return fmt.Errorf("--out is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	sc := sandbox.DefaultSeedConfig()
	sc.OfficeCount, _ = f.GetInt("offices")
	sc.DoctorsPerOffice, _ = f.GetInt("doctors-per-office")
	sc.PatientCount, _ = f.GetInt("patients")
	sc.MaxVisits, _ = f.GetInt("max-visits")
	sc.Months, _ = f.GetInt("months")
	sc.ReferralRate, _ = f.GetFloat64("referral-rate")
	sc.Seed, _ = f.GetInt64("seed")
	sc.Location = loc

	start, _ := f.GetString("start")
	if sc.Start, err = time.ParseInLocation("2006-01-02", start, loc); err != nil {
		return fmt.Errorf("invalid --start %q: expected YYYY-MM-DD", start)
	}
	sc.Now = sc.Start.AddDate(0, sc.Months, 0)

	seeder := sandbox.NewSeeder(sc)
	result, err := seeder.Generate()
	if err != nil {
		return err
	}
	if err := seeder.ExportCSV(out); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d offices, %d doctors, %d patients, %d visits and %d referrals to %s\n",
		result.Offices, result.Doctors, result.Patients, result.Visits, result.Referrals, out)
	return nil
}
