package main

import (
	"fmt"
	"os"

	"github.com/danmuck/vetbook/internal/app"
	"github.com/danmuck/vetbook/internal/booking"
	"github.com/danmuck/vetbook/internal/config"
	logs "github.com/danmuck/vetbook/internal/logging"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "vetbookd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:   "vetbookd",
		Short: "Veterinary clinic booking service",
		Long: `vetbookd serves the clinic booking API: pets, services, home visit
pricing, appointment scheduling, reviews and the admin console.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logs.ConfigureRuntime()
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to vetbookd TOML config")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newScheduleCmd(&configPath))
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until SIGINT or SIGTERM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServiceConfig(*configPath)
			if err != nil {
				return err
			}
			if err := config.ValidateServe(cfg); err != nil {
				return err
			}
			return app.NewService(cfg).Run()
		},
	}
}

func newScheduleCmd(configPath *string) *cobra.Command {
	schedule := &cobra.Command{
		Use:   "schedule",
		Short: "Manage bookable slots offline",
	}

	var req booking.GenerateRequest
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Generate slots for a date range directly in the data file",
		Long: `Creates every missing slot between --from and --to (inclusive) on the
selected weekdays. Existing slots are kept; past slots are skipped.

Example:
  vetbookd schedule generate -c vetbookd.toml --from 2026-03-02 --to 2026-03-31 \
    --start 09:00 --end 18:00 --slot 30 --weekdays mon,tue,wed,thu,fri`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServiceConfig(*configPath)
			if err != nil {
				return err
			}
			return runGenerate(cmd, cfg, req)
		},
	}
	flags := generate.Flags()
	flags.StringVar(&req.From, "from", "", "first day, YYYY-MM-DD")
	flags.StringVar(&req.To, "to", "", "last day, YYYY-MM-DD")
	flags.StringVar(&req.DayStart, "start", "09:00", "first slot start, HH:MM")
	flags.StringVar(&req.DayEnd, "end", "18:00", "working day end, HH:MM")
	flags.IntVar(&req.SlotMinutes, "slot", 30, "slot length in minutes")
	flags.StringSliceVar(&req.Weekdays, "weekdays", nil, "weekdays to fill (default mon-fri)")
	flags.StringVar(&req.VetID, "vet", booking.DefaultVetID, "vet id owning the slots")
	_ = generate.MarkFlagRequired("from")
	_ = generate.MarkFlagRequired("to")

	schedule.AddCommand(generate)
	return schedule
}

func runGenerate(cmd *cobra.Command, cfg app.ServiceConfig, req booking.GenerateRequest) error {
	svc := app.NewService(cfg)
	if err := svc.Open(); err != nil {
		return err
	}
	defer svc.Close()

	res, err := svc.Clinic().GenerateMassSchedule(req)
	if err != nil {
		return err
	}
	logs.Infof("vetbookd.schedule.generate vet=%q from=%s to=%s created=%d", req.VetID, req.From, req.To, res.Created)
	fmt.Fprintf(cmd.OutOrStdout(), "days=%d created=%d skipped_existing=%d skipped_past=%d\n",
		res.Days, res.Created, res.SkippedExisting, res.SkippedPast)
	return nil
}
