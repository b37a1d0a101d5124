package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/payflow/approval-service/internal/app"
	"github.com/payflow/approval-service/internal/store"
	"github.com/spf13/cobra"
)

var recurrenceDate string

func recurrenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recurrence",
		Short: "Recurring template operations",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Fire every template due on a business date once",
		Long: `Run one recurrence tick outside the scheduler.

Templates whose next due date equals the business date get one payment request
each and move to their next occurrence. Running the same date twice creates nothing
the second time.

Examples:
  approvald recurrence run
  approvald recurrence run --date 2026-03-10`,
		Args: cobra.NoArgs,
		RunE: runRecurrence,
	}
	runCmd.Flags().StringVar(&recurrenceDate, "date", "", "business date to fire (YYYY-MM-DD, default today)")

	cmd.AddCommand(runCmd)
	return cmd
}

func runRecurrence(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	rdb := d.openRedis(ctx)
	if rdb != nil {
		defer rdb.Close()
	}
	events := d.openEvents()
	defer events.Close()

	runner := d.recurrenceRunner(store.NewPostgresRepository(d.pool), rdb, events)

	asOf := time.Now()
	if recurrenceDate != "" {
		date, err := app.ParseDate(recurrenceDate)
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
		asOf = time.Date(date.Year(), date.Month(), date.Day(), 12, 0, 0, 0, runner.Location())
	}

	summary, err := runner.Run(ctx, asOf)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
