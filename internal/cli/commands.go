package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/lazypower/halflife/internal/engine"
	"github.com/lazypower/halflife/internal/ledger"
	"github.com/lazypower/halflife/internal/rollup"
	"github.com/spf13/cobra"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- report command ---

var (
	reportUser string
	reportKind string
	reportDate string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a daily, weekly, monthly or yearly report",
	Long:  "Print a report as JSON. --date is YYYY-MM-DD in the configured timezone and selects the day, or the week, month or year containing it.",
	RunE:  runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	if err := a.engine.CheckUser(ctx, reportUser); err != nil {
		return err
	}

	loc := a.reports.Location()
	now := time.Now()
	day := now.In(loc)
	if reportDate != "" {
		day, err = rollup.ParseDate(reportDate, loc)
		if err != nil {
			return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
		}
	}

	var rep any
	switch reportKind {
	case "daily":
		rep, err = a.reports.Daily(ctx, reportUser, day, now)
	case "weekly":
		rep, err = a.reports.Weekly(ctx, reportUser, day)
	case "monthly":
		rep, err = a.reports.Monthly(ctx, reportUser, day.Year(), day.Month())
	case "yearly":
		rep, err = a.reports.Yearly(ctx, reportUser, day.Year())
	default:
		return fmt.Errorf("unknown report kind %q (daily, weekly, monthly, yearly)", reportKind)
	}
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), rep)
}

// --- window command ---

var (
	windowUser   string
	windowAt     string
	windowRadius int
)

var windowCmd = &cobra.Command{
	Use:   "window",
	Short: "Show the hourly residual curve around a time",
	RunE:  runWindow,
}

func runWindow(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	if err := a.engine.CheckUser(ctx, windowUser); err != nil {
		return err
	}

	center := time.Now()
	if windowAt != "" {
		center, err = time.Parse(time.RFC3339, windowAt)
		if err != nil {
			return fmt.Errorf("--at must be RFC 3339: %w", err)
		}
	}
	radius := windowRadius
	if radius < 0 {
		radius = a.reports.Radius()
	}

	points, err := a.reports.Window(ctx, windowUser, center, radius)
	if err != nil {
		return err
	}
	printWindow(cmd.OutOrStdout(), points, a.reports.Thresholds().SleepSensitiveMg)
	return nil
}

// printWindow draws one bar per hour, scaled so the sleep-sensitive
// threshold sits at 40 columns.
func printWindow(w io.Writer, points []ledger.Point, sensitiveMg float64) {
	const width = 40
	for _, p := range points {
		n := 0
		if sensitiveMg > 0 {
			n = int(p.ResidualMg / sensitiveMg * width)
		}
		if n > 2*width {
			n = 2 * width
		}
		fmt.Fprintf(w, "%s %7.1f mg %s\n", p.At.Format("01-02 15:04"), p.ResidualMg, strings.Repeat("#", n))
	}
}

// --- rebuild command ---

var rebuildUser string

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Recompute a user's residual ledger and rollups from stored intakes",
	RunE:  runRebuild,
}

func runRebuild(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.engine.Rebuild(cmd.Context(), rebuildUser)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "rebuilt %s: %d intakes replayed, %d buckets dropped, %d bucket writes\n",
		res.UserID, res.Intakes, res.BucketsDropped, res.BucketWrites)
	return nil
}

// --- user / drink registry ---

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userAddCmd = &cobra.Command{
	Use:   "add <id> [name]",
	Short: "Register a user",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()

		in := engine.RegisterUserInput{ID: args[0]}
		if len(args) > 1 {
			in.Name = args[1]
		}
		u, err := a.engine.RegisterUser(cmd.Context(), in)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "user %s registered\n", u.ID)
		return nil
	},
}

var drinkCmd = &cobra.Command{
	Use:   "drink",
	Short: "Manage drinks",
}

var drinkAddCmd = &cobra.Command{
	Use:   "add <id> <name> <caffeine_mg>",
	Short: "Register a drink and its caffeine per serving",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		mg, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("caffeine_mg: %w", err)
		}

		a, err := loadApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()

		d, err := a.engine.RegisterDrink(cmd.Context(), engine.RegisterDrinkInput{ID: args[0], Name: args[1], CaffeineMg: &mg})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "drink %s registered (%.1f mg)\n", d.ID, d.CaffeineMg)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportUser, "user", "u", "", "User ID")
	reportCmd.Flags().StringVarP(&reportKind, "kind", "k", "daily", "daily, weekly, monthly or yearly")
	reportCmd.Flags().StringVarP(&reportDate, "date", "d", "", "Date in the period (YYYY-MM-DD, default today)")
	reportCmd.MarkFlagRequired("user")

	windowCmd.Flags().StringVarP(&windowUser, "user", "u", "", "User ID")
	windowCmd.Flags().StringVar(&windowAt, "at", "", "Center time (RFC 3339, default now)")
	windowCmd.Flags().IntVarP(&windowRadius, "radius", "r", -1, "Hours either side of the center (default from config)")
	windowCmd.MarkFlagRequired("user")

	rebuildCmd.Flags().StringVarP(&rebuildUser, "user", "u", "", "User ID")
	rebuildCmd.MarkFlagRequired("user")

	userCmd.AddCommand(userAddCmd)
	drinkCmd.AddCommand(drinkAddCmd)
}
