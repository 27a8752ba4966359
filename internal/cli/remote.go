package cli

import (
	"fmt"
	"time"

	"github.com/lazypower/halflife/internal/client"
	"github.com/spf13/cobra"
)

// --- commands that go through a running server ---

var serverURL string

var (
	logUser    string
	logDrink   string
	logDose    float64
	logAt      string
	logServing int
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Record an intake through the running server",
	RunE:  runLog,
}

func runLog(cmd *cobra.Command, args []string) error {
	at := time.Now()
	if logAt != "" {
		var err error
		at, err = time.Parse(time.RFC3339, logAt)
		if err != nil {
			return fmt.Errorf("--at must be RFC 3339: %w", err)
		}
	}

	c := client.New(serverURL)
	in, err := c.CreateIntake(cmd.Context(), logUser, client.NewIntake{
		DrinkID:      logDrink,
		IntakeTime:   at,
		DoseMg:       logDose,
		ServingCount: logServing,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "intake %d: %.1f mg of %s at %s\n",
		in.ID, in.DoseMg, in.DrinkID, in.IntakeTime.Local().Format("2006-01-02 15:04"))
	return nil
}

var statusUser string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current residual caffeine and guidance from the running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := client.New(serverURL).Guide(cmd.Context(), statusUser)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%.1f mg residual [%s]\n%s\n", g.ResidualMg, g.Guide.Tier, g.Guide.Message)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{logCmd, statusCmd} {
		c.Flags().StringVar(&serverURL, "server", "", "Server URL (default $HALFLIFE_URL or http://127.0.0.1:37780)")
	}

	logCmd.Flags().StringVarP(&logUser, "user", "u", "", "User ID")
	logCmd.Flags().StringVar(&logDrink, "drink", "", "Drink ID")
	logCmd.Flags().Float64Var(&logDose, "dose", 0, "Caffeine in mg")
	logCmd.Flags().StringVar(&logAt, "at", "", "Intake time (RFC 3339, default now)")
	logCmd.Flags().IntVar(&logServing, "servings", 1, "Serving count")
	logCmd.MarkFlagRequired("user")
	logCmd.MarkFlagRequired("drink")
	logCmd.MarkFlagRequired("dose")

	statusCmd.Flags().StringVarP(&statusUser, "user", "u", "", "User ID")
	statusCmd.MarkFlagRequired("user")
}
