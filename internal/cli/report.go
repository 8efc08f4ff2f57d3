package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/louise36-g/mysticoracle/internal/daemon"
	"github.com/louise36-g/mysticoracle/internal/infra/sqlite"
)

func init() {
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a revenue summary",
	Long:  `Summarize completed credit purchases: totals and per-provider revenue.`,
	RunE:  runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.Load(configPath)
	if err != nil {
		return err
	}

	db, err := sqlite.Open(cfg.Database.Dir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	credits, revenue, err := db.SumCompletedPurchases()
	if err != nil {
		return fmt.Errorf("sum purchases: %w", err)
	}
	byProvider, err := db.RevenueByProvider()
	if err != nil {
		return fmt.Errorf("revenue by provider: %w", err)
	}

	fmt.Fprintf(os.Stdout, "Credits sold:  %d\n", credits)
	fmt.Fprintf(os.Stdout, "Revenue:       %d.%02d\n", revenue/100, revenue%100)
	if len(byProvider) > 0 {
		fmt.Fprintln(os.Stdout, "By provider:")
		for provider, amount := range byProvider {
			fmt.Fprintf(os.Stdout, "  %-8s %d.%02d\n", provider, amount/100, amount%100)
		}
	}
	return nil
}
