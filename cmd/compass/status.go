package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/oakline/compass/internal/logger"
	"github.com/oakline/compass/internal/runner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show market status and routing configuration",
	RunE:  runStatus,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a single analysis run and print the report as JSON",
	RunE:  runOnce,
}

var (
	runSymbol    string
	runTimeRange string
)

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runSymbol, "symbol", "", "Symbol override (closed market only)")
	runCmd.Flags().StringVar(&runTimeRange, "time-range", "", "Time range override (closed market only)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	svc, err := buildServices(cmd.Context(), log)
	if err != nil {
		return err
	}

	cfg := svc.router.RoutingConfig(cmd.Context())

	fmt.Println("Routing Configuration")
	fmt.Println("---------------------")
	fmt.Printf("Market Status:  %s (%s)\n", cfg.MarketStatus, cfg.Reason)
	fmt.Printf("Data Mode:      %s\n", cfg.DataMode)
	fmt.Printf("Data Source:    %s\n", cfg.DataSource)
	fmt.Printf("Symbol:         %s\n", cfg.SelectedSymbol)
	if cfg.SelectedTimeRange != nil {
		fmt.Printf("Time Range:     %s\n", *cfg.SelectedTimeRange)
	} else {
		fmt.Printf("Time Range:     (live, full session)\n")
	}
	fmt.Printf("Controls:       symbol=%t time_range=%t\n",
		cfg.ControlsEnabled.SymbolSelector, cfg.ControlsEnabled.TimeRangeSelector)
	if cfg.StatusMessage != "" {
		fmt.Printf("Note:           %s\n", cfg.StatusMessage)
	}

	if len(cfg.AvailableSymbols) > 0 {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SYMBOL\t")
		fmt.Fprintln(w, "------\t")
		for _, s := range cfg.AvailableSymbols {
			fmt.Fprintf(w, "%s\t\n", s)
		}
		w.Flush()
	}

	if len(cfg.AvailableTimeRanges) > 0 {
		keys := make([]string, 0, len(cfg.AvailableTimeRanges))
		for k := range cfg.AvailableTimeRanges {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RANGE\tLABEL\tMONTHS\t")
		fmt.Fprintln(w, "-----\t-----\t------\t")
		for _, k := range keys {
			tr := cfg.AvailableTimeRanges[k]
			fmt.Fprintf(w, "%s\t%s\t%d\t\n", k, tr.Label, tr.Months)
		}
		w.Flush()
	}

	log.Info("routing configuration displayed",
		zap.String("market_status", cfg.MarketStatus),
		zap.String("data_mode", string(cfg.DataMode)),
	)
	return nil
}

func runOnce(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	svc, err := buildServices(cmd.Context(), log)
	if err != nil {
		return err
	}

	report := svc.runner.Run(cmd.Context(), runner.Options{
		Symbol:    runSymbol,
		TimeRange: runTimeRange,
	})

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
