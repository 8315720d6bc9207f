package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "entropybeacon",
		Short:         "Publish signed, chained commitments over collected public entropy",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var configFile string
	var verbose bool
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file (default: entropybeacon.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	// ─── run ───
	var opts runOptions
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the selected pipeline phases in cycle order",
		Long: "Runs any combination of collect, generate, verify, index and publish.\n" +
			"Phases always execute in that order regardless of flag order.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), configFile, verbose, opts)
		},
	}
	runCmd.Flags().BoolVar(&opts.collect, "collect", false, "Collect entropy sources into the payload directory")
	runCmd.Flags().BoolVar(&opts.generate, "generate", false, "Generate and sign a new record")
	runCmd.Flags().BoolVar(&opts.verify, "verify", false, "Verify the current record")
	runCmd.Flags().BoolVar(&opts.index, "index", false, "Index the previous record under ENTROPY_EXTERNAL_ID")
	runCmd.Flags().BoolVar(&opts.publish, "publish", false, "Publish the current record and send the heartbeat")
	runCmd.Flags().BoolVar(&opts.all, "all", false, "Run every phase")

	// ─── watch ───
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-verify the record whenever it or its payloads change",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), configFile, verbose)
		},
	}

	// ─── ledger ───
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the local record history",
	}
	var listLimit int
	ledgerListCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLedgerList(configFile, verbose, listLimit)
		},
	}
	ledgerListCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "Number of records to show")
	ledgerVerifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the hash chain across every stored record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLedgerVerify(configFile, verbose)
		},
	}
	ledgerCmd.AddCommand(ledgerListCmd, ledgerVerifyCmd)

	// ─── keygen ───
	keygenCmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an Ed25519 signing key pair as shell exports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeygen(cmd.OutOrStdout())
		},
	}

	// ─── init ───
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter entropybeacon.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(configFile)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("entropybeacon %s\n", version)
			fmt.Printf("  Commit:  %s\n", commit)
			fmt.Printf("  Built:   %s\n", buildDate)
		},
	}

	rootCmd.AddCommand(runCmd, watchCmd, ledgerCmd, keygenCmd, initCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
