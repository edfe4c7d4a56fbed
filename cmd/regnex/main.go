package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nid-27/regnex/api/server"
	"github.com/nid-27/regnex/internal/config"
	"github.com/nid-27/regnex/internal/logging"
	"github.com/nid-27/regnex/llm/services/team"
)

var (
	configFile string
	verbose    bool

	financeDir string
	csvDir     string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var rootCmd = &cobra.Command{
		Use:   "regnex",
		Short: "Regnex - multi-agent financial analysis team",
		Long: `A team of model-backed agents that answers questions about a folder of
financial documents and a folder of CSV stock data. A team leader delegates to a
finance document expert and a CSV data analyst and merges their findings.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	var askCmd = &cobra.Command{
		Use:   "ask [query]",
		Short: "Ask the team a question",
		Long:  `Load both data folders, build the agents and send one question to the team leader.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runAsk,
	}
	askCmd.Flags().Bool("async", false, "submit the question without blocking and wait on the answer channel")

	var setupCmd = &cobra.Command{
		Use:   "setup",
		Short: "Load the data folders and print the setup summary",
		RunE:  runSetup,
	}

	var serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}

	for _, cmd := range []*cobra.Command{askCmd, setupCmd, serveCmd} {
		addDirFlags(cmd)
	}

	var configCmd = &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	var configInitCmd = &cobra.Command{
		Use:   "init [filename]",
		Short: "Create a default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConfigInit,
	}

	var configValidateCmd = &cobra.Command{
		Use:   "validate [filename]",
		Short: "Validate a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE:  runConfigValidate,
	}

	var configShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		RunE:  runConfigShow,
	}

	configCmd.AddCommand(configInitCmd, configValidateCmd, configShowCmd)
	rootCmd.AddCommand(askCmd, setupCmd, serveCmd, configCmd)
	return rootCmd
}

// addDirFlags lets a command pick the data folders for its setup run.
// Blank values keep the configured folders.
func addDirFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&financeDir, "finance-dir", "", "folder of financial text documents")
	cmd.Flags().StringVar(&csvDir, "csv-dir", "", "folder of CSV stock data")
}

func dataDirs() team.DataDirs {
	return team.DataDirs{FinanceDir: financeDir, CSVDir: csvDir}
}

// signalContext is canceled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func loadConfig() (*config.Config, *zerolog.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	logger := logging.New(cfg.Logging, os.Stderr)
	return cfg, &logger, nil
}

func buildSystem(ctx context.Context) (*team.System, *config.Config, *zerolog.Logger, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	sys, err := team.Build(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return sys, cfg, logger, nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	sys, _, _, err := buildSystem(ctx)
	if err != nil {
		return err
	}
	defer sys.Close()

	ok, summary := sys.SetupDirs(ctx, dataDirs())
	if !ok {
		return fmt.Errorf("%s", summary)
	}
	if verbose {
		fmt.Fprintln(cmd.ErrOrStderr(), summary)
	}

	start := time.Now()
	var answer string
	if async, _ := cmd.Flags().GetBool("async"); async {
		ch := sys.Ask(ctx, args[0])
		fmt.Fprintln(cmd.ErrOrStderr(), "Processing...")
		res := <-ch
		answer, err = res.Content, res.Err
	} else {
		answer, err = sys.AskSync(ctx, args[0])
	}
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), answer)
	if verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "\nAnswered in %v\n", time.Since(start).Round(time.Millisecond))
	}
	return nil
}

func runSetup(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	sys, _, _, err := buildSystem(ctx)
	if err != nil {
		return err
	}
	defer sys.Close()

	ok, summary := sys.SetupDirs(ctx, dataDirs())
	fmt.Fprintln(cmd.OutOrStdout(), summary)
	if !ok {
		return fmt.Errorf("setup failed")
	}

	if verbose {
		report := sys.Report()
		for _, f := range append(report.Finance.Files, report.CSV.Files...) {
			if f.Error != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "  skipped %s: %s\n", f.Name, f.Error)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  loaded %s (%s)\n", f.Name, f.Encoding)
		}
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	sys, cfg, logger, err := buildSystem(ctx)
	if err != nil {
		return err
	}
	defer sys.Close()

	if ok, summary := sys.SetupDirs(ctx, dataDirs()); !ok {
		// the API stays up so setup can be retried over HTTP
		logger.Warn().Str("summary", summary).Msg("initial setup failed")
	}

	return server.New(cfg.Server, sys, logger).Run(ctx)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	filename := "regnex-config.json"
	if len(args) > 0 {
		filename = args[0]
	}

	cfg := config.DefaultConfig()
	if err := cfg.SaveToFile(filename); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Default configuration saved to: %s\n", filename)
	fmt.Fprintf(cmd.OutOrStdout(), "Put GOOGLE_API_KEY in the environment or a .env file; it is not stored in the config.\n")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration file '%s' is valid!\n", args[0])
	if !cfg.HasAPIKey() {
		fmt.Fprintf(cmd.OutOrStdout(), "Warning: %s is not set\n", config.APIKeyEnv)
	}
	if verbose {
		fmt.Fprintf(cmd.OutOrStdout(), "\nConfiguration details:\n%s\n", cfg.String())
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), cfg.String())
	return nil
}
