package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/shibukawa/conformsql"
	"github.com/shibukawa/conformsql/testrunner"
)

// CLI represents the command-line interface
var CLI struct {
	Config  string        `help:"Configuration file path" default:"conformsql.yaml"`
	Verbose bool          `help:"Enable verbose output" short:"v"`
	NoColor bool          `help:"Disable colored diagnostics"`
	Driver  string        `help:"Override the configured database/sql driver (pgx, mysql, sqlite3, sqlite)"`
	Timeout time.Duration `help:"Abort the run after this duration; 0 disables the limit" default:"0s"`

	Port        int      `arg:"" help:"Port of the server under test"`
	Table       string   `arg:"" help:"Table designator db.table, or no_table_specified"`
	ClusterPort int      `arg:"" help:"Cluster port, used for shard requests"`
	Build       string   `arg:"" help:"Build identifier, used for shard requests"`
	Scripts     []string `arg:"" type:"path" help:"Script files or directories containing them"`
}

func main() {
	os.Exit(run())
}

func run() int {
	kong.Parse(&CLI,
		kong.Name("conformsql"),
		kong.Description("Run conformance test scripts against a SQL server"),
	)

	logger, err := newLogger(CLI.Verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return conformsql.ExitConfigError
	}
	defer logger.Sync() //nolint:errcheck

	config, err := conformsql.LoadConfig(CLI.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		return conformsql.ExitConfigError
	}

	if CLI.Driver != "" {
		if err := config.OverrideDriver(CLI.Driver); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return conformsql.ExitConfigError
		}
	}

	if config.Output.Color != nil {
		color.NoColor = !*config.Output.Color
	}

	if CLI.NoColor {
		color.NoColor = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if CLI.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, CLI.Timeout)
		defer cancel()
	}

	err = testrunner.Run(ctx, testrunner.Options{
		Config:  config,
		Port:    CLI.Port,
		Table:   CLI.Table,
		Cluster: testrunner.ClusterInfo{Port: CLI.ClusterPort, Build: CLI.Build},
		Scripts: CLI.Scripts,
		Out:     os.Stdout,
		Logger:  logger,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	return testrunner.ExitCode(err)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	return cfg.Build()
}
