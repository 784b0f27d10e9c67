// Synapse CLI — запуск pipeline агентов локально и управление runs через HTTP API.
//
// Использование:
//
//	synapse [--api-url URL] [--json] <command> [flags]
//
// Команды:
//
//	run       Локальный запуск pipeline (--tui для dashboard)
//	runs      Runs на сервере API
//	pipeline  Граф агентов
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/synapse/internal/cli"
	"github.com/shaiso/synapse/internal/config"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	// Файл SYNAPSE_CONFIG и окружение задают значения флагов по умолчанию
	cfg, err := config.Load(os.Getenv("SYNAPSE_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:           "synapse",
		Short:         "Synapse CLI — multi-agent delivery pipeline",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", cfg.API.URL, "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewRunCmd(outputFn, cfg.Engine),
		cli.NewRunsCmd(clientFn, outputFn),
		cli.NewPipelineCmd(clientFn, outputFn, cfg.Engine),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}
