package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"upspend/internal/cli"
	"upspend/internal/log"
)

const usage = `usage: upspend <command> [flags]

commands:
  ping          check the API token
  accounts      list accounts and balances
  categories    list categories
  transactions  list transactions for -mode
  summary       summarise -mode by category
  compare       compare the comma separated periods in -mode
  fix           set missing categories from VENDOR_MAP_FILE
  sync          fix and summarise everything since the last sync

run "upspend <command> -h" for flags`

func main() {
	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "help" {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	command := os.Args[1]
	err := run(ctx, logger, cfg, command, os.Args[2:])
	stop()
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		logger.Error("Command failed", "command", command, log.FieldError, err)
		os.Exit(1)
	}
}
