package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"

	"upspend/internal/amqp"
	"upspend/internal/backend"
	"upspend/internal/cli"
	"upspend/internal/config"
	"upspend/internal/core"
	"upspend/internal/export"
	"upspend/internal/export/csvfile"
	"upspend/internal/export/google"
	"upspend/internal/fetch"
	"upspend/internal/fixer"
	"upspend/internal/log"
	"upspend/internal/report"
	"upspend/internal/services"
	"upspend/internal/upbank"
)

type flags struct {
	mode      string
	noCache   bool
	threshold float64
	csv       bool
	sheet     bool
	queue     bool
}

func parseFlags(command string, args []string, cfg *config.Config) (flags, error) {
	var f flags
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	defaultMode := "month"
	if command == "compare" {
		defaultMode = "month,year"
	}
	fs.StringVar(&f.mode, "mode", defaultMode, "week, month, year, all, recent or a year such as 2024")
	fs.BoolVar(&f.noCache, "no-cache", false, "always fetch from the API")
	fs.Float64Var(&f.threshold, "threshold", cfg.OtherThreshold, "share of total spend below which a category is folded into other")
	fs.BoolVar(&f.csv, "csv", false, "write CSV files to CSV_DIR")
	fs.BoolVar(&f.sheet, "sheet", false, "export to the GOOGLE_SPREADSHEET_ID spreadsheet")
	fs.BoolVar(&f.queue, "queue", false, "queue corrections on AMQP_URL instead of applying them")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if math.IsNaN(f.threshold) || f.threshold < 0 || f.threshold >= 1 {
		return f, fmt.Errorf("invalid -threshold %v: must be in [0, 1)", f.threshold)
	}
	return f, nil
}

func run(ctx context.Context, logger *log.Logger, cfg *config.Config, command string, args []string) error {
	f, err := parseFlags(command, args, cfg)
	if err != nil {
		return err
	}

	client := cli.NewUpClient(logger, cfg)
	runCtx := cli.NewRunContext()
	logger = logger.With(log.FieldRunID, runCtx.RunID)
	out := report.New(os.Stdout, core.NewCategoryDirectory(nil))

	switch command {
	case "ping":
		if client == nil {
			return cfg.RequireToken()
		}
		emoji, err := client.Ping(ctx)
		if err != nil {
			return err
		}
		fmt.Println(emoji)
		return nil
	case "accounts":
		if client == nil {
			return cfg.RequireToken()
		}
		accounts, err := client.Accounts(ctx)
		if err != nil {
			return err
		}
		out.Accounts(accounts)
		return nil
	case "categories":
		if client == nil {
			return cfg.RequireToken()
		}
		dir, err := client.Categories(ctx)
		if err != nil {
			return err
		}
		report.New(os.Stdout, dir).Categories()
		return nil
	case "transactions", "summary", "compare", "fix", "sync":
	default:
		return fmt.Errorf("unknown command %q\n\n%s", command, usage)
	}

	be := cli.InitBackend(ctx, logger, cfg)
	if be.Cleanup != nil {
		defer be.Cleanup()
	}

	svc, closeFn, err := newService(ctx, logger, cfg, f, client, command, be.Backend)
	if err != nil {
		return err
	}
	defer closeFn()

	if command != "fix" {
		out = report.New(os.Stdout, directory(ctx, logger, client))
	}

	useCache := !f.noCache
	switch command {
	case "transactions":
		_, txs, err := svc.Transactions(ctx, runCtx, f.mode, useCache)
		if err != nil {
			return err
		}
		out.Transactions(txs)
	case "summary":
		rep, err := svc.Summarise(ctx, runCtx, f.mode, useCache)
		if err != nil {
			return err
		}
		out.Summary("SHORT SUMMARY", rep.Short)
	case "compare":
		cmp, err := svc.Compare(ctx, runCtx, strings.Split(f.mode, ","), useCache)
		if err != nil {
			return err
		}
		out.Comparison(cmp)
	case "fix":
		res, err := svc.Fix(ctx, runCtx, f.mode, useCache)
		if err != nil {
			return err
		}
		printFix(res)
		if len(res.Failed) > 0 {
			return fmt.Errorf("%w: %d of %d", services.ErrFixIncomplete, len(res.Failed), res.Eligible)
		}
	case "sync":
		res, err := svc.Sync(ctx, runCtx)
		if res.Fix != nil {
			printFix(*res.Fix)
		}
		if err != nil {
			return err
		}
		out.Summary("SYNC SUMMARY", res.Report.Short)
	}
	return nil
}

// newService composes the summary service for one command. The returned
// function closes any AMQP connection it opened.
func newService(ctx context.Context, logger *log.Logger, cfg *config.Config, f flags, client *upbank.Client, command string, be backend.Backend) (*services.SummaryService, func(), error) {
	closeFn := func() {}

	var lister fetch.Lister
	if client != nil {
		lister = client
	}
	fetcher := fetch.New(lister, be.Cache, fetch.Options{
		MaxPages: cfg.MaxPages,
		PageSize: cfg.PageSize,
		Logger:   logger,
	})

	var exports []export.SummaryWriter
	if f.csv {
		exports = append(exports, csvfile.New(cfg.CSVDir))
	}
	if f.sheet {
		gs, err := google.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, logger)
		if err != nil {
			return nil, closeFn, fmt.Errorf("google sheets: %w", err)
		}
		exports = append(exports, gs)
	}

	var fix *fixer.Fixer
	if cfg.VendorMapFile != "" && (command == "fix" || command == "sync") {
		vendors, err := fixer.LoadVendorMap(cfg.VendorMapFile)
		if err != nil {
			return nil, closeFn, err
		}
		var corrector fixer.Corrector
		switch {
		case f.queue:
			if cfg.AMQPURL == "" {
				return nil, closeFn, errors.New("-queue requires AMQP_URL")
			}
			q, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
			if err != nil {
				return nil, closeFn, err
			}
			closeFn = func() { q.Close() }
			corrector = q
		case client != nil:
			corrector = client
		default:
			return nil, closeFn, cfg.RequireToken()
		}
		fix = fixer.New(corrector, vendors, logger)
	}

	svcCfg := services.ServiceConfig{
		Threshold:   f.threshold,
		Lookback:    cfg.DefaultLookback,
		Concurrency: cfg.FetchConcurrency,
	}
	return services.NewSummaryService(fetcher, be.State, fix, exports, svcCfg, logger), closeFn, nil
}

// directory fetches category names for display. Offline runs show ids.
func directory(ctx context.Context, logger *log.Logger, client *upbank.Client) core.CategoryDirectory {
	if client == nil {
		return core.NewCategoryDirectory(nil)
	}
	dir, err := client.Categories(ctx)
	if err != nil {
		logger.WarnContext(ctx, "Could not load category names", log.FieldError, err)
		return core.NewCategoryDirectory(nil)
	}
	return dir
}

func printFix(res fixer.Result) {
	if res.Eligible == 0 {
		fmt.Println("All transactions categorised, nothing to do.")
		return
	}
	fmt.Printf("Eligible: %d  Attempted: %d  Corrected: %d  Unmatched: %d  Failed: %d\n",
		res.Eligible, res.Attempted(), res.Issued, len(res.Unmatched), len(res.Failed))
	for _, tx := range res.Unmatched {
		fmt.Printf("  %s  %s  %s\n", tx.Day(), tx.Description, tx.AmountDisplay)
	}
}
