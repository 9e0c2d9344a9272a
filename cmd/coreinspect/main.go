// Command coreinspect inspects a catalog: entity counts, consistency
// diagnostics, and sqlite snapshot export.
//
// Usage:
//
//	coreinspect counts [flags]
//	coreinspect diag [flags]
//	coreinspect export <file> [flags]
//
// Flags and environment are the shared engine configuration
// (--data-path / CORE_DATA_PATH and friends).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/karlokarate/FishIT-Player-sub011/internal/config"
	"github.com/karlokarate/FishIT-Player-sub011/internal/di"
	"github.com/karlokarate/FishIT-Player-sub011/internal/di/providers"
	"github.com/karlokarate/FishIT-Player-sub011/internal/diag"
	"github.com/karlokarate/FishIT-Player-sub011/internal/export"
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		usage()
		return 2
	}
	command := os.Args[1]
	args := os.Args[2:]

	// The export target is positional so the remaining args stay valid
	// engine flags.
	var exportPath string
	if command == "export" {
		if len(args) == 0 || args[0] == "" || args[0][0] == '-' {
			fmt.Fprintln(os.Stderr, "export needs a target file")
			usage()
			return 2
		}
		exportPath = args[0]
		args = args[1:]
	}

	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 2
	}

	injector := di.NewContainer()
	do.OverrideValue(injector, cfg)
	defer func() {
		if err := injector.Shutdown(); err != nil {
			fmt.Fprintln(os.Stderr, "shutdown:", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "counts":
		err = runCounts(ctx, injector)
	case "diag":
		err = runDiag(ctx, injector)
	case "export":
		err = runExport(ctx, injector, exportPath)
	default:
		fmt.Fprintln(os.Stderr, "unknown command:", command)
		usage()
		return 2
	}
	if err != nil {
		log := do.MustInvoke[*slog.Logger](injector)
		log.Error("command failed", "command", command, "error", err)
		return 1
	}
	return 0
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  coreinspect counts [flags]
  coreinspect diag [flags]
  coreinspect export <file> [flags]`)
}

func runCounts(ctx context.Context, injector do.Injector) error {
	storeHandle := do.MustInvoke[*providers.StoreHandle](injector)

	works, err := storeHandle.CountWorks(ctx)
	if err != nil {
		return err
	}

	refs := 0
	for _, err := range storeHandle.ListSourceRefs(ctx, "src:") {
		if err != nil {
			return err
		}
		refs++
	}
	variants := 0
	for _, err := range storeHandle.ListVariants(ctx) {
		if err != nil {
			return err
		}
		variants++
	}
	ledger, err := storeHandle.CountLedgerByState(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("works:       %d\n", works)
	fmt.Printf("source refs: %d\n", refs)
	fmt.Printf("variants:    %d\n", variants)
	for state, n := range ledger {
		fmt.Printf("ledger %-9s %d\n", string(state)+":", n)
	}
	return nil
}

func runDiag(ctx context.Context, injector do.Injector) error {
	scanner := do.MustInvoke[*diag.Scanner](injector)

	report, err := scanner.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("report %s: scanned %d works, %d refs, %d variants, %d relations, %d redirects, %d ledger entries\n",
		report.ID,
		report.Scanned.Works,
		report.Scanned.SourceRefs,
		report.Scanned.Variants,
		report.Scanned.Relations,
		report.Scanned.Redirects,
		report.Scanned.Ledger,
	)
	if !report.HasProblems() {
		fmt.Println("no findings")
		return nil
	}
	for _, f := range report.Findings {
		fmt.Printf("%-18s %s", f.Kind, f.Key)
		if f.Detail != "" {
			fmt.Printf(" (%s)", f.Detail)
		}
		fmt.Println()
	}
	return fmt.Errorf("%d findings", len(report.Findings))
}

func runExport(ctx context.Context, injector do.Injector, path string) error {
	storeHandle := do.MustInvoke[*providers.StoreHandle](injector)
	log := do.MustInvoke[*slog.Logger](injector)

	if err := export.Snapshot(ctx, storeHandle.Store, path, log); err != nil {
		return err
	}
	fmt.Println("snapshot written to", path)
	return nil
}
