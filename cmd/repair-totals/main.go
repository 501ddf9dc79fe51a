// Command repair-totals recomputes every order total from its items, fixes
// drifted totals with an audit record and prints a report.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/example/bakery/internal/config"
	"github.com/example/bakery/internal/database"
	"github.com/example/bakery/internal/logger"
	"github.com/example/bakery/internal/models"
	"github.com/example/bakery/internal/repositories"
	"github.com/example/bakery/internal/services"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "report drifted totals without writing")
	batchSize := flag.Int("batch-size", 100, "orders loaded per page")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zapLog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zapLog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := run(ctx, cfg, zapLog, *dryRun, *batchSize)
	printReport(os.Stdout, report)
	if err != nil {
		zapLog.Fatal("repair run aborted", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, zapLog *zap.Logger, dryRun bool, batchSize int) (services.RepairReport, error) {
	db, err := database.Connect(cfg.DatabaseURL, cfg.DBLogLevel, zapLog)
	if err != nil {
		return services.RepairReport{}, err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	svc, err := services.NewTotalsService(services.TotalsServiceDeps{
		Orders:      repositories.NewOrderRepository(db),
		Corrections: repositories.NewCorrectionRepository(db),
		UnitOfWork:  database.NewTxRunner(db),
		Logger:      zapLog,
		BatchSize:   batchSize,
		DryRun:      dryRun,
	})
	if err != nil {
		return services.RepairReport{}, err
	}

	start := time.Now()
	report, err := svc.Sweep(database.WithIdentity(ctx, models.SystemIdentity))
	zapLog.Info("repair run finished", zap.Duration("elapsed", time.Since(start)))
	return report, err
}

func printReport(w io.Writer, report services.RepairReport) {
	mode := "applied"
	if report.DryRun {
		mode = "dry run"
	}

	fmt.Fprintf(w, "Order totals repair (%s)\n", mode)
	fmt.Fprintf(w, "  processed: %d\n", report.Processed)
	fmt.Fprintf(w, "  fixed:     %d\n", report.Fixed)
	fmt.Fprintf(w, "  unchanged: %d\n", report.Unchanged)
	fmt.Fprintf(w, "  no items:  %d\n", report.NoItems)
	fmt.Fprintf(w, "  failed:    %d\n", report.Failed)

	if len(report.Corrections) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "ORDER\tOLD TOTAL\tNEW TOTAL\t")
		for _, c := range report.Corrections {
			fmt.Fprintf(tw, "%s\t%s\t%s\t\n", c.OrderNumber, c.OldTotal.StringFixed(2), c.NewTotal.StringFixed(2))
		}
		_ = tw.Flush()
	}

	fmt.Fprintf(w, "\nRevenue (non-cancelled orders): %s\n", services.FormatPrice(report.Revenue))
}
