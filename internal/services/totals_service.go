package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/bakery/internal/models"
)

const defaultSweepBatchSize = 100

// TotalTolerance is the largest drift between a stored total and its items
// that is left alone.
var TotalTolerance = decimal.New(1, -2)

// RepairOutcome classifies what happened to one order during a repair.
type RepairOutcome string

const (
	OutcomeUnchanged RepairOutcome = "unchanged"
	OutcomeFixed     RepairOutcome = "fixed"
	OutcomeNoItems   RepairOutcome = "no_items"
)

// Correction describes a total that was (or, in a dry run, would be) rewritten.
type Correction struct {
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	OldTotal    decimal.Decimal `json:"old_total"`
	NewTotal    decimal.Decimal `json:"new_total"`
}

// RepairReport summarizes a sweep over every order.
type RepairReport struct {
	Processed   int             `json:"processed"`
	Fixed       int             `json:"fixed"`
	Unchanged   int             `json:"unchanged"`
	NoItems     int             `json:"no_items"`
	Failed      int             `json:"failed"`
	Corrections []Correction    `json:"corrections"`
	Revenue     decimal.Decimal `json:"revenue"`
	DryRun      bool            `json:"dry_run"`
}

// RecomputeTotal sums the line totals of items. Items without a line total
// contribute zero.
func RecomputeTotal(items []models.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		if item.LineTotal.Valid {
			total = total.Add(item.LineTotal.Decimal)
		}
	}
	return total
}

// NeedsRepair reports whether stored drifts from computed by more than TotalTolerance.
func NeedsRepair(stored, computed decimal.Decimal) bool {
	return stored.Sub(computed).Abs().GreaterThan(TotalTolerance)
}

// TotalsServiceDeps bundles collaborators of TotalsService.
type TotalsServiceDeps struct {
	Orders      OrderRepository
	Corrections CorrectionRepository
	UnitOfWork  UnitOfWork
	Logger      *zap.Logger
	Clock       func() time.Time
	BatchSize   int
	DryRun      bool
}

// TotalsService keeps stored order totals consistent with their items.
type TotalsService struct {
	orders      OrderRepository
	corrections CorrectionRepository
	unitOfWork  UnitOfWork
	log         *zap.Logger
	clock       func() time.Time
	batchSize   int
	dryRun      bool
}

func NewTotalsService(deps TotalsServiceDeps) (*TotalsService, error) {
	if deps.Orders == nil {
		return nil, errors.New("totals service: order repository is required")
	}
	if deps.Corrections == nil && !deps.DryRun {
		return nil, errors.New("totals service: correction repository is required")
	}

	svc := &TotalsService{
		orders:      deps.Orders,
		corrections: deps.Corrections,
		unitOfWork:  deps.UnitOfWork,
		log:         deps.Logger,
		clock:       deps.Clock,
		batchSize:   deps.BatchSize,
		dryRun:      deps.DryRun,
	}
	if svc.unitOfWork == nil {
		svc.unitOfWork = noopUnitOfWork{}
	}
	if svc.log == nil {
		svc.log = zap.NewNop()
	}
	if svc.clock == nil {
		svc.clock = time.Now
	}
	if svc.batchSize <= 0 {
		svc.batchSize = defaultSweepBatchSize
	}
	return svc, nil
}

// RepairOrder recomputes the total of one order and overwrites it, with an
// audit record, when it has drifted. Orders without items are never touched.
func (s *TotalsService) RepairOrder(ctx context.Context, order models.Order) (RepairOutcome, *Correction, error) {
	var (
		outcome    RepairOutcome
		correction *Correction
	)

	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		items, err := s.orders.Items(txCtx, order.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			outcome = OutcomeNoItems
			return nil
		}

		computed := RecomputeTotal(items)
		if !NeedsRepair(order.TotalAmount, computed) {
			outcome = OutcomeUnchanged
			return nil
		}

		outcome = OutcomeFixed
		correction = &Correction{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			OldTotal:    order.TotalAmount,
			NewTotal:    computed,
		}
		if s.dryRun {
			return nil
		}

		if err := s.orders.UpdateTotal(txCtx, order.ID, order.TotalAmount, computed); err != nil {
			return err
		}
		return s.corrections.Record(txCtx, &models.TotalCorrection{
			OrderID:     order.ID,
			OldTotal:    order.TotalAmount,
			NewTotal:    computed,
			CorrectedAt: s.clock().UTC(),
		})
	})
	if err != nil {
		return "", nil, err
	}
	return outcome, correction, nil
}

// Sweep repairs every order, one short transaction per order, in creation
// order. A failing order is counted and skipped.
func (s *TotalsService) Sweep(ctx context.Context) (RepairReport, error) {
	report := RepairReport{DryRun: s.dryRun, Corrections: []Correction{}}

	var after *models.Order
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		var batch []models.Order
		err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
			var err error
			batch, err = s.orders.Batch(txCtx, after, s.batchSize)
			return err
		})
		if err != nil {
			return report, err
		}

		for _, order := range batch {
			report.Processed++
			outcome, correction, err := s.RepairOrder(ctx, order)
			if err != nil {
				report.Failed++
				s.log.Warn("order total repair failed",
					zap.String("order_id", order.ID.String()),
					zap.String("order_number", order.OrderNumber),
					zap.Error(err),
				)
				continue
			}

			switch outcome {
			case OutcomeFixed:
				report.Fixed++
				report.Corrections = append(report.Corrections, *correction)
				s.log.Info("order total corrected",
					zap.String("order_number", order.OrderNumber),
					zap.String("old_total", correction.OldTotal.StringFixed(2)),
					zap.String("new_total", correction.NewTotal.StringFixed(2)),
					zap.Bool("dry_run", s.dryRun),
				)
			case OutcomeNoItems:
				report.NoItems++
			default:
				report.Unchanged++
			}
		}

		if len(batch) < s.batchSize {
			break
		}
		last := batch[len(batch)-1]
		after = &last
	}

	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		revenue, err := s.orders.Revenue(txCtx)
		report.Revenue = revenue
		return err
	})
	if err != nil {
		return report, err
	}

	s.log.Info("order totals sweep finished",
		zap.Int("processed", report.Processed),
		zap.Int("fixed", report.Fixed),
		zap.Int("no_items", report.NoItems),
		zap.Int("failed", report.Failed),
		zap.String("revenue", report.Revenue.StringFixed(2)),
	)
	return report, nil
}
