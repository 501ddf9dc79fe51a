package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/example/bakery/internal/apperrors"
	"github.com/example/bakery/internal/models"
)

const (
	defaultImportBatchSize  = 50
	defaultImportBatchPause = 250 * time.Millisecond
)

// ImportDetail records why one input record was not imported.
type ImportDetail struct {
	Index     int            `json:"index"`
	Code      string         `json:"code"`
	ErrorCode apperrors.Code `json:"error_code"`
	Message   string         `json:"message"`
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Success int            `json:"success"`
	Errors  int            `json:"errors"`
	Details []ImportDetail `json:"details"`
}

func (r *ImportResult) fail(index int, code string, err error) {
	r.Errors++
	r.Details = append(r.Details, ImportDetail{
		Index:     index,
		Code:      code,
		ErrorCode: apperrors.CodeOf(err),
		Message:   err.Error(),
	})
}

// ImportServiceDeps bundles collaborators of ImportService.
type ImportServiceDeps struct {
	Products   ProductRepository
	UnitOfWork UnitOfWork
	Logger     *zap.Logger
	BatchSize  int
	BatchPause time.Duration
	Sleep      func(ctx context.Context, d time.Duration) error
}

// ImportService loads many products at once in paced batches.
type ImportService struct {
	products   ProductRepository
	unitOfWork UnitOfWork
	log        *zap.Logger
	batchSize  int
	pause      time.Duration
	sleep      func(context.Context, time.Duration) error
}

func NewImportService(deps ImportServiceDeps) (*ImportService, error) {
	if deps.Products == nil {
		return nil, errors.New("import service: product repository is required")
	}

	svc := &ImportService{
		products:   deps.Products,
		unitOfWork: deps.UnitOfWork,
		log:        deps.Logger,
		batchSize:  deps.BatchSize,
		pause:      deps.BatchPause,
		sleep:      deps.Sleep,
	}
	if svc.unitOfWork == nil {
		svc.unitOfWork = noopUnitOfWork{}
	}
	if svc.log == nil {
		svc.log = zap.NewNop()
	}
	if svc.batchSize <= 0 {
		svc.batchSize = defaultImportBatchSize
	}
	if svc.pause < 0 {
		svc.pause = defaultImportBatchPause
	}
	if svc.sleep == nil {
		svc.sleep = sleepContext
	}
	return svc, nil
}

type pendingProduct struct {
	index   int
	product models.Product
}

// Import validates every record, then inserts the valid ones in batches.
// A batch rejected for a duplicate code is retried record by record; any
// other batch failure marks the whole batch as failed. The returned error is
// only set when ctx ends before every batch was attempted.
func (s *ImportService) Import(ctx context.Context, inputs []ProductInput) (ImportResult, error) {
	result := ImportResult{Details: []ImportDetail{}}

	valid := make([]pendingProduct, 0, len(inputs))
	for i, input := range inputs {
		input = input.Normalize()
		if err := input.Validate(); err != nil {
			result.fail(i, input.Code, err)
			continue
		}
		var product models.Product
		input.apply(&product)
		valid = append(valid, pendingProduct{index: i, product: product})
	}

	for start := 0; start < len(valid); start += s.batchSize {
		if start > 0 {
			if err := s.sleep(ctx, s.pause); err != nil {
				s.failRemaining(&result, valid[start:], err)
				return result, err
			}
		}

		end := min(start+s.batchSize, len(valid))
		s.importBatch(ctx, valid[start:end], &result)
	}

	s.log.Info("product import finished",
		zap.Int("records", len(inputs)),
		zap.Int("success", result.Success),
		zap.Int("errors", result.Errors),
	)
	return result, nil
}

func (s *ImportService) importBatch(ctx context.Context, batch []pendingProduct, result *ImportResult) {
	products := make([]models.Product, len(batch))
	for i, p := range batch {
		products[i] = p.product
	}

	err := s.products.CreateBatch(ctx, products)
	switch {
	case err == nil:
		result.Success += len(batch)
	case apperrors.Is(err, apperrors.CodeDuplicateCode):
		s.log.Info("batch hit a duplicate code, inserting records individually", zap.Int("size", len(batch)))
		for _, p := range batch {
			product := p.product
			insertErr := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
				return s.products.Create(txCtx, &product)
			})
			if insertErr != nil {
				result.fail(p.index, product.Code, insertErr)
				continue
			}
			result.Success++
		}
	default:
		s.log.Error("product batch insert failed", zap.Int("size", len(batch)), zap.Error(err))
		s.failRemaining(result, batch, err)
	}
}

func (s *ImportService) failRemaining(result *ImportResult, batch []pendingProduct, err error) {
	for _, p := range batch {
		result.fail(p.index, p.product.Code, err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
