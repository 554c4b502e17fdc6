package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger/pkg/db"
	pkgerrors "github.com/angelmondragon/stockledger/pkg/errors"
	"github.com/angelmondragon/stockledger/pkg/logger"
	"github.com/angelmondragon/stockledger/pkg/metrics"
)

const (
	DefaultMaxRetries  = 3
	baseRetryBackoff   = 10 * time.Millisecond
	maxRetryBackoff    = 250 * time.Millisecond
	retryJitterPercent = 50
)

// errCreateRace marks a lost race on the unique variant index during lazy creation.
var errCreateRace = errors.New("stock record created concurrently")

// TxRunner runs fn in one database transaction. *db.Client satisfies it.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// mutator runs one read-modify-write transaction per call and retries it on
// version conflicts and transient lock failures.
type mutator struct {
	tx         TxRunner
	maxRetries int
	base       time.Duration
	metrics    *metrics.InventoryMetrics
	logg       *logger.Logger
}

func newMutator(tx TxRunner, maxRetries int, m *metrics.InventoryMetrics, logg *logger.Logger) *mutator {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &mutator{
		tx:         tx,
		maxRetries: maxRetries,
		base:       baseRetryBackoff,
		metrics:    m,
		logg:       logg,
	}
}

// backoff is a fresh schedule per call: exponential from base with jitter,
// capped, stopping after maxRetries retries.
func (m *mutator) backoff() retry.Backoff {
	b := retry.NewExponential(m.base)
	b = retry.WithJitterPercent(retryJitterPercent, b)
	b = retry.WithCappedDuration(maxRetryBackoff, b)
	return retry.WithMaxRetries(uint64(m.maxRetries), b)
}

func (m *mutator) run(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	start := time.Now()
	attempt := 0
	err := retry.Do(ctx, m.backoff(), func(ctx context.Context) error {
		if attempt > 0 {
			m.metrics.IncRetry(op)
		}
		attempt++

		err := m.tx.WithTx(ctx, fn)
		if err == nil || !retryable(err) {
			return err
		}
		if m.logg != nil {
			m.logg.Debug(m.logg.WithFields(ctx, map[string]any{"op": op, "attempt": attempt}), "stock mutation conflict: "+err.Error())
		}
		return retry.RetryableError(err)
	})
	m.metrics.ObserveMutation(op, outcomeFor(err), time.Since(start))

	switch {
	case err == nil:
		return nil
	case pkgerrors.As(err) != nil:
		return err
	case retryable(err):
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stock record is busy, retry the request")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stock mutation cancelled")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stock mutation failed")
	}
}

func retryable(err error) bool {
	return errors.Is(err, errVersionConflict) || errors.Is(err, errCreateRace) || db.IsRetryable(err)
}

func outcomeFor(err error) string {
	if err == nil {
		return metrics.OutcomeOK
	}
	if typed := pkgerrors.As(err); typed != nil && !pkgerrors.MetadataFor(typed.Code()).Retryable {
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeError
}
