package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/erp/salesops/internal/domain/shared"
)

// SagaError reports a multi-step operation that failed after it started
// mutating state. Compensated is true when every compensating action ran
// cleanly; otherwise CompensationErrors lists what could not be undone.
type SagaError struct {
	Operation          string
	Step               string
	Cause              error
	Compensated        bool
	CompensationErrors []error
}

func (e *SagaError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed at %s: %v", e.Operation, e.Step, e.Cause)
	if e.Compensated {
		b.WriteString(" (rolled back)")
	} else {
		fmt.Fprintf(&b, " (rollback incomplete: %d compensation errors)", len(e.CompensationErrors))
	}
	return b.String()
}

// Unwrap exposes both the reservation conflict sentinel and the cause
func (e *SagaError) Unwrap() []error {
	return []error{shared.ErrReservationConflict, e.Cause}
}

type compensation struct {
	name string
	fn   func(ctx context.Context) error
}

// saga collects compensating actions as steps succeed and runs them in
// reverse order on failure.
type saga struct {
	operation     string
	compensations []compensation
	logger        *zap.Logger
}

func newSaga(operation string, logger *zap.Logger) *saga {
	return &saga{operation: operation, logger: logger}
}

// onFailure registers the undo of a step that just committed
func (s *saga) onFailure(name string, fn func(ctx context.Context) error) {
	s.compensations = append(s.compensations, compensation{name: name, fn: fn})
}

// empty reports whether no step has committed yet
func (s *saga) empty() bool {
	return len(s.compensations) == 0
}

// fail runs every registered compensation, newest first, and builds the
// SagaError. Compensations run on a context detached from the caller's
// cancellation so a dropped request still rolls back.
func (s *saga) fail(ctx context.Context, step string, cause error) error {
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for i := len(s.compensations) - 1; i >= 0; i-- {
		c := s.compensations[i]
		if err := c.fn(ctx); err != nil {
			s.logger.Error("compensation failed",
				zap.String("operation", s.operation),
				zap.String("compensation", c.name),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}

	fields := []zap.Field{
		zap.String("operation", s.operation),
		zap.String("step", step),
		zap.Int("compensations", len(s.compensations)),
		zap.Error(cause),
	}
	if len(errs) == 0 {
		s.logger.Warn("saga rolled back", fields...)
	} else {
		s.logger.Error("saga rollback incomplete", append(fields, zap.Int("compensation_errors", len(errs)))...)
	}

	return &SagaError{
		Operation:          s.operation,
		Step:               step,
		Cause:              cause,
		Compensated:        len(errs) == 0,
		CompensationErrors: errs,
	}
}

// IsSagaError reports whether err is, or wraps, a SagaError
func IsSagaError(err error) bool {
	var se *SagaError
	return errors.As(err, &se)
}
