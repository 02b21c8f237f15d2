// Package recorder persists pricing results and their source contributions
// as one atomic write, and reads them back for audit.
package recorder

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/comp-pricer/internal/model"
)

// Recorder persists PricingResults. Results are write-once: every call to
// Record inserts a new result and never updates an earlier one.
type Recorder interface {
	Record(ctx context.Context, r *model.PricingResult) error
	Get(ctx context.Context, id string) (*model.PricingResult, error)
	ListByRequest(ctx context.Context, requestID string) ([]model.PricingResult, error)
	Migrate(ctx context.Context) error
	Close() error
}

// ErrNotFound is returned by Get for an unknown result id.
var ErrNotFound = eris.New("recorder: result not found")

// StorageError marks a failure of the backing store. It is the only error
// kind that fails a pricing request.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("recorder: storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: eris.Wrap(err, op)}
}

// IsStorageFailure reports whether err came from the backing store.
func IsStorageFailure(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
