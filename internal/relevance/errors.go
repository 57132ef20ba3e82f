package relevance

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig marks configuration problems detected before any
	// backend call is made.
	ErrInvalidConfig = errors.New("invalid relevance config")

	// ErrUnparseable is recorded when a response yields no section for any
	// item of its batch.
	ErrUnparseable = errors.New("response has no recognizable item sections")
)

const (
	StageScreening = "screening"
	StageDetail    = "detail"
)

// BatchError describes a batch whose call or parse failed. Its items were
// degraded locally; the run carried on.
type BatchError struct {
	Stage string
	Batch int
	Items []int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%s batch %d (%d items): %v", e.Stage, e.Batch, len(e.Items), e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
