package types

import (
	"errors"
	"fmt"

	"github.com/xhad/ragmodes/internal/models"
)

var (
	// ErrPathNotFound indicates a missing data directory or input file.
	ErrPathNotFound = errors.New("path not found")

	// ErrUnsupportedFormat indicates an unknown file extension or backend name.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrNotImplemented indicates an unknown chunking strategy.
	ErrNotImplemented = errors.New("not implemented")

	// ErrExternalService wraps captioning, embedding and model failures.
	ErrExternalService = errors.New("external service error")

	// ErrEmptyContent indicates a record without retrievable content.
	ErrEmptyContent = errors.New("record content is empty")

	// ErrUnitIngestion marks a single unit that failed inside a batch.
	ErrUnitIngestion = errors.New("unit ingestion failed")
)

// UnitError describes why one unit of a batch was not stored.
type UnitError struct {
	Index    int
	Modality models.Modality
	Err      error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("%s unit %d: %v", e.Modality, e.Index, e.Err)
}

func (e *UnitError) Unwrap() []error {
	return []error{ErrUnitIngestion, e.Err}
}

// Unsupported builds an ErrUnsupportedFormat naming the offending value.
func Unsupported(value string) error {
	return fmt.Errorf("%w: '%s'", ErrUnsupportedFormat, value)
}

// PathNotFound builds an ErrPathNotFound naming the missing path.
func PathNotFound(what, path string) error {
	return fmt.Errorf("%w: %s does not exist: %s", ErrPathNotFound, what, path)
}
