package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/xhad/ragmodes/internal/logger"
	"github.com/xhad/ragmodes/internal/models"
	"github.com/xhad/ragmodes/internal/types"
	"github.com/xhad/ragmodes/pkg/parallel"
)

// Progress is called after every unit with the number finished so far in
// that collection and modality. It may be called from several goroutines.
type Progress func(collection string, modality models.Modality, done, total int)

// ModalityReport is the outcome of one ingestor over one file.
type ModalityReport struct {
	Modality   models.Modality    `json:"modality"`
	Collection string             `json:"collection"`
	Extracted  int                `json:"extracted"`
	Stored     int                `json:"stored"`
	IDs        []string           `json:"-"`
	Failures   []*types.UnitError `json:"-"`
	Errors     []string           `json:"errors,omitempty"`
	Err        error              `json:"-"`
}

// Failed reports whether the ingestor could not extract the file.
func (r ModalityReport) Failed() bool {
	return r.Err != nil
}

// Run extracts units from path and stores each one concurrently. A unit that
// fails to transform or store is recorded in the report and the rest of the
// batch continues.
func Run(ctx context.Context, ingestor Ingestor, store types.VectorStore, path string, progress Progress) ModalityReport {
	report := ModalityReport{
		Modality:   ingestor.Modality(),
		Collection: store.Collection(),
	}

	units, err := ingestor.Extract(ctx, path)
	if err != nil {
		report.Err = fmt.Errorf("extracting %s units from %s: %w", report.Modality, filepath.Base(path), err)
		report.Errors = append(report.Errors, report.Err.Error())
		logger.Error("%v", report.Err)
		return report
	}
	report.Extracted = len(units)
	logger.Debug("Extracted %d %s units from %s", len(units), report.Modality, filepath.Base(path))

	var done atomic.Int64
	outcomes := parallel.Map(ctx, units, func(ctx context.Context, _ int, unit models.RawUnit) (string, error) {
		defer func() {
			n := done.Add(1)
			if progress != nil {
				progress(report.Collection, report.Modality, int(n), len(units))
			}
		}()

		record, err := ingestor.Transform(ctx, unit)
		if err != nil {
			return "", err
		}
		return store.Store(ctx, record)
	})

	for _, o := range parallel.Succeeded(outcomes) {
		report.IDs = append(report.IDs, o.Value)
	}
	for _, o := range parallel.Failed(outcomes) {
		ue := &types.UnitError{Index: o.Index, Modality: report.Modality, Err: o.Err}
		report.Failures = append(report.Failures, ue)
		report.Errors = append(report.Errors, ue.Error())
		logger.Warn("Skipping %v", ue)
	}
	report.Stored = len(report.IDs)

	return report
}

// joinFailures combines the extraction errors of several reports.
func joinFailures(reports []ModalityReport) error {
	var errs []error
	for _, r := range reports {
		if r.Failed() {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}
