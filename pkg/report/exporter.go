package report

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/pundLedger/pkg/models"
	"github.com/sirupsen/logrus"
)

// Source builds the report data for an owner.
type Source interface {
	Report(ctx context.Context, pundID, actor uuid.UUID) (*models.PundReport, error)
}

// Exporter renders reports and, when an Archiver is set, archives them.
type Exporter struct {
	source   Source
	archiver Archiver
	logger   *logrus.Logger
	now      func() time.Time
}

// NewExporter returns an exporter. archiver may be nil.
func NewExporter(source Source, archiver Archiver, logger *logrus.Logger) *Exporter {
	return &Exporter{source: source, archiver: archiver, logger: logger, now: time.Now}
}

// Export is the rendered CSV plus the name it is served and archived under.
type Export struct {
	Filename string
	Key      string // archive key, empty when not archived
	Body     []byte
}

func (e *Exporter) Export(ctx context.Context, pundID, actor uuid.UUID) (*Export, error) {
	r, err := e.source.Report(ctx, pundID, actor)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, r); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}

	stamp := e.now().UTC().Format("20060102T150405Z")
	out := &Export{
		Filename: fmt.Sprintf("pund-%s-%s.csv", pundID, stamp),
		Body:     buf.Bytes(),
	}
	if e.archiver == nil {
		return out, nil
	}

	key := fmt.Sprintf("reports/%s/%s.csv", pundID, stamp)
	if err := e.archiver.Archive(ctx, key, out.Body); err != nil {
		e.logger.WithError(err).WithField("pund_id", pundID).Error("Failed to archive report")
		return nil, fmt.Errorf("failed to archive report: %w", err)
	}
	e.logger.WithFields(logrus.Fields{"pund_id": pundID, "key": key}).Info("Report archived")
	out.Key = key
	return out, nil
}
