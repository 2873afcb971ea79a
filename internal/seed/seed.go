// Package seed loads the base retail corpus the producer samples from.
package seed

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/retail-pipeline/internal/model"
	"github.com/sells-group/retail-pipeline/internal/tabular"
)

// Corpus is the immutable, normalized seed table. It is loaded once and only read afterwards.
type Corpus struct {
	records []model.Record
}

// NewCorpus wraps already-normalized records.
func NewCorpus(records []model.Record) *Corpus {
	out := make([]model.Record, len(records))
	copy(out, records)
	return &Corpus{records: out}
}

// Len returns the number of seed rows.
func (c *Corpus) Len() int { return len(c.records) }

// At returns a copy of the i-th seed row.
func (c *Corpus) At(i int) model.Record { return c.records[i] }

// Load reads a CSV or XLSX seed file and normalizes it to the fixed schema.
func Load(ctx context.Context, path string) (*Corpus, error) {
	log := zap.L().With(zap.String("component", "seed"))

	tbl, err := tabular.ReadFile(ctx, path)
	if err != nil {
		return nil, eris.Wrapf(err, "seed: read %s", path)
	}

	c, dropped := FromTable(tbl)
	if c.Len() == 0 {
		return nil, eris.Errorf("seed: %s has no usable rows", path)
	}

	log.Info("seed corpus loaded",
		zap.String("path", path),
		zap.Int("rows", c.Len()),
		zap.Int("skipped_rows", dropped),
	)
	return c, nil
}

// FromTable normalizes a raw table: canonical column names, measures parsed
// with nulls as 0, categories trimmed with nulls as "Unknown". Rows whose width
// differs from the header are skipped and counted.
func FromTable(tbl *tabular.Table) (*Corpus, int) {
	header := model.CanonicalColumns(tbl.Header)
	idx := (&tabular.Table{Header: header}).Index()

	get := func(row []string, col string) string {
		if i, ok := idx[col]; ok {
			return row[i]
		}
		return ""
	}

	var (
		records []model.Record
		skipped int
	)
	for _, row := range tbl.Rows {
		if len(row) != len(header) {
			skipped++
			continue
		}
		var r model.Record
		r.Date = get(row, model.ColDate)
		for _, col := range model.CategoricalColumns {
			*r.Text(col) = model.CleanCategory(get(row, col))
		}
		for _, col := range model.NumericColumns {
			*r.Measure(col) = model.ParseMeasure(get(row, col))
		}
		r.HolidayPromotion = model.PromotionFlag(get(row, model.ColHolidayPromotion))
		records = append(records, r)
	}
	return &Corpus{records: records}, skipped
}
