// Package ingest is the consumer side of the pipeline: one transform pass
// discovers staged artifacts, normalizes them, loads both sinks and archives
// the inputs once the relational write has succeeded.
package ingest

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/retail-pipeline/internal/model"
	"github.com/sells-group/retail-pipeline/internal/tabular"
)

// ErrMalformedDate fails a whole pass when a non-empty date is not YYYY-MM-DD.
var ErrMalformedDate = eris.New("ingest: malformed date")

var known = func() map[string]bool {
	m := make(map[string]bool, len(model.Columns))
	for _, c := range model.Columns {
		m[c] = true
	}
	return m
}()

// Normalized is one table mapped onto the fixed schema.
type Normalized struct {
	Records []model.Record
	// Quarantined counts rows with more fields than the header.
	Quarantined int
	// Dropped lists incoming columns outside the fixed schema.
	Dropped []string
}

// Normalize canonicalizes column names and casts every row onto model.Record.
// Rows shorter than the header are padded with empty fields, which then take
// the usual null defaults. Missing and empty dates become today. Any other date must already be
// YYYY-MM-DD or the table is rejected with ErrMalformedDate.
func Normalize(tbl *tabular.Table, today time.Time) (*Normalized, error) {
	header := model.CanonicalColumns(tbl.Header)
	idx := (&tabular.Table{Header: header}).Index()

	out := &Normalized{Records: make([]model.Record, 0, len(tbl.Rows))}
	for _, col := range header {
		if !known[col] {
			out.Dropped = append(out.Dropped, col)
		}
	}

	get := func(row []string, col string) (string, bool) {
		i, ok := idx[col]
		if !ok {
			return "", false
		}
		return row[i], true
	}

	fallback := today.Format(model.DateLayout)
	for n, row := range tbl.Rows {
		if len(row) > len(header) {
			out.Quarantined++
			continue
		}
		if len(row) < len(header) {
			row = append(row[:len(row):len(row)], make([]string, len(header)-len(row))...)
		}

		var r model.Record
		for _, col := range model.CategoricalColumns {
			v, _ := get(row, col)
			*r.Text(col) = model.CleanCategory(v)
		}
		for _, col := range model.NumericColumns {
			v, _ := get(row, col)
			*r.Measure(col) = model.ParseMeasure(v)
		}
		promo, _ := get(row, model.ColHolidayPromotion)
		r.HolidayPromotion = model.PromotionFlag(strings.TrimSpace(promo))

		date, err := canonicalDate(get(row, model.ColDate))
		if err != nil {
			return nil, eris.Wrapf(err, "row %d", n+1)
		}
		if date == "" {
			date = fallback
		}
		r.Date = date

		out.Records = append(out.Records, r)
	}
	return out, nil
}

// canonicalDate returns "" for an absent or empty date, and otherwise the
// value reformatted as YYYY-MM-DD after a strict parse.
func canonicalDate(raw string, present bool) (string, error) {
	raw = strings.TrimSpace(raw)
	if !present || raw == "" {
		return "", nil
	}
	t, err := time.Parse(model.DateLayout, raw)
	if err != nil {
		return "", eris.Wrapf(ErrMalformedDate, "%q", raw)
	}
	return t.Format(model.DateLayout), nil
}
