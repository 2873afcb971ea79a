// Package generator derives perturbed retail batches from the seed corpus.
package generator

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/sells-group/retail-pipeline/internal/model"
	"github.com/sells-group/retail-pipeline/internal/seed"
)

// Vocabulary lists the replacement values drawn for each categorical column.
// Values deliberately go beyond what the seed corpus contains.
type Vocabulary map[string][]string

// DefaultVocabulary returns the drift vocabulary used in production.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		model.ColCategory:         {"Groceries", "Toys", "Electronics", "Furniture", "Clothing", "Pharmacy", "Garden"},
		model.ColRegion:           {"North", "South", "East", "West", "Central", "Northeast", "Coastal"},
		model.ColWeatherCondition: {"Sunny", "Rainy", "Cloudy", "Snowy", "Stormy", "Foggy", "Windy"},
		model.ColSeasonality:      {"Spring", "Summer", "Autumn", "Winter", "Monsoon"},
	}
}

// Options tunes the perturbation.
type Options struct {
	ReplaceProb   float64 // per row, per vocabulary column
	JitterMin     float64
	JitterMax     float64
	PromotionProb float64
}

// DefaultOptions returns 30% category replacement, ±15% jitter and a fair promotion coin.
func DefaultOptions() Options {
	return Options{
		ReplaceProb:   0.30,
		JitterMin:     0.85,
		JitterMax:     1.15,
		PromotionProb: 0.5,
	}
}

// Generator samples and perturbs batches. It is not safe for concurrent use.
type Generator struct {
	rng   *rand.Rand
	vocab Vocabulary
	opts  Options
}

// New creates a Generator backed by rng. A nil vocab uses DefaultVocabulary.
func New(rng *rand.Rand, vocab Vocabulary, opts Options) *Generator {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	return &Generator{rng: rng, vocab: vocab, opts: opts}
}

// NewSeeded creates a Generator with default vocabulary and options from a fixed seed.
func NewSeeded(s uint64) *Generator {
	return New(rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15)), nil, DefaultOptions())
}

// DrawSize picks a batch size uniformly in [lo, hi].
func (g *Generator) DrawSize(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + g.rng.IntN(hi-lo+1)
}

// Generate samples min(size, corpus.Len()) distinct seed rows and perturbs them.
// It never fails: oversize requests are clamped and an empty corpus yields an empty batch.
func (g *Generator) Generate(corpus *seed.Corpus, size int, batchID int64, now time.Time) *model.Batch {
	n := size
	if n > corpus.Len() {
		n = corpus.Len()
	}
	if n < 0 {
		n = 0
	}

	date := now.Format(model.DateLayout)
	perm := g.rng.Perm(corpus.Len())

	records := make([]model.Record, n)
	for i := 0; i < n; i++ {
		r := corpus.At(perm[i])
		g.perturb(&r)
		r.Date = date
		records[i] = r
	}

	return &model.Batch{ID: batchID, CreatedAt: now, Records: records}
}

func (g *Generator) perturb(r *model.Record) {
	for _, col := range model.NumericColumns {
		m := r.Measure(col)
		jitter := g.opts.JitterMin + g.rng.Float64()*(g.opts.JitterMax-g.opts.JitterMin)
		v := *m * jitter
		if model.IntegerMeasures[col] {
			v = math.Round(v)
		} else {
			v = math.Round(v*100) / 100
		}
		*m = math.Max(v, 0)
	}

	for _, col := range model.CategoricalColumns {
		values := g.vocab[col]
		if len(values) == 0 {
			continue
		}
		if g.rng.Float64() < g.opts.ReplaceProb {
			*r.Text(col) = values[g.rng.IntN(len(values))]
		}
	}

	r.HolidayPromotion = 0
	if g.rng.Float64() < g.opts.PromotionProb {
		r.HolidayPromotion = 1
	}
}
