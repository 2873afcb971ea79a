package generator

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/retail-pipeline/internal/model"
	"github.com/sells-group/retail-pipeline/internal/seed"
)

func corpusOf(n int) *seed.Corpus {
	records := make([]model.Record, n)
	for i := range records {
		records[i] = model.Record{
			Date:              "2022-01-01",
			StoreID:           "S001",
			ProductID:         fmt.Sprintf("P%04d", i),
			Category:          "Groceries",
			Region:            "North",
			InventoryLevel:    200,
			UnitsSold:         100,
			UnitsOrdered:      50,
			DemandForecast:    120.55,
			Price:             30.25,
			Discount:          10,
			WeatherCondition:  "Sunny",
			CompetitorPricing: 29.99,
			Seasonality:       "Winter",
		}
	}
	return seed.NewCorpus(records)
}

var now = time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)

func TestGenerate_ClampsToCorpus(t *testing.T) {
	g := NewSeeded(1)
	b := g.Generate(corpusOf(3), 10, 1, now)
	require.Len(t, b.Records, 3)

	seen := map[string]bool{}
	for _, r := range b.Records {
		assert.False(t, seen[r.ProductID], "duplicate %s", r.ProductID)
		seen[r.ProductID] = true
	}
}

func TestGenerate_RowCountProperty(t *testing.T) {
	g := NewSeeded(42)
	for _, tc := range []struct{ corpus, size int }{{0, 5}, {1, 1}, {10, 3}, {10, 10}, {50, 150}} {
		b := g.Generate(corpusOf(tc.corpus), tc.size, 1, now)
		assert.Len(t, b.Records, min(tc.size, tc.corpus))
	}
}

func TestGenerate_NoNegativeMeasures(t *testing.T) {
	records := []model.Record{{InventoryLevel: 0, UnitsSold: 0.001, Price: 0.004, Discount: -0}}
	c := seed.NewCorpus(records)
	g := NewSeeded(7)
	for i := 0; i < 200; i++ {
		b := g.Generate(c, 1, int64(i), now)
		for _, r := range b.Records {
			for _, col := range model.NumericColumns {
				assert.GreaterOrEqual(t, *r.Measure(col), 0.0, col)
			}
		}
	}
}

func TestGenerate_JitterBoundsAndRounding(t *testing.T) {
	g := NewSeeded(3)
	b := g.Generate(corpusOf(40), 40, 1, now)
	for _, r := range b.Records {
		assert.InDelta(t, 200, r.InventoryLevel, 30+0.5)
		assert.Equal(t, r.InventoryLevel, float64(int64(r.InventoryLevel)), "integer measure rounded")
		assert.InDelta(t, 30.25, r.Price, 30.25*0.15+0.01)
		assert.InDelta(t, r.Price*100, float64(int64(r.Price*100+0.5)), 1e-6, "two decimals")
	}
}

func TestGenerate_DateAndIdentity(t *testing.T) {
	g := NewSeeded(5)
	b := g.Generate(corpusOf(5), 5, 17, now)
	assert.Equal(t, int64(17), b.ID)
	assert.Equal(t, now, b.CreatedAt)
	assert.Equal(t, "retail_batch_17_20240601_103000.csv", b.ArtifactName())
	for _, r := range b.Records {
		assert.Equal(t, "2024-06-01", r.Date)
		assert.True(t, r.HolidayPromotion == 0 || r.HolidayPromotion == 1)
		assert.Equal(t, "S001", r.StoreID, "identifiers are never replaced")
	}
}

func TestGenerate_InjectsNovelCategories(t *testing.T) {
	vocab := Vocabulary{model.ColRegion: {"Atlantis"}}
	g := New(rand.New(rand.NewPCG(1, 2)), vocab, Options{ReplaceProb: 1, JitterMin: 1, JitterMax: 1, PromotionProb: 0})
	b := g.Generate(corpusOf(5), 5, 1, now)
	for _, r := range b.Records {
		assert.Equal(t, "Atlantis", r.Region)
		assert.Equal(t, "Groceries", r.Category, "columns without vocabulary are untouched")
		assert.Equal(t, 0, r.HolidayPromotion)
		assert.Equal(t, 200.0, r.InventoryLevel)
	}
}

func TestGenerate_DoesNotMutateCorpus(t *testing.T) {
	c := corpusOf(2)
	g := NewSeeded(9)
	_ = g.Generate(c, 2, 1, now)
	assert.Equal(t, 200.0, c.At(0).InventoryLevel)
	assert.Equal(t, "2022-01-01", c.At(1).Date)
}

func TestDrawSize(t *testing.T) {
	g := NewSeeded(11)
	for i := 0; i < 500; i++ {
		n := g.DrawSize(50, 150)
		assert.GreaterOrEqual(t, n, 50)
		assert.LessOrEqual(t, n, 150)
	}
	assert.Equal(t, 7, g.DrawSize(7, 7))
	assert.Equal(t, 9, g.DrawSize(9, 3))
}
