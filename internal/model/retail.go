// Package model defines the retail record schema shared by the producer and the
// ingestion pipeline.
package model

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Canonical column names, in sink schema order.
const (
	ColDate              = "date"
	ColStoreID           = "store_id"
	ColProductID         = "product_id"
	ColCategory          = "category"
	ColRegion            = "region"
	ColInventoryLevel    = "inventory_level"
	ColUnitsSold         = "units_sold"
	ColUnitsOrdered      = "units_ordered"
	ColDemandForecast    = "demand_forecast"
	ColPrice             = "price"
	ColDiscount          = "discount"
	ColWeatherCondition  = "weather_condition"
	ColHolidayPromotion  = "holiday_promotion"
	ColCompetitorPricing = "competitor_pricing"
	ColSeasonality       = "seasonality"
)

// DateLayout is the only accepted date representation (ISO YYYY-MM-DD).
const DateLayout = "2006-01-02"

// UnknownCategory replaces missing categorical values.
const UnknownCategory = "Unknown"

// Columns lists the fixed 15-column schema in sink order.
var Columns = []string{
	ColDate,
	ColStoreID,
	ColProductID,
	ColCategory,
	ColRegion,
	ColInventoryLevel,
	ColUnitsSold,
	ColUnitsOrdered,
	ColDemandForecast,
	ColPrice,
	ColDiscount,
	ColWeatherCondition,
	ColHolidayPromotion,
	ColCompetitorPricing,
	ColSeasonality,
}

// NumericColumns are the measure columns cast to double.
var NumericColumns = []string{
	ColInventoryLevel,
	ColUnitsSold,
	ColUnitsOrdered,
	ColDemandForecast,
	ColPrice,
	ColDiscount,
	ColCompetitorPricing,
}

// IntegerMeasures are measures that hold whole quantities.
var IntegerMeasures = map[string]bool{
	ColInventoryLevel: true,
	ColUnitsSold:      true,
	ColUnitsOrdered:   true,
	ColDiscount:       true,
}

// CategoricalColumns are the string columns null-filled with UnknownCategory.
var CategoricalColumns = []string{
	ColStoreID,
	ColProductID,
	ColCategory,
	ColRegion,
	ColWeatherCondition,
	ColSeasonality,
}

var lower = cases.Lower(language.Und)

// CanonicalColumn maps a raw column name to its canonical form: surrounding
// whitespace trimmed, space, slash and hyphen replaced with underscore, lower-cased.
// Applying it twice yields the same name.
func CanonicalColumn(name string) string {
	name = strings.TrimSpace(name)
	name = strings.NewReplacer(" ", "_", "/", "_", "-", "_").Replace(name)
	return lower.String(name)
}

// CanonicalColumns applies CanonicalColumn to every header entry.
func CanonicalColumns(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = CanonicalColumn(h)
	}
	return out
}

// Record is one row of the fixed retail schema.
type Record struct {
	Date              string  `json:"date"`
	StoreID           string  `json:"store_id"`
	ProductID         string  `json:"product_id"`
	Category          string  `json:"category"`
	Region            string  `json:"region"`
	InventoryLevel    float64 `json:"inventory_level"`
	UnitsSold         float64 `json:"units_sold"`
	UnitsOrdered      float64 `json:"units_ordered"`
	DemandForecast    float64 `json:"demand_forecast"`
	Price             float64 `json:"price"`
	Discount          float64 `json:"discount"`
	WeatherCondition  string  `json:"weather_condition"`
	HolidayPromotion  int     `json:"holiday_promotion"`
	CompetitorPricing float64 `json:"competitor_pricing"`
	Seasonality       string  `json:"seasonality"`
}

// Measure returns a pointer to the named numeric field, or nil when col is not a measure.
func (r *Record) Measure(col string) *float64 {
	switch col {
	case ColInventoryLevel:
		return &r.InventoryLevel
	case ColUnitsSold:
		return &r.UnitsSold
	case ColUnitsOrdered:
		return &r.UnitsOrdered
	case ColDemandForecast:
		return &r.DemandForecast
	case ColPrice:
		return &r.Price
	case ColDiscount:
		return &r.Discount
	case ColCompetitorPricing:
		return &r.CompetitorPricing
	}
	return nil
}

// Text returns a pointer to the named string field, or nil when col is not textual.
func (r *Record) Text(col string) *string {
	switch col {
	case ColDate:
		return &r.Date
	case ColStoreID:
		return &r.StoreID
	case ColProductID:
		return &r.ProductID
	case ColCategory:
		return &r.Category
	case ColRegion:
		return &r.Region
	case ColWeatherCondition:
		return &r.WeatherCondition
	case ColSeasonality:
		return &r.Seasonality
	}
	return nil
}

// Values returns the record's fields in Columns order, typed for the sinks.
func (r *Record) Values() []any {
	return []any{
		r.Date,
		r.StoreID,
		r.ProductID,
		r.Category,
		r.Region,
		r.InventoryLevel,
		r.UnitsSold,
		r.UnitsOrdered,
		r.DemandForecast,
		r.Price,
		r.Discount,
		r.WeatherCondition,
		int32(r.HolidayPromotion),
		r.CompetitorPricing,
		r.Seasonality,
	}
}

// Batch is an immutable, sequence-numbered sample of records bound for staging.
type Batch struct {
	ID        int64
	CreatedAt time.Time
	Records   []Record
}

// ArtifactName returns the staged file name: retail_batch_{id}_{YYYYMMDD_HHMMSS}.csv.
func (b *Batch) ArtifactName() string {
	return ArtifactName(b.ID, b.CreatedAt)
}

// ArtifactName formats a staged file name for the given sequence and time.
func ArtifactName(id int64, at time.Time) string {
	return fmt.Sprintf("retail_batch_%d_%s.csv", id, at.Format("20060102_150405"))
}
