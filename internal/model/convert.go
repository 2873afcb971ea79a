package model

import (
	"strconv"
	"strings"
)

var promotionTrue = map[string]bool{"1": true, "True": true, "true": true, "YES": true, "Yes": true}

// PromotionFlag maps the closed set {1, True, true, YES, Yes} to 1 and every
// other value, including {0, False, false, NO, No}, null and unrecognized
// spellings such as "yes" or "Y", to 0.
func PromotionFlag(raw string) int {
	if promotionTrue[raw] {
		return 1
	}
	return 0
}

// ParseMeasure converts a raw cell to a double. Empty and unparseable cells become 0.
func ParseMeasure(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}

// CleanCategory trims a categorical cell, substituting UnknownCategory for empty values.
func CleanCategory(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return UnknownCategory
	}
	return raw
}

// FormatMeasure renders a measure without trailing zeros ("12", "3.5").
func FormatMeasure(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Strings renders the record in Columns order for delimited output.
func (r *Record) Strings() []string {
	return []string{
		r.Date,
		r.StoreID,
		r.ProductID,
		r.Category,
		r.Region,
		FormatMeasure(r.InventoryLevel),
		FormatMeasure(r.UnitsSold),
		FormatMeasure(r.UnitsOrdered),
		FormatMeasure(r.DemandForecast),
		FormatMeasure(r.Price),
		FormatMeasure(r.Discount),
		r.WeatherCondition,
		strconv.Itoa(r.HolidayPromotion),
		FormatMeasure(r.CompetitorPricing),
		r.Seasonality,
	}
}
