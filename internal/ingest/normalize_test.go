package ingest

import (
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/retail-pipeline/internal/model"
	"github.com/sells-group/retail-pipeline/internal/tabular"
)

var today = time.Date(2024, 11, 5, 15, 4, 5, 0, time.UTC)

func rawHeader() []string {
	return []string{
		"Date", "Store ID", "Product ID", "Category", "Region", "Inventory Level", "Units Sold",
		"Units Ordered", "Demand Forecast", "Price", "Discount", "Weather Condition",
		"Holiday/Promotion", "Competitor Pricing", "Seasonality",
	}
}

func rawRow(date, promo string) []string {
	return []string{
		date, "S001", "P0001", " Groceries ", "North", "231", "127",
		"55", "135.47", "33.5", "20", "Rainy",
		promo, "29.69", "Autumn",
	}
}

func TestNormalize_CanonicalRecord(t *testing.T) {
	tbl := &tabular.Table{Header: rawHeader(), Rows: [][]string{rawRow("2024-01-01", "1")}}

	n, err := Normalize(tbl, today)
	require.NoError(t, err)
	require.Len(t, n.Records, 1)
	assert.Empty(t, n.Dropped)
	assert.Zero(t, n.Quarantined)

	r := n.Records[0]
	assert.Equal(t, "2024-01-01", r.Date)
	assert.Equal(t, "Groceries", r.Category, "categoricals are trimmed")
	assert.Equal(t, 231.0, r.InventoryLevel)
	assert.Equal(t, 135.47, r.DemandForecast)
	assert.Equal(t, 1, r.HolidayPromotion)
	assert.Equal(t, 29.69, r.CompetitorPricing)
}

func TestNormalize_PromotionClosedSet(t *testing.T) {
	values := []string{"1", "no", "garbage", ""}
	rows := make([][]string, len(values))
	for i, v := range values {
		rows[i] = rawRow("2024-01-01", v)
	}

	n, err := Normalize(&tabular.Table{Header: rawHeader(), Rows: rows}, today)
	require.NoError(t, err)

	got := make([]int, len(n.Records))
	for i, r := range n.Records {
		got[i] = r.HolidayPromotion
	}
	assert.Equal(t, []int{1, 0, 0, 0}, got)
}

func TestNormalize_PromotionAlwaysBinary(t *testing.T) {
	for _, v := range []string{"1", "True", "true", "YES", "Yes", "0", "False", "false", "NO", "No", "yes", "Y", "2", " 1 ", "-1", ""} {
		n, err := Normalize(&tabular.Table{Header: rawHeader(), Rows: [][]string{rawRow("", v)}}, today)
		require.NoError(t, err)
		p := n.Records[0].HolidayPromotion
		assert.True(t, p == 0 || p == 1, "value %q mapped to %d", v, p)
	}
}

func TestNormalize_DateColumnMissing(t *testing.T) {
	header := rawHeader()[1:]
	rows := [][]string{rawRow("", "0")[1:], rawRow("", "1")[1:], rawRow("", "")[1:]}

	n, err := Normalize(&tabular.Table{Header: header, Rows: rows}, today)
	require.NoError(t, err)
	require.Len(t, n.Records, 3)
	for _, r := range n.Records {
		assert.Equal(t, "2024-11-05", r.Date)
	}
}

func TestNormalize_DateRules(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"iso round trip", "2023-12-31", "2023-12-31", false},
		{"empty is today", "", "2024-11-05", false},
		{"blank is today", "   ", "2024-11-05", false},
		{"slashes rejected", "2023/12/31", "", true},
		{"us order rejected", "12-31-2023", "", true},
		{"unpadded rejected", "2023-1-5", "", true},
		{"timestamp rejected", "2023-12-31 10:00:00", "", true},
		{"impossible day rejected", "2023-02-30", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := &tabular.Table{Header: rawHeader(), Rows: [][]string{rawRow(tt.in, "0")}}
			n, err := Normalize(tbl, today)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, eris.Is(err, ErrMalformedDate))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n.Records[0].Date)
		})
	}
}

func TestNormalize_NullFill(t *testing.T) {
	row := []string{"2024-01-01", "", "P1", "", "  ", "", "x", "", "", "", "", "", "", "", ""}
	n, err := Normalize(&tabular.Table{Header: rawHeader(), Rows: [][]string{row}}, today)
	require.NoError(t, err)

	r := n.Records[0]
	assert.Equal(t, model.UnknownCategory, r.StoreID)
	assert.Equal(t, "P1", r.ProductID)
	assert.Equal(t, model.UnknownCategory, r.Category)
	assert.Equal(t, model.UnknownCategory, r.Region)
	assert.Equal(t, model.UnknownCategory, r.Seasonality)
	assert.Zero(t, r.InventoryLevel)
	assert.Zero(t, r.UnitsSold, "unparseable measures become 0")
	assert.Zero(t, r.HolidayPromotion)
}

func TestNormalize_QuarantinesLongRows(t *testing.T) {
	long := append(rawRow("2024-01-01", "1"), "extra")
	tbl := &tabular.Table{Header: rawHeader(), Rows: [][]string{rawRow("2024-01-01", "1"), long}}

	n, err := Normalize(tbl, today)
	require.NoError(t, err)
	assert.Len(t, n.Records, 1)
	assert.Equal(t, 1, n.Quarantined)
}

func TestNormalize_PadsShortRows(t *testing.T) {
	full := rawRow("2024-01-01", "1")
	noSeason := full[:14]
	tbl := &tabular.Table{Header: rawHeader(), Rows: [][]string{full, noSeason, full[:5]}}

	n, err := Normalize(tbl, today)
	require.NoError(t, err)
	require.Len(t, n.Records, 3, "short rows still produce one record each")
	assert.Zero(t, n.Quarantined)

	assert.Equal(t, "Autumn", n.Records[0].Seasonality)
	assert.Equal(t, model.UnknownCategory, n.Records[1].Seasonality)
	assert.Equal(t, 29.69, n.Records[1].CompetitorPricing)

	r := n.Records[2]
	assert.Equal(t, "2024-01-01", r.Date)
	assert.Equal(t, "North", r.Region)
	assert.Equal(t, model.UnknownCategory, r.WeatherCondition)
	assert.Zero(t, r.UnitsSold)
	assert.Zero(t, r.HolidayPromotion)
	assert.Len(t, full, 15, "input rows are not modified")
}

func TestNormalize_DropsUnknownColumns(t *testing.T) {
	header := append(rawHeader(), "Loyalty Tier")
	row := append(rawRow("2024-01-01", "1"), "gold")

	n, err := Normalize(&tabular.Table{Header: header, Rows: [][]string{row}}, today)
	require.NoError(t, err)
	assert.Equal(t, []string{"loyalty_tier"}, n.Dropped)
	assert.Len(t, n.Records, 1)
}

func TestNormalize_CanonicalHeadersAccepted(t *testing.T) {
	n, err := Normalize(&tabular.Table{Header: model.CanonicalColumns(rawHeader()), Rows: [][]string{rawRow("2024-01-01", "Yes")}}, today)
	require.NoError(t, err)
	assert.Equal(t, 1, n.Records[0].HolidayPromotion)
	assert.Empty(t, n.Dropped)
}

func TestNormalize_RowCountPreserved(t *testing.T) {
	rows := make([][]string, 57)
	for i := range rows {
		rows[i] = rawRow("", "0")[:15-i%4]
	}
	n, err := Normalize(&tabular.Table{Header: rawHeader(), Rows: rows}, today)
	require.NoError(t, err)
	assert.Len(t, n.Records, 57)
}
