package invoicing_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tilver/backend/internal/domain/invoicing"
	"github.com/tilver/backend/internal/domain/shared"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "expected %s, got %s", want, got.String())
}

func TestComputeLineItem(t *testing.T) {
	tests := []struct {
		name      string
		qty       string
		price     string
		rate      string
		wantTotal string
		wantTax   string
		wantErr   bool
	}{
		{name: "19 percent", qty: "2", price: "50.00", rate: "19", wantTotal: "100.00", wantTax: "19.00"},
		{name: "7 percent", qty: "1", price: "30.00", rate: "7", wantTotal: "30.00", wantTax: "2.10"},
		{name: "rounds tax half up", qty: "1", price: "0.50", rate: "19", wantTotal: "0.50", wantTax: "0.10"},
		{name: "fractional quantity", qty: "1.5", price: "33.33", rate: "19", wantTotal: "50.00", wantTax: "9.50"},
		{name: "zero quantity", qty: "0", price: "10", rate: "19", wantTotal: "0", wantTax: "0"},
		{name: "zero rate", qty: "3", price: "9.99", rate: "0", wantTotal: "29.97", wantTax: "0"},
		{name: "negative quantity", qty: "-1", price: "10", rate: "19", wantErr: true},
		{name: "negative price", qty: "1", price: "-10", rate: "19", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := invoicing.ComputeLineItem(d(tt.qty), d(tt.price), d(tt.rate))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, shared.NewInvalidAmountError("")))
				return
			}
			require.NoError(t, err)
			assertDecimal(t, tt.wantTotal, got.TotalPrice)
			assertDecimal(t, tt.wantTax, got.TaxAmount)
		})
	}
}

func TestAggregateTotals_Scenario(t *testing.T) {
	item1, err := invoicing.NewLineItem("Cleaning", d("2"), d("50.00"), d("19"))
	require.NoError(t, err)
	item2, err := invoicing.NewLineItem("Books", d("1"), d("30.00"), d("7"))
	require.NoError(t, err)

	assertDecimal(t, "100.00", item1.TotalPrice)
	assertDecimal(t, "19.00", item1.TaxAmount)
	assertDecimal(t, "30.00", item2.TotalPrice)
	assertDecimal(t, "2.10", item2.TaxAmount)

	totals := invoicing.AggregateTotals([]invoicing.LineItem{item1, item2})
	assertDecimal(t, "130.00", totals.NetAmount)
	assertDecimal(t, "21.10", totals.TaxAmount)
	assertDecimal(t, "151.10", totals.GrossAmount)

	require.Len(t, totals.TaxSummary, 2)
	assertDecimal(t, "19", totals.TaxSummary[0].Rate)
	assertDecimal(t, "100.00", totals.TaxSummary[0].NetAmount)
	assertDecimal(t, "19.00", totals.TaxSummary[0].TaxAmount)
	assertDecimal(t, "119.00", totals.TaxSummary[0].GrossAmount)
	assertDecimal(t, "7", totals.TaxSummary[1].Rate)
	assertDecimal(t, "30.00", totals.TaxSummary[1].NetAmount)
	assertDecimal(t, "2.10", totals.TaxSummary[1].TaxAmount)
	assertDecimal(t, "32.10", totals.TaxSummary[1].GrossAmount)
}

func TestAggregateTotals_Empty(t *testing.T) {
	totals := invoicing.AggregateTotals(nil)
	assert.True(t, totals.NetAmount.IsZero())
	assert.True(t, totals.TaxAmount.IsZero())
	assert.True(t, totals.GrossAmount.IsZero())
	assert.NotNil(t, totals.TaxSummary)
	assert.Empty(t, totals.TaxSummary)
}

func TestAggregateTotals_SumsPerItemTax(t *testing.T) {
	// Three items of 0.05 at 10% each round their tax to 0.01;
	// recomputing from the 0.15 net would give 0.02.
	var items []invoicing.LineItem
	for i := 0; i < 3; i++ {
		item, err := invoicing.NewLineItem("tiny", d("1"), d("0.05"), d("10"))
		require.NoError(t, err)
		items = append(items, item)
	}
	totals := invoicing.AggregateTotals(items)
	assertDecimal(t, "0.15", totals.NetAmount)
	assertDecimal(t, "0.03", totals.TaxAmount)
	require.Len(t, totals.TaxSummary, 1)
	assertDecimal(t, "0.03", totals.TaxSummary[0].TaxAmount)
}

func TestAggregateTotals_GrossInvariants(t *testing.T) {
	prices := []string{"0.01", "0.99", "12.345", "19.99", "100", "1234.56"}
	rates := []string{"0", "7", "19", "5.5"}
	qtys := []string{"0", "1", "3", "2.5"}

	var items []invoicing.LineItem
	for i, p := range prices {
		item, err := invoicing.NewLineItem("x", d(qtys[i%len(qtys)]), d(p), d(rates[i%len(rates)]))
		require.NoError(t, err)
		items = append(items, item)

		totals := invoicing.AggregateTotals(items)
		assert.True(t, totals.GrossAmount.Equal(totals.NetAmount.Add(totals.TaxAmount)))

		sum := decimal.Zero
		for _, e := range totals.TaxSummary {
			sum = sum.Add(e.GrossAmount)
		}
		assert.True(t, sum.Equal(totals.GrossAmount), "summary gross %s != gross %s", sum, totals.GrossAmount)
	}
}

func TestSplitGrossToNet(t *testing.T) {
	tests := []struct {
		gross   string
		rate    string
		wantNet string
		wantTax string
	}{
		{gross: "119.00", rate: "19", wantNet: "100.00", wantTax: "19.00"},
		{gross: "10.00", rate: "19", wantNet: "8.40", wantTax: "1.60"},
		{gross: "32.10", rate: "7", wantNet: "30.00", wantTax: "2.10"},
		{gross: "0", rate: "19", wantNet: "0", wantTax: "0"},
		{gross: "50", rate: "0", wantNet: "50", wantTax: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.gross+"@"+tt.rate, func(t *testing.T) {
			net, tax, err := invoicing.SplitGrossToNet(d(tt.gross), d(tt.rate))
			require.NoError(t, err)
			assertDecimal(t, tt.wantNet, net)
			assertDecimal(t, tt.wantTax, tax)
		})
	}

	t.Run("rejects negative gross", func(t *testing.T) {
		_, _, err := invoicing.SplitGrossToNet(d("-1"), d("19"))
		assert.Error(t, err)
	})
}

func TestSplitGrossToNet_RoundTrip(t *testing.T) {
	rates := []string{"0", "5", "7", "16", "19", "20.5"}
	for cents := int64(0); cents <= 5000; cents += 37 {
		gross := decimal.New(cents, -2)
		for _, r := range rates {
			net, tax, err := invoicing.SplitGrossToNet(gross, d(r))
			require.NoError(t, err)
			assert.True(t, net.Add(tax).Equal(gross), "gross %s rate %s", gross, r)
		}
	}
}

func TestSplitGrossToNet_IsNotForwardInverse(t *testing.T) {
	// 0.09 gross backs out to 0.08 net + 0.01 tax, yet 0.08 net taxed
	// forward at 19% yields 0.02.
	net, tax, err := invoicing.SplitGrossToNet(d("0.09"), d("19"))
	require.NoError(t, err)
	assertDecimal(t, "0.08", net)
	assertDecimal(t, "0.01", tax)

	forward, err := invoicing.ComputeLineItem(d("1"), net, d("19"))
	require.NoError(t, err)
	assertDecimal(t, "0.02", forward.TaxAmount)
	assert.False(t, forward.TaxAmount.Equal(tax))
}
