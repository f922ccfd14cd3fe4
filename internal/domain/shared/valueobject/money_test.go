package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestRoundCents(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2.105", "2.11"},
		{"2.104", "2.1"},
		{"-2.105", "-2.11"},
		{"19", "19"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := RoundCents(decimal.RequireFromString(tt.in))
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestNewMoney(t *testing.T) {
	t.Run("rejects unknown currency", func(t *testing.T) {
		_, err := NewMoney(decimal.NewFromInt(1), "XXZ")
		assert.Error(t, err)
	})

	t.Run("accepts EUR", func(t *testing.T) {
		m, err := NewMoneyFromString("10.50", EUR)
		require.NoError(t, err)
		assert.Equal(t, EUR, m.Currency())
		assert.Equal(t, "10.50 EUR", m.String())
	})
}

func TestMoney_Arithmetic(t *testing.T) {
	a := NewMoneyEUR(decimal.RequireFromString("100.00"))
	b := NewMoneyEUR(decimal.RequireFromString("19.00"))

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.True(t, sum.Amount().Equal(decimal.RequireFromString("119")))

	diff, err := a.Subtract(b)
	require.NoError(t, err)
	assert.True(t, diff.Amount().Equal(decimal.RequireFromString("81")))

	_, err = a.Add(Zero(USD))
	assert.Error(t, err)

	assert.True(t, a.Percentage(decimal.NewFromInt(7)).Amount().Equal(decimal.RequireFromString("7")))
	assert.True(t, NewMoneyEUR(decimal.RequireFromString("30")).Percentage(decimal.NewFromInt(7)).Amount().Equal(decimal.RequireFromString("2.1")))
	assert.True(t, a.Negate().Abs().Equals(a))
}

func TestMoney_JSON(t *testing.T) {
	m := NewMoneyEUR(decimal.RequireFromString("151.1"))
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"151.10","currency":"EUR"}`, string(data))

	var back Money
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Equals(m))
}

func TestMoney_Format(t *testing.T) {
	m := NewMoneyEUR(decimal.RequireFromString("1234.5"))
	assert.Contains(t, m.Format(language.German), "€")
	assert.NotEmpty(t, FormatAmount(language.English, m.Amount()))
}
