package bankstatement

import "strings"

type column int

const (
	colDate column = iota
	colAmount
	colCounterparty
	colPurpose
	colIBAN
	colCredit
	colDebit
)

// headerAliases lists normalized header names of common German and English
// bank exports per column, most specific first
var headerAliases = map[column][]string{
	colDate:   {"buchungstag", "buchungsdatum", "buchung", "datum", "booking date", "date"},
	colAmount: {"betrag", "betrag (eur)", "betrag (€)", "umsatz", "amount"},
	colCredit: {"haben", "credit"},
	colDebit:  {"soll", "debit"},
	colCounterparty: {
		"name zahlungsbeteiligter",
		"beguenstigter/zahlungspflichtiger",
		"begünstigter/zahlungspflichtiger",
		"auftraggeber / begünstigter",
		"auftraggeber/empfänger",
		"empfänger",
		"counterparty",
		"payee",
		"name",
	},
	colPurpose: {"verwendungszweck", "purpose", "reference", "description", "buchungstext"},
	colIBAN:    {"iban zahlungsbeteiligter", "kontonummer/iban", "iban"},
}

type alias struct {
	col  column
	rank int
}

var aliasLookup = func() map[string]alias {
	m := make(map[string]alias)
	for col, names := range headerAliases {
		for rank, n := range names {
			m[n] = alias{col: col, rank: rank}
		}
	}
	return m
}()

type columnIndex map[column]int

func normalizeHeader(h string) string {
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

// detectColumns maps a header record to columns, preferring the alias listed
// first when several headers name the same column. ok is false unless a
// date column and an amount (or credit/debit pair) were found.
func detectColumns(record []string) (columnIndex, bool) {
	idx := columnIndex{}
	ranks := map[column]int{}
	for i, h := range record {
		a, known := aliasLookup[normalizeHeader(h)]
		if !known {
			continue
		}
		if r, taken := ranks[a.col]; taken && r <= a.rank {
			continue
		}
		idx[a.col] = i
		ranks[a.col] = a.rank
	}
	_, hasDate := idx[colDate]
	_, hasAmount := idx[colAmount]
	_, hasCredit := idx[colCredit]
	_, hasDebit := idx[colDebit]
	return idx, hasDate && (hasAmount || (hasCredit && hasDebit))
}

func (c columnIndex) get(record []string, col column) string {
	i, ok := c[col]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
