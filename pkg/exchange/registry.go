package exchange

import "strings"

// SymbolRow is one entry of the registry, derived from a loaded contract.
type SymbolRow struct {
	Canonical  string
	Exchange   string
	BaseAsset  string
	QuoteAsset string
}

// SymbolRegistry is a bidirectional canonical/exchange-native symbol map.
// Lookups are case-insensitive and side-effect free; an unknown symbol
// yields ok=false, never an error. Within one exchange's active contract
// set the mapping is a bijection.
type SymbolRegistry struct {
	byCanonical map[string]SymbolRow
	byExchange  map[string]SymbolRow
}

// NewSymbolRegistry builds a registry from contract rows. Later duplicates
// of the same key win, mirroring a wholesale snapshot rebuild.
func NewSymbolRegistry(rows []SymbolRow) *SymbolRegistry {
	r := &SymbolRegistry{
		byCanonical: make(map[string]SymbolRow, len(rows)),
		byExchange:  make(map[string]SymbolRow, len(rows)),
	}
	for _, row := range rows {
		if row.Canonical == "" || row.Exchange == "" {
			continue
		}
		r.byCanonical[normalizeSymbol(row.Canonical)] = row
		r.byExchange[normalizeSymbol(row.Exchange)] = row
	}
	return r
}

// ToExchangeSymbol resolves a canonical symbol to the venue-native form.
func (r *SymbolRegistry) ToExchangeSymbol(canonical string) (string, bool) {
	if r == nil {
		return "", false
	}
	row, ok := r.byCanonical[normalizeSymbol(canonical)]
	if !ok {
		return "", false
	}
	return row.Exchange, true
}

// ToCanonicalSymbol resolves a venue-native symbol to the canonical form.
func (r *SymbolRegistry) ToCanonicalSymbol(exchangeSymbol string) (string, bool) {
	if r == nil {
		return "", false
	}
	row, ok := r.byExchange[normalizeSymbol(exchangeSymbol)]
	if !ok {
		return "", false
	}
	return row.Canonical, true
}

// Len reports the number of registered contracts.
func (r *SymbolRegistry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.byCanonical)
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
