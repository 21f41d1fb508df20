package models

// Volatility tiers (percent per walk step).
const (
	VolatilityLargeCap = 0.15
	VolatilityDefault  = 0.2
	VolatilityHigh     = 0.3
)

// SymbolSpec describes one tradable symbol. The catalog is fixed for
// the lifetime of the process.
type SymbolSpec struct {
	Symbol     string
	BasePrice  float64
	Supply     float64 // circulating supply, used to derive market cap
	BaseVolume float64 // typical 24h volume in quote currency
	Volatility float64
}

// Catalog returns the known symbol set in a stable order.
func Catalog() []SymbolSpec {
	return []SymbolSpec{
		{Symbol: "BTC", BasePrice: 64000.0, Supply: 19.7e6, BaseVolume: 28e9, Volatility: VolatilityLargeCap},
		{Symbol: "ETH", BasePrice: 3400.0, Supply: 120e6, BaseVolume: 14e9, Volatility: VolatilityLargeCap},
		{Symbol: "BNB", BasePrice: 580.0, Supply: 145e6, BaseVolume: 1.8e9, Volatility: VolatilityLargeCap},
		{Symbol: "SOL", BasePrice: 150.0, Supply: 470e6, BaseVolume: 2.5e9, Volatility: VolatilityHigh},
		{Symbol: "XRP", BasePrice: 0.52, Supply: 56e9, BaseVolume: 1.1e9, Volatility: VolatilityDefault},
		{Symbol: "ADA", BasePrice: 0.38, Supply: 35e9, BaseVolume: 0.4e9, Volatility: VolatilityDefault},
		{Symbol: "DOGE", BasePrice: 0.11, Supply: 146e9, BaseVolume: 0.7e9, Volatility: VolatilityHigh},
		{Symbol: "AVAX", BasePrice: 26.0, Supply: 400e6, BaseVolume: 0.3e9, Volatility: VolatilityDefault},
	}
}

// KnownSymbols returns a membership set over the catalog.
func KnownSymbols() map[string]bool {
	known := make(map[string]bool)
	for _, spec := range Catalog() {
		known[spec.Symbol] = true
	}
	return known
}
