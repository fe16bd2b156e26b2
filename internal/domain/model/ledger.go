package model

// AssetActivity is the per-asset rollup computed by the ledger reader for one
// analysis window: total absolute movement, a representative decimals value
// (the maximum seen for the mint) and the min/max event times.
type AssetActivity struct {
	Mint        string
	TotalAmount float64
	Decimals    int
	FirstSeen   int64
	LastSeen    int64
}

// RawAggregates is the ledger reader's output: raw counts and rollups over a
// single wallet's ledger store, restricted to events at or after the window
// start. Derived fields (USD volume, persona, holding spans) are computed by
// the stats engine, not here.
type RawAggregates struct {
	TxCount       int
	TotalFees     int64
	MostActiveDay string
	TopToken      string
	Assets        []AssetActivity
	// FirstTxTime is the earliest in-window transaction time (unix seconds),
	// zero when the window holds no transactions.
	FirstTxTime int64
	// MaxNativeMove is the largest absolute single movement of the native
	// asset, in base units.
	MaxNativeMove float64
}
