// Package stats turns raw ledger aggregates and asset prices into the final
// wallet summary.
package stats

import (
	"math"
	"math/rand"
	"time"

	"github.com/vialytics/wrapped-worker/internal/domain/model"
	"github.com/vialytics/wrapped-worker/internal/domain/persona"
)

// NativeMint is the chain's native asset identifier.
const NativeMint = "So11111111111111111111111111111111111111112"

// lamportsPerNative converts base units to whole native units.
const lamportsPerNative = 1_000_000_000

const secondsPerDay = 60 * 60 * 24

// PriceFunc resolves the USD price for an asset given the current native
// asset price. A zero price excludes the asset from volume, it does not
// mean "free".
type PriceFunc func(mint string, nativePrice float64) float64

// Summarize combines raw ledger aggregates with prices into a WalletSummary.
// Deterministic except for the persona tag word (drawn from rng) and now,
// which anchors the "still holding" approximation and days-on-chain.
func Summarize(
	raw *model.RawAggregates,
	nativePrice float64,
	priceFor PriceFunc,
	now time.Time,
	rng *rand.Rand,
) *model.WalletStats {
	volumeUSD := totalVolumeUSD(raw.Assets, nativePrice, priceFor)
	holdingDays := maxHoldingDays(raw.Assets, now)

	firstActive, daysOnChain := firstActivity(raw.FirstTxTime, now)

	topToken := raw.TopToken
	if topToken == "" {
		topToken = NativeMint
	}
	mostActiveDay := raw.MostActiveDay
	if mostActiveDay == "" {
		mostActiveDay = "N/A"
	}

	p := persona.Classify(persona.Inputs{
		TotalVolumeUSD: volumeUSD,
		MaxHoldingDays: holdingDays,
		TxCount:        raw.TxCount,
		TopToken:       topToken,
	}, rng)

	return &model.WalletStats{
		TotalTransactions:  raw.TxCount,
		TotalGasSpent:      float64(raw.TotalFees) / lamportsPerNative,
		MostActiveDay:      mostActiveDay,
		TopToken:           topToken,
		FirstActiveDate:    firstActive,
		DaysOnChain:        daysOnChain,
		TotalVolumeUSD:     volumeUSD,
		MaxHoldingDays:     holdingDays,
		HighestTransaction: raw.MaxNativeMove / lamportsPerNative,
		Persona:            p.Name,
		PersonaWord:        p.Word,
		Summary:            p.Summary,
	}
}

// totalVolumeUSD converts each asset's summed absolute movement to a
// human-scaled amount via its decimals, prices it, and sums across assets.
// Assets whose price resolves to zero contribute nothing.
func totalVolumeUSD(assets []model.AssetActivity, nativePrice float64, priceFor PriceFunc) float64 {
	var total float64
	for _, a := range assets {
		price := priceFor(a.Mint, nativePrice)
		if price <= 0 {
			continue
		}
		decimals := a.Decimals
		if decimals <= 0 {
			decimals = 9
		}
		amount := a.TotalAmount / math.Pow(10, float64(decimals))
		total += amount * price
	}
	return total
}

// maxHoldingDays reports the longest per-asset holding span in whole days.
// An asset with a single in-window event is assumed still held (span runs to
// now); otherwise the span is last event minus first event. This does not
// track actual balances: an asset disposed of outside the window can still
// read as "held". The persona thresholds are calibrated against exactly this
// approximation, so it is kept as-is.
func maxHoldingDays(assets []model.AssetActivity, now time.Time) int {
	maxDays := 0
	nowUnix := now.Unix()
	for _, a := range assets {
		var duration int64
		if a.FirstSeen == a.LastSeen {
			duration = nowUnix - a.FirstSeen
		} else {
			duration = a.LastSeen - a.FirstSeen
		}
		if days := int(duration / secondsPerDay); days > maxDays {
			maxDays = days
		}
	}
	return maxDays
}

// firstActivity derives the first-active date and days-on-chain from the
// earliest in-window transaction. With no transactions the date defaults to
// today and days-on-chain to zero.
func firstActivity(firstTxTime int64, now time.Time) (string, int) {
	if firstTxTime == 0 {
		return now.UTC().Format(time.DateOnly), 0
	}
	first := time.Unix(firstTxTime, 0).UTC()
	days := int(now.Sub(first) / (24 * time.Hour))
	if days < 0 {
		days = 0
	}
	return first.Format(time.DateOnly), days
}
