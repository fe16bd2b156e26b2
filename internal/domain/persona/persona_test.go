package persona

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyClassLadder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   Inputs
		want string
	}{
		{
			name: "gigachad beats whale when all thresholds clear",
			in:   Inputs{TotalVolumeUSD: 600_000, MaxHoldingDays: 250, TxCount: 600},
			want: "The Solana GigaChad",
		},
		{
			name: "high volume alone is a whale",
			in:   Inputs{TotalVolumeUSD: 600_000, MaxHoldingDays: 10, TxCount: 600},
			want: "The Whale",
		},
		{
			name: "volume just over whale line",
			in:   Inputs{TotalVolumeUSD: 100_001, MaxHoldingDays: 5, TxCount: 10},
			want: "The Whale",
		},
		{
			name: "long holding without whale volume is diamond hands",
			in:   Inputs{TotalVolumeUSD: 50_000, MaxHoldingDays: 301, TxCount: 10},
			want: "Diamond Hands",
		},
		{
			name: "zero holding with heavy churn is a jeet",
			in:   Inputs{TotalVolumeUSD: 5_000, MaxHoldingDays: 0, TxCount: 51},
			want: "The Jeet",
		},
		{
			name: "mid volume fast churn is a sniper",
			in:   Inputs{TotalVolumeUSD: 60_000, MaxHoldingDays: 5, TxCount: 150},
			want: "The Sniper",
		},
		{
			name: "sniper needs the tx count otherwise ape",
			in:   Inputs{TotalVolumeUSD: 60_000, MaxHoldingDays: 2, TxCount: 40},
			want: "The Ape",
		},
		{
			name: "very high tx count is a degen",
			in:   Inputs{TotalVolumeUSD: 15_000, MaxHoldingDays: 10, TxCount: 1500},
			want: "The Degen",
		},
		{
			name: "busy wallet with small volume farms airdrops",
			in:   Inputs{TotalVolumeUSD: 5_000, MaxHoldingDays: 10, TxCount: 500},
			want: "The Farmer",
		},
		{
			name: "moderate holding span is a hodler",
			in:   Inputs{TotalVolumeUSD: 15_000, MaxHoldingDays: 100, TxCount: 50},
			want: "The HODLer",
		},
		{
			name: "tiny wallet is a shrimp",
			in:   Inputs{TotalVolumeUSD: 500, MaxHoldingDays: 5, TxCount: 10},
			want: "The Shrimp",
		},
		{
			name: "bonk top token falls through to meme lord",
			in:   Inputs{TotalVolumeUSD: 5_000, MaxHoldingDays: 10, TxCount: 30, TopToken: "Bonk"},
			want: "The Meme Lord",
		},
		{
			name: "bonk matches case insensitively inside longer names",
			in:   Inputs{TotalVolumeUSD: 5_000, MaxHoldingDays: 10, TxCount: 30, TopToken: "superBONKcoin"},
			want: "The Meme Lord",
		},
		{
			name: "nothing matches falls back to normie",
			in:   Inputs{TotalVolumeUSD: 5_000, MaxHoldingDays: 10, TxCount: 30, TopToken: "USDC"},
			want: "The Normie",
		},
		{
			name: "zero values are still classified",
			in:   Inputs{},
			want: "The Shrimp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ClassifyClass(tt.in)
			require.Equal(t, tt.want, got.Name)
		})
	}
}

func TestClassifyDrawsWordFromClassPool(t *testing.T) {
	t.Parallel()

	in := Inputs{TotalVolumeUSD: 600_000, MaxHoldingDays: 250, TxCount: 600}
	class := ClassifyClass(in)

	res := Classify(in, rand.New(rand.NewSource(42)))
	require.Equal(t, class.Name, res.Name)
	require.Equal(t, class.Summary, res.Summary)
	require.Contains(t, class.Words, res.Word)
}

func TestClassifyWordDrawIsDeterministicPerSeed(t *testing.T) {
	t.Parallel()

	in := Inputs{TxCount: 1500}

	first := Classify(in, rand.New(rand.NewSource(7)))
	second := Classify(in, rand.New(rand.NewSource(7)))
	require.Equal(t, first, second)
}

func TestEveryClassHasWordsAndSummary(t *testing.T) {
	t.Parallel()

	classes := make([]Class, 0, len(rules)+1)
	for _, r := range rules {
		classes = append(classes, r.class)
	}
	classes = append(classes, classNormie)

	for _, c := range classes {
		require.NotEmpty(t, c.Name)
		require.NotEmpty(t, c.Words, "class %s has no tag words", c.Name)
		require.NotEmpty(t, c.Summary, "class %s has no summary", c.Name)
	}
}
