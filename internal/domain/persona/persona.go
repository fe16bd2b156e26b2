// Package persona classifies a wallet into exactly one behavioral persona
// based on its aggregate activity.
package persona

import (
	"math/rand"
	"strings"
)

// Inputs are the classification inputs. All four are derived from the wallet's
// in-window aggregates; the classification is a total function over them.
type Inputs struct {
	TotalVolumeUSD float64
	MaxHoldingDays int
	TxCount        int
	TopToken       string
}

// Class is a fixed persona: a display name, a pool of alternate tag words and
// a narrative string.
type Class struct {
	Name    string
	Words   []string
	Summary string
}

// Result is a classified persona with one tag word drawn from the class pool.
type Result struct {
	Name    string
	Word    string
	Summary string
}

// rule pairs a predicate with its class. Rules are evaluated in slice order;
// the first match wins.
type rule struct {
	match func(Inputs) bool
	class Class
}

var (
	classGigaChad = Class{
		Name:    "The Solana GigaChad",
		Words:   []string{"SolanaGigaChad", "GigaChad", "SolChad", "Based", "Chad", "JupiterChad"},
		Summary: "You're not just playing the game, you're rewriting the rules. Massive volume, diamond conviction, and the transaction history to prove it. The rest of us are just NPCs in your simulation.",
	}
	classWhale = Class{
		Name:    "The Whale",
		Words:   []string{"Whale", "Gorillionaire", "Larpwhale", "GigaBrain"},
		Summary: "Moving markets like you own the place. When you buy, others follow. When you sell, they panic. The rest of us? Just exit liquidity for your plays.",
	}
	classDiamondHands = Class{
		Name:    "Diamond Hands",
		Words:   []string{"Diamondhands", "HODLer", "Diamondape", "Permabull", "Based"},
		Summary: "Bought the top? Maybe. Selling? Never. You've got conviction that would make a monk jealous. Either riding to Valhalla or zero—no in-between. Respect.",
	}
	classJeet = Class{
		Name:    "The Jeet",
		Words:   []string{"Jeet", "Paperhands", "Dumpjeet", "Exitliquidity", "Bottomseller", "SolJeet"},
		Summary: "Buy high, sell low, panic immediately. You see a 2% dip and your hands turn to tissue paper. The attention span of a goldfish, the conviction of a wet noodle.",
	}
	classSniper = Class{
		Name:    "The Sniper",
		Words:   []string{"SolSniper", "Snipper", "Frontrunner", "PhotonChad", "BananaGunBanger"},
		Summary: "In and out faster than a Jito bundle. You're hunting pumps, sniping launches, and probably have Photon on speed dial. Sleep is for the weak.",
	}
	classApe = Class{
		Name:    "The Ape",
		Words:   []string{"Ape", "Apemaxxer", "Athchaser", "Fomooor", "Topbuyer"},
		Summary: "FOMO is your middle name. Green candles? You're buying. Red candles? Panic selling. You chase pumps like it's an Olympic sport. At least you're consistent.",
	}
	classDegen = Class{
		Name:    "The Degen",
		Words:   []string{"SolDegen", "Degen", "Apemaxxer", "PumpFunDegen", "Fomooor", "Moonboy"},
		Summary: "Sleep is for the weak. You're clicking buttons at 3 AM, hunting the next 100x. Probably farming airdrops, definitely touching grass never. Godspeed, soldier.",
	}
	classFarmer = Class{
		Name:    "The Farmer",
		Words:   []string{"Airdropfarmer", "Farmer", "KOLfarmer", "Sybilooor", "Airdrophunter"},
		Summary: "Every transaction is calculated. Every protocol interaction is strategic. You're not trading—you're farming future airdrops. The harvest better be worth it.",
	}
	classHodler = Class{
		Name:    "The HODLer",
		Words:   []string{"HODLer", "Permabull", "Bagholder", "Copeholder", "Diamondhands"},
		Summary: "Not quite diamond hands, but you've got patience. You buy, you hold, you check the charts way too often. Solid conviction, questionable entry points.",
	}
	classShrimp = Class{
		Name:    "The Shrimp",
		Words:   []string{"Shrimp", "Pleb", "Dustholder", "Brokeboi", "Poor"},
		Summary: "Cute portfolio. Are you even trying, or just here for the memes? Either way, we respect the hustle. Everyone starts somewhere... right?",
	}
	classMemeLord = Class{
		Name:    "The Meme Lord",
		Words:   []string{"BonkOoor", "WIFooor", "Memelord", "Memetard", "PumpFunDegen"},
		Summary: "You're here for the culture, not the fundamentals. BONK, WIF, whatever's trending—you're in. Probably have a dog-themed PFP too.",
	}
	classNormie = Class{
		Name:    "The Normie",
		Words:   []string{"Normie", "Anon", "Precoiner", "Nocoiner"},
		Summary: "You're just here for the vibes. Not too risky, not too safe. Probably still figuring out what a DEX is.",
	}
)

// rules is the ordered decision list. Order matters: an elite wallet also
// satisfies the whale rule, but the gigachad rule is evaluated first.
var rules = []rule{
	{func(in Inputs) bool {
		return in.TotalVolumeUSD > 500_000 && in.MaxHoldingDays > 200 && in.TxCount > 500
	}, classGigaChad},
	{func(in Inputs) bool { return in.TotalVolumeUSD > 100_000 }, classWhale},
	{func(in Inputs) bool { return in.MaxHoldingDays > 300 }, classDiamondHands},
	{func(in Inputs) bool { return in.MaxHoldingDays < 1 && in.TxCount > 50 }, classJeet},
	{func(in Inputs) bool {
		return in.TotalVolumeUSD > 50_000 && in.MaxHoldingDays < 7 && in.TxCount > 100
	}, classSniper},
	{func(in Inputs) bool { return in.TotalVolumeUSD > 20_000 && in.MaxHoldingDays < 3 }, classApe},
	{func(in Inputs) bool { return in.TxCount > 1000 }, classDegen},
	{func(in Inputs) bool {
		return in.TxCount > 200 && in.TxCount < 1000 && in.TotalVolumeUSD < 10_000
	}, classFarmer},
	{func(in Inputs) bool {
		return in.MaxHoldingDays > 30 && in.MaxHoldingDays < 300 && in.TxCount > 20
	}, classHodler},
	{func(in Inputs) bool { return in.TotalVolumeUSD < 1000 && in.TxCount < 20 }, classShrimp},
	{func(in Inputs) bool {
		return strings.Contains(strings.ToLower(in.TopToken), "bonk")
	}, classMemeLord},
}

// ClassifyClass returns the first matching class without drawing a tag word.
// The unconditional Normie default makes this a total function.
func ClassifyClass(in Inputs) Class {
	for _, r := range rules {
		if r.match(in) {
			return r.class
		}
	}
	return classNormie
}

// Classify classifies the inputs and draws one tag word from the class pool
// using rng. The word draw is cosmetic flavor text, never a classification
// input; callers seed rng for deterministic tests.
func Classify(in Inputs, rng *rand.Rand) Result {
	c := ClassifyClass(in)
	return Result{
		Name:    c.Name,
		Word:    c.Words[rng.Intn(len(c.Words))],
		Summary: c.Summary,
	}
}
