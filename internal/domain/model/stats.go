package model

// WalletStats is the terminal artifact of one job: the yearly activity summary
// written back into the request row. Immutable once created.
type WalletStats struct {
	TotalTransactions  int     `json:"totalTransactions"`
	TotalGasSpent      float64 `json:"totalGasSpent"`
	MostActiveDay      string  `json:"mostActiveDay"`
	TopToken           string  `json:"topToken"`
	FirstActiveDate    string  `json:"firstActiveDate"`
	DaysOnChain        int     `json:"daysOnChain"`
	TotalVolumeUSD     float64 `json:"totalVolumeUSD"`
	MaxHoldingDays     int     `json:"maxHoldingDays"`
	HighestTransaction float64 `json:"highestTransaction"`
	Persona            string  `json:"persona"`
	PersonaWord        string  `json:"personaWord"`
	Summary            string  `json:"summary"`
}
