package types

// Response bodies of the public read API. Credit and unit amounts are decimal strings.

type EpochSummary struct {
	Id               uint64 `json:"id"`
	Status           string `json:"status"`
	PoolTotalCredits string `json:"poolTotalCredits"`
	PeriodStart      string `json:"periodStart"`
	PeriodEnd        string `json:"periodEnd"`
}

type ListEpochsResponse struct {
	Epochs []*EpochSummary `json:"epochs"`
}

type AllocationEntry struct {
	Id            uint64 `json:"id"`
	UserId        string `json:"userId"`
	ProposedUnits string `json:"proposedUnits"`
}

type EpochAllocationsResponse struct {
	EpochId     uint64             `json:"epochId"`
	Allocations []*AllocationEntry `json:"allocations"`
}

type StatementPayout struct {
	UserId        string `json:"user_id"`
	TotalUnits    string `json:"total_units"`
	Share         string `json:"share"`
	AmountCredits string `json:"amount_credits"`
}

type Statement struct {
	AllocationSetHash string             `json:"allocationSetHash"`
	PoolTotalCredits  string             `json:"poolTotalCredits"`
	Payouts           []*StatementPayout `json:"payouts"`
}

type EpochStatementResponse struct {
	EpochId   uint64     `json:"epochId"`
	Statement *Statement `json:"statement"`
}
