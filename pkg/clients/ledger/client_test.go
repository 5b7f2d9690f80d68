package ledger

import (
	"context"
	"net/http"
	"testing"

	"github.com/epochledger/epochledger/internal/logger"
	"github.com/epochledger/epochledger/pkg/payouts"
	"github.com/epochledger/epochledger/pkg/service/types"
	"github.com/epochledger/epochledger/pkg/storage"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
)

const mockBaseUrl = "http://ledger.local"

func setup(t *testing.T) *Client {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)

	mockHttpClient := &http.Client{
		Transport: httpmock.DefaultTransport,
	}
	return NewClient(mockHttpClient, mockBaseUrl+"/", l)
}

func exampleHash(t *testing.T) string {
	hash, err := payouts.AllocationSetHash(1, []*storage.Allocation{
		{UserId: "user-1", ProposedUnits: 8000},
		{UserId: "user-2", ProposedUnits: 2000},
	})
	assert.Nil(t, err)
	return hash
}

func registerExample(t *testing.T, hash string, user1Amount string) {
	httpmock.RegisterResponder("GET", mockBaseUrl+"/ledger/epochs/1/allocations",
		httpmock.NewStringResponder(200, `{"epochId":1,"allocations":[
			{"id":1,"userId":"user-1","proposedUnits":"8000"},
			{"id":2,"userId":"user-2","proposedUnits":"2000"}
		]}`))
	httpmock.RegisterResponder("GET", mockBaseUrl+"/ledger/epochs/1/statement",
		httpmock.NewStringResponder(200, `{"epochId":1,"statement":{
			"allocationSetHash":"`+hash+`",
			"poolTotalCredits":"10000",
			"payouts":[
				{"user_id":"user-1","total_units":"8000","share":"0.800000","amount_credits":"`+user1Amount+`"},
				{"user_id":"user-2","total_units":"2000","share":"0.200000","amount_credits":"2000"}
			]
		}}`))
}

func Test_LedgerClient(t *testing.T) {
	ctx := context.Background()

	t.Run("Should list epochs with pagination", func(t *testing.T) {
		c := setup(t)
		httpmock.RegisterResponderWithQuery("GET", mockBaseUrl+"/ledger/epochs", "limit=10&offset=20",
			httpmock.NewStringResponder(200, `{"epochs":[{"id":3,"status":"closed","poolTotalCredits":"500","periodStart":"2025-03-01T00:00:00Z","periodEnd":"2025-03-08T00:00:00Z"}]}`))

		res, err := c.ListEpochs(ctx, 10, 20)
		assert.Nil(t, err)
		assert.Len(t, res.Epochs, 1)
		assert.Equal(t, uint64(3), res.Epochs[0].Id)
		assert.Equal(t, "500", res.Epochs[0].PoolTotalCredits)
	})
	t.Run("Should not retry a not found response", func(t *testing.T) {
		c := setup(t)
		httpmock.RegisterResponder("GET", mockBaseUrl+"/ledger/epochs/999999/statement",
			httpmock.NewStringResponder(404, `{"error":"epoch not found","kind":"not_found"}`))

		_, err := c.GetStatement(ctx, 999999)
		var re *ResponseError
		assert.ErrorAs(t, err, &re)
		assert.Equal(t, http.StatusNotFound, re.StatusCode)
		assert.Equal(t, 1, httpmock.GetTotalCallCount())
	})
	t.Run("Should verify a consistent statement", func(t *testing.T) {
		c := setup(t)
		registerExample(t, exampleHash(t), "8000")

		res, err := c.VerifyEpoch(ctx, 1)
		assert.Nil(t, err)
		assert.True(t, res.Ok(), res.Mismatches)
	})
	t.Run("Should report a tampered payout", func(t *testing.T) {
		c := setup(t)
		registerExample(t, exampleHash(t), "7999")

		res, err := c.VerifyEpoch(ctx, 1)
		assert.Nil(t, err)
		assert.False(t, res.Ok())
		assert.Len(t, res.Mismatches, 2)
	})
	t.Run("Should report a hash mismatch", func(t *testing.T) {
		c := setup(t)
		registerExample(t, "0xdeadbeef", "8000")

		res, err := c.VerifyEpoch(ctx, 1)
		assert.Nil(t, err)
		assert.False(t, res.Ok())
		assert.Contains(t, res.Mismatches[0], "allocation set hash")
	})
	t.Run("Should verify shares when the unit total exceeds 64 bits", func(t *testing.T) {
		hash, err := payouts.AllocationSetHash(2, []*storage.Allocation{
			{UserId: "a", ProposedUnits: 1 << 62},
			{UserId: "b", ProposedUnits: 1 << 62},
		})
		assert.Nil(t, err)

		res, err := VerifyStatement(&types.EpochAllocationsResponse{
			EpochId: 2,
			Allocations: []*types.AllocationEntry{
				{Id: 1, UserId: "a", ProposedUnits: "4611686018427387904"},
				{Id: 2, UserId: "b", ProposedUnits: "4611686018427387904"},
			},
		}, &types.EpochStatementResponse{
			EpochId: 2,
			Statement: &types.Statement{
				AllocationSetHash: hash,
				PoolTotalCredits:  "10",
				Payouts: []*types.StatementPayout{
					{UserId: "a", TotalUnits: "4611686018427387904", Share: "0.500000", AmountCredits: "5"},
					{UserId: "b", TotalUnits: "4611686018427387904", Share: "0.500000", AmountCredits: "5"},
				},
			},
		})
		assert.Nil(t, err)
		assert.True(t, res.Ok(), res.Mismatches)
	})
}
