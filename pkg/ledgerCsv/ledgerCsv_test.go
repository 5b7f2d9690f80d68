package ledgerCsv

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/epochledger/epochledger/pkg/storage"
	"github.com/stretchr/testify/assert"
)

const eventsCsv = `id,source,event_type,platform_user_id,platform_login,artifact_url,payload_hash,producer,producer_version,event_time,retrieved_at
evt-1,github,pr_merged,user-1,octocat,https://example.com/pr/1,h1,github-adapter,1.0.0,2025-03-01T01:00:00Z,2025-03-01T01:05:00Z
evt-2,github,review_submitted,user-2,,,h2,github-adapter,1.0.0,2025-03-01T02:00:00+02:00,
`

func Test_LedgerCsv(t *testing.T) {
	t.Run("Should read events from csv", func(t *testing.T) {
		events, err := ReadActivityEvents(strings.NewReader(eventsCsv), Format_Csv)
		assert.Nil(t, err)
		assert.Len(t, events, 2)

		assert.Equal(t, "evt-1", events[0].Id)
		assert.Equal(t, "pr_merged", events[0].EventType)
		assert.Equal(t, "octocat", *events[0].PlatformLogin)
		assert.Equal(t, "https://example.com/pr/1", *events[0].ArtifactUrl)
		assert.True(t, time.Date(2025, 3, 1, 1, 0, 0, 0, time.UTC).Equal(events[0].EventTime))

		assert.Nil(t, events[1].PlatformLogin)
		assert.True(t, events[1].RetrievedAt.IsZero())
		assert.True(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC).Equal(events[1].EventTime))
	})
	t.Run("Should read events from json", func(t *testing.T) {
		body := `[{"id":"evt-9","source":"github","event_type":"pr_merged","platform_user_id":"user-9","payload_hash":"h9","producer":"p","producer_version":"1","event_time":"2025-03-02T00:00:00Z"}]`
		events, err := ReadActivityEvents(strings.NewReader(body), FormatFromPath("events.JSON"))
		assert.Nil(t, err)
		assert.Len(t, events, 1)
		assert.Equal(t, "user-9", events[0].PlatformUserId)
	})
	t.Run("Should name the row with a bad timestamp", func(t *testing.T) {
		body := "id,source,event_type,platform_user_id,payload_hash,producer,producer_version,event_time\nevt-1,github,pr_merged,user-1,h1,p,1,yesterday\n"
		_, err := ReadActivityEvents(strings.NewReader(body), Format_Csv)
		assert.NotNil(t, err)
		assert.Contains(t, err.Error(), "row 1")
	})
	t.Run("Should write a statement as csv", func(t *testing.T) {
		statement := &storage.PayoutStatement{
			EpochId:           4,
			AllocationSetHash: "0xabc",
			PoolTotalCredits:  10000,
			Payouts: []storage.PayoutLine{
				{UserId: "user-1", TotalUnits: "8000", Share: "0.800000", AmountCredits: "8000"},
				{UserId: "user-2", TotalUnits: "2000", Share: "0.200000", AmountCredits: "2000"},
			},
		}
		buf := &bytes.Buffer{}
		assert.Nil(t, WriteStatement(buf, statement))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		assert.Equal(t, []string{
			"epoch_id,allocation_set_hash,user_id,total_units,share,amount_credits",
			"4,0xabc,user-1,8000,0.800000,8000",
			"4,0xabc,user-2,2000,0.200000,2000",
		}, lines)
	})
	t.Run("Should split events into batches", func(t *testing.T) {
		events := make([]*storage.ActivityEvent, 0)
		for i := 0; i < 5; i++ {
			events = append(events, &storage.ActivityEvent{Id: fmt.Sprintf("evt-%d", i)})
		}
		batches := Batch(events, 2)
		assert.Len(t, batches, 3)
		assert.Len(t, batches[2], 1)
		assert.Len(t, Batch(events, 0), 1)
		assert.Len(t, Batch(nil, 10), 0)
	})
}
