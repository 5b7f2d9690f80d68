package ledgerCsv

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/epochledger/epochledger/pkg/storage"
	"github.com/gocarina/gocsv"
)

// EventRow is the file representation of an activity event. Times are RFC3339.
type EventRow struct {
	Id              string `csv:"id" json:"id"`
	Source          string `csv:"source" json:"source"`
	EventType       string `csv:"event_type" json:"event_type"`
	PlatformUserId  string `csv:"platform_user_id" json:"platform_user_id"`
	PlatformLogin   string `csv:"platform_login,omitempty" json:"platform_login,omitempty"`
	ArtifactUrl     string `csv:"artifact_url,omitempty" json:"artifact_url,omitempty"`
	PayloadHash     string `csv:"payload_hash" json:"payload_hash"`
	Producer        string `csv:"producer" json:"producer"`
	ProducerVersion string `csv:"producer_version" json:"producer_version"`
	EventTime       string `csv:"event_time" json:"event_time"`
	RetrievedAt     string `csv:"retrieved_at,omitempty" json:"retrieved_at,omitempty"`
}

type StatementRow struct {
	EpochId           uint64 `csv:"epoch_id"`
	AllocationSetHash string `csv:"allocation_set_hash"`
	UserId            string `csv:"user_id"`
	TotalUnits        string `csv:"total_units"`
	Share             string `csv:"share"`
	AmountCredits     string `csv:"amount_credits"`
}

type Format string

var (
	Format_Csv  Format = "csv"
	Format_Json Format = "json"
)

// FormatFromPath picks the input format from a file extension, defaulting to csv.
func FormatFromPath(path string) Format {
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		return Format_Json
	}
	return Format_Csv
}

func ReadEventRows(r io.Reader, format Format) ([]*EventRow, error) {
	rows := make([]*EventRow, 0)
	switch format {
	case Format_Json:
		if err := json.NewDecoder(r).Decode(&rows); err != nil {
			return nil, fmt.Errorf("failed to decode events json: %w", err)
		}
	default:
		if err := gocsv.Unmarshal(r, &rows); err != nil {
			return nil, fmt.Errorf("failed to decode events csv: %w", err)
		}
	}
	return rows, nil
}

// ToActivityEvent converts a row into an event. Node and scope are filled in on insert.
func (r *EventRow) ToActivityEvent(line int) (*storage.ActivityEvent, error) {
	eventTime, err := time.Parse(time.RFC3339, strings.TrimSpace(r.EventTime))
	if err != nil {
		return nil, fmt.Errorf("row %d: invalid event_time '%s': %w", line, r.EventTime, err)
	}
	event := &storage.ActivityEvent{
		Id:              strings.TrimSpace(r.Id),
		Source:          r.Source,
		EventType:       r.EventType,
		PlatformUserId:  r.PlatformUserId,
		PayloadHash:     r.PayloadHash,
		Producer:        r.Producer,
		ProducerVersion: r.ProducerVersion,
		EventTime:       eventTime,
	}
	if v := strings.TrimSpace(r.RetrievedAt); v != "" {
		retrievedAt, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid retrieved_at '%s': %w", line, r.RetrievedAt, err)
		}
		event.RetrievedAt = retrievedAt
	}
	if r.PlatformLogin != "" {
		login := r.PlatformLogin
		event.PlatformLogin = &login
	}
	if r.ArtifactUrl != "" {
		url := r.ArtifactUrl
		event.ArtifactUrl = &url
	}
	return event, nil
}

// ReadActivityEvents decodes and converts every row, failing on the first bad one.
func ReadActivityEvents(r io.Reader, format Format) ([]*storage.ActivityEvent, error) {
	rows, err := ReadEventRows(r, format)
	if err != nil {
		return nil, err
	}
	events := make([]*storage.ActivityEvent, 0, len(rows))
	for i, row := range rows {
		event, err := row.ToActivityEvent(i + 1)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func StatementRows(statement *storage.PayoutStatement) []*StatementRow {
	rows := make([]*StatementRow, 0, len(statement.Payouts))
	for _, p := range statement.Payouts {
		rows = append(rows, &StatementRow{
			EpochId:           statement.EpochId,
			AllocationSetHash: statement.AllocationSetHash,
			UserId:            p.UserId,
			TotalUnits:        p.TotalUnits,
			Share:             p.Share,
			AmountCredits:     p.AmountCredits,
		})
	}
	return rows
}

func WriteStatement(w io.Writer, statement *storage.PayoutStatement) error {
	return gocsv.Marshal(StatementRows(statement), w)
}

// Batch splits events into chunks of at most size.
func Batch(events []*storage.ActivityEvent, size int) [][]*storage.ActivityEvent {
	if size <= 0 {
		size = len(events)
	}
	batches := make([][]*storage.ActivityEvent, 0)
	for start := 0; start < len(events); start += size {
		end := min(start+size, len(events))
		batches = append(batches, events[start:end])
	}
	return batches
}
