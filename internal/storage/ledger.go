package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/ignite/fundraise-dialer/internal/pkg/logger"
	"github.com/ignite/fundraise-dialer/internal/worker"
)

// Ledger item statuses.
const (
	TickOK      = "ok"
	TickFailed  = "error"
	TickSkipped = "skipped"
)

// LedgerItem is one tick in the DynamoDB ledger. PK groups by job, SK orders
// by start time.
type LedgerItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	Job        string `dynamodbav:"Job"`
	Status     string `dynamodbav:"Status"`
	Error      string `dynamodbav:"Error,omitempty"`
	DurationMs int64  `dynamodbav:"DurationMs"`
	Result     string `dynamodbav:"Result,omitempty"`
	Timestamp  string `dynamodbav:"Timestamp"`
	TTL        int64  `dynamodbav:"TTL,omitempty"`
}

// TickLedger records every tick to DynamoDB with a TTL.
type TickLedger struct {
	client  DynamoAPI
	table   string
	ttlDays int
	now     func() time.Time
}

// NewTickLedger creates a ledger writing to table.
func NewTickLedger(client DynamoAPI, table string, ttlDays int) *TickLedger {
	return &TickLedger{client: client, table: table, ttlDays: ttlDays, now: time.Now}
}

// Record writes rec to the ledger.
func (l *TickLedger) Record(ctx context.Context, rec worker.TickRecord) error {
	item := LedgerItem{
		PK:         "TICK#" + rec.Job,
		SK:         rec.StartedAt.UTC().Format(time.RFC3339Nano),
		Job:        rec.Job,
		Status:     TickOK,
		DurationMs: rec.Duration.Milliseconds(),
		Timestamp:  l.now().UTC().Format(time.RFC3339),
	}
	switch {
	case rec.Skipped:
		item.Status = TickSkipped
	case rec.Err != nil:
		item.Status = TickFailed
		item.Error = rec.Err.Error()
	}
	if rec.Result != nil {
		data, err := json.Marshal(rec.Result)
		if err != nil {
			return fmt.Errorf("marshaling tick result: %w", err)
		}
		item.Result = string(data)
	}
	if l.ttlDays > 0 {
		item.TTL = rec.StartedAt.Add(time.Duration(l.ttlDays) * 24 * time.Hour).Unix()
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshaling item: %w", err)
	}
	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("putting item to DynamoDB: %w", err)
	}
	return nil
}

// ObserveTick implements worker.Observer.
func (l *TickLedger) ObserveTick(ctx context.Context, rec worker.TickRecord) {
	if err := l.Record(ctx, rec); err != nil {
		logger.Warn("tick ledger write failed", "job", rec.Job, "error", err)
	}
}
