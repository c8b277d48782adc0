package casestatus

import (
	"context"
	"fmt"

	"github.com/casetrack/cli/internal/kv"
)

const (
	lastReceiptKey = "lastReceiptNumber"
	lastStatusKey  = "lastCaseStatus"
)

// LastQuery remembers the most recent receipt number and its result.
type LastQuery struct {
	kv kv.Store
}

// NewLastQuery returns a LastQuery over store.
func NewLastQuery(store kv.Store) *LastQuery {
	return &LastQuery{kv: store}
}

// Save records receipt and its resolved status.
func (q *LastQuery) Save(ctx context.Context, receipt string, status CaseStatus) error {
	if err := kv.SetJSON(ctx, q.kv, lastReceiptKey, receipt); err != nil {
		return fmt.Errorf("save last receipt: %w", err)
	}
	if err := kv.SetJSON(ctx, q.kv, lastStatusKey, status); err != nil {
		return fmt.Errorf("save last case status: %w", err)
	}
	return nil
}

// Receipt returns the last receipt number queried.
func (q *LastQuery) Receipt(ctx context.Context) (string, bool, error) {
	var receipt string
	ok, err := kv.GetJSON(ctx, q.kv, lastReceiptKey, &receipt)
	if err != nil {
		return "", false, fmt.Errorf("read last receipt: %w", err)
	}
	return receipt, ok && receipt != "", nil
}

// Status returns the last resolved status.
func (q *LastQuery) Status(ctx context.Context) (CaseStatus, bool, error) {
	var status CaseStatus
	ok, err := kv.GetJSON(ctx, q.kv, lastStatusKey, &status)
	if err != nil {
		return CaseStatus{}, false, fmt.Errorf("read last case status: %w", err)
	}
	return status, ok, nil
}
