package composite

import (
	"context"
	"errors"
	"testing"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
	"fundarb/internal/infrastructure/storage"
)

type failingLedger struct {
	*storage.InMemoryLedger
	closed bool
}

func (f *failingLedger) RecordAttempt(ctx context.Context, a model.OrderAttempt) error {
	return errors.New("disk full")
}

func (f *failingLedger) Close() error {
	f.closed = true
	return errors.New("close failed")
}

// TestFanOut 一个账本失败不影响其它账本写入，返回第一个错误
func TestFanOut(t *testing.T) {
	primary := storage.NewInMemoryLedger()
	bad := &failingLedger{InMemoryLedger: storage.NewInMemoryLedger()}
	repo := New(primary, nil, bad)
	ctx := context.Background()

	err := repo.RecordAttempt(ctx, model.OrderAttempt{CycleID: "c", Attempt: 1})
	if err == nil || err.Error() != "disk full" {
		t.Fatalf("expected disk full, got %v", err)
	}
	if len(primary.Attempts()) != 1 {
		t.Errorf("primary should still record the attempt")
	}

	p := &model.Position{ID: "p", Status: model.PositionOpen}
	if err := repo.SavePosition(ctx, p); err != nil {
		t.Fatalf("SavePosition failed: %v", err)
	}
	open, err := repo.ListOpenPositions(ctx)
	if err != nil || len(open) != 1 {
		t.Fatalf("expected 1 open position, got %v %v", open, err)
	}

	if err := repo.Close(); err == nil {
		t.Errorf("expected close error")
	}
	if !bad.closed {
		t.Errorf("all ledgers should be closed")
	}
}

var _ port.Ledger = (*failingLedger)(nil)
