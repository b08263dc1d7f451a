package db

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestConnFromContext_Empty(t *testing.T) {
	if q := ConnFromContext(context.Background()); q != nil {
		t.Errorf("expected nil querier outside a transaction, got %T", q)
	}
}

func TestAdvisoryXactLock_RequiresTransaction(t *testing.T) {
	err := AdvisoryXactLock(context.Background(), 42)
	if !errors.Is(err, ErrNoTx) {
		t.Errorf("expected ErrNoTx, got %v", err)
	}
}

func TestAdvisoryXactLockShared_RequiresTransaction(t *testing.T) {
	if err := AdvisoryXactLockShared(context.Background(), 42); !errors.Is(err, ErrNoTx) {
		t.Errorf("expected ErrNoTx, got %v", err)
	}
}

func TestAdvisoryXactLockKeys_RequiresTransaction(t *testing.T) {
	if err := AdvisoryXactLockKeys(context.Background(), 1, "a"); !errors.Is(err, ErrNoTx) {
		t.Errorf("expected ErrNoTx, got %v", err)
	}
}

func TestSortedUnique(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{nil, []string{}},
		{[]string{"b", "a"}, []string{"a", "b"}},
		{[]string{"c", "a", "c", "b", "a"}, []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		got := sortedUnique(tt.in)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("sortedUnique(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
