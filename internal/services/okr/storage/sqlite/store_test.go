package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/louisbranch/okrengine/internal/services/okr/domain"
	"github.com/louisbranch/okrengine/internal/services/okr/storage"
	"github.com/louisbranch/okrengine/internal/services/okr/storage/storagetest"
	"github.com/shopspring/decimal"
)

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), ""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestStoreContract(t *testing.T) {
	t.Parallel()

	storagetest.Run(t, func(t *testing.T) storage.TxStore {
		return openTempStore(t)
	})
}

func TestReopenKeepsDataAndSkipsMigrations(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "okr.db")
	store, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.PutObjective(context.Background(), storagetest.Objective("obj-1")); err != nil {
		t.Fatalf("put objective: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	reopened, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })
	if _, err := reopened.GetObjective(context.Background(), "obj-1"); err != nil {
		t.Fatalf("get objective after reopen: %v", err)
	}
}

func TestDeleteObjectiveCascadesOwnedRows(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	if err := store.PutObjective(ctx, storagetest.Objective("obj-1")); err != nil {
		t.Fatalf("put objective: %v", err)
	}
	if err := store.PutKeyResult(ctx, storagetest.KeyResult("kr-1", "obj-1")); err != nil {
		t.Fatalf("put key result: %v", err)
	}
	if err := store.PutCheckIn(ctx, domain.CheckIn{ID: "ci-1", KeyResultID: "kr-1", Value: decimal.NewFromInt(4)}); err != nil {
		t.Fatalf("put check-in: %v", err)
	}

	if err := store.DeleteObjective(ctx, "obj-1"); err != nil {
		t.Fatalf("delete objective: %v", err)
	}
	if _, err := store.GetKeyResult(ctx, "kr-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("key result err = %v, want not found", err)
	}
	if _, err := store.GetCheckIn(ctx, "ci-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("check-in err = %v, want not found", err)
	}
}

func TestPutKeyResultRequiresExistingObjective(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	if err := store.PutKeyResult(context.Background(), storagetest.KeyResult("kr-1", "missing")); err == nil {
		t.Fatal("expected foreign key error")
	}
}

func TestNestedInTxJoinsOuterTransaction(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	boom := errors.New("boom")
	err := store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		inner, ok := tx.(storage.TxStore)
		if !ok {
			t.Fatal("expected tx store to support InTx")
		}
		if err := inner.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
			return tx.PutObjective(ctx, storagetest.Objective("obj-1"))
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if _, err := store.GetObjective(ctx, "obj-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("nested write survived rollback: %v", err)
	}
}

func TestNilStoreIsNotConfigured(t *testing.T) {
	t.Parallel()

	var store *Store
	if _, err := store.GetObjective(context.Background(), "obj-1"); err == nil {
		t.Fatal("expected not configured error")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close nil store: %v", err)
	}
}

func TestCanceledContext(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.PutObjective(ctx, storagetest.Objective("obj-1")); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want %v", err, context.Canceled)
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "okr.db")
	store, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}
