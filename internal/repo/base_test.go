package repo

import (
	"context"
	"testing"

	"github.com/alera-fm/alera-backend/internal/repo/repotest"
)

type ctxKey struct{}

func TestBaseDB_BindsContext(t *testing.T) {
	db := repotest.Open(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), ctxKey{}, "value")
	withCtx := base.DB(ctx)
	if withCtx.Statement == nil || withCtx.Statement.Context != ctx {
		t.Fatalf("expected context to flow through")
	}

	if base.DB(nil) != db {
		t.Fatalf("expected nil context to return raw connection")
	}
}

func TestBaseConnPrefersTransaction(t *testing.T) {
	db := repotest.Open(t)
	base := NewBase(db)

	tx := db.Begin()
	defer tx.Rollback()

	if got := base.Conn(nil, tx); got != tx {
		t.Fatalf("expected transaction handle")
	}
	if got := base.Conn(nil, nil); got != db {
		t.Fatalf("expected base handle without transaction")
	}
	if bound := base.WithTx(tx); bound.db != tx {
		t.Fatalf("expected WithTx to rebind")
	}
	if unbound := base.WithTx(nil); unbound.db != db {
		t.Fatalf("expected WithTx(nil) to keep base")
	}
}
