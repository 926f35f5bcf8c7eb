package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base is embedded by domain repositories to share connection and transaction handling.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to ctx when one is supplied.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Conn prefers an open transaction over the base connection.
func (b Base) Conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		if ctx != nil {
			return tx.WithContext(ctx)
		}
		return tx
	}
	return b.DB(ctx)
}

// WithTx returns a copy bound to tx.
func (b Base) WithTx(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}
