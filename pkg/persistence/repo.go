package persistence

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo interface {
	SaveOrder(ctx context.Context, o *Order) error
	SaveTrade(ctx context.Context, t *Trade) error
	SaveBookState(ctx context.Context, s *BookState) error
}

type SQLRepo struct {
	db *gorm.DB
}

func NewSQLRepo(db *gorm.DB) *SQLRepo {
	return &SQLRepo{
		db: db,
	}
}

func (r *SQLRepo) dbWithContext(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

// SaveOrder upserts by order id. An update older than the stored row is
// ignored.
func (r *SQLRepo) SaveOrder(ctx context.Context, o *Order) error {
	return r.dbWithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "order_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"cl_ord_id", "price", "quantity", "filled_qty", "remaining_qty",
			"avg_price", "status", "updated_at",
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "orders.updated_at <= excluded.updated_at"},
		}},
	}).Create(o).Error
}

// SaveTrade inserts a trade once; a redelivered trade is a no-op.
func (r *SQLRepo) SaveTrade(ctx context.Context, t *Trade) error {
	return r.dbWithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "trade_id"}},
		DoNothing: true,
	}).Create(t).Error
}

func (r *SQLRepo) SaveBookState(ctx context.Context, s *BookState) error {
	return r.dbWithContext(ctx).Create(s).Error
}
