package repositories

import (
	"context"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier 抽象连接池与事务两种执行载体。
// pgxpool.Pool 与 pgx.Tx 均满足该接口。
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pickQuerier 在事务上下文存在时选择事务执行器，否则使用连接池。
func pickQuerier(db *pgxpool.Pool, sess txmanager.Session) querier {
	if sess != nil {
		return sess.Tx()
	}
	return db
}
