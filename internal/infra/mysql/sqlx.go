package mysql

import (
	"sync"

	"github.com/jmoiron/sqlx"
)

var (
	mu     sync.Mutex
	sqlxDB *sqlx.DB
)

// SQLX 返回 sqlx 包装句柄；未注入数据库时返回 nil，调用方需自行降级
func SQLX() *sqlx.DB {
	mu.Lock()
	defer mu.Unlock()
	if sqlxDB == nil && DB() != nil {
		sqlxDB = sqlx.NewDb(DB(), "mysql")
	}
	return sqlxDB
}
