// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"strconv"
)

// DB 数据库接口，*database.DB 与 *sql.Tx 均满足
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Scanner 行扫描接口
type Scanner interface {
	Scan(dest ...interface{}) error
}

// ListFilter 列表查询过滤器
type ListFilter struct {
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Location  string `json:"location,omitempty"`
	Status    string `json:"status,omitempty"`
	Offset    int    `json:"offset"`
	Limit     int    `json:"limit"`
}

// DefaultListFilter 返回默认过滤器
func DefaultListFilter() ListFilter {
	return ListFilter{Offset: 0, Limit: 20}
}

// Normalize 约束分页参数
func (f ListFilter) Normalize() ListFilter {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// itoa 整型ID转字符串
func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
