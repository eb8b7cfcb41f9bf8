// Package service 实现核心业务编排
package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/paiban/banbiao/internal/repository"
	apperrors "github.com/paiban/banbiao/pkg/errors"
)

// DateLayout 日期格式
const DateLayout = "2006-01-02"

// TxRunner 事务执行器，*database.DB 满足该接口
type TxRunner interface {
	Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// Repos 仓储集合
// 事务内通过工厂在 *sql.Tx 上重建，测试时可整体替换为桩实现。
type Repos struct {
	Demands      repository.DemandRepositoryInterface
	DayIndex     repository.DayIndexRepositoryInterface
	Defaults     repository.DefaultDemandRepositoryInterface
	Availability repository.AvailabilityRepositoryInterface
	Schedule     repository.ScheduleRepositoryInterface
	Rules        repository.RuleRepositoryInterface
	Transfers    repository.TransferRepositoryInterface
	Employees    repository.EmployeeRepositoryInterface
	Locations    repository.LocationRepositoryInterface
}

// NewRepos 在指定句柄上创建全部仓储
func NewRepos(db repository.DB) *Repos {
	return &Repos{
		Demands:      repository.NewDemandRepository(db),
		DayIndex:     repository.NewDayIndexRepository(db),
		Defaults:     repository.NewDefaultDemandRepository(db),
		Availability: repository.NewAvailabilityRepository(db),
		Schedule:     repository.NewScheduleRepository(db),
		Rules:        repository.NewRuleRepository(db),
		Transfers:    repository.NewTransferRepository(db),
		Employees:    repository.NewEmployeeRepository(db),
		Locations:    repository.NewLocationRepository(db),
	}
}

// ReposFactory 仓储工厂
type ReposFactory func(db repository.DB) *Repos

// ParseDate 校验并规范日期
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, apperrors.InvalidInput("date", fmt.Sprintf("无效的日期: %q", s))
	}
	return t, nil
}

// Weekday 返回星期序号，周一为0，周日为6
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// ValidateRange 校验日期范围并返回两端
func ValidateRange(dateFrom, dateTo string) (time.Time, time.Time, error) {
	from, err := ParseDate(dateFrom)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := ParseDate(dateTo)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, apperrors.New(apperrors.CodeInvalidTimeRange, "结束日期早于开始日期")
	}
	return from, to, nil
}

// DaysBetween 枚举闭区间内的日期
func DaysBetween(from, to time.Time) []string {
	var out []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(DateLayout))
	}
	return out
}

// ShiftUID 构造稳定班次标识
func ShiftUID(demandID int64, date, location, start, end string) string {
	return fmt.Sprintf("D%d|%s|%s|%s-%s", demandID, date, location, start, end)
}
