// Package solver 实现基于时间切片的排班求解器
//
// 把每个原始班次按 30 分钟切片，在切片粒度上做布尔指派：
// 覆盖、去重人数、同日不重叠、经验要求为硬约束；
// 周工时上下限与欠覆盖通过松弛变量计入目标函数。
package solver

import (
	"time"
)

// UnboundedHours hours_max 未设置时的哨兵值，等效于无上限
const UnboundedHours = 1_000_000_000

// Interval 分钟区间 [Start, End)
type Interval struct {
	Start int
	End   int
}

// PreAssignment 确认的预指派，必须与某个班次完全一致才生效
type PreAssignment struct {
	Date     string
	Location string
	Start    int
	End      int
}

// Availability 一名员工一天的可用性
type Availability struct {
	EmployeeID    string
	Date          string
	Experienced   bool
	HoursMin      int
	HoursMax      int
	Slots         []Interval
	AssignedShift *PreAssignment
}

// Shift 原始班次
type Shift struct {
	Date             string
	Location         string
	Start            int
	End              int
	Demand           int
	NeedsExperienced bool
}

// Duration 班次时长（分钟）
func (s Shift) Duration() int {
	return s.End - s.Start
}

// Input 求解输入
type Input struct {
	Availabilities []Availability
	Shifts         []Shift
}

// Options 求解参数
type Options struct {
	TimeLimit time.Duration
	Workers   int
	Seed      int64
}

// DefaultOptions 默认求解参数
func DefaultOptions() Options {
	return Options{
		TimeLimit: 10 * time.Second,
		Workers:   8,
		Seed:      1,
	}
}

// Segment 一段连续的指派时间
type Segment struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	Minutes int    `json:"minutes"`
}

// EmployeeAssignment 一名员工在一个班次内的指派明细
type EmployeeAssignment struct {
	EmployeeID string    `json:"employee_id"`
	Start      string    `json:"start"`
	End        string    `json:"end"`
	Minutes    int       `json:"minutes"`
	Segments   []Segment `json:"segments"`
}

// MissingSegment 一段连续的欠覆盖时间
type MissingSegment struct {
	Start          string `json:"start"`
	End            string `json:"end"`
	Missing        int    `json:"missing"`
	MissingMinutes int    `json:"missing_minutes"`
}

// ShiftResult 单个班次的求解结果
type ShiftResult struct {
	Shift             Shift                `json:"-"`
	Date              string               `json:"date"`
	Location          string               `json:"location"`
	Start             string               `json:"start"`
	End               string               `json:"end"`
	Demand            int                  `json:"demand"`
	NeedsExperienced  bool                 `json:"needs_experienced"`
	AssignedEmployees []string             `json:"assigned_employees"`
	AssignedDetail    []EmployeeAssignment `json:"assigned_employees_detail"`
	MissingSegments   []MissingSegment     `json:"missing_segments"`
	MissingMinutes    int                  `json:"missing_minutes"`
}

// HoursSummary 一名员工的周工时汇总
type HoursSummary struct {
	TotalHours  float64 `json:"total_hours"`
	HoursMin    int     `json:"hours_min"`
	HoursMax    int     `json:"hours_max"`
	OverHours   float64 `json:"over_hours"`
	UnderHours  float64 `json:"under_hours"`
	Experienced bool    `json:"experienced"`
}

// Result 求解结果
type Result struct {
	Shifts              []ShiftResult           `json:"shifts"`
	Uncovered           []ShiftResult           `json:"uncovered"`
	HoursSummary        map[string]HoursSummary `json:"hours_summary"`
	Objective           int64                   `json:"objective"`
	TotalAssigned       int                     `json:"total_assigned"`
	TotalMissingMinutes int                     `json:"total_missing_minutes"`
	Duration            time.Duration           `json:"duration"`
	TimedOut            bool                    `json:"timed_out"`
}
