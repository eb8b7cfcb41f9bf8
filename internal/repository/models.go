package repository

import (
	"encoding/json"
	"time"
)

// Demand 内容寻址的需求包
type Demand struct {
	ID                int64           `json:"id"`
	Tenant            string          `json:"-"`
	ContentHash       string          `json:"content_hash"`
	RawPayload        json.RawMessage `json:"raw_payload"`
	DateFrom          string          `json:"date_from"`
	DateTo            string          `json:"date_to"`
	ScheduleGenerated bool            `json:"schedule_generated"`
	SolvedAt          *time.Time      `json:"solved_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// DayIndexEntry 日索引行
type DayIndexEntry struct {
	ID        int64     `json:"id"`
	Tenant    string    `json:"-"`
	Date      string    `json:"date"`
	Location  string    `json:"location"`
	DayHash   string    `json:"day_hash"`
	DemandID  int64     `json:"demand_id"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultDemand 每周默认模板
// Weekday 为 -1 表示与星期无关的回退模板。
type DefaultDemand struct {
	ID        int64           `json:"id"`
	Tenant    string          `json:"-"`
	Location  string          `json:"location"`
	Weekday   int             `json:"weekday"`
	Items     json.RawMessage `json:"items"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// FallbackWeekday 回退模板的星期哨兵值
const FallbackWeekday = -1

// Availability 员工单日可用性
type Availability struct {
	ID             int64           `json:"id"`
	Tenant         string          `json:"-"`
	EmployeeID     string          `json:"employee_id"`
	Date           string          `json:"date"`
	Experienced    bool            `json:"experienced"`
	HoursMin       int             `json:"hours_min"`
	HoursMax       int             `json:"hours_max"`
	AvailableSlots json.RawMessage `json:"available_slots"`
	AssignedShift  json.RawMessage `json:"assigned_shift,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ScheduleShift 持久化的班次结果
type ScheduleShift struct {
	ID                int64           `json:"id"`
	Tenant            string          `json:"-"`
	DemandID          int64           `json:"demand_id"`
	ShiftUID          string          `json:"shift_uid"`
	Date              string          `json:"date"`
	Location          string          `json:"location"`
	Start             string          `json:"start"`
	End               string          `json:"end"`
	DemandCount       int             `json:"demand"`
	NeedsExperienced  bool            `json:"needs_experienced"`
	AssignedEmployees []string        `json:"assigned_employees"`
	MissingMinutes    int             `json:"missing_minutes"`
	Meta              json.RawMessage `json:"meta"`
	UserEdited        bool            `json:"user_edited"`
	Confirmed         bool            `json:"confirmed"`
	ApprovedBy        string          `json:"approved_by,omitempty"`
	ApprovedAt        *time.Time      `json:"approved_at,omitempty"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// EventRule 需求变换规则
type EventRule struct {
	ID                      int64     `json:"id"`
	Tenant                  string    `json:"-"`
	Name                    string    `json:"name"`
	Mode                    string    `json:"mode"`
	Value                   float64   `json:"value"`
	NeedsExperiencedDefault bool      `json:"needs_experienced_default"`
	MinDemand               *int      `json:"min_demand,omitempty"`
	MaxDemand               *int      `json:"max_demand,omitempty"`
	Active                  bool      `json:"active"`
	CreatedAt               time.Time `json:"created_at"`
}

// SpecialDay 绑定规则的特殊日
type SpecialDay struct {
	ID        int64     `json:"id"`
	Tenant    string    `json:"-"`
	Date      string    `json:"date"`
	Location  string    `json:"location"`
	RuleID    int64     `json:"rule_id"`
	Active    bool      `json:"active"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

// 换班请求动作与状态
const (
	TransferActionDrop  = "drop"
	TransferActionClaim = "claim"

	TransferStatusPending  = "pending"
	TransferStatusApproved = "approved"
	TransferStatusRejected = "rejected"
)

// TransferRequest 换班请求
type TransferRequest struct {
	ID             string     `json:"id"`
	Tenant         string     `json:"-"`
	ShiftUID       string     `json:"shift_uid"`
	RequestedBy    string     `json:"requested_by"`
	Action         string     `json:"action"`
	TargetEmployee string     `json:"target_employee,omitempty"`
	Status         string     `json:"status"`
	Note           string     `json:"note,omitempty"`
	ManagerNote    string     `json:"manager_note,omitempty"`
	ApprovedBy     string     `json:"approved_by,omitempty"`
	ApprovedAt     *time.Time `json:"approved_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Employee 员工名录条目，用于通知地址解析
type Employee struct {
	ID          int64     `json:"id"`
	Tenant      string    `json:"-"`
	EmployeeID  string    `json:"employee_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Experienced bool      `json:"experienced"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Location 地点
type Location struct {
	ID        int64     `json:"id"`
	Tenant    string    `json:"-"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
