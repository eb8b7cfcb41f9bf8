// Package rules 实现特殊日规则引擎
//
// 规则在求解前对原始需求做变换（覆盖或倍率），求解器本身不感知日历语义。
package rules

import (
	"math"

	"github.com/paiban/banbiao/pkg/canon"
)

// Mode 规则模式
type Mode string

const (
	// ModeOverride 直接覆盖需求人数
	ModeOverride Mode = "override"
	// ModeMultiplier 按倍率放大需求人数（向上取整）
	ModeMultiplier Mode = "multiplier"
)

// Adjustment 一条已展开的规则：SpecialDay 与 EventRule 连接后的视图
// Location 为空串表示通配（当日该租户所有地点生效）。
// 调用方须按创建顺序传入。
type Adjustment struct {
	Date                    string
	Location                string
	Mode                    Mode
	Value                   float64
	NeedsExperiencedDefault bool
	MinDemand               *int
	MaxDemand               *int
}

// Matches 判断规则是否命中条目
func (a Adjustment) Matches(item canon.DayItem) bool {
	if a.Date != item.Date {
		return false
	}
	return a.Location == "" || a.Location == item.Location
}

// Apply 对条目列表应用规则，返回新列表，不修改原条目
// 应用顺序：先通配规则，再精确地点规则；同类按传入（创建）顺序。
func Apply(items []canon.DayItem, adjustments []Adjustment) []canon.DayItem {
	out := make([]canon.DayItem, len(items))
	for i, item := range items {
		out[i] = applyOne(item, adjustments)
	}
	return out
}

func applyOne(item canon.DayItem, adjustments []Adjustment) canon.DayItem {
	d := item.Demand
	needsExp := item.NeedsExperienced

	for _, wildcard := range []bool{true, false} {
		for _, a := range adjustments {
			if (a.Location == "") != wildcard || !a.Matches(item) {
				continue
			}
			switch a.Mode {
			case ModeOverride:
				d = int(math.Round(a.Value))
			case ModeMultiplier:
				d = int(math.Ceil(float64(d) * a.Value))
			}
			if a.MinDemand != nil && d < *a.MinDemand {
				d = *a.MinDemand
			}
			if a.MaxDemand != nil && d > *a.MaxDemand {
				d = *a.MaxDemand
			}
			if a.NeedsExperiencedDefault {
				needsExp = true
			}
		}
	}

	if d < 0 {
		d = 0
	}
	item.Demand = d
	item.NeedsExperienced = needsExp
	return item
}
