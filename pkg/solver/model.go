package solver

import (
	"sort"

	"github.com/paiban/banbiao/pkg/timeslot"
)

// employee 合并同一员工一周内的可用性记录后的内部视图
type employee struct {
	id          string
	experienced bool
	hoursMin    int
	hoursMax    int
	// slotsByDate 每天的可用时段（分钟区间）
	slotsByDate map[string][]Interval
	// preassign 确认的预指派
	preassign []PreAssignment
}

// slice 原始班次的一个时间切片
type slice struct {
	shiftIdx         int
	date             string
	start            int
	end              int
	demand           int
	needsExperienced bool
}

func (sl slice) duration() int {
	return sl.end - sl.start
}

// model 展开后的求解模型
type model struct {
	employees []employee
	shifts    []Shift
	slices    []slice
	// shiftSlices 每个班次的切片全局下标
	shiftSlices [][]int
	// allowed[e][i] 员工 e 是否可以被指派到切片 i
	allowed [][]bool
	// forced 预指派强制的 (员工, 切片) 对
	forced [][]bool
	// overlapping 同日时间重叠的班次对（不含自身）
	overlapping map[[2]int]bool
}

// buildModel 展开输入为切片模型
func buildModel(in Input) *model {
	m := &model{
		shifts:      in.Shifts,
		overlapping: make(map[[2]int]bool),
	}
	m.employees = mergeEmployees(in.Availabilities)

	for si, s := range in.Shifts {
		var idxs []int
		for _, pair := range timeslot.Slices(s.Start, s.End) {
			idxs = append(idxs, len(m.slices))
			m.slices = append(m.slices, slice{
				shiftIdx:         si,
				date:             s.Date,
				start:            pair[0],
				end:              pair[1],
				demand:           s.Demand,
				needsExperienced: s.NeedsExperienced,
			})
		}
		m.shiftSlices = append(m.shiftSlices, idxs)
	}

	for i := range in.Shifts {
		for j := i + 1; j < len(in.Shifts); j++ {
			a, b := in.Shifts[i], in.Shifts[j]
			if a.Date == b.Date && timeslot.Overlaps(a.Start, a.End, b.Start, b.End) {
				m.overlapping[[2]int{i, j}] = true
				m.overlapping[[2]int{j, i}] = true
			}
		}
	}

	m.allowed = make([][]bool, len(m.employees))
	m.forced = make([][]bool, len(m.employees))
	for ei, emp := range m.employees {
		m.allowed[ei] = make([]bool, len(m.slices))
		m.forced[ei] = make([]bool, len(m.slices))
		for si, s := range in.Shifts {
			pre := emp.preassignedTo(s)
			for _, i := range m.shiftSlices[si] {
				sl := m.slices[i]
				if pre {
					m.allowed[ei][i] = true
					m.forced[ei][i] = true
					continue
				}
				for _, slot := range emp.slotsByDate[sl.date] {
					if timeslot.Contains(slot.Start, slot.End, sl.start, sl.end) {
						m.allowed[ei][i] = true
						break
					}
				}
			}
		}
	}
	return m
}

// preassignedTo 判断员工是否被确认预指派到该班次（字段完全一致）
func (e employee) preassignedTo(s Shift) bool {
	for _, p := range e.preassign {
		if p.Date == s.Date && p.Location == s.Location && p.Start == s.Start && p.End == s.End {
			return true
		}
	}
	return false
}

// mergeEmployees 合并同一员工的跨日记录
// 工时带在一周内收紧：下限取最大值，上限取最小值；经验标记取并集。
func mergeEmployees(avails []Availability) []employee {
	byID := make(map[string]*employee)
	var order []string
	for _, a := range avails {
		emp, ok := byID[a.EmployeeID]
		if !ok {
			emp = &employee{
				id:          a.EmployeeID,
				hoursMin:    0,
				hoursMax:    UnboundedHours,
				slotsByDate: make(map[string][]Interval),
			}
			byID[a.EmployeeID] = emp
			order = append(order, a.EmployeeID)
		}
		if a.Experienced {
			emp.experienced = true
		}
		if a.HoursMin > emp.hoursMin {
			emp.hoursMin = a.HoursMin
		}
		hmax := a.HoursMax
		if hmax <= 0 {
			hmax = UnboundedHours
		}
		if hmax < emp.hoursMax {
			emp.hoursMax = hmax
		}
		emp.slotsByDate[a.Date] = append(emp.slotsByDate[a.Date], a.Slots...)
		if a.AssignedShift != nil {
			emp.preassign = append(emp.preassign, *a.AssignedShift)
		}
	}

	out := make([]employee, 0, len(order))
	sort.Strings(order)
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}
