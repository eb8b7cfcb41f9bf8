package solver

import (
	"sort"

	"github.com/paiban/banbiao/pkg/timeslot"
)

// composeResult 从最终解组装对外结果
func composeResult(s *state) *Result {
	m := s.m
	res := &Result{
		Shifts:       make([]ShiftResult, 0, len(m.shifts)),
		HoursSummary: make(map[string]HoursSummary),
	}

	for si, shift := range m.shifts {
		sr := ShiftResult{
			Shift:            shift,
			Date:             shift.Date,
			Location:         shift.Location,
			Start:            timeslot.FromMinutes(shift.Start),
			End:              timeslot.FromMinutes(shift.End),
			Demand:           shift.Demand,
			NeedsExperienced: shift.NeedsExperienced,
		}

		// 去重指派员工，按ID升序
		var empIdxs []int
		for e := range m.employees {
			if s.shiftEmpSlices[si][e] > 0 {
				empIdxs = append(empIdxs, e)
			}
		}
		sort.Slice(empIdxs, func(a, b int) bool {
			return m.employees[empIdxs[a]].id < m.employees[empIdxs[b]].id
		})
		for _, e := range empIdxs {
			sr.AssignedEmployees = append(sr.AssignedEmployees, m.employees[e].id)
			sr.AssignedDetail = append(sr.AssignedDetail, composeDetail(s, si, e))
		}

		sr.MissingSegments = composeMissing(s, si)
		for _, i := range m.shiftSlices[si] {
			sl := m.slices[i]
			if missing := sl.demand - s.sliceCount[i]; missing > 0 {
				sr.MissingMinutes += missing * sl.duration()
			}
		}

		res.TotalAssigned += len(sr.AssignedEmployees)
		res.TotalMissingMinutes += sr.MissingMinutes
		if sr.MissingMinutes > 0 {
			res.Uncovered = append(res.Uncovered, sr)
		}
		res.Shifts = append(res.Shifts, sr)
	}

	for e, emp := range m.employees {
		tot := s.totMinutes[e]
		hs := HoursSummary{
			TotalHours:  float64(tot) / 60.0,
			HoursMin:    emp.hoursMin,
			HoursMax:    emp.hoursMax,
			Experienced: emp.experienced,
		}
		if over := tot - 60*emp.hoursMax; over > 0 {
			hs.OverHours = float64(over) / 60.0
		}
		if under := 60*emp.hoursMin - tot; under > 0 {
			hs.UnderHours = float64(under) / 60.0
		}
		res.HoursSummary[emp.id] = hs
	}

	res.Objective = s.objective
	return res
}

// composeDetail 合并员工在班次内的连续切片为时间段
func composeDetail(s *state, si, e int) EmployeeAssignment {
	m := s.m
	detail := EmployeeAssignment{EmployeeID: m.employees[e].id}

	var cur *Segment
	var curEnd int
	first, last := -1, -1
	for _, i := range m.shiftSlices[si] {
		if !s.assigned[e][i] {
			cur = nil
			continue
		}
		sl := m.slices[i]
		if first < 0 {
			first = sl.start
		}
		last = sl.end
		detail.Minutes += sl.duration()
		if cur != nil && curEnd == sl.start {
			cur.End = timeslot.FromMinutes(sl.end)
			cur.Minutes += sl.duration()
			curEnd = sl.end
			continue
		}
		detail.Segments = append(detail.Segments, Segment{
			Start:   timeslot.FromMinutes(sl.start),
			End:     timeslot.FromMinutes(sl.end),
			Minutes: sl.duration(),
		})
		cur = &detail.Segments[len(detail.Segments)-1]
		curEnd = sl.end
	}
	if first >= 0 {
		detail.Start = timeslot.FromMinutes(first)
		detail.End = timeslot.FromMinutes(last)
	}
	return detail
}

// composeMissing 合并欠覆盖切片，缺口人数相同且连续的切片并为一段
func composeMissing(s *state, si int) []MissingSegment {
	m := s.m
	var out []MissingSegment
	var cur *MissingSegment
	var curEnd, curMissing int
	for _, i := range m.shiftSlices[si] {
		sl := m.slices[i]
		missing := sl.demand - s.sliceCount[i]
		if missing <= 0 {
			cur = nil
			continue
		}
		if cur != nil && curEnd == sl.start && curMissing == missing {
			cur.End = timeslot.FromMinutes(sl.end)
			cur.MissingMinutes += missing * sl.duration()
			curEnd = sl.end
			continue
		}
		out = append(out, MissingSegment{
			Start:          timeslot.FromMinutes(sl.start),
			End:            timeslot.FromMinutes(sl.end),
			Missing:        missing,
			MissingMinutes: missing * sl.duration(),
		})
		cur = &out[len(out)-1]
		curEnd = sl.end
		curMissing = missing
	}
	return out
}
