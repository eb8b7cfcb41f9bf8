package solver

import (
	"sort"
)

// construct 确定性贪心构造初始解
// 先落实全部预指派，再按 (日期, 开始时间, 班次序) 逐切片填人，
// 每次选取目标值增量最小的候选员工，平手时按 (已排分钟数, 员工ID) 决定。
func construct(m *model) *state {
	s := newState(m)

	// 预指派强制生效
	for e := range m.employees {
		for i := range m.slices {
			if m.forced[e][i] && !s.assigned[e][i] {
				s.assign(e, i)
			}
		}
	}

	order := make([]int, len(m.slices))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		sa, sb := m.slices[order[a]], m.slices[order[b]]
		if sa.date != sb.date {
			return sa.date < sb.date
		}
		if sa.start != sb.start {
			return sa.start < sb.start
		}
		return sa.shiftIdx < sb.shiftIdx
	})

	for _, i := range order {
		sl := m.slices[i]
		for s.sliceCount[i] < sl.demand {
			e := s.pickCandidate(i)
			if e < 0 {
				break
			}
			s.assign(e, i)
		}
	}
	return s
}

// pickCandidate 选出切片 i 的最优候选员工，无候选时返回 -1
func (s *state) pickCandidate(i int) int {
	best := -1
	var bestDelta int64
	for e := range s.m.employees {
		if !s.canAssign(e, i) {
			continue
		}
		delta := s.assignDelta(e, i)
		if best < 0 || delta < bestDelta || (delta == bestDelta && s.lessCandidate(e, best)) {
			best = e
			bestDelta = delta
		}
	}
	return best
}

// lessCandidate 平手裁决：已排分钟数少者优先，再按员工ID
func (s *state) lessCandidate(a, b int) bool {
	if s.totMinutes[a] != s.totMinutes[b] {
		return s.totMinutes[a] < s.totMinutes[b]
	}
	return s.m.employees[a].id < s.m.employees[b].id
}
