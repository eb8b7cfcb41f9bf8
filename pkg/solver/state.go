package solver

// state 一个候选解及其增量维护的统计量
type state struct {
	m *model
	// assigned[e][i] 员工 e 是否指派到切片 i
	assigned [][]bool
	// sliceCount / sliceExpCount 每个切片的指派人数与其中有经验的人数
	sliceCount    []int
	sliceExpCount []int
	// shiftEmpSlices[s][e] 员工 e 在班次 s 内被指派的切片数
	shiftEmpSlices [][]int
	// shiftEmpCount 每个班次的去重指派人数
	shiftEmpCount []int
	// totMinutes 每名员工的总指派分钟数
	totMinutes []int
	// objective 当前目标值
	objective int64
}

func newState(m *model) *state {
	s := &state{
		m:              m,
		assigned:       make([][]bool, len(m.employees)),
		sliceCount:     make([]int, len(m.slices)),
		sliceExpCount:  make([]int, len(m.slices)),
		shiftEmpSlices: make([][]int, len(m.shifts)),
		shiftEmpCount:  make([]int, len(m.shifts)),
		totMinutes:     make([]int, len(m.employees)),
	}
	for e := range m.employees {
		s.assigned[e] = make([]bool, len(m.slices))
	}
	for si := range m.shifts {
		s.shiftEmpSlices[si] = make([]int, len(m.employees))
	}
	// 初始目标：所有切片全部欠覆盖，所有员工工时为零
	for _, sl := range m.slices {
		s.objective += 1000 * int64(sl.demand)
	}
	for _, emp := range m.employees {
		s.objective += int64(60 * emp.hoursMin)
	}
	return s
}

// clone 深拷贝
func (s *state) clone() *state {
	c := &state{
		m:              s.m,
		assigned:       make([][]bool, len(s.assigned)),
		sliceCount:     append([]int(nil), s.sliceCount...),
		sliceExpCount:  append([]int(nil), s.sliceExpCount...),
		shiftEmpSlices: make([][]int, len(s.shiftEmpSlices)),
		shiftEmpCount:  append([]int(nil), s.shiftEmpCount...),
		totMinutes:     append([]int(nil), s.totMinutes...),
		objective:      s.objective,
	}
	for e := range s.assigned {
		c.assigned[e] = append([]bool(nil), s.assigned[e]...)
	}
	for si := range s.shiftEmpSlices {
		c.shiftEmpSlices[si] = append([]int(nil), s.shiftEmpSlices[si]...)
	}
	return c
}

// hoursPenalty 员工当前工时的松弛代价：10×超时分钟 + 1×欠时分钟
func (s *state) hoursPenalty(e int, tot int) int64 {
	emp := s.m.employees[e]
	var p int64
	if over := tot - 60*emp.hoursMax; over > 0 {
		p += 10 * int64(over)
	}
	if under := 60*emp.hoursMin - tot; under > 0 {
		p += int64(under)
	}
	return p
}

// underCoverage 切片欠覆盖人数（预指派可能超出需求，计为零）
func underCoverage(demand, count int) int64 {
	if count >= demand {
		return 0
	}
	return int64(demand - count)
}

// canAssign 判断指派 (e, i) 是否满足全部硬约束
func (s *state) canAssign(e, i int) bool {
	if !s.m.allowed[e][i] || s.assigned[e][i] {
		return false
	}
	sl := s.m.slices[i]

	// 切片人数上限
	if s.sliceCount[i] >= sl.demand {
		return false
	}

	// 班次去重人数上限
	if s.shiftEmpSlices[sl.shiftIdx][e] == 0 && s.shiftEmpCount[sl.shiftIdx] >= sl.demand {
		return false
	}

	// 经验要求：被排上的切片必须至少有一名有经验员工
	if sl.needsExperienced && s.sliceCount[i] == 0 && !s.m.employees[e].experienced {
		return false
	}

	// 同日不重叠：与其他重叠班次内已指派切片逐一比对
	for si2 := range s.m.shifts {
		if si2 == sl.shiftIdx || !s.m.overlapping[[2]int{sl.shiftIdx, si2}] {
			continue
		}
		if s.shiftEmpSlices[si2][e] == 0 {
			continue
		}
		for _, j := range s.m.shiftSlices[si2] {
			if s.assigned[e][j] {
				sl2 := s.m.slices[j]
				if sl.start < sl2.end && sl2.start < sl.end {
					return false
				}
			}
		}
	}
	return true
}

// canUnassign 判断撤销指派 (e, i) 是否保持约束成立
func (s *state) canUnassign(e, i int) bool {
	if !s.assigned[e][i] || s.m.forced[e][i] {
		return false
	}
	sl := s.m.slices[i]
	// 撤销后若切片仍被排上且失去所有有经验员工，则不允许
	if sl.needsExperienced && s.m.employees[e].experienced &&
		s.sliceExpCount[i] == 1 && s.sliceCount[i] > 1 {
		return false
	}
	return true
}

// assign 执行指派并增量更新目标值
func (s *state) assign(e, i int) {
	sl := s.m.slices[i]
	before := underCoverage(sl.demand, s.sliceCount[i])
	oldTot := s.totMinutes[e]

	s.assigned[e][i] = true
	s.sliceCount[i]++
	if s.m.employees[e].experienced {
		s.sliceExpCount[i]++
	}
	if s.shiftEmpSlices[sl.shiftIdx][e] == 0 {
		s.shiftEmpCount[sl.shiftIdx]++
	}
	s.shiftEmpSlices[sl.shiftIdx][e]++
	s.totMinutes[e] += sl.duration()

	after := underCoverage(sl.demand, s.sliceCount[i])
	s.objective += 1000 * (after - before)
	s.objective += s.hoursPenalty(e, s.totMinutes[e]) - s.hoursPenalty(e, oldTot)
}

// unassign 撤销指派并增量更新目标值
func (s *state) unassign(e, i int) {
	sl := s.m.slices[i]
	before := underCoverage(sl.demand, s.sliceCount[i])
	oldTot := s.totMinutes[e]

	s.assigned[e][i] = false
	s.sliceCount[i]--
	if s.m.employees[e].experienced {
		s.sliceExpCount[i]--
	}
	s.shiftEmpSlices[sl.shiftIdx][e]--
	if s.shiftEmpSlices[sl.shiftIdx][e] == 0 {
		s.shiftEmpCount[sl.shiftIdx]--
	}
	s.totMinutes[e] -= sl.duration()

	after := underCoverage(sl.demand, s.sliceCount[i])
	s.objective += 1000 * (after - before)
	s.objective += s.hoursPenalty(e, s.totMinutes[e]) - s.hoursPenalty(e, oldTot)
}

// assignDelta 预估指派 (e, i) 带来的目标值变化
func (s *state) assignDelta(e, i int) int64 {
	sl := s.m.slices[i]
	before := underCoverage(sl.demand, s.sliceCount[i])
	after := underCoverage(sl.demand, s.sliceCount[i]+1)
	delta := 1000 * (after - before)
	delta += s.hoursPenalty(e, s.totMinutes[e]+sl.duration()) - s.hoursPenalty(e, s.totMinutes[e])
	return delta
}
