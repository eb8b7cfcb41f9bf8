package solver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/banbiao/pkg/timeslot"
)

func testOptions() Options {
	return Options{TimeLimit: 2 * time.Second, Workers: 1, Seed: 1}
}

func avail(id, date string, exp bool, hMin, hMax int, slots ...Interval) Availability {
	return Availability{
		EmployeeID:  id,
		Date:        date,
		Experienced: exp,
		HoursMin:    hMin,
		HoursMax:    hMax,
		Slots:       slots,
	}
}

func TestSolve_PerfectMatch(t *testing.T) {
	in := Input{
		Availabilities: []Availability{
			avail("e1", "2026-03-02", false, 0, 40, Interval{Start: 480, End: 720}),
		},
		Shifts: []Shift{
			{Date: "2026-03-02", Start: 480, End: 720, Demand: 1},
		},
	}

	res, err := New(testOptions()).Solve(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, res.Shifts, 1)

	sr := res.Shifts[0]
	assert.Equal(t, []string{"e1"}, sr.AssignedEmployees)
	assert.Equal(t, 0, sr.MissingMinutes)
	assert.Empty(t, res.Uncovered)
	assert.Equal(t, int64(0), res.Objective)
	assert.Equal(t, "08:00", sr.Start)
	assert.Equal(t, "12:00", sr.End)

	hs := res.HoursSummary["e1"]
	assert.InDelta(t, 4.0, hs.TotalHours, 1e-9)
}

func TestSolve_InsufficientStaff(t *testing.T) {
	// 需求5人只有2人：欠3人 × 240分钟 = 720
	in := Input{
		Availabilities: []Availability{
			avail("e1", "2026-03-02", false, 0, 40, Interval{Start: 480, End: 720}),
			avail("e2", "2026-03-02", false, 0, 40, Interval{Start: 480, End: 720}),
		},
		Shifts: []Shift{
			{Date: "2026-03-02", Start: 480, End: 720, Demand: 5},
		},
	}

	res, err := New(testOptions()).Solve(context.Background(), in)
	require.NoError(t, err)

	sr := res.Shifts[0]
	assert.ElementsMatch(t, []string{"e1", "e2"}, sr.AssignedEmployees)
	assert.Equal(t, 720, sr.MissingMinutes)
	assert.Equal(t, 720, res.TotalMissingMinutes)
	require.Len(t, res.Uncovered, 1)
	require.Len(t, sr.MissingSegments, 1)
	assert.Equal(t, 3, sr.MissingSegments[0].Missing)
	assert.Equal(t, "08:00", sr.MissingSegments[0].Start)
	assert.Equal(t, "12:00", sr.MissingSegments[0].End)
}

func TestSolve_DisjointAvailability(t *testing.T) {
	// 员工只在下午可用，班次在上午：完全无法覆盖
	in := Input{
		Availabilities: []Availability{
			avail("e1", "2026-03-02", false, 0, 40, Interval{Start: 840, End: 1080}),
		},
		Shifts: []Shift{
			{Date: "2026-03-02", Start: 480, End: 720, Demand: 1},
		},
	}

	res, err := New(testOptions()).Solve(context.Background(), in)
	require.NoError(t, err)

	sr := res.Shifts[0]
	assert.Empty(t, sr.AssignedEmployees)
	assert.Equal(t, 240, sr.MissingMinutes)
}

func TestSolve_ExperienceRequired(t *testing.T) {
	// 需要经验的班次，唯一候选人无经验：不得指派
	in := Input{
		Availabilities: []Availability{
			avail("e1", "2026-03-02", false, 0, 40, Interval{Start: 480, End: 720}),
		},
		Shifts: []Shift{
			{Date: "2026-03-02", Start: 480, End: 720, Demand: 1, NeedsExperienced: true},
		},
	}

	res, err := New(testOptions()).Solve(context.Background(), in)
	require.NoError(t, err)

	sr := res.Shifts[0]
	assert.Empty(t, sr.AssignedEmployees)
	assert.Equal(t, 240, sr.MissingMinutes)
}

func TestSolve_ExperiencedFirstThenOthers(t *testing.T) {
	// 有经验的员工入场后，无经验员工可以补足剩余人数
	in := Input{
		Availabilities: []Availability{
			avail("e1", "2026-03-02", true, 0, 40, Interval{Start: 480, End: 720}),
			avail("e2", "2026-03-02", false, 0, 40, Interval{Start: 480, End: 720}),
		},
		Shifts: []Shift{
			{Date: "2026-03-02", Start: 480, End: 720, Demand: 2, NeedsExperienced: true},
		},
	}

	res, err := New(testOptions()).Solve(context.Background(), in)
	require.NoError(t, err)

	sr := res.Shifts[0]
	assert.ElementsMatch(t, []string{"e1", "e2"}, sr.AssignedEmployees)
	assert.Equal(t, 0, sr.MissingMinutes)
}

func TestSolve_PartialCoverage(t *testing.T) {
	// 员工只覆盖班次前半段
	in := Input{
		Availabilities: []Availability{
			avail("e1", "2026-03-02", false, 0, 40, Interval{Start: 480, End: 600}),
		},
		Shifts: []Shift{
			{Date: "2026-03-02", Start: 480, End: 720, Demand: 1},
		},
	}

	res, err := New(testOptions()).Solve(context.Background(), in)
	require.NoError(t, err)

	sr := res.Shifts[0]
	require.Equal(t, []string{"e1"}, sr.AssignedEmployees)
	assert.Equal(t, 120, sr.MissingMinutes)

	require.Len(t, sr.AssignedDetail, 1)
	detail := sr.AssignedDetail[0]
	assert.Equal(t, "08:00", detail.Start)
	assert.Equal(t, "10:00", detail.End)
	assert.Equal(t, 120, detail.Minutes)
	require.Len(t, detail.Segments, 1)

	require.Len(t, sr.MissingSegments, 1)
	assert.Equal(t, "10:00", sr.MissingSegments[0].Start)
	assert.Equal(t, "12:00", sr.MissingSegments[0].End)
}

func TestSolve_NonOverlapSameDay(t *testing.T) {
	// 同一员工同日重叠班次只能占一个
	in := Input{
		Availabilities: []Availability{
			avail("e1", "2026-03-02", false, 0, 40, Interval{Start: 480, End: 960}),
		},
		Shifts: []Shift{
			{Date: "2026-03-02", Start: 480, End: 720, Demand: 1},
			{Date: "2026-03-02", Start: 600, End: 840, Demand: 1},
		},
	}

	res, err := New(testOptions()).Solve(context.Background(), in)
	require.NoError(t, err)

	// 员工可以分段覆盖两个班次，但被指派的时间段不得重叠
	type span struct{ start, end int }
	var spans []span
	for _, sr := range res.Shifts {
		for _, detail := range sr.AssignedDetail {
			for _, seg := range detail.Segments {
				s1, err := timeslot.ToMinutes(seg.Start)
				require.NoError(t, err)
				s2, err := timeslot.ToMinutes(seg.End)
				require.NoError(t, err)
				spans = append(spans, span{s1, s2})
			}
		}
	}
	for i := 0; i < len(spans); i++ {
		for j := i + 1; j < len(spans); j++ {
			a, b := spans[i], spans[j]
			assert.False(t, a.start < b.end && b.start < a.end,
				"同一员工的指派时间段不应重叠: %v vs %v", a, b)
		}
	}
	// 600-720 只能覆盖一个班次，总欠覆盖至少120分钟
	assert.GreaterOrEqual(t, res.TotalMissingMinutes, 120)
}

func TestSolve_PreAssignmentForced(t *testing.T) {
	// 已确认的预指派必须保留，即使员工没有匹配的可用时段
	in := Input{
		Availabilities: []Availability{
			{
				EmployeeID:  "e1",
				Date:        "2026-03-02",
				Experienced: false,
				HoursMax:    40,
				AssignedShift: &PreAssignment{
					Date: "2026-03-02", Location: "A", Start: 480, End: 720,
				},
			},
		},
		Shifts: []Shift{
			{Date: "2026-03-02", Location: "A", Start: 480, End: 720, Demand: 1},
		},
	}

	res, err := New(testOptions()).Solve(context.Background(), in)
	require.NoError(t, err)

	sr := res.Shifts[0]
	assert.Equal(t, []string{"e1"}, sr.AssignedEmployees)
	assert.Equal(t, 0, sr.MissingMinutes)
}

func TestSolve_PreAssignmentRequiresExactMatch(t *testing.T) {
	// 预指派时间与班次不完全一致时不生效
	in := Input{
		Availabilities: []Availability{
			{
				EmployeeID: "e1",
				Date:       "2026-03-02",
				HoursMax:   40,
				AssignedShift: &PreAssignment{
					Date: "2026-03-02", Location: "A", Start: 480, End: 690,
				},
			},
		},
		Shifts: []Shift{
			{Date: "2026-03-02", Location: "A", Start: 480, End: 720, Demand: 1},
		},
	}

	res, err := New(testOptions()).Solve(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, res.Shifts[0].AssignedEmployees)
}

func TestSolve_HourBandsTightened(t *testing.T) {
	// 同一员工一周内重复申报的工时上下限取紧
	in := Input{
		Availabilities: []Availability{
			avail("e1", "2026-03-02", false, 10, 30, Interval{Start: 480, End: 720}),
			avail("e1", "2026-03-03", true, 20, 40, Interval{Start: 480, End: 720}),
		},
		Shifts: []Shift{
			{Date: "2026-03-02", Start: 480, End: 720, Demand: 1},
		},
	}

	res, err := New(testOptions()).Solve(context.Background(), in)
	require.NoError(t, err)

	hs, ok := res.HoursSummary["e1"]
	require.True(t, ok)
	assert.Equal(t, 20, hs.HoursMin, "hours_min 取各天最大值")
	assert.Equal(t, 30, hs.HoursMax, "hours_max 取各天最小值")
	assert.True(t, hs.Experienced, "经验标志按 OR 合并")
}

func TestSolve_UnboundedHoursSentinel(t *testing.T) {
	in := Input{
		Availabilities: []Availability{
			avail("e1", "2026-03-02", false, 0, 0, Interval{Start: 480, End: 720}),
		},
		Shifts: []Shift{
			{Date: "2026-03-02", Start: 480, End: 720, Demand: 1},
		},
	}

	res, err := New(testOptions()).Solve(context.Background(), in)
	require.NoError(t, err)

	hs := res.HoursSummary["e1"]
	assert.Equal(t, UnboundedHours, hs.HoursMax)
	assert.Zero(t, hs.OverHours)
}

func TestSolve_Deterministic(t *testing.T) {
	in := Input{
		Availabilities: []Availability{
			avail("e1", "2026-03-02", true, 0, 8, Interval{Start: 480, End: 1080}),
			avail("e2", "2026-03-02", false, 0, 8, Interval{Start: 480, End: 1080}),
			avail("e3", "2026-03-02", false, 0, 8, Interval{Start: 480, End: 1080}),
		},
		Shifts: []Shift{
			{Date: "2026-03-02", Start: 480, End: 720, Demand: 2},
			{Date: "2026-03-02", Start: 840, End: 1080, Demand: 2, NeedsExperienced: true},
		},
	}

	first, err := New(testOptions()).Solve(context.Background(), in)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := New(testOptions()).Solve(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, first.Objective, again.Objective)
		for si := range first.Shifts {
			assert.Equal(t, first.Shifts[si].AssignedEmployees, again.Shifts[si].AssignedEmployees,
				"workers=1 且种子固定时结果应可复现")
		}
	}
}

func TestSolve_EmptyInput(t *testing.T) {
	res, err := New(testOptions()).Solve(context.Background(), Input{})
	require.NoError(t, err)
	assert.Empty(t, res.Shifts)
	assert.Equal(t, int64(0), res.Objective)
}

func TestSolve_ZeroDemandShift(t *testing.T) {
	in := Input{
		Availabilities: []Availability{
			avail("e1", "2026-03-02", false, 0, 40, Interval{Start: 480, End: 720}),
		},
		Shifts: []Shift{
			{Date: "2026-03-02", Start: 480, End: 720, Demand: 0},
		},
	}

	res, err := New(testOptions()).Solve(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, res.Shifts, 1)
	assert.Empty(t, res.Shifts[0].AssignedEmployees)
	assert.Equal(t, 0, res.Shifts[0].MissingMinutes)
}

func TestSolve_ShortTailSlice(t *testing.T) {
	// 末切片不足30分钟：08:00-12:15 共 255 分钟
	in := Input{
		Availabilities: []Availability{
			avail("e1", "2026-03-02", false, 0, 40, Interval{Start: 480, End: 735}),
		},
		Shifts: []Shift{
			{Date: "2026-03-02", Start: 480, End: 735, Demand: 1},
		},
	}

	res, err := New(testOptions()).Solve(context.Background(), in)
	require.NoError(t, err)

	sr := res.Shifts[0]
	assert.Equal(t, []string{"e1"}, sr.AssignedEmployees)
	assert.Equal(t, 0, sr.MissingMinutes)
	require.Len(t, sr.AssignedDetail, 1)
	assert.Equal(t, 255, sr.AssignedDetail[0].Minutes)
}
