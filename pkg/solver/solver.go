package solver

import (
	"context"
	"time"

	"github.com/paiban/banbiao/pkg/logger"
)

// Solver 切片排班求解器
type Solver struct {
	opts Options
	cfg  searchConfig
	log  *logger.SolverLogger
}

// New 创建求解器
func New(opts Options) *Solver {
	if opts.TimeLimit <= 0 {
		opts.TimeLimit = DefaultOptions().TimeLimit
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultOptions().Workers
	}
	if opts.Seed == 0 {
		opts.Seed = DefaultOptions().Seed
	}
	return &Solver{
		opts: opts,
		cfg:  defaultSearchConfig(),
		log:  logger.NewSolverLogger(),
	}
}

// Solve 求解一次排班
// 贪心构造初始解，再在剩余时间内做局部搜索；超时返回当前最优解。
func (s *Solver) Solve(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()
	deadline := start.Add(s.opts.TimeLimit)

	m := buildModel(in)
	s.log.StartSolve(len(m.employees), len(m.shifts), len(m.slices))

	if len(m.slices) == 0 {
		res := composeResult(newState(m))
		res.Duration = time.Since(start)
		return res, nil
	}

	best := construct(m)
	if best.objective > 0 && time.Now().Before(deadline) {
		best = parallelSearch(ctx, best, s.opts.Workers, s.opts.Seed, deadline, s.cfg)
	}

	res := composeResult(best)
	res.Duration = time.Since(start)
	if time.Now().After(deadline) {
		res.TimedOut = true
		s.log.TimeLimitReached(s.opts.TimeLimit, res.Objective)
	}
	s.log.SolveComplete(res.Duration, res.Objective, res.TotalMissingMinutes)
	return res, nil
}
