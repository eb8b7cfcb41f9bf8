package solver

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// searchConfig 局部搜索参数
type searchConfig struct {
	initialTemp      float64
	coolingRate      float64
	plateauThreshold int
	checkInterval    int
}

func defaultSearchConfig() searchConfig {
	return searchConfig{
		initialTemp:      2000.0,
		coolingRate:      0.999,
		plateauThreshold: 5000,
		checkInterval:    256,
	}
}

// localSearch 模拟退火局部搜索
// 在时间上限内对当前解做随机增删/换人移动，硬约束在移动生成时保持。
func localSearch(ctx context.Context, initial *state, seed int64, deadline time.Time, cfg searchConfig) *state {
	current := initial.clone()
	best := current.clone()
	rng := rand.New(rand.NewSource(seed))

	temperature := cfg.initialTemp
	noImprovement := 0

	for iter := 0; ; iter++ {
		if iter%cfg.checkInterval == 0 {
			if ctx.Err() != nil || time.Now().After(deadline) {
				break
			}
		}
		if cfg.plateauThreshold > 0 && noImprovement >= cfg.plateauThreshold {
			break
		}

		before := current.objective
		move := applyRandomMove(current, rng)
		if move == nil {
			noImprovement++
			continue
		}

		delta := current.objective - before
		if delta > 0 && rng.Float64() >= math.Exp(-float64(delta)/temperature) {
			move.undo(current)
		} else if current.objective < best.objective {
			best = current.clone()
			noImprovement = 0
			continue
		}
		noImprovement++
		temperature *= cfg.coolingRate
		if temperature < 1 {
			temperature = 1
		}
	}
	return best
}

// appliedMove 已执行的移动，可撤销
type appliedMove struct {
	added   [][2]int
	removed [][2]int
}

func (mv *appliedMove) undo(s *state) {
	for _, p := range mv.added {
		s.unassign(p[0], p[1])
	}
	for _, p := range mv.removed {
		s.assign(p[0], p[1])
	}
}

// applyRandomMove 生成并执行一个随机可行移动，失败返回 nil
func applyRandomMove(s *state, rng *rand.Rand) *appliedMove {
	if len(s.m.slices) == 0 || len(s.m.employees) == 0 {
		return nil
	}
	switch rng.Intn(3) {
	case 0:
		return tryAdd(s, rng)
	case 1:
		return tryRemove(s, rng)
	default:
		return trySwap(s, rng)
	}
}

// tryAdd 随机补一个指派
func tryAdd(s *state, rng *rand.Rand) *appliedMove {
	for attempt := 0; attempt < 8; attempt++ {
		i := rng.Intn(len(s.m.slices))
		e := rng.Intn(len(s.m.employees))
		if s.canAssign(e, i) {
			s.assign(e, i)
			return &appliedMove{added: [][2]int{{e, i}}}
		}
	}
	return nil
}

// tryRemove 随机撤一个指派
func tryRemove(s *state, rng *rand.Rand) *appliedMove {
	for attempt := 0; attempt < 8; attempt++ {
		i := rng.Intn(len(s.m.slices))
		e := rng.Intn(len(s.m.employees))
		if s.canUnassign(e, i) {
			s.unassign(e, i)
			return &appliedMove{removed: [][2]int{{e, i}}}
		}
	}
	return nil
}

// trySwap 在同一切片上换人
func trySwap(s *state, rng *rand.Rand) *appliedMove {
	for attempt := 0; attempt < 8; attempt++ {
		i := rng.Intn(len(s.m.slices))
		out := rng.Intn(len(s.m.employees))
		if !s.canUnassign(out, i) {
			continue
		}
		s.unassign(out, i)
		in := rng.Intn(len(s.m.employees))
		if in != out && s.canAssign(in, i) {
			s.assign(in, i)
			return &appliedMove{added: [][2]int{{in, i}}, removed: [][2]int{{out, i}}}
		}
		s.assign(out, i)
	}
	return nil
}

// parallelSearch 多个带种子的搜索协程并行寻优，返回目标值最小的解
// 目标值相同取序号最小的协程结果，保证可复现。
func parallelSearch(ctx context.Context, initial *state, workers int, seed int64, deadline time.Time, cfg searchConfig) *state {
	if workers <= 1 {
		return localSearch(ctx, initial, seed, deadline, cfg)
	}

	results := make([]*state, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			results[w] = localSearch(ctx, initial, seed+int64(w), deadline, cfg)
		}(w)
	}
	wg.Wait()

	best := results[0]
	for _, r := range results[1:] {
		if r.objective < best.objective {
			best = r
		}
	}
	return best
}
