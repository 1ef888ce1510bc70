package solver

import (
	"context"
	"sort"
	"sync"

	"github.com/canpai/canpai/pkg/model"
	"github.com/canpai/canpai/pkg/scheduler/constraint"
	"github.com/canpai/canpai/pkg/scheduler/scoring"
)

// scoredCandidate 带评分的候选员工
type scoredCandidate struct {
	staff   *model.Staff
	score   float64
	factors []model.Factor
}

// parallelScorer 并行候选评分器
// 工作协程按下标写入结果切片，排序后输出与并发无关的确定顺序
type parallelScorer struct {
	workers int
	scorer  scoring.Scorer
}

// newParallelScorer 创建并行评分器
func newParallelScorer(workers int, scorer scoring.Scorer) *parallelScorer {
	if workers <= 0 {
		workers = 4
	}
	return &parallelScorer{
		workers: workers,
		scorer:  scorer,
	}
}

// scoreCandidates 并行评分候选池
// 结果按评分降序排列，评分相同时按员工 ID 升序保证确定性
func (p *parallelScorer) scoreCandidates(ctx context.Context, schedCtx *constraint.Context, pool []*model.Staff, shift *model.Shift) []scoredCandidate {
	if len(pool) == 0 {
		return nil
	}

	results := make([]scoredCandidate, len(pool))
	jobChan := make(chan int, len(pool))

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobChan {
				select {
				case <-ctx.Done():
					return
				default:
					staff := pool[idx]
					score, factors := p.scorer.Score(schedCtx, staff, shift)
					results[idx] = scoredCandidate{staff: staff, score: score, factors: factors}
				}
			}
		}()
	}

	for i := range pool {
		jobChan <- i
	}
	close(jobChan)
	wg.Wait()

	// 超时中断的槽位 staff 为空，剔除
	filtered := results[:0]
	for _, r := range results {
		if r.staff != nil {
			filtered = append(filtered, r)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].score != filtered[j].score {
			return filtered[i].score > filtered[j].score
		}
		return filtered[i].staff.ID.String() < filtered[j].staff.ID.String()
	})
	return filtered
}
