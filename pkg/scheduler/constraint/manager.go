// Package constraint 定义约束接口和管理器
package constraint

import (
	"sort"
	"sync"
	"time"

	"github.com/canpai/canpai/pkg/logger"
	"github.com/canpai/canpai/pkg/model"
)

// Manager 约束管理器
type Manager struct {
	constraints []Constraint
	mu          sync.RWMutex
	logger      *logger.SchedulerLogger
}

// NewManager 创建约束管理器
func NewManager() *Manager {
	return &Manager{
		constraints: make([]Constraint, 0),
		logger:      logger.NewSchedulerLogger(),
	}
}

// Register 注册约束，同类型约束被替换
func (m *Manager) Register(c Constraint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.constraints {
		if existing.Type() == c.Type() {
			m.constraints[i] = c
			return
		}
	}

	m.constraints = append(m.constraints, c)

	// 硬约束在前，权重高的在前
	sort.Slice(m.constraints, func(i, j int) bool {
		ci, cj := m.constraints[i], m.constraints[j]
		if ci.Category() != cj.Category() {
			return ci.Category() == CategoryHard
		}
		return ci.Weight() > cj.Weight()
	})
}

// Unregister 注销约束
func (m *Manager) Unregister(t model.ConstraintType) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, c := range m.constraints {
		if c.Type() == t {
			m.constraints = append(m.constraints[:i], m.constraints[i+1:]...)
			return
		}
	}
}

// GetConstraint 获取约束
func (m *Manager) GetConstraint(t model.ConstraintType) Constraint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.constraints {
		if c.Type() == t {
			return c
		}
	}
	return nil
}

// GetByCategory 按类别获取约束
func (m *Manager) GetByCategory(cat Category) []Constraint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Constraint
	for _, c := range m.constraints {
		if c.Category() == cat {
			result = append(result, c)
		}
	}
	return result
}

// snapshot 复制当前约束列表
func (m *Manager) snapshot() []Constraint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	constraints := make([]Constraint, len(m.constraints))
	copy(constraints, m.constraints)
	return constraints
}

// Evaluate 评估所有约束
func (m *Manager) Evaluate(ctx *Context) *Result {
	constraints := m.snapshot()

	result := &Result{
		IsValid:        true,
		HardViolations: make([]ViolationDetail, 0),
		SoftViolations: make([]ViolationDetail, 0),
	}

	maxPenalty := 0
	for _, c := range constraints {
		valid, penalty, details := c.Evaluate(ctx)
		maxPenalty += c.Weight() * 100

		if valid && penalty == 0 {
			continue
		}
		result.TotalPenalty += penalty

		for _, d := range details {
			if c.Category() == CategoryHard {
				result.IsValid = false
				result.HardViolations = append(result.HardViolations, d)
				m.logger.ConstraintViolation(c.Name(), d.Message)
			} else {
				result.SoftViolations = append(result.SoftViolations, d)
			}
		}
	}

	result.CalculateScore(maxPenalty)
	return result
}

// EvaluateHard 仅评估硬约束
func (m *Manager) EvaluateHard(ctx *Context) (bool, []ViolationDetail) {
	var violations []ViolationDetail
	for _, c := range m.GetByCategory(CategoryHard) {
		if valid, _, details := c.Evaluate(ctx); !valid {
			violations = append(violations, details...)
		}
	}
	return len(violations) == 0, violations
}

// EvaluateAssignment 评估单个分配
func (m *Manager) EvaluateAssignment(ctx *Context, a *model.DraftAssignment) (bool, int, []ViolationDetail) {
	constraints := m.snapshot()

	var violations []ViolationDetail
	totalPenalty := 0
	isValid := true

	for _, c := range constraints {
		valid, penalty, details := c.EvaluateAssignment(ctx, a)
		if valid && penalty == 0 {
			continue
		}
		totalPenalty += penalty
		violations = append(violations, details...)
		if !valid && c.Category() == CategoryHard {
			isValid = false
		}
	}

	return isValid, totalPenalty, violations
}

// CanAssign 检查分配是否通过全部硬约束
func (m *Manager) CanAssign(ctx *Context, a *model.DraftAssignment) (bool, []ViolationDetail) {
	var violations []ViolationDetail
	for _, c := range m.GetByCategory(CategoryHard) {
		if valid, _, details := c.EvaluateAssignment(ctx, a); !valid {
			violations = append(violations, details...)
		}
	}
	return len(violations) == 0, violations
}

// SoftPenalty 计算分配的软约束惩罚值
func (m *Manager) SoftPenalty(ctx *Context, a *model.DraftAssignment) int {
	penalty := 0
	for _, c := range m.GetByCategory(CategorySoft) {
		_, p, _ := c.EvaluateAssignment(ctx, a)
		penalty += p
	}
	return penalty
}

// Clear 清除所有约束
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.constraints = make([]Constraint, 0)
}

// Count 返回约束数量
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.constraints)
}

// Summary 返回约束摘要
func (m *Manager) Summary() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hard, soft := 0, 0
	for _, c := range m.constraints {
		if c.Category() == CategoryHard {
			hard++
		} else {
			soft++
		}
	}

	return map[string]interface{}{
		"total": len(m.constraints),
		"hard":  hard,
		"soft":  soft,
	}
}

// previousDate 获取前一天日期
func previousDate(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format("2006-01-02")
}

// nextDate 获取后一天日期
func nextDate(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, 1).Format("2006-01-02")
}
