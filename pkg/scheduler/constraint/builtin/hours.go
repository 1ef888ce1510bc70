// Package builtin 提供内置约束实现
package builtin

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/canpai/canpai/pkg/model"
	"github.com/canpai/canpai/pkg/scheduler/constraint"
)

// MaxWeeklyHoursConstraint 每周最大工时约束（硬约束）
// 已计划工时 + 已发布历史工时不得超过上限；员工个人上限优先于全局默认
type MaxWeeklyHoursConstraint struct {
	*BaseConstraint
	defaultMax float64
}

// NewMaxWeeklyHoursConstraint 创建每周最大工时约束
func NewMaxWeeklyHoursConstraint(weight int, defaultMax float64) *MaxWeeklyHoursConstraint {
	return &MaxWeeklyHoursConstraint{
		BaseConstraint: NewBaseConstraint(
			"每周最大工时",
			model.ConstraintMaxHours,
			constraint.CategoryHard,
			weight,
		),
		defaultMax: defaultMax,
	}
}

// limitFor 返回员工的有效周工时上限
func (c *MaxWeeklyHoursConstraint) limitFor(staff *model.Staff) float64 {
	if staff.MaxWeeklyHours > 0 {
		return staff.MaxWeeklyHours
	}
	return c.defaultMax
}

// Evaluate 评估整个排班 - 按周分组计算工时
func (c *MaxWeeklyHoursConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	totalPenalty := 0

	weeks := weeksInRange(ctx.Range)
	for _, staff := range ctx.Staff {
		limit := c.limitFor(staff)
		for _, weekStart := range weeks {
			hours := ctx.TotalHoursInWeek(staff.ID, weekStart)
			if hours <= limit {
				continue
			}
			penalty := c.Weight() * int(hours-limit+1)
			totalPenalty += penalty
			violations = append(violations, c.violation(staff.ID, uuid.Nil, weekStart,
				fmt.Sprintf("员工 %s 在周 %s 工时 %.1f 小时，超过限制 %.1f 小时",
					staff.Name, weekStart, hours, limit),
				penalty))
		}
	}

	return len(violations) == 0, totalPenalty, violations
}

// EvaluateAssignment 评估单个分配 - 计算分配所在周的总工时
func (c *MaxWeeklyHoursConstraint) EvaluateAssignment(ctx *constraint.Context, a *model.DraftAssignment) (bool, int, []constraint.ViolationDetail) {
	staff := ctx.GetStaff(a.StaffID)
	shift := ctx.GetShift(a.ShiftID)
	if staff == nil || shift == nil {
		return true, 0, nil
	}

	weekStart := model.WeekStart(shift.Date)
	limit := c.limitFor(staff)
	total := ctx.TotalHoursInWeek(staff.ID, weekStart) + shift.DurationHours()

	if total <= limit {
		return true, 0, nil
	}
	penalty := c.Weight() * int(total-limit+1)
	return false, penalty, []constraint.ViolationDetail{
		c.violation(staff.ID, shift.ID, shift.Date,
			fmt.Sprintf("员工 %s 分配后周工时 %.1f 小时，超过限制 %.1f 小时",
				staff.Name, total, limit),
			penalty),
	}
}

// weeksInRange 返回日期范围覆盖的所有周的周一
func weeksInRange(rng model.DateRange) []string {
	seen := make(map[string]bool)
	var weeks []string
	for _, date := range rng.Days() {
		ws := model.WeekStart(date)
		if !seen[ws] {
			seen[ws] = true
			weeks = append(weeks, ws)
		}
	}
	return weeks
}
