// Package builtin 提供内置约束实现
package builtin

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/canpai/canpai/pkg/model"
	"github.com/canpai/canpai/pkg/scheduler/constraint"
)

// TypePreference 员工偏好约束的内部类型标识
const TypePreference = model.ConstraintType("staff_preference")

// PreferenceConstraint 员工偏好约束（软约束）
// 顺应偏好得到奖励，违背偏好按偏好优先级产生惩罚；永不阻止分配
type PreferenceConstraint struct {
	*BaseConstraint
	byStaff map[uuid.UUID][]*model.StaffPreference
}

// NewPreferenceConstraint 创建员工偏好约束
func NewPreferenceConstraint(weight int, prefs []*model.StaffPreference) *PreferenceConstraint {
	c := &PreferenceConstraint{
		BaseConstraint: NewBaseConstraint(
			"员工偏好",
			TypePreference,
			constraint.CategorySoft,
			weight,
		),
		byStaff: make(map[uuid.UUID][]*model.StaffPreference),
	}
	for _, p := range prefs {
		c.byStaff[p.StaffID] = append(c.byStaff[p.StaffID], p)
	}
	return c
}

// scale 按偏好优先级折算惩罚幅度
func (c *PreferenceConstraint) scale(p *model.StaffPreference) int {
	penalty := c.Weight() * p.Priority.Weight() / 100
	if penalty == 0 {
		penalty = 1
	}
	return penalty
}

// evaluateOne 评估单条分配对某偏好的符合度
// 返回惩罚值（负值为奖励）和违背时的说明
func (c *PreferenceConstraint) evaluateOne(ctx *constraint.Context, p *model.StaffPreference, staff *model.Staff, shift *model.Shift) (int, string) {
	if !p.EffectiveOn(shift.Date) {
		return 0, ""
	}

	switch payload := p.Payload.(type) {
	case *model.ShiftTimePayload:
		if shift.StartTime >= payload.PreferredStart && shift.StartTime < payload.PreferredEnd {
			return -c.scale(p), ""
		}
		return c.scale(p), fmt.Sprintf("员工 %s 偏好 %s-%s 时段，班次 %s 开始于 %s",
			staff.Name, payload.PreferredStart, payload.PreferredEnd, shift.Date, shift.StartTime)

	case *model.DayOffPayload:
		weekday := shift.Weekday()
		for _, wd := range payload.Weekdays {
			if wd == weekday {
				return c.scale(p), fmt.Sprintf("员工 %s 偏好 %s 休息，但被分配到 %s 的班次",
					staff.Name, weekday, shift.Date)
			}
		}
		return 0, ""

	case *model.MaxHoursPrefPayload:
		weekStart := model.WeekStart(shift.Date)
		total := ctx.PlannedHoursInWeek(staff.ID, weekStart)
		if total > payload.MaxWeeklyHours {
			return c.scale(p), fmt.Sprintf("员工 %s 期望周工时不超过 %.1f 小时，当前已计划 %.1f 小时",
				staff.Name, payload.MaxWeeklyHours, total)
		}
		return 0, ""
	}

	return 0, ""
}

// Evaluate 评估整个排班
func (c *PreferenceConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	totalPenalty := 0

	for _, a := range ctx.Assignments {
		staff := ctx.GetStaff(a.StaffID)
		shift := ctx.GetShift(a.ShiftID)
		if staff == nil || shift == nil {
			continue
		}
		for _, p := range c.byStaff[staff.ID] {
			penalty, msg := c.evaluateOne(ctx, p, staff, shift)
			totalPenalty += penalty
			if msg != "" {
				violations = append(violations, c.violation(staff.ID, shift.ID, shift.Date, msg, penalty))
			}
		}
	}

	return true, totalPenalty, violations
}

// EvaluateAssignment 评估单个分配
func (c *PreferenceConstraint) EvaluateAssignment(ctx *constraint.Context, a *model.DraftAssignment) (bool, int, []constraint.ViolationDetail) {
	staff := ctx.GetStaff(a.StaffID)
	shift := ctx.GetShift(a.ShiftID)
	if staff == nil || shift == nil {
		return true, 0, nil
	}

	var violations []constraint.ViolationDetail
	totalPenalty := 0
	for _, p := range c.byStaff[staff.ID] {
		penalty, msg := c.evaluateOne(ctx, p, staff, shift)
		totalPenalty += penalty
		if msg != "" {
			violations = append(violations, c.violation(staff.ID, shift.ID, shift.Date, msg, penalty))
		}
	}

	return true, totalPenalty, violations
}
