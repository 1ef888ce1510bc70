// Package builtin 提供内置约束实现
package builtin

import (
	"fmt"

	"github.com/canpai/canpai/pkg/model"
	"github.com/canpai/canpai/pkg/scheduler/constraint"
)

// SkillMatchConstraint 技能匹配约束（硬约束）
// 员工必须具备班次所需技能，可选地允许替代表中的高阶技能顶替
type SkillMatchConstraint struct {
	*BaseConstraint
	allowSubstitution bool
	substitutes       map[string][]string
}

// NewSkillMatchConstraint 创建技能匹配约束
func NewSkillMatchConstraint(weight int, payload *model.SkillMatchPayload) *SkillMatchConstraint {
	c := &SkillMatchConstraint{
		BaseConstraint: NewBaseConstraint(
			"技能匹配",
			model.ConstraintSkillMatch,
			constraint.CategoryHard,
			weight,
		),
	}
	if payload != nil {
		c.allowSubstitution = payload.AllowSubstitution
		c.substitutes = payload.Substitutes
	}
	return c
}

// Qualified 检查员工是否满足班次技能要求
func (c *SkillMatchConstraint) Qualified(staff *model.Staff, shift *model.Shift) bool {
	if shift.RequiredSkill == "" || staff.HasSkill(shift.RequiredSkill) {
		return true
	}
	if !c.allowSubstitution {
		return false
	}
	for _, sub := range c.substitutes[shift.RequiredSkill] {
		if staff.HasSkill(sub) {
			return true
		}
	}
	return false
}

// Evaluate 评估整个排班
func (c *SkillMatchConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	totalPenalty := 0

	for _, a := range ctx.Assignments {
		staff := ctx.GetStaff(a.StaffID)
		shift := ctx.GetShift(a.ShiftID)
		if staff == nil || shift == nil {
			continue
		}
		if c.Qualified(staff, shift) {
			continue
		}
		penalty := c.Weight()
		totalPenalty += penalty
		violations = append(violations, c.violation(staff.ID, shift.ID, shift.Date,
			fmt.Sprintf("员工 %s 缺少必需技能: %s", staff.Name, shift.RequiredSkill),
			penalty))
	}

	return len(violations) == 0, totalPenalty, violations
}

// EvaluateAssignment 评估单个分配
func (c *SkillMatchConstraint) EvaluateAssignment(ctx *constraint.Context, a *model.DraftAssignment) (bool, int, []constraint.ViolationDetail) {
	staff := ctx.GetStaff(a.StaffID)
	shift := ctx.GetShift(a.ShiftID)
	if staff == nil || shift == nil {
		return false, c.Weight(), []constraint.ViolationDetail{
			c.violation(a.StaffID, a.ShiftID, "", "分配引用了未知员工或班次", c.Weight()),
		}
	}
	if c.Qualified(staff, shift) {
		return true, 0, nil
	}
	penalty := c.Weight()
	return false, penalty, []constraint.ViolationDetail{
		c.violation(staff.ID, shift.ID, shift.Date,
			fmt.Sprintf("员工 %s 缺少必需技能: %s", staff.Name, shift.RequiredSkill),
			penalty),
	}
}
