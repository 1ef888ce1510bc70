// Package builtin 提供内置约束实现
package builtin

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/canpai/canpai/pkg/model"
	"github.com/canpai/canpai/pkg/scheduler/constraint"
)

// LaborCostConstraint 人力成本约束（软约束）
// 周人力成本超出预算产生惩罚；无预算时倾向时薪较低的员工
type LaborCostConstraint struct {
	*BaseConstraint
	weeklyBudget float64
}

// NewLaborCostConstraint 创建人力成本约束
func NewLaborCostConstraint(weight int, payload *model.LaborCostPayload) *LaborCostConstraint {
	c := &LaborCostConstraint{
		BaseConstraint: NewBaseConstraint(
			"人力成本",
			model.ConstraintLaborCost,
			constraint.CategorySoft,
			weight,
		),
	}
	if payload != nil {
		c.weeklyBudget = payload.WeeklyBudget
	}
	return c
}

// assignmentCost 计算一条分配的成本，员工时薪优先于班次时薪
func assignmentCost(ctx *constraint.Context, a *model.DraftAssignment) float64 {
	shift := ctx.GetShift(a.ShiftID)
	if shift == nil {
		return 0
	}
	rate := shift.HourlyRate
	if staff := ctx.GetStaff(a.StaffID); staff != nil && staff.HourlyRate > 0 {
		rate = staff.HourlyRate
	}
	return rate * shift.DurationHours()
}

// weeklyCosts 按周起始日汇总成本
func (c *LaborCostConstraint) weeklyCosts(ctx *constraint.Context) map[string]float64 {
	costs := make(map[string]float64)
	for _, a := range ctx.Assignments {
		shift := ctx.GetShift(a.ShiftID)
		if shift == nil {
			continue
		}
		costs[model.WeekStart(shift.Date)] += assignmentCost(ctx, a)
	}
	return costs
}

// Evaluate 评估整个排班 - 按周比对预算
func (c *LaborCostConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	if c.weeklyBudget <= 0 {
		return true, 0, nil
	}

	var violations []constraint.ViolationDetail
	totalPenalty := 0

	for weekStart, cost := range c.weeklyCosts(ctx) {
		if cost <= c.weeklyBudget {
			continue
		}
		overRatio := (cost - c.weeklyBudget) / c.weeklyBudget
		penalty := int(math.Ceil(float64(c.Weight()) * overRatio * 10))
		if penalty == 0 {
			penalty = 1
		}
		totalPenalty += penalty
		violations = append(violations, c.violation(uuid.Nil, uuid.Nil, weekStart,
			fmt.Sprintf("周 %s 人力成本 %.2f 超出预算 %.2f", weekStart, cost, c.weeklyBudget),
			penalty))
	}

	return true, totalPenalty, violations
}

// EvaluateAssignment 评估单个分配 - 时薪高于班次基准的分配产生轻微惩罚
func (c *LaborCostConstraint) EvaluateAssignment(ctx *constraint.Context, a *model.DraftAssignment) (bool, int, []constraint.ViolationDetail) {
	staff := ctx.GetStaff(a.StaffID)
	shift := ctx.GetShift(a.ShiftID)
	if staff == nil || shift == nil {
		return true, 0, nil
	}

	// 预算已超时新增成本按比例惩罚
	if c.weeklyBudget > 0 {
		weekStart := model.WeekStart(shift.Date)
		current := c.weeklyCosts(ctx)[weekStart]
		after := current + assignmentCost(ctx, a)
		if after > c.weeklyBudget {
			over := after - c.weeklyBudget
			penalty := int(math.Ceil(float64(c.Weight()) * over / c.weeklyBudget * 10))
			if penalty == 0 {
				penalty = 1
			}
			return true, penalty, []constraint.ViolationDetail{
				c.violation(staff.ID, shift.ID, shift.Date,
					fmt.Sprintf("分配后周 %s 成本 %.2f 超出预算 %.2f", weekStart, after, c.weeklyBudget),
					penalty),
			}
		}
	}

	// 无预算或预算内时，按时薪相对差做轻微调节
	if staff.HourlyRate > 0 && shift.HourlyRate > 0 {
		diff := (staff.HourlyRate - shift.HourlyRate) / shift.HourlyRate
		if diff > 0.1 {
			penalty := int(math.Ceil(float64(c.Weight()) * diff))
			return true, penalty, nil
		}
		if diff < -0.1 {
			return true, -c.Weight() / 4, nil
		}
	}

	return true, 0, nil
}
