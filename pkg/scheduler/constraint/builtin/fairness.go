// Package builtin 提供内置约束实现
package builtin

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/canpai/canpai/pkg/model"
	"github.com/canpai/canpai/pkg/scheduler/constraint"
)

// FairDistributionConstraint 公平分配约束（软约束）
// 各员工的计划工时应落在全体均值的容差范围内
type FairDistributionConstraint struct {
	*BaseConstraint
	tolerancePercent float64
}

// NewFairDistributionConstraint 创建公平分配约束
func NewFairDistributionConstraint(weight int, payload *model.FairDistributionPayload) *FairDistributionConstraint {
	tolerance := 20.0
	if payload != nil && payload.TolerancePercent > 0 {
		tolerance = payload.TolerancePercent
	}
	return &FairDistributionConstraint{
		BaseConstraint: NewBaseConstraint(
			"公平分配",
			model.ConstraintFairDistribution,
			constraint.CategorySoft,
			weight,
		),
		tolerancePercent: tolerance,
	}
}

// meanPlannedHours 计算在岗员工的平均计划工时
func (c *FairDistributionConstraint) meanPlannedHours(ctx *constraint.Context) float64 {
	active := 0
	var total float64
	for _, s := range ctx.Staff {
		if !s.IsActive() {
			continue
		}
		active++
		total += ctx.PlannedHours(s.ID)
	}
	if active == 0 {
		return 0
	}
	return total / float64(active)
}

// Evaluate 评估整个排班 - 偏离均值超容差的员工产生惩罚
func (c *FairDistributionConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	mean := c.meanPlannedHours(ctx)
	if mean == 0 {
		return true, 0, nil
	}
	band := mean * c.tolerancePercent / 100.0

	var violations []constraint.ViolationDetail
	totalPenalty := 0

	for _, staff := range ctx.Staff {
		if !staff.IsActive() {
			continue
		}
		hours := ctx.PlannedHours(staff.ID)
		deviation := math.Abs(hours - mean)
		if deviation <= band {
			continue
		}
		penalty := int(math.Ceil(float64(c.Weight()) * (deviation - band) / mean))
		if penalty == 0 {
			penalty = 1
		}
		totalPenalty += penalty
		violations = append(violations, c.violation(staff.ID, uuid.Nil, "",
			fmt.Sprintf("员工 %s 计划工时 %.1f 小时，偏离均值 %.1f 小时超过容差 %.0f%%",
				staff.Name, hours, deviation, c.tolerancePercent),
			penalty))
	}

	// 软约束不影响有效性
	return true, totalPenalty, violations
}

// EvaluateAssignment 评估单个分配 - 工时低于均值的员工得到奖励
func (c *FairDistributionConstraint) EvaluateAssignment(ctx *constraint.Context, a *model.DraftAssignment) (bool, int, []constraint.ViolationDetail) {
	staff := ctx.GetStaff(a.StaffID)
	shift := ctx.GetShift(a.ShiftID)
	if staff == nil || shift == nil {
		return true, 0, nil
	}

	mean := c.meanPlannedHours(ctx)
	after := ctx.PlannedHours(staff.ID) + shift.DurationHours()

	if after <= mean {
		// 负惩罚即奖励：优先分配给工时偏少的员工
		return true, -c.Weight() / 2, nil
	}

	band := mean * c.tolerancePercent / 100.0
	deviation := after - mean
	if mean == 0 || deviation <= band {
		return true, 0, nil
	}

	penalty := int(math.Ceil(float64(c.Weight()) * (deviation - band) / mean))
	if penalty == 0 {
		penalty = 1
	}
	return true, penalty, []constraint.ViolationDetail{
		c.violation(staff.ID, shift.ID, shift.Date,
			fmt.Sprintf("员工 %s 分配后工时 %.1f 小时，高于均值 %.1f 小时",
				staff.Name, after, mean),
			penalty),
	}
}
