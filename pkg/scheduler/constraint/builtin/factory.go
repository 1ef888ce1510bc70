// Package builtin 提供内置约束实现
package builtin

import (
	"github.com/canpai/canpai/pkg/model"
	"github.com/canpai/canpai/pkg/scheduler/constraint"
)

// 无规则时的硬约束默认值
const (
	DefaultMaxWeeklyHours = 40.0
	DefaultMinRestHours   = 10.0
	DefaultWeight         = 50
)

// Build 根据约束规则和员工偏好组装约束管理器
// 三个硬约束（技能匹配、周工时、休息间隔）始终注册，未提供规则时使用默认值
func Build(cm *constraint.Manager, rules []*model.SchedulingConstraint, prefs []*model.StaffPreference) {
	var (
		skillPayload *model.SkillMatchPayload
		skillWeight  = DefaultWeight
		maxHours     = DefaultMaxWeeklyHours
		hoursWeight  = DefaultWeight
		minRest      = DefaultMinRestHours
		restWeight   = DefaultWeight
	)

	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		weight := rule.Priority.Weight()

		switch rule.Type {
		case model.ConstraintSkillMatch:
			if p, ok := rule.Payload.(*model.SkillMatchPayload); ok {
				skillPayload = p
			}
			skillWeight = weight

		case model.ConstraintMaxHours:
			if p, ok := rule.Payload.(*model.MaxHoursPayload); ok {
				maxHours = p.MaxWeeklyHours
			}
			hoursWeight = weight

		case model.ConstraintMinRest:
			if p, ok := rule.Payload.(*model.MinRestPayload); ok {
				minRest = p.MinRestHours
			}
			restWeight = weight

		case model.ConstraintFairDistribution:
			p, _ := rule.Payload.(*model.FairDistributionPayload)
			cm.Register(NewFairDistributionConstraint(weight, p))

		case model.ConstraintMaxConsecutiveShifts:
			maxDays := 6
			if p, ok := rule.Payload.(*model.MaxConsecutivePayload); ok {
				maxDays = p.MaxDays
			}
			cat := constraint.CategorySoft
			if rule.IsHard() {
				cat = constraint.CategoryHard
			}
			cm.Register(NewMaxConsecutiveDaysConstraint(weight, cat, maxDays))

		case model.ConstraintLaborCost:
			p, _ := rule.Payload.(*model.LaborCostPayload)
			cm.Register(NewLaborCostConstraint(weight, p))
		}
	}

	cm.Register(NewSkillMatchConstraint(skillWeight, skillPayload))
	cm.Register(NewMaxWeeklyHoursConstraint(hoursWeight, maxHours))
	cm.Register(NewMinRestConstraint(restWeight, minRest))

	if len(prefs) > 0 {
		cm.Register(NewPreferenceConstraint(DefaultWeight, prefs))
	}
}
