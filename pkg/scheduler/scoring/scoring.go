// Package scoring 实现候选员工评分
package scoring

import (
	"github.com/google/uuid"
	"github.com/canpai/canpai/pkg/model"
	"github.com/canpai/canpai/pkg/scheduler/constraint"
)

// 评分因子名称
const (
	FactorSkillFit    = "技能匹配"
	FactorPreference  = "员工偏好"
	FactorFairness    = "公平性"
	FactorReliability = "可靠性"
	FactorLaborCost   = "人力成本"
)

// Weights 各评分维度的权重
type Weights struct {
	SkillFit    float64 `json:"skill_fit"`
	Preference  float64 `json:"preference"`
	Fairness    float64 `json:"fairness"`
	Reliability float64 `json:"reliability"`
	LaborCost   float64 `json:"labor_cost"`
}

// DefaultWeights 默认评分权重
func DefaultWeights() Weights {
	return Weights{
		SkillFit:    30,
		Preference:  20,
		Fairness:    25,
		Reliability: 15,
		LaborCost:   10,
	}
}

// Total 返回权重总和（即满分）
func (w Weights) Total() float64 {
	return w.SkillFit + w.Preference + w.Fairness + w.Reliability + w.LaborCost
}

// Scorer 候选评分器
type Scorer interface {
	// Score 对 (员工, 班次) 候选组合评分，返回总分和各因子贡献
	Score(ctx *constraint.Context, staff *model.Staff, shift *model.Shift) (float64, []model.Factor)

	// MaxScore 返回可能的最高分
	MaxScore() float64
}

// RuleScorer 基于权重和偏好的评分器
type RuleScorer struct {
	weights     Weights
	prefs       map[uuid.UUID][]*model.StaffPreference
	substitutes map[string][]string
}

// NewRuleScorer 创建评分器
func NewRuleScorer(weights Weights, prefs []*model.StaffPreference, substitutes map[string][]string) *RuleScorer {
	s := &RuleScorer{
		weights:     weights,
		prefs:       make(map[uuid.UUID][]*model.StaffPreference),
		substitutes: substitutes,
	}
	for _, p := range prefs {
		if p.Active {
			s.prefs[p.StaffID] = append(s.prefs[p.StaffID], p)
		}
	}
	return s
}

// MaxScore 返回可能的最高分
func (s *RuleScorer) MaxScore() float64 {
	return s.weights.Total()
}

// Score 计算候选总分，所有因子贡献均落在 [0, 维度权重] 内
func (s *RuleScorer) Score(ctx *constraint.Context, staff *model.Staff, shift *model.Shift) (float64, []model.Factor) {
	factors := []model.Factor{
		{Name: FactorSkillFit, Contribution: s.skillFit(staff, shift)},
		{Name: FactorPreference, Contribution: s.preference(ctx, staff, shift)},
		{Name: FactorFairness, Contribution: s.fairness(ctx, staff, shift)},
		{Name: FactorReliability, Contribution: s.reliability(staff)},
		{Name: FactorLaborCost, Contribution: s.laborCost(staff, shift)},
	}

	var total float64
	for _, f := range factors {
		total += f.Contribution
	}
	return total, factors
}

// skillFit 技能精确匹配得满分，替代技能打七折
func (s *RuleScorer) skillFit(staff *model.Staff, shift *model.Shift) float64 {
	if shift.RequiredSkill == "" || staff.HasSkill(shift.RequiredSkill) {
		return s.weights.SkillFit
	}
	for _, sub := range s.substitutes[shift.RequiredSkill] {
		if staff.HasSkill(sub) {
			return s.weights.SkillFit * 0.7
		}
	}
	return 0
}

// preference 无偏好时取中位值，顺应偏好加分、违背偏好扣分
func (s *RuleScorer) preference(ctx *constraint.Context, staff *model.Staff, shift *model.Shift) float64 {
	prefs := s.prefs[staff.ID]
	score := s.weights.Preference * 0.5
	if len(prefs) == 0 {
		return score
	}

	step := s.weights.Preference * 0.5 / float64(len(prefs))
	for _, p := range prefs {
		if !p.EffectiveOn(shift.Date) {
			continue
		}
		switch payload := p.Payload.(type) {
		case *model.ShiftTimePayload:
			if shift.StartTime >= payload.PreferredStart && shift.StartTime < payload.PreferredEnd {
				score += step
			} else {
				score -= step
			}
		case *model.DayOffPayload:
			for _, wd := range payload.Weekdays {
				if wd == shift.Weekday() {
					score -= step
					break
				}
			}
		case *model.MaxHoursPrefPayload:
			weekStart := model.WeekStart(shift.Date)
			after := ctx.PlannedHoursInWeek(staff.ID, weekStart) + shift.DurationHours()
			if after > payload.MaxWeeklyHours {
				score -= step
			}
		}
	}

	return clamp(score, 0, s.weights.Preference)
}

// fairness 计划工时低于均值的员工得分更高
func (s *RuleScorer) fairness(ctx *constraint.Context, staff *model.Staff, shift *model.Shift) float64 {
	var total float64
	active := 0
	for _, st := range ctx.Staff {
		if !st.IsActive() {
			continue
		}
		active++
		total += ctx.PlannedHours(st.ID)
	}
	if active == 0 {
		return s.weights.Fairness
	}

	mean := total / float64(active)
	hours := ctx.PlannedHours(staff.ID)
	if mean == 0 {
		return s.weights.Fairness
	}

	// 工时为均值 2 倍时降到零分
	ratio := 1.0 - hours/(2.0*mean)
	return clamp(s.weights.Fairness*ratio, 0, s.weights.Fairness)
}

// reliability 按员工历史可靠度打分
func (s *RuleScorer) reliability(staff *model.Staff) float64 {
	score := staff.ReliabilityScore
	if score <= 0 {
		// 无历史记录的员工给中位值
		return s.weights.Reliability * 0.5
	}
	return clamp(s.weights.Reliability*score, 0, s.weights.Reliability)
}

// laborCost 时薪不高于班次基准得满分，超出部分按比例扣分
func (s *RuleScorer) laborCost(staff *model.Staff, shift *model.Shift) float64 {
	if staff.HourlyRate <= 0 || shift.HourlyRate <= 0 || staff.HourlyRate <= shift.HourlyRate {
		return s.weights.LaborCost
	}
	return clamp(s.weights.LaborCost*shift.HourlyRate/staff.HourlyRate, 0, s.weights.LaborCost)
}

// clamp 把值限制在 [lo, hi] 内
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
