// Package model 定义排班平台的核心数据模型
package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConstraintType 排班约束类型
type ConstraintType string

const (
	ConstraintMaxHours             ConstraintType = "max_hours"
	ConstraintMinRest              ConstraintType = "min_rest"
	ConstraintSkillMatch           ConstraintType = "skill_match"
	ConstraintFairDistribution     ConstraintType = "fair_distribution"
	ConstraintMaxConsecutiveShifts ConstraintType = "max_consecutive_shifts"
	ConstraintLaborCost            ConstraintType = "labor_cost"
)

// ConstraintPayload 约束载荷（按类型区分的变体）
type ConstraintPayload interface {
	constraintPayload()
	Validate() error
}

// MaxHoursPayload 每周最大工时约束载荷
type MaxHoursPayload struct {
	MaxWeeklyHours float64 `json:"max_weekly_hours"`
}

func (MaxHoursPayload) constraintPayload() {}

// Validate 校验载荷
func (p MaxHoursPayload) Validate() error {
	if p.MaxWeeklyHours <= 0 {
		return fmt.Errorf("max_weekly_hours 必须大于0")
	}
	return nil
}

// MinRestPayload 班次间最小休息约束载荷
type MinRestPayload struct {
	MinRestHours float64 `json:"min_rest_hours"`
}

func (MinRestPayload) constraintPayload() {}

// Validate 校验载荷
func (p MinRestPayload) Validate() error {
	if p.MinRestHours <= 0 {
		return fmt.Errorf("min_rest_hours 必须大于0")
	}
	return nil
}

// SkillMatchPayload 技能匹配约束载荷
// Substitutes 允许高阶技能替代：key 为需求技能，value 为可替代的技能列表
type SkillMatchPayload struct {
	AllowSubstitution bool                `json:"allow_substitution,omitempty"`
	Substitutes       map[string][]string `json:"substitutes,omitempty"`
}

func (SkillMatchPayload) constraintPayload() {}

// Validate 校验载荷
func (p SkillMatchPayload) Validate() error {
	if p.AllowSubstitution && len(p.Substitutes) == 0 {
		return fmt.Errorf("允许技能替代时必须提供替代表")
	}
	return nil
}

// FairDistributionPayload 公平分配约束载荷
type FairDistributionPayload struct {
	TolerancePercent float64 `json:"tolerance_percent"`
}

func (FairDistributionPayload) constraintPayload() {}

// Validate 校验载荷
func (p FairDistributionPayload) Validate() error {
	if p.TolerancePercent <= 0 || p.TolerancePercent > 100 {
		return fmt.Errorf("tolerance_percent 必须在 (0,100] 内")
	}
	return nil
}

// MaxConsecutivePayload 最大连续工作天数约束载荷
type MaxConsecutivePayload struct {
	MaxDays int `json:"max_days"`
}

func (MaxConsecutivePayload) constraintPayload() {}

// Validate 校验载荷
func (p MaxConsecutivePayload) Validate() error {
	if p.MaxDays <= 0 {
		return fmt.Errorf("max_days 必须大于0")
	}
	return nil
}

// LaborCostPayload 人力成本约束载荷
type LaborCostPayload struct {
	WeeklyBudget float64 `json:"weekly_budget"`
}

func (LaborCostPayload) constraintPayload() {}

// Validate 校验载荷
func (p LaborCostPayload) Validate() error {
	if p.WeeklyBudget <= 0 {
		return fmt.Errorf("weekly_budget 必须大于0")
	}
	return nil
}

// SchedulingConstraint 排班约束规则
type SchedulingConstraint struct {
	BaseModel
	BizID    uuid.UUID         `json:"biz_id" db:"biz_id"`
	Type     ConstraintType    `json:"type" db:"type"`
	Priority Priority          `json:"priority" db:"priority"`
	Active   bool              `json:"active" db:"active"`
	Payload  ConstraintPayload `json:"payload" db:"-"`
}

// IsHard 检查约束是否为硬约束
// skill_match/max_hours/min_rest 始终为硬约束；max_consecutive_shifts 在 critical 优先级下升级为硬约束
func (c *SchedulingConstraint) IsHard() bool {
	switch c.Type {
	case ConstraintSkillMatch, ConstraintMaxHours, ConstraintMinRest:
		return true
	case ConstraintMaxConsecutiveShifts:
		return c.Priority == PriorityCritical
	}
	return false
}

// UnmarshalJSON 按类型解析约束载荷
func (c *SchedulingConstraint) UnmarshalJSON(data []byte) error {
	type alias SchedulingConstraint
	aux := struct {
		*alias
		Payload json.RawMessage `json:"payload"`
	}{alias: (*alias)(c)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	payload, err := ParseConstraintPayload(c.Type, aux.Payload)
	if err != nil {
		return err
	}
	c.Payload = payload
	return nil
}

// ParseConstraintPayload 按约束类型解析并校验载荷
func ParseConstraintPayload(typ ConstraintType, raw json.RawMessage) (ConstraintPayload, error) {
	var payload ConstraintPayload
	switch typ {
	case ConstraintMaxHours:
		payload = &MaxHoursPayload{}
	case ConstraintMinRest:
		payload = &MinRestPayload{}
	case ConstraintSkillMatch:
		payload = &SkillMatchPayload{}
	case ConstraintFairDistribution:
		payload = &FairDistributionPayload{}
	case ConstraintMaxConsecutiveShifts:
		payload = &MaxConsecutivePayload{}
	case ConstraintLaborCost:
		payload = &LaborCostPayload{}
	default:
		return nil, fmt.Errorf("未知约束类型: %s", typ)
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, payload); err != nil {
			return nil, fmt.Errorf("约束 %s 载荷解析失败: %w", typ, err)
		}
	}
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("约束 %s 载荷无效: %w", typ, err)
	}
	return payload, nil
}

// PreferenceType 员工偏好类型
type PreferenceType string

const (
	PreferenceShiftTime PreferenceType = "shift_time"
	PreferenceDayOff    PreferenceType = "day_off"
	PreferenceMaxHours  PreferenceType = "max_hours"
)

// PreferencePayload 偏好载荷（按类型区分的变体）
type PreferencePayload interface {
	preferencePayload()
	Validate() error
}

// ShiftTimePayload 班次时段偏好：偏好落在 [PreferredStart, PreferredEnd) 内开始的班次
type ShiftTimePayload struct {
	PreferredStart string `json:"preferred_start"` // HH:MM
	PreferredEnd   string `json:"preferred_end"`   // HH:MM
}

func (ShiftTimePayload) preferencePayload() {}

// Validate 校验载荷
func (p ShiftTimePayload) Validate() error {
	for _, clock := range []string{p.PreferredStart, p.PreferredEnd} {
		if _, err := time.Parse("15:04", clock); err != nil {
			return fmt.Errorf("时间格式无效: %s", clock)
		}
	}
	return nil
}

// DayOffPayload 休息日偏好
type DayOffPayload struct {
	Weekdays []time.Weekday `json:"weekdays"`
}

func (DayOffPayload) preferencePayload() {}

// Validate 校验载荷
func (p DayOffPayload) Validate() error {
	if len(p.Weekdays) == 0 {
		return fmt.Errorf("weekdays 不能为空")
	}
	return nil
}

// MaxHoursPrefPayload 期望最大周工时偏好
type MaxHoursPrefPayload struct {
	MaxWeeklyHours float64 `json:"max_weekly_hours"`
}

func (MaxHoursPrefPayload) preferencePayload() {}

// Validate 校验载荷
func (p MaxHoursPrefPayload) Validate() error {
	if p.MaxWeeklyHours <= 0 {
		return fmt.Errorf("max_weekly_hours 必须大于0")
	}
	return nil
}

// StaffPreference 员工偏好（软约束，永不覆盖硬约束）
type StaffPreference struct {
	BaseModel
	StaffID       uuid.UUID         `json:"staff_id" db:"staff_id"`
	Type          PreferenceType    `json:"type" db:"type"`
	Priority      Priority          `json:"priority" db:"priority"`
	Active        bool              `json:"active" db:"active"`
	EffectiveFrom string            `json:"effective_from,omitempty" db:"effective_from"` // YYYY-MM-DD
	ExpiresAt     string            `json:"expires_at,omitempty" db:"expires_at"`         // YYYY-MM-DD
	Payload       PreferencePayload `json:"payload" db:"-"`
}

// EffectiveOn 检查偏好在某日期是否生效
func (p *StaffPreference) EffectiveOn(date string) bool {
	if !p.Active {
		return false
	}
	if p.EffectiveFrom != "" && date < p.EffectiveFrom {
		return false
	}
	if p.ExpiresAt != "" && date > p.ExpiresAt {
		return false
	}
	return true
}

// UnmarshalJSON 按类型解析偏好载荷
func (p *StaffPreference) UnmarshalJSON(data []byte) error {
	type alias StaffPreference
	aux := struct {
		*alias
		Payload json.RawMessage `json:"payload"`
	}{alias: (*alias)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	payload, err := ParsePreferencePayload(p.Type, aux.Payload)
	if err != nil {
		return err
	}
	p.Payload = payload
	return nil
}

// ParsePreferencePayload 按偏好类型解析并校验载荷
func ParsePreferencePayload(typ PreferenceType, raw json.RawMessage) (PreferencePayload, error) {
	var payload PreferencePayload
	switch typ {
	case PreferenceShiftTime:
		payload = &ShiftTimePayload{}
	case PreferenceDayOff:
		payload = &DayOffPayload{}
	case PreferenceMaxHours:
		payload = &MaxHoursPrefPayload{}
	default:
		return nil, fmt.Errorf("未知偏好类型: %s", typ)
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, payload); err != nil {
			return nil, fmt.Errorf("偏好 %s 载荷解析失败: %w", typ, err)
		}
	}
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("偏好 %s 载荷无效: %w", typ, err)
	}
	return payload, nil
}
