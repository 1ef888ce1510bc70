// Package model 定义排班平台的核心数据模型
package model

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// ShiftStatus 班次状态（由分配数派生）
type ShiftStatus string

const (
	ShiftOpen         ShiftStatus = "open"
	ShiftUnderstaffed ShiftStatus = "understaffed"
	ShiftFilled       ShiftStatus = "filled"
)

// Shift 班次（某日期上的一个用工需求）
type Shift struct {
	BaseModel
	BizID         uuid.UUID `json:"biz_id" db:"biz_id"`
	Name          string    `json:"name,omitempty" db:"name"`
	Date          string    `json:"date" db:"date"`             // YYYY-MM-DD
	StartTime     string    `json:"start_time" db:"start_time"` // HH:MM
	EndTime       string    `json:"end_time" db:"end_time"`     // HH:MM
	RequiredSkill string    `json:"required_skill" db:"required_skill"`
	RequiredCount int       `json:"required_count" db:"required_count"`
	HourlyRate    float64   `json:"hourly_rate" db:"hourly_rate"`
}

// Validate 检查班次输入合法性
func (s *Shift) Validate() error {
	if s.RequiredCount <= 0 {
		return fmt.Errorf("班次 %s 需求人数必须大于0", s.ID)
	}
	if _, err := time.Parse("2006-01-02", s.Date); err != nil {
		return fmt.Errorf("班次 %s 日期格式无效: %s", s.ID, s.Date)
	}
	if _, err := s.Window(); err != nil {
		return fmt.Errorf("班次 %s: %w", s.ID, err)
	}
	return nil
}

// Window 返回班次的具体时间范围，跨午夜班次结束时间顺延到次日
func (s *Shift) Window() (TimeRange, error) {
	return ClockRange{Start: s.StartTime, End: s.EndTime}.OnDate(s.Date)
}

// DurationHours 返回班次时长（小时）
func (s *Shift) DurationHours() float64 {
	w, err := s.Window()
	if err != nil {
		return 0
	}
	return w.Duration().Hours()
}

// Weekday 返回班次日期对应的星期
func (s *Shift) Weekday() time.Weekday {
	t, err := time.Parse("2006-01-02", s.Date)
	if err != nil {
		return time.Sunday
	}
	return t.Weekday()
}

// StatusFor 根据已分配人数派生班次状态
func (s *Shift) StatusFor(assigned int) ShiftStatus {
	switch {
	case assigned == 0:
		return ShiftOpen
	case assigned < s.RequiredCount:
		return ShiftUnderstaffed
	default:
		return ShiftFilled
	}
}

// SpecialEvent 特殊事件提示（影响当日用工需求）
type SpecialEvent struct {
	Date        string      `json:"date"` // YYYY-MM-DD
	Impact      ImpactLevel `json:"expected_impact"`
	Description string      `json:"description,omitempty"`
}

// EffectiveRequired 结合特殊事件计算有效需求人数
func EffectiveRequired(shift *Shift, events []*SpecialEvent) int {
	required := shift.RequiredCount
	for _, ev := range events {
		if ev.Date == shift.Date {
			scaled := int(math.Ceil(float64(required) * ev.Impact.Multiplier()))
			if scaled > required {
				required = scaled
			}
		}
	}
	return required
}
