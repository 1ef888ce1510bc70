// Package model 定义排班平台的核心数据模型
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TimeOffStatus 请假/不可用申请状态
type TimeOffStatus string

const (
	TimeOffPending  TimeOffStatus = "pending"
	TimeOffApproved TimeOffStatus = "approved"
	TimeOffRejected TimeOffStatus = "rejected"
)

// TimeOffWindow 请假/不可用时间窗口
// StartTime/EndTime 为空表示全天
type TimeOffWindow struct {
	StartDate string        `json:"start_date" db:"start_date"` // YYYY-MM-DD
	EndDate   string        `json:"end_date" db:"end_date"`     // YYYY-MM-DD
	StartTime string        `json:"start_time,omitempty" db:"start_time"`
	EndTime   string        `json:"end_time,omitempty" db:"end_time"`
	Reason    string        `json:"reason,omitempty" db:"reason"`
	Status    TimeOffStatus `json:"status" db:"status"`
}

// Approved 检查申请是否已批准
func (w TimeOffWindow) Approved() bool {
	return w.Status == TimeOffApproved
}

// CoversDate 检查窗口是否覆盖某日期
func (w TimeOffWindow) CoversDate(date string) bool {
	return date >= w.StartDate && date <= w.EndDate
}

// Window 返回窗口在某日期上的具体时间范围
// 未指定时间时覆盖全天（含当日午夜前的最后一刻）
func (w TimeOffWindow) Window(date string) (TimeRange, error) {
	if w.StartTime == "" || w.EndTime == "" {
		day, err := time.Parse("2006-01-02", date)
		if err != nil {
			return TimeRange{}, fmt.Errorf("日期格式无效: %s", date)
		}
		return TimeRange{Start: day, End: day.AddDate(0, 0, 1)}, nil
	}
	return ClockRange{Start: w.StartTime, End: w.EndTime}.OnDate(date)
}

// Staff 员工
type Staff struct {
	BaseModel
	BizID  uuid.UUID `json:"biz_id" db:"biz_id"`
	Name   string    `json:"name" db:"name"`
	Code   string    `json:"code" db:"code"`
	Status string    `json:"status" db:"status"` // active/inactive/leave

	// 排班相关
	Skills             []string                    `json:"skills" db:"skills"`
	WeeklyAvailability map[time.Weekday][]ClockRange `json:"weekly_availability" db:"-"`
	TimeOff            []TimeOffWindow             `json:"time_off,omitempty" db:"-"`
	MaxWeeklyHours     float64                     `json:"max_weekly_hours" db:"max_weekly_hours"`
	MaxConsecutiveDays int                         `json:"max_consecutive_days" db:"max_consecutive_days"`
	HourlyRate         float64                     `json:"hourly_rate" db:"hourly_rate"`
	ReliabilityScore   float64                     `json:"reliability_score" db:"reliability_score"` // 0-1

	// 近期工时记录（仅由发布流程写入）
	// key: 周一日期 (YYYY-MM-DD), value: 该周已发布工时
	RecentWeeklyHours map[string]float64 `json:"recent_weekly_hours,omitempty" db:"-"`
}

// IsActive 检查员工是否在职
func (s *Staff) IsActive() bool {
	return s.Status == "active"
}

// HasSkill 检查员工是否具备某技能
func (s *Staff) HasSkill(skill string) bool {
	for _, sk := range s.Skills {
		if sk == skill {
			return true
		}
	}
	return false
}

// CommittedHoursInWeek 返回某周已发布的工时
func (s *Staff) CommittedHoursInWeek(weekStart string) float64 {
	if s.RecentWeeklyHours == nil {
		return 0
	}
	return s.RecentWeeklyHours[weekStart]
}

// RecentHoursTotal 返回近期全部已发布工时
func (s *Staff) RecentHoursTotal() float64 {
	var total float64
	for _, h := range s.RecentWeeklyHours {
		total += h
	}
	return total
}
