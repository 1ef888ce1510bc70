// Package model 定义排班平台的核心数据模型
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BaseModel 基础模型（包含通用字段）
type BaseModel struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"-" db:"deleted_at"`
}

// NewBaseModel 创建新的基础模型
func NewBaseModel() BaseModel {
	now := time.Now()
	return BaseModel{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// JSONMap 用于存储 JSONB 数据
type JSONMap map[string]interface{}

// Priority 约束/偏好优先级
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Weight 优先级对应的约束权重 (1-100)
func (p Priority) Weight() int {
	switch p {
	case PriorityLow:
		return 20
	case PriorityMedium:
		return 40
	case PriorityHigh:
		return 70
	case PriorityCritical:
		return 100
	default:
		return 40
	}
}

// Valid 检查优先级是否合法
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// ImpactLevel 特殊事件影响级别
type ImpactLevel string

const (
	ImpactLow    ImpactLevel = "low"
	ImpactMedium ImpactLevel = "medium"
	ImpactHigh   ImpactLevel = "high"
)

// Multiplier 影响级别对应的需求人数放大系数
// low 不放大；medium 放大 1.25 倍；high 放大 1.5 倍（向上取整）
func (l ImpactLevel) Multiplier() float64 {
	switch l {
	case ImpactMedium:
		return 1.25
	case ImpactHigh:
		return 1.5
	default:
		return 1.0
	}
}

// TimeRange 时间范围
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration 返回时间范围的持续时间
func (tr TimeRange) Duration() time.Duration {
	return tr.End.Sub(tr.Start)
}

// Overlaps 检查两个时间范围是否重叠
func (tr TimeRange) Overlaps(other TimeRange) bool {
	return tr.Start.Before(other.End) && other.Start.Before(tr.End)
}

// ContainsRange 检查时间范围是否完整包含另一个范围
func (tr TimeRange) ContainsRange(other TimeRange) bool {
	return !other.Start.Before(tr.Start) && !other.End.After(tr.End)
}

// DateRange 日期范围
type DateRange struct {
	StartDate string `json:"start_date"` // YYYY-MM-DD
	EndDate   string `json:"end_date"`   // YYYY-MM-DD
}

// Validate 检查日期范围合法性
func (dr DateRange) Validate() error {
	start, err := time.Parse("2006-01-02", dr.StartDate)
	if err != nil {
		return fmt.Errorf("起始日期格式无效: %s", dr.StartDate)
	}
	end, err := time.Parse("2006-01-02", dr.EndDate)
	if err != nil {
		return fmt.Errorf("结束日期格式无效: %s", dr.EndDate)
	}
	if end.Before(start) {
		return fmt.Errorf("结束日期 %s 早于起始日期 %s", dr.EndDate, dr.StartDate)
	}
	return nil
}

// ContainsDate 检查日期是否在范围内
func (dr DateRange) ContainsDate(date string) bool {
	return date >= dr.StartDate && date <= dr.EndDate
}

// Overlaps 检查两个日期范围是否重叠
func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.StartDate <= other.EndDate && other.StartDate <= dr.EndDate
}

// Days 返回范围内的所有日期
func (dr DateRange) Days() []string {
	start, err1 := time.Parse("2006-01-02", dr.StartDate)
	end, err2 := time.Parse("2006-01-02", dr.EndDate)
	if err1 != nil || err2 != nil {
		return nil
	}
	var days []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format("2006-01-02"))
	}
	return days
}

// ClockRange 一天内的时间段，HH:MM 格式
type ClockRange struct {
	Start string `json:"start"` // HH:MM
	End   string `json:"end"`   // HH:MM
}

// WeekStart 返回日期所在周的周一
func WeekStart(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset).Format("2006-01-02")
}

// OnDate 将时间段落到具体日期上，跨午夜时结束时间顺延到次日
func (cr ClockRange) OnDate(date string) (TimeRange, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return TimeRange{}, fmt.Errorf("日期格式无效: %s", date)
	}
	start, err := clockOnDay(day, cr.Start)
	if err != nil {
		return TimeRange{}, err
	}
	end, err := clockOnDay(day, cr.End)
	if err != nil {
		return TimeRange{}, err
	}
	if !end.After(start) {
		end = end.Add(24 * time.Hour)
	}
	return TimeRange{Start: start, End: end}, nil
}

// clockOnDay 在指定日期解析 HH:MM
func clockOnDay(day time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("时间格式无效: %s", clock)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}
