// Package stats 提供排班统计分析功能
package stats

import (
	"sort"

	"github.com/google/uuid"
	"github.com/canpai/canpai/pkg/model"
)

// CoverageMetrics 覆盖率指标
type CoverageMetrics struct {
	TotalShifts     int     `json:"total_shifts"`
	FilledShifts    int     `json:"filled_shifts"`
	OverallCoverage float64 `json:"overall_coverage"` // %

	DailyCoverage map[string]DayCoverage `json:"daily_coverage"`
	SkillCoverage map[string]float64     `json:"skill_coverage"` // 按所需技能的人力满足率

	Understaffed []UnderstaffedShift `json:"understaffed"`
}

// DayCoverage 每日覆盖情况
type DayCoverage struct {
	Date         string  `json:"date"`
	TotalShifts  int     `json:"total_shifts"`
	Filled       int     `json:"filled"`
	CoverageRate float64 `json:"coverage_rate"`
	TotalHours   float64 `json:"total_hours"`
}

// UnderstaffedShift 人手不足的班次
type UnderstaffedShift struct {
	ShiftID  uuid.UUID `json:"shift_id"`
	Date     string    `json:"date"`
	Skill    string    `json:"skill"`
	Required int       `json:"required"`
	Assigned int       `json:"assigned"`
	Shortage int       `json:"shortage"`
}

// CoverageAnalyzer 覆盖率分析器
type CoverageAnalyzer struct{}

// NewCoverageAnalyzer 创建覆盖率分析器
func NewCoverageAnalyzer() *CoverageAnalyzer {
	return &CoverageAnalyzer{}
}

// Analyze 分析一组草稿分配对班次需求的覆盖情况
func (c *CoverageAnalyzer) Analyze(assignments []*model.DraftAssignment, shifts []*model.Shift) *CoverageMetrics {
	metrics := &CoverageMetrics{
		DailyCoverage: make(map[string]DayCoverage),
		SkillCoverage: make(map[string]float64),
	}
	if len(shifts) == 0 {
		metrics.OverallCoverage = 100
		return metrics
	}

	assignedCount := make(map[uuid.UUID]int)
	for _, a := range assignments {
		assignedCount[a.ShiftID]++
	}

	skillRequired := make(map[string]int)
	skillAssigned := make(map[string]int)

	for _, shift := range shifts {
		metrics.TotalShifts++
		assigned := assignedCount[shift.ID]

		day := metrics.DailyCoverage[shift.Date]
		day.Date = shift.Date
		day.TotalShifts++

		if shift.StatusFor(assigned) == model.ShiftFilled {
			metrics.FilledShifts++
			day.Filled++
		} else {
			shortage := shift.RequiredCount - assigned
			metrics.Understaffed = append(metrics.Understaffed, UnderstaffedShift{
				ShiftID:  shift.ID,
				Date:     shift.Date,
				Skill:    shift.RequiredSkill,
				Required: shift.RequiredCount,
				Assigned: assigned,
				Shortage: shortage,
			})
		}

		day.TotalHours += shift.DurationHours() * float64(assigned)
		metrics.DailyCoverage[shift.Date] = day

		if shift.RequiredSkill != "" {
			skillRequired[shift.RequiredSkill] += shift.RequiredCount
			capped := assigned
			if capped > shift.RequiredCount {
				capped = shift.RequiredCount
			}
			skillAssigned[shift.RequiredSkill] += capped
		}
	}

	metrics.OverallCoverage = float64(metrics.FilledShifts) / float64(metrics.TotalShifts) * 100

	for date, day := range metrics.DailyCoverage {
		if day.TotalShifts > 0 {
			day.CoverageRate = float64(day.Filled) / float64(day.TotalShifts) * 100
		}
		metrics.DailyCoverage[date] = day
	}

	for skill, required := range skillRequired {
		if required > 0 {
			metrics.SkillCoverage[skill] = float64(skillAssigned[skill]) / float64(required) * 100
		}
	}

	sort.Slice(metrics.Understaffed, func(i, j int) bool {
		ui, uj := metrics.Understaffed[i], metrics.Understaffed[j]
		if ui.Date != uj.Date {
			return ui.Date < uj.Date
		}
		return ui.ShiftID.String() < uj.ShiftID.String()
	})

	return metrics
}
