package stats

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/canpai/canpai/pkg/model"
)

func statShift(date, start, end, skill string, required int) *model.Shift {
	return &model.Shift{
		BaseModel:     model.NewBaseModel(),
		Date:          date,
		StartTime:     start,
		EndTime:       end,
		RequiredSkill: skill,
		RequiredCount: required,
	}
}

func statAssign(shift *model.Shift, staffID uuid.UUID) *model.DraftAssignment {
	return &model.DraftAssignment{
		BaseModel: model.NewBaseModel(),
		ShiftID:   shift.ID,
		StaffID:   staffID,
	}
}

func TestFairnessAnalyzer_Analyze_Balanced(t *testing.T) {
	a := &model.Staff{BaseModel: model.NewBaseModel(), Name: "张三", Status: "active"}
	b := &model.Staff{BaseModel: model.NewBaseModel(), Name: "李四", Status: "active"}

	s1 := statShift("2025-06-02", "09:00", "17:00", "", 1)
	s2 := statShift("2025-06-03", "09:00", "17:00", "", 1)

	m := NewFairnessAnalyzer().Analyze(
		[]*model.DraftAssignment{statAssign(s1, a.ID), statAssign(s2, b.ID)},
		[]*model.Shift{s1, s2},
		[]*model.Staff{a, b},
	)

	// 两人各 8 小时，完全均衡
	if m.WorkloadGini != 0 {
		t.Errorf("WorkloadGini = %.3f, expected 0", m.WorkloadGini)
	}
	if m.WorkloadStdDev != 0 {
		t.Errorf("WorkloadStdDev = %.3f, expected 0", m.WorkloadStdDev)
	}
	if m.AvgHours != 8 || m.MaxHours != 8 || m.MinHours != 8 || m.HoursRange != 0 {
		t.Errorf("工时汇总错误: avg=%.1f max=%.1f min=%.1f range=%.1f",
			m.AvgHours, m.MaxHours, m.MinHours, m.HoursRange)
	}
	if m.OverallScore != 100 {
		t.Errorf("OverallScore = %.1f, expected 100", m.OverallScore)
	}
	if len(m.StaffStats) != 2 {
		t.Fatalf("StaffStats = %d, expected 2", len(m.StaffStats))
	}
	for _, s := range m.StaffStats {
		if s.Deviation != 0 {
			t.Errorf("均衡分配偏差应为 0, got %.1f", s.Deviation)
		}
	}
}

func TestFairnessAnalyzer_Analyze_Skewed(t *testing.T) {
	busy := &model.Staff{BaseModel: model.NewBaseModel(), Name: "张三", Status: "active", HourlyRate: 30}
	idle := &model.Staff{BaseModel: model.NewBaseModel(), Name: "李四", Status: "active"}

	s1 := statShift("2025-06-02", "09:00", "17:00", "", 1)
	s2 := statShift("2025-06-03", "09:00", "17:00", "", 1)
	s3 := statShift("2025-06-07", "09:00", "17:00", "", 1) // 周六
	s4 := statShift("2025-06-04", "09:00", "13:00", "", 1)

	m := NewFairnessAnalyzer().Analyze(
		[]*model.DraftAssignment{
			statAssign(s1, busy.ID), statAssign(s2, busy.ID), statAssign(s3, busy.ID),
			statAssign(s4, idle.ID),
		},
		[]*model.Shift{s1, s2, s3, s4},
		[]*model.Staff{busy, idle},
	)

	if m.WorkloadGini <= 0 {
		t.Errorf("倾斜分配 WorkloadGini = %.3f, 应为正", m.WorkloadGini)
	}
	if m.WeekendGini <= 0 {
		t.Errorf("周末班集中 WeekendGini = %.3f, 应为正", m.WeekendGini)
	}
	if m.OverallScore >= 100 {
		t.Errorf("倾斜分配 OverallScore = %.1f, 应低于 100", m.OverallScore)
	}

	// StaffStats 按工时降序
	if m.StaffStats[0].StaffID != busy.ID || m.StaffStats[0].TotalHours != 24 {
		t.Errorf("高工时员工应排在前: %+v", m.StaffStats[0])
	}
	if m.StaffStats[0].WeekendShifts != 1 {
		t.Errorf("WeekendShifts = %d, expected 1", m.StaffStats[0].WeekendShifts)
	}
	// 员工时薪优先于班次时薪计成本
	if m.StaffStats[0].LaborCost != 720 {
		t.Errorf("LaborCost = %.1f, expected 720", m.StaffStats[0].LaborCost)
	}
	if m.StaffStats[0].Deviation <= 0 || m.StaffStats[1].Deviation >= 0 {
		t.Error("偏差符号应反映高于/低于均值")
	}
}

func TestFairnessAnalyzer_Analyze_Empty(t *testing.T) {
	m := NewFairnessAnalyzer().Analyze(nil, nil, nil)
	if m.OverallScore != 100 {
		t.Errorf("空输入 OverallScore = %.1f, expected 100", m.OverallScore)
	}
}

func TestGini(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{"完全均等", []float64{10, 10, 10, 10}, 0},
		{"全部集中于一人", []float64{0, 0, 0, 40}, 0.75},
		{"空序列", nil, 0},
		{"全零", []float64{0, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := gini(tt.values); math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("gini(%v) = %.4f, expected %.4f", tt.values, got, tt.expected)
			}
		})
	}
}

func TestCoverageAnalyzer_Analyze(t *testing.T) {
	staffA, staffB := uuid.New(), uuid.New()

	full := statShift("2025-06-02", "09:00", "17:00", "cooking", 1)
	short := statShift("2025-06-02", "18:00", "22:00", "service", 2)
	empty := statShift("2025-06-03", "09:00", "17:00", "cooking", 1)

	m := NewCoverageAnalyzer().Analyze(
		[]*model.DraftAssignment{
			statAssign(full, staffA),
			statAssign(short, staffB),
		},
		[]*model.Shift{full, short, empty},
	)

	if m.TotalShifts != 3 || m.FilledShifts != 1 {
		t.Errorf("total=%d filled=%d, expected 3/1", m.TotalShifts, m.FilledShifts)
	}
	if math.Abs(m.OverallCoverage-100.0/3) > 0.01 {
		t.Errorf("OverallCoverage = %.2f, expected %.2f", m.OverallCoverage, 100.0/3)
	}

	// 缺员清单按日期和 ID 排序
	if len(m.Understaffed) != 2 {
		t.Fatalf("Understaffed = %d, expected 2", len(m.Understaffed))
	}
	if m.Understaffed[0].Date > m.Understaffed[1].Date {
		t.Error("缺员清单应按日期升序")
	}
	for _, u := range m.Understaffed {
		if u.Shortage != u.Required-u.Assigned {
			t.Errorf("Shortage 计算错误: %+v", u)
		}
	}

	// 每日覆盖
	day := m.DailyCoverage["2025-06-02"]
	if day.TotalShifts != 2 || day.Filled != 1 || day.CoverageRate != 50 {
		t.Errorf("6/2 覆盖错误: %+v", day)
	}
	if day.TotalHours != 12 { // 8h + 4h 实际排入工时
		t.Errorf("6/2 TotalHours = %.1f, expected 12", day.TotalHours)
	}

	// 技能覆盖: cooking 1/2, service 1/2
	if m.SkillCoverage["cooking"] != 50 {
		t.Errorf("cooking 覆盖 = %.1f, expected 50", m.SkillCoverage["cooking"])
	}
	if m.SkillCoverage["service"] != 50 {
		t.Errorf("service 覆盖 = %.1f, expected 50", m.SkillCoverage["service"])
	}
}

func TestCoverageAnalyzer_Analyze_Empty(t *testing.T) {
	m := NewCoverageAnalyzer().Analyze(nil, nil)
	if m.OverallCoverage != 100 {
		t.Errorf("空班次 OverallCoverage = %.1f, expected 100", m.OverallCoverage)
	}
	if len(m.Understaffed) != 0 {
		t.Error("空班次不应有缺员")
	}
}
