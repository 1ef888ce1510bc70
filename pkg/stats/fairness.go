// Package stats 提供排班统计分析功能
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/canpai/canpai/pkg/model"
)

// FairnessMetrics 公平性指标
type FairnessMetrics struct {
	WorkloadGini     float64 `json:"workload_gini"`    // 工时基尼系数 (0=完全公平)
	WorkloadStdDev   float64 `json:"workload_std_dev"` // 工时标准差
	WorkloadVariance float64 `json:"workload_variance"`
	AvgHours         float64 `json:"avg_hours_per_staff"`
	MaxHours         float64 `json:"max_hours"`
	MinHours         float64 `json:"min_hours"`
	HoursRange       float64 `json:"hours_range"`

	WeekendGini float64 `json:"weekend_shift_gini"` // 周末班分配基尼系数

	StaffStats []StaffStat `json:"staff_stats"`

	OverallScore float64 `json:"overall_fairness_score"` // 综合公平性评分 (0-100)
}

// StaffStat 员工级别统计
type StaffStat struct {
	StaffID       uuid.UUID `json:"staff_id"`
	StaffName     string    `json:"staff_name"`
	TotalHours    float64   `json:"total_hours"`
	ShiftCount    int       `json:"shift_count"`
	WeekendShifts int       `json:"weekend_shifts"`
	LaborCost     float64   `json:"labor_cost"`
	Deviation     float64   `json:"deviation"` // 与人均工时的偏差百分比
}

// FairnessAnalyzer 公平性分析器
type FairnessAnalyzer struct{}

// NewFairnessAnalyzer 创建公平性分析器
func NewFairnessAnalyzer() *FairnessAnalyzer {
	return &FairnessAnalyzer{}
}

// Analyze 分析一组草稿分配的公平性
func (f *FairnessAnalyzer) Analyze(assignments []*model.DraftAssignment, shifts []*model.Shift, staff []*model.Staff) *FairnessMetrics {
	if len(assignments) == 0 || len(staff) == 0 {
		return &FairnessMetrics{OverallScore: 100}
	}

	shiftMap := make(map[uuid.UUID]*model.Shift, len(shifts))
	for _, s := range shifts {
		shiftMap[s.ID] = s
	}
	staffMap := make(map[uuid.UUID]*model.Staff, len(staff))
	for _, s := range staff {
		staffMap[s.ID] = s
	}

	statMap := make(map[uuid.UUID]*StaffStat)
	for _, a := range assignments {
		shift := shiftMap[a.ShiftID]
		if shift == nil {
			continue
		}
		stat := statMap[a.StaffID]
		if stat == nil {
			stat = &StaffStat{StaffID: a.StaffID}
			if st := staffMap[a.StaffID]; st != nil {
				stat.StaffName = st.Name
			}
			statMap[a.StaffID] = stat
		}

		hours := shift.DurationHours()
		stat.TotalHours += hours
		stat.ShiftCount++
		if isWeekend(shift.Date) {
			stat.WeekendShifts++
		}

		rate := shift.HourlyRate
		if st := staffMap[a.StaffID]; st != nil && st.HourlyRate > 0 {
			rate = st.HourlyRate
		}
		stat.LaborCost += rate * hours
	}

	staffStats := make([]StaffStat, 0, len(statMap))
	for _, stat := range statMap {
		staffStats = append(staffStats, *stat)
	}
	sort.Slice(staffStats, func(i, j int) bool {
		if staffStats[i].TotalHours != staffStats[j].TotalHours {
			return staffStats[i].TotalHours > staffStats[j].TotalHours
		}
		return staffStats[i].StaffID.String() < staffStats[j].StaffID.String()
	})

	hours := make([]float64, len(staffStats))
	weekend := make([]float64, len(staffStats))
	for i, stat := range staffStats {
		hours[i] = stat.TotalHours
		weekend[i] = float64(stat.WeekendShifts)
	}

	avg := mean(hours)
	variance := varianceOf(hours, avg)
	stdDev := math.Sqrt(variance)
	maxH, minH := extremes(hours)

	for i := range staffStats {
		if avg > 0 {
			staffStats[i].Deviation = (staffStats[i].TotalHours - avg) / avg * 100
		}
	}

	workloadGini := gini(hours)
	weekendGini := gini(weekend)

	return &FairnessMetrics{
		WorkloadGini:     workloadGini,
		WorkloadStdDev:   stdDev,
		WorkloadVariance: variance,
		AvgHours:         avg,
		MaxHours:         maxH,
		MinHours:         minH,
		HoursRange:       maxH - minH,
		WeekendGini:      weekendGini,
		StaffStats:       staffStats,
		OverallScore:     overallScore(workloadGini, weekendGini, stdDev, avg),
	}
}

// isWeekend 判断日期是否为周末
func isWeekend(dateStr string) bool {
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return false
	}
	return date.Weekday() == time.Saturday || date.Weekday() == time.Sunday
}

// mean 计算平均值
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// varianceOf 计算方差
func varianceOf(values []float64, avg float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSquares := 0.0
	for _, v := range values {
		diff := v - avg
		sumSquares += diff * diff
	}
	return sumSquares / float64(len(values))
}

// extremes 计算极值
func extremes(values []float64) (max, min float64) {
	if len(values) == 0 {
		return 0, 0
	}
	max, min = values[0], values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	return
}

// gini 计算基尼系数
func gini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	if sum == 0 {
		return 0
	}

	g := 0.0
	for i, v := range sorted {
		g += (2*float64(i+1) - float64(n) - 1) * v
	}
	g = g / (float64(n) * sum)
	return math.Max(0, math.Min(1, g))
}

// overallScore 计算综合公平性评分
func overallScore(workloadGini, weekendGini, stdDev, avg float64) float64 {
	const (
		workloadWeight = 0.5
		weekendWeight  = 0.3
		cvWeight       = 0.2
	)

	workloadScore := (1 - workloadGini) * 100
	weekendScore := (1 - weekendGini) * 100

	cvScore := 100.0
	if avg > 0 {
		cv := stdDev / avg
		cvScore = math.Max(0, 100-cv*200)
	}

	score := workloadWeight*workloadScore + weekendWeight*weekendScore + cvWeight*cvScore
	return math.Max(0, math.Min(100, score))
}
