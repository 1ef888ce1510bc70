// Package availability 计算员工可用性
// 每周重复可用时间减去生效的请假窗口，纯函数，无副作用
package availability

import (
	"sort"
	"time"

	"github.com/canpai/canpai/pkg/model"
)

// 不可用原因
const (
	ReasonNoRecurring  = "当天无重复可用时间"
	ReasonTimeOff      = "请假/不可用窗口冲突"
	ReasonNotContained = "班次超出可用时间段"
	ReasonBadWindow    = "班次时间无效"
)

// Policy 可用性判定策略
// 默认仅已批准的请假窗口生效；BlockPendingTimeOff 为 true 时待批准窗口同样生效
type Policy struct {
	BlockPendingTimeOff bool
}

// Resolver 可用性解析器
type Resolver struct {
	policy Policy
}

// NewResolver 创建可用性解析器
func NewResolver(policy Policy) *Resolver {
	return &Resolver{policy: policy}
}

// binding 检查请假窗口在当前策略下是否生效
func (r *Resolver) binding(w model.TimeOffWindow) bool {
	if w.Approved() {
		return true
	}
	return r.policy.BlockPendingTimeOff && w.Status == model.TimeOffPending
}

// IsAvailable 检查员工能否承担某班次
// 班次区间必须完整落在减去请假后的某个剩余可用时间段内
func (r *Resolver) IsAvailable(staff *model.Staff, shift *model.Shift) (bool, string) {
	window, err := shift.Window()
	if err != nil {
		return false, ReasonBadWindow
	}

	recurring := staff.WeeklyAvailability[shift.Weekday()]
	if len(recurring) == 0 {
		return false, ReasonNoRecurring
	}

	hadWindow := false
	for _, cr := range recurring {
		avail, err := cr.OnDate(shift.Date)
		if err != nil {
			continue
		}
		if !avail.ContainsRange(window) {
			continue
		}
		hadWindow = true

		// 从该可用段中减去生效的请假窗口
		remaining := r.subtractTimeOff(staff, avail, shift.Date)
		for _, seg := range remaining {
			if seg.ContainsRange(window) {
				return true, ""
			}
		}
	}

	if hadWindow {
		return false, ReasonTimeOff
	}
	return false, ReasonNotContained
}

// AvailableWindows 返回员工在日期范围内的全部剩余可用时间段
func (r *Resolver) AvailableWindows(staff *model.Staff, rng model.DateRange) []model.TimeRange {
	var windows []model.TimeRange
	for _, date := range rng.Days() {
		day := model.Shift{Date: date}
		for _, cr := range staff.WeeklyAvailability[day.Weekday()] {
			avail, err := cr.OnDate(date)
			if err != nil {
				continue
			}
			windows = append(windows, r.subtractTimeOff(staff, avail, date)...)
		}
	}
	sort.Slice(windows, func(i, j int) bool {
		return windows[i].Start.Before(windows[j].Start)
	})
	return windows
}

// subtractTimeOff 从可用段中减去生效的请假窗口
// 跨午夜可用段溢出到次日的部分同样受次日请假窗口约束
func (r *Resolver) subtractTimeOff(staff *model.Staff, avail model.TimeRange, date string) []model.TimeRange {
	segments := []model.TimeRange{avail}
	for _, d := range coveredDates(avail, date) {
		for _, off := range staff.TimeOff {
			if !r.binding(off) || !off.CoversDate(d) {
				continue
			}
			blocked, err := off.Window(d)
			if err != nil {
				continue
			}
			segments = subtract(segments, blocked)
		}
	}
	return segments
}

// coveredDates 返回可用段触及的日历日期，跨午夜时包含次日
func coveredDates(avail model.TimeRange, date string) []string {
	dates := []string{date}
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return dates
	}
	if avail.End.After(day.AddDate(0, 0, 1)) {
		dates = append(dates, day.AddDate(0, 0, 1).Format("2006-01-02"))
	}
	return dates
}

// subtract 从一组时间段中挖去一个区间
func subtract(segments []model.TimeRange, blocked model.TimeRange) []model.TimeRange {
	var result []model.TimeRange
	for _, seg := range segments {
		if !seg.Overlaps(blocked) {
			result = append(result, seg)
			continue
		}
		if blocked.Start.After(seg.Start) {
			result = append(result, model.TimeRange{Start: seg.Start, End: blocked.Start})
		}
		if blocked.End.Before(seg.End) {
			result = append(result, model.TimeRange{Start: blocked.End, End: seg.End})
		}
	}
	return result
}
