// Package builtin 提供内置约束实现
package builtin

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/canpai/canpai/pkg/model"
	"github.com/canpai/canpai/pkg/scheduler/constraint"
)

// MinRestConstraint 最小休息间隔约束（硬约束）
// 同一员工相邻班次之间必须间隔至少 minRest 小时，时间重叠视为间隔为零
type MinRestConstraint struct {
	*BaseConstraint
	minRest float64
}

// NewMinRestConstraint 创建最小休息间隔约束
func NewMinRestConstraint(weight int, minRest float64) *MinRestConstraint {
	return &MinRestConstraint{
		BaseConstraint: NewBaseConstraint(
			"最小休息间隔",
			model.ConstraintMinRest,
			constraint.CategoryHard,
			weight,
		),
		minRest: minRest,
	}
}

// staffWindows 收集员工所有分配的班次时间窗，按开始时间排序
func staffWindows(ctx *constraint.Context, staffID uuid.UUID) []shiftWindow {
	var windows []shiftWindow
	for _, a := range ctx.StaffAssignments(staffID) {
		shift := ctx.GetShift(a.ShiftID)
		if shift == nil {
			continue
		}
		w, err := shift.Window()
		if err != nil {
			continue
		}
		windows = append(windows, shiftWindow{shift: shift, window: w})
	}
	sort.Slice(windows, func(i, j int) bool {
		if !windows[i].window.Start.Equal(windows[j].window.Start) {
			return windows[i].window.Start.Before(windows[j].window.Start)
		}
		return windows[i].shift.ID.String() < windows[j].shift.ID.String()
	})
	return windows
}

type shiftWindow struct {
	shift  *model.Shift
	window model.TimeRange
}

// restViolation 检查两个班次窗之间的休息是否充足
func (c *MinRestConstraint) restViolation(staff *model.Staff, prev, next shiftWindow) (constraint.ViolationDetail, bool) {
	gap := next.window.Start.Sub(prev.window.End).Hours()
	if prev.window.Overlaps(next.window) {
		gap = 0
	}
	if gap >= c.minRest {
		return constraint.ViolationDetail{}, false
	}

	penalty := c.Weight() * int(math.Ceil(c.minRest-gap))
	d := c.violation(staff.ID, next.shift.ID, next.shift.Date,
		fmt.Sprintf("员工 %s 班次间隔 %.1f 小时，低于最小休息 %.1f 小时",
			staff.Name, gap, c.minRest),
		penalty)
	d.ConflictShift = prev.shift.ID
	return d, true
}

// Evaluate 评估整个排班 - 检查每个员工相邻班次的间隔
func (c *MinRestConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	totalPenalty := 0

	for _, staff := range ctx.Staff {
		windows := staffWindows(ctx, staff.ID)
		for i := 1; i < len(windows); i++ {
			if d, bad := c.restViolation(staff, windows[i-1], windows[i]); bad {
				totalPenalty += d.Penalty
				violations = append(violations, d)
			}
		}
	}

	return len(violations) == 0, totalPenalty, violations
}

// EvaluateAssignment 评估单个分配 - 检查与该员工现有班次的间隔
func (c *MinRestConstraint) EvaluateAssignment(ctx *constraint.Context, a *model.DraftAssignment) (bool, int, []constraint.ViolationDetail) {
	staff := ctx.GetStaff(a.StaffID)
	shift := ctx.GetShift(a.ShiftID)
	if staff == nil || shift == nil {
		return true, 0, nil
	}
	window, err := shift.Window()
	if err != nil {
		return true, 0, nil
	}
	candidate := shiftWindow{shift: shift, window: window}

	var violations []constraint.ViolationDetail
	totalPenalty := 0

	for _, existing := range staffWindows(ctx, staff.ID) {
		if existing.shift.ID == shift.ID {
			continue
		}
		prev, next := existing, candidate
		if candidate.window.Start.Before(existing.window.Start) {
			prev, next = candidate, existing
		}
		if d, bad := c.restViolation(staff, prev, next); bad {
			// 违规始终归到候选班次上，便于回溯定位
			d.ShiftID = shift.ID
			d.ConflictShift = existing.shift.ID
			d.Date = shift.Date
			totalPenalty += d.Penalty
			violations = append(violations, d)
		}
	}

	return len(violations) == 0, totalPenalty, violations
}

// MaxConsecutiveDaysConstraint 最大连续工作天数约束
// 规则优先级为 critical 时是硬约束，否则为软约束；员工个人上限优先
type MaxConsecutiveDaysConstraint struct {
	*BaseConstraint
	defaultMax int
}

// NewMaxConsecutiveDaysConstraint 创建最大连续工作天数约束
func NewMaxConsecutiveDaysConstraint(weight int, cat constraint.Category, defaultMax int) *MaxConsecutiveDaysConstraint {
	return &MaxConsecutiveDaysConstraint{
		BaseConstraint: NewBaseConstraint(
			"最大连续工作天数",
			model.ConstraintMaxConsecutiveShifts,
			cat,
			weight,
		),
		defaultMax: defaultMax,
	}
}

// limitFor 返回员工的有效连续天数上限
func (c *MaxConsecutiveDaysConstraint) limitFor(staff *model.Staff) int {
	if staff.MaxConsecutiveDays > 0 {
		return staff.MaxConsecutiveDays
	}
	return c.defaultMax
}

// Evaluate 评估整个排班 - 找出每个员工的最长连续工作段
func (c *MaxConsecutiveDaysConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	totalPenalty := 0
	hardValid := true

	for _, staff := range ctx.Staff {
		limit := c.limitFor(staff)
		if limit <= 0 {
			continue
		}
		dates := ctx.WorkDates(staff.ID)
		if len(dates) == 0 {
			continue
		}

		sorted := make([]string, 0, len(dates))
		for d := range dates {
			sorted = append(sorted, d)
		}
		sort.Strings(sorted)

		runStart, runLen := sorted[0], 1
		flush := func(endDate string) {
			if runLen <= limit {
				return
			}
			penalty := c.Weight() * (runLen - limit)
			totalPenalty += penalty
			if c.Category() == constraint.CategoryHard {
				hardValid = false
			}
			violations = append(violations, c.violation(staff.ID, uuid.Nil, endDate,
				fmt.Sprintf("员工 %s 自 %s 起连续工作 %d 天，超过上限 %d 天",
					staff.Name, runStart, runLen, limit),
				penalty))
		}
		for i := 1; i < len(sorted); i++ {
			if sorted[i] == nextDay(sorted[i-1]) {
				runLen++
				continue
			}
			flush(sorted[i-1])
			runStart, runLen = sorted[i], 1
		}
		flush(sorted[len(sorted)-1])
	}

	if c.Category() == constraint.CategorySoft {
		return true, totalPenalty, violations
	}
	return hardValid, totalPenalty, violations
}

// EvaluateAssignment 评估单个分配 - 分配后是否导致连续天数超限
func (c *MaxConsecutiveDaysConstraint) EvaluateAssignment(ctx *constraint.Context, a *model.DraftAssignment) (bool, int, []constraint.ViolationDetail) {
	staff := ctx.GetStaff(a.StaffID)
	shift := ctx.GetShift(a.ShiftID)
	if staff == nil || shift == nil {
		return true, 0, nil
	}
	limit := c.limitFor(staff)
	if limit <= 0 {
		return true, 0, nil
	}

	// 目标日已有班次时不会增加连续天数
	if ctx.WorkDates(staff.ID)[shift.Date] {
		return true, 0, nil
	}

	run := ctx.ConsecutiveDaysAround(staff.ID, shift.Date) + 1
	if run <= limit {
		return true, 0, nil
	}

	penalty := c.Weight() * (run - limit)
	d := c.violation(staff.ID, shift.ID, shift.Date,
		fmt.Sprintf("员工 %s 分配后将连续工作 %d 天，超过上限 %d 天",
			staff.Name, run, limit),
		penalty)
	if c.Category() == constraint.CategorySoft {
		return true, penalty, []constraint.ViolationDetail{d}
	}
	return false, penalty, []constraint.ViolationDetail{d}
}

// nextDay 获取后一天日期
func nextDay(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, 1).Format("2006-01-02")
}
