// Package constraint 定义约束接口和管理器
package constraint

import (
	"github.com/google/uuid"
	"github.com/canpai/canpai/pkg/model"
)

// Category 约束类别
type Category string

const (
	CategoryHard Category = "hard" // 硬约束（必须满足）
	CategorySoft Category = "soft" // 软约束（尽量满足）
)

// Constraint 约束接口
type Constraint interface {
	// Name 返回约束名称
	Name() string

	// Type 返回约束类型
	Type() model.ConstraintType

	// Category 返回约束类别
	Category() Category

	// Weight 返回约束权重 (1-100)
	Weight() int

	// Evaluate 评估整个排班方案
	// 返回：是否满足、惩罚值、违反详情
	Evaluate(ctx *Context) (valid bool, penalty int, details []ViolationDetail)

	// EvaluateAssignment 评估单个分配
	// 返回：是否满足、惩罚值、违反详情
	EvaluateAssignment(ctx *Context, a *model.DraftAssignment) (valid bool, penalty int, details []ViolationDetail)
}

// ViolationDetail 约束违反详情
type ViolationDetail struct {
	ConstraintType model.ConstraintType `json:"constraint_type"`
	ConstraintName string               `json:"constraint_name"`
	StaffID        uuid.UUID            `json:"staff_id,omitempty"`
	ShiftID        uuid.UUID            `json:"shift_id,omitempty"`
	ConflictShift  uuid.UUID            `json:"conflict_shift_id,omitempty"`
	Date           string               `json:"date,omitempty"`
	Message        string               `json:"message"`
	Severity       string               `json:"severity"` // error/warning
	Penalty        int                  `json:"penalty"`
}

// Context 排班上下文
type Context struct {
	// 输入数据
	BizID  uuid.UUID      `json:"biz_id"`
	Range  model.DateRange `json:"range"`
	Staff  []*model.Staff `json:"staff"`
	Shifts []*model.Shift `json:"shifts"`

	// 当前排班结果
	Assignments []*model.DraftAssignment `json:"assignments"`

	// 索引缓存
	staffMap map[uuid.UUID]*model.Staff
	shiftMap map[uuid.UUID]*model.Shift
	byStaff  map[uuid.UUID][]*model.DraftAssignment
	byShift  map[uuid.UUID][]*model.DraftAssignment
}

// NewContext 创建新的排班上下文
func NewContext(bizID uuid.UUID, rng model.DateRange) *Context {
	return &Context{
		BizID:    bizID,
		Range:    rng,
		staffMap: make(map[uuid.UUID]*model.Staff),
		shiftMap: make(map[uuid.UUID]*model.Shift),
		byStaff:  make(map[uuid.UUID][]*model.DraftAssignment),
		byShift:  make(map[uuid.UUID][]*model.DraftAssignment),
	}
}

// SetStaff 设置员工列表
func (c *Context) SetStaff(staff []*model.Staff) {
	c.Staff = staff
	c.staffMap = make(map[uuid.UUID]*model.Staff, len(staff))
	for _, s := range staff {
		c.staffMap[s.ID] = s
	}
}

// SetShifts 设置班次列表
func (c *Context) SetShifts(shifts []*model.Shift) {
	c.Shifts = shifts
	c.shiftMap = make(map[uuid.UUID]*model.Shift, len(shifts))
	for _, s := range shifts {
		c.shiftMap[s.ID] = s
	}
}

// SetAssignments 设置排班分配
func (c *Context) SetAssignments(assignments []*model.DraftAssignment) {
	c.Assignments = assignments
	c.rebuildIndexes()
}

// AddAssignment 添加排班分配
func (c *Context) AddAssignment(a *model.DraftAssignment) {
	c.Assignments = append(c.Assignments, a)
	c.byStaff[a.StaffID] = append(c.byStaff[a.StaffID], a)
	c.byShift[a.ShiftID] = append(c.byShift[a.ShiftID], a)
}

// RemoveAssignment 移除排班分配
func (c *Context) RemoveAssignment(id uuid.UUID) {
	for i, a := range c.Assignments {
		if a.ID == id {
			c.Assignments = append(c.Assignments[:i], c.Assignments[i+1:]...)
			break
		}
	}
	c.rebuildIndexes()
}

// rebuildIndexes 重建分配索引
func (c *Context) rebuildIndexes() {
	c.byStaff = make(map[uuid.UUID][]*model.DraftAssignment)
	c.byShift = make(map[uuid.UUID][]*model.DraftAssignment)
	for _, a := range c.Assignments {
		c.byStaff[a.StaffID] = append(c.byStaff[a.StaffID], a)
		c.byShift[a.ShiftID] = append(c.byShift[a.ShiftID], a)
	}
}

// GetStaff 获取员工
func (c *Context) GetStaff(id uuid.UUID) *model.Staff {
	return c.staffMap[id]
}

// GetShift 获取班次
func (c *Context) GetShift(id uuid.UUID) *model.Shift {
	return c.shiftMap[id]
}

// StaffAssignments 获取员工的所有分配
func (c *Context) StaffAssignments(staffID uuid.UUID) []*model.DraftAssignment {
	return c.byStaff[staffID]
}

// ShiftAssignments 获取班次的所有分配
func (c *Context) ShiftAssignments(shiftID uuid.UUID) []*model.DraftAssignment {
	return c.byShift[shiftID]
}

// HasAssignment 检查 (班次, 员工) 对是否已存在
func (c *Context) HasAssignment(shiftID, staffID uuid.UUID) bool {
	for _, a := range c.byShift[shiftID] {
		if a.StaffID == staffID {
			return true
		}
	}
	return false
}

// PlannedHoursInWeek 员工在某周的已计划工时（不含已发布历史）
func (c *Context) PlannedHoursInWeek(staffID uuid.UUID, weekStart string) float64 {
	var hours float64
	for _, a := range c.byStaff[staffID] {
		shift := c.shiftMap[a.ShiftID]
		if shift == nil {
			continue
		}
		if model.WeekStart(shift.Date) == weekStart {
			hours += shift.DurationHours()
		}
	}
	return hours
}

// TotalHoursInWeek 员工在某周的总工时（已计划 + 已发布历史）
func (c *Context) TotalHoursInWeek(staffID uuid.UUID, weekStart string) float64 {
	planned := c.PlannedHoursInWeek(staffID, weekStart)
	staff := c.staffMap[staffID]
	if staff == nil {
		return planned
	}
	return planned + staff.CommittedHoursInWeek(weekStart)
}

// PlannedHours 员工在整个排班周期内的已计划工时
func (c *Context) PlannedHours(staffID uuid.UUID) float64 {
	var hours float64
	for _, a := range c.byStaff[staffID] {
		if shift := c.shiftMap[a.ShiftID]; shift != nil {
			hours += shift.DurationHours()
		}
	}
	return hours
}

// WorkDates 员工的所有工作日期（去重）
func (c *Context) WorkDates(staffID uuid.UUID) map[string]bool {
	dates := make(map[string]bool)
	for _, a := range c.byStaff[staffID] {
		if shift := c.shiftMap[a.ShiftID]; shift != nil {
			dates[shift.Date] = true
		}
	}
	return dates
}

// ConsecutiveDaysAround 员工在目标日期前后已排班的连续天数之和
// 目标日期本身不计入，调用方 +1 即为分配后的总连续天数
func (c *Context) ConsecutiveDaysAround(staffID uuid.UUID, targetDate string) int {
	dates := c.WorkDates(staffID)

	countBefore := 0
	current := previousDate(targetDate)
	for dates[current] {
		countBefore++
		current = previousDate(current)
		if countBefore > 30 {
			break
		}
	}

	countAfter := 0
	current = nextDate(targetDate)
	for dates[current] {
		countAfter++
		current = nextDate(current)
		if countAfter > 30 {
			break
		}
	}

	return countBefore + countAfter
}

// Result 约束评估结果
type Result struct {
	IsValid        bool              `json:"is_valid"`
	TotalPenalty   int               `json:"total_penalty"`
	HardViolations []ViolationDetail `json:"hard_violations"`
	SoftViolations []ViolationDetail `json:"soft_violations"`
	Score          float64           `json:"score"` // 0-100
}

// CalculateScore 计算约束满足度得分
func (r *Result) CalculateScore(maxPenalty int) {
	if maxPenalty == 0 {
		r.Score = 100.0
		return
	}
	r.Score = 100.0 * float64(maxPenalty-r.TotalPenalty) / float64(maxPenalty)
	if r.Score < 0 {
		r.Score = 0
	}
}
