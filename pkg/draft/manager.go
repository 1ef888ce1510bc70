// Package draft 管理排班草稿的生命周期
package draft

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/canpai/canpai/pkg/errors"
	"github.com/canpai/canpai/pkg/logger"
	"github.com/canpai/canpai/pkg/model"
	"github.com/canpai/canpai/pkg/scheduler/availability"
	"github.com/canpai/canpai/pkg/scheduler/constraint"
	"github.com/canpai/canpai/pkg/scheduler/constraint/builtin"
	"github.com/canpai/canpai/pkg/scheduler/solver"
)

// ChangeType 草稿变更类型
type ChangeType string

const (
	ChangeAssign      ChangeType = "assign"
	ChangeUnassign    ChangeType = "unassign"
	ChangeMove        ChangeType = "move"
	ChangeAddShift    ChangeType = "add_shift"
	ChangeRemoveShift ChangeType = "remove_shift"
	ChangeEditShift   ChangeType = "edit_shift"
)

// Change 一次草稿变更
type Change struct {
	Type         ChangeType   `json:"type"`
	AssignmentID uuid.UUID    `json:"assignment_id,omitempty"`
	ShiftID      uuid.UUID    `json:"shift_id,omitempty"`
	StaffID      uuid.UUID    `json:"staff_id,omitempty"`
	Shift        *model.Shift `json:"shift,omitempty"`
	Override     bool         `json:"override,omitempty"`
	Note         string       `json:"note,omitempty"`
}

// ChangeResult 变更结果
type ChangeResult struct {
	Draft      *model.ScheduleDraft         `json:"draft"`
	Assignment *model.DraftAssignment       `json:"assignment,omitempty"`
	Warnings   []constraint.ViolationDetail `json:"warnings,omitempty"`
}

// Manager 草稿管理器
// 每个草稿持有独立互斥锁，并发变更串行化
type Manager struct {
	store  Store
	source GateSource
	policy availability.Policy

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewManager 创建草稿管理器
func NewManager(store Store, source GateSource, policy availability.Policy) *Manager {
	return &Manager{
		store:  store,
		source: source,
		policy: policy,
		locks:  make(map[uuid.UUID]*sync.Mutex),
	}
}

// lockDraft 获取草稿专属锁
func (m *Manager) lockDraft(id uuid.UUID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[id] = lock
	}
	return lock
}

// Locked 在草稿专属锁内执行 fn，发布流程用它阻断并发编辑
func (m *Manager) Locked(id uuid.UUID, fn func() error) error {
	lock := m.lockDraft(id)
	lock.Lock()
	defer lock.Unlock()
	return fn()
}

// ReleaseLock 移除草稿专属锁，草稿进入终态（已发布/已归档）后调用
// 迟到的等待者醒来后会在 Mutable 检查上失败，不会产生并发写
func (m *Manager) ReleaseLock(id uuid.UUID) {
	m.mu.Lock()
	delete(m.locks, id)
	m.mu.Unlock()
}

// Store 返回底层存储
func (m *Manager) Store() Store {
	return m.store
}

// Source 返回商户数据源
func (m *Manager) Source() GateSource {
	return m.source
}

// CreateFromSolve 根据求解结果创建草稿
// 同商户范围重叠的未发布草稿被归档让位，返回被替代的草稿列表
func (m *Manager) CreateFromSolve(ctx context.Context, input *solver.Input, result *solver.Result, createdBy string) (*model.ScheduleDraft, []*model.ScheduleDraft, error) {
	if result == nil {
		return nil, nil, apperrors.InvalidInput("result", "求解结果不能为空")
	}

	draft := &model.ScheduleDraft{
		BaseModel:   model.NewBaseModel(),
		BizID:       input.BizID,
		CreatedBy:   createdBy,
		Range:       input.Range,
		Status:      model.DraftStatusDraft,
		AIGenerated: true,
		Confidence:  result.OverallConfidence,
		Version:     1,
		Params: model.JSONMap{
			"staff_count": len(input.Staff),
			"shift_count": len(input.Shifts),
			"rule_count":  len(input.Rules),
		},
	}

	assignments := make([]*model.DraftAssignment, len(result.Assignments))
	for i, a := range result.Assignments {
		c := *a
		c.DraftID = draft.ID
		assignments[i] = &c
	}

	// 快照持久化事件放大后的有效需求人数，容量校验与求解口径一致
	shifts := make([]*model.Shift, len(input.Shifts))
	for i, s := range input.Shifts {
		c := *s
		c.RequiredCount = model.EffectiveRequired(s, input.Events)
		shifts[i] = &c
	}

	// 重叠的旧草稿归档让位
	overlapping, err := m.store.FindOverlapping(ctx, input.BizID, input.Range, draft.ID)
	if err != nil {
		return nil, nil, err
	}
	var superseded []*model.ScheduleDraft
	for _, old := range overlapping {
		if err := m.Archive(ctx, old.ID); err != nil {
			return nil, nil, err
		}
		old.Status = model.DraftStatusArchived
		superseded = append(superseded, old)
		logger.Info().
			Str("draft_id", old.ID.String()).
			Str("replaced_by", draft.ID.String()).
			Msg("范围重叠的旧草稿已归档")
	}

	if err := m.store.SaveDraft(ctx, draft, shifts, assignments); err != nil {
		return nil, nil, err
	}
	return draft, superseded, nil
}

// Get 读取草稿及其班次快照和分配
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*model.ScheduleDraft, []*model.Shift, []*model.DraftAssignment, error) {
	return m.store.GetDraft(ctx, id)
}

// List 列出商户草稿
func (m *Manager) List(ctx context.Context, bizID uuid.UUID, status model.DraftStatus) ([]*model.ScheduleDraft, error) {
	return m.store.ListDrafts(ctx, bizID, status)
}

// Archive 归档草稿，已发布的草稿不能归档
func (m *Manager) Archive(ctx context.Context, id uuid.UUID) error {
	lock := m.lockDraft(id)
	lock.Lock()
	defer lock.Unlock()

	draft, shifts, assignments, err := m.store.GetDraft(ctx, id)
	if err != nil {
		return err
	}
	if draft.Status == model.DraftStatusPublished {
		return apperrors.DraftState(id.String(), string(draft.Status), string(model.DraftStatusDraft))
	}
	if draft.Status == model.DraftStatusArchived {
		return nil
	}

	draft.Status = model.DraftStatusArchived
	draft.UpdatedAt = time.Now()
	if err := m.store.UpdateDraft(ctx, draft, shifts, assignments); err != nil {
		return err
	}
	m.ReleaseLock(id)
	return nil
}

// buildContext 为草稿组装约束上下文与管理器
func (m *Manager) buildContext(ctx context.Context, draft *model.ScheduleDraft, shifts []*model.Shift, assignments []*model.DraftAssignment) (*constraint.Context, *constraint.Manager, *availability.Resolver, error) {
	staff, err := m.source.StaffForBiz(ctx, draft.BizID)
	if err != nil {
		return nil, nil, nil, err
	}
	rules, err := m.source.RulesForBiz(ctx, draft.BizID)
	if err != nil {
		return nil, nil, nil, err
	}
	prefs, err := m.source.PreferencesForBiz(ctx, draft.BizID)
	if err != nil {
		return nil, nil, nil, err
	}

	cm := constraint.NewManager()
	builtin.Build(cm, rules, prefs)

	schedCtx := constraint.NewContext(draft.BizID, draft.Range)
	schedCtx.SetStaff(staff)
	schedCtx.SetShifts(shifts)
	schedCtx.SetAssignments(assignments)

	return schedCtx, cm, availability.NewResolver(m.policy), nil
}

// ApplyChange 对草稿应用一次变更
// 硬约束校验失败且未声明强制覆盖时拒绝；容量上限即使覆盖也不可突破
func (m *Manager) ApplyChange(ctx context.Context, draftID uuid.UUID, change *Change) (*ChangeResult, error) {
	lock := m.lockDraft(draftID)
	lock.Lock()
	defer lock.Unlock()

	draft, shifts, assignments, err := m.store.GetDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if !draft.Mutable() {
		return nil, apperrors.DraftState(draftID.String(), string(draft.Status), string(model.DraftStatusDraft))
	}

	schedCtx, cm, resolver, err := m.buildContext(ctx, draft, shifts, assignments)
	if err != nil {
		return nil, err
	}

	result := &ChangeResult{}
	switch change.Type {
	case ChangeAssign:
		result.Assignment, result.Warnings, err = m.applyAssign(schedCtx, cm, resolver, draft, change, change.ShiftID, change.StaffID)
	case ChangeUnassign:
		err = m.applyUnassign(schedCtx, change.AssignmentID)
	case ChangeMove:
		result.Assignment, result.Warnings, err = m.applyMove(schedCtx, cm, resolver, draft, change)
	case ChangeAddShift:
		shifts, err = m.applyAddShift(schedCtx, draft, shifts, change.Shift)
	case ChangeRemoveShift:
		shifts, err = m.applyRemoveShift(schedCtx, shifts, change.ShiftID)
	case ChangeEditShift:
		shifts, result.Warnings, err = m.applyEditShift(schedCtx, cm, shifts, change)
	default:
		err = apperrors.InvalidInput("type", "未知的变更类型: "+string(change.Type))
	}
	if err != nil {
		return nil, err
	}

	draft.Version++
	draft.UpdatedAt = time.Now()
	if err := m.store.UpdateDraft(ctx, draft, shifts, schedCtx.Assignments); err != nil {
		return nil, err
	}

	result.Draft = draft
	return result, nil
}

// applyAssign 新增一条人工分配
func (m *Manager) applyAssign(schedCtx *constraint.Context, cm *constraint.Manager, resolver *availability.Resolver, draft *model.ScheduleDraft, change *Change, shiftID, staffID uuid.UUID) (*model.DraftAssignment, []constraint.ViolationDetail, error) {
	shift := schedCtx.GetShift(shiftID)
	if shift == nil {
		return nil, nil, apperrors.NotFound("shift", shiftID.String())
	}
	staff := schedCtx.GetStaff(staffID)
	if staff == nil {
		return nil, nil, apperrors.NotFound("staff", staffID.String())
	}
	if schedCtx.HasAssignment(shiftID, staffID) {
		return nil, nil, apperrors.ConstraintViolation("duplicate_assignment", "员工已在该班次中")
	}

	// 容量上限不可突破，强制覆盖也不行
	if len(schedCtx.ShiftAssignments(shiftID)) >= shift.RequiredCount {
		return nil, nil, apperrors.ConstraintViolation("shift_capacity",
			"班次人数已满，无法继续分配")
	}

	assignment := &model.DraftAssignment{
		BaseModel:      model.NewBaseModel(),
		DraftID:        draft.ID,
		ShiftID:        shiftID,
		StaffID:        staffID,
		AIGenerated:    false,
		ManualOverride: change.Override,
		OverrideNote:   change.Note,
	}

	var warnings []constraint.ViolationDetail
	if !change.Override {
		if ok, reason := resolver.IsAvailable(staff, shift); !ok {
			return nil, nil, apperrors.ConstraintViolation("availability",
				"员工 "+staff.Name+" 不可用: "+reason)
		}
		if ok, violations := cm.CanAssign(schedCtx, assignment); !ok {
			return nil, nil, apperrors.ConstraintViolation(string(violations[0].ConstraintType),
				violations[0].Message)
		}
	} else {
		// 强制覆盖：硬约束违反降级为警告并记录
		_, violations := cm.CanAssign(schedCtx, assignment)
		warnings = violations
	}

	schedCtx.AddAssignment(assignment)
	return assignment, warnings, nil
}

// applyUnassign 移除一条分配
func (m *Manager) applyUnassign(schedCtx *constraint.Context, assignmentID uuid.UUID) error {
	for _, a := range schedCtx.Assignments {
		if a.ID == assignmentID {
			schedCtx.RemoveAssignment(assignmentID)
			return nil
		}
	}
	return apperrors.NotFound("assignment", assignmentID.String())
}

// applyMove 把分配移动到另一个班次，等价于删除后重新分配
func (m *Manager) applyMove(schedCtx *constraint.Context, cm *constraint.Manager, resolver *availability.Resolver, draft *model.ScheduleDraft, change *Change) (*model.DraftAssignment, []constraint.ViolationDetail, error) {
	var moved *model.DraftAssignment
	for _, a := range schedCtx.Assignments {
		if a.ID == change.AssignmentID {
			moved = a
			break
		}
	}
	if moved == nil {
		return nil, nil, apperrors.NotFound("assignment", change.AssignmentID.String())
	}

	schedCtx.RemoveAssignment(moved.ID)
	assignment, warnings, err := m.applyAssign(schedCtx, cm, resolver, draft, change, change.ShiftID, moved.StaffID)
	if err != nil {
		// 回滚移除
		schedCtx.AddAssignment(moved)
		return nil, nil, err
	}
	return assignment, warnings, nil
}

// applyAddShift 向草稿快照添加班次
func (m *Manager) applyAddShift(schedCtx *constraint.Context, draft *model.ScheduleDraft, shifts []*model.Shift, shift *model.Shift) ([]*model.Shift, error) {
	if shift == nil {
		return nil, apperrors.InvalidInput("shift", "班次不能为空")
	}
	if err := shift.Validate(); err != nil {
		return nil, apperrors.InvalidInput("shift", err.Error())
	}
	if !draft.Range.ContainsDate(shift.Date) {
		return nil, apperrors.InvalidInput("shift", "班次日期超出草稿范围")
	}
	if shift.ID == uuid.Nil {
		shift.BaseModel = model.NewBaseModel()
	}
	if schedCtx.GetShift(shift.ID) != nil {
		return nil, apperrors.New(apperrors.CodeAlreadyExists, "班次已存在")
	}

	shifts = append(shifts, shift)
	schedCtx.SetShifts(shifts)
	return shifts, nil
}

// applyRemoveShift 从草稿快照移除班次及其全部分配
func (m *Manager) applyRemoveShift(schedCtx *constraint.Context, shifts []*model.Shift, shiftID uuid.UUID) ([]*model.Shift, error) {
	idx := -1
	for i, s := range shifts {
		if s.ID == shiftID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, apperrors.NotFound("shift", shiftID.String())
	}

	for _, a := range schedCtx.ShiftAssignments(shiftID) {
		schedCtx.RemoveAssignment(a.ID)
	}
	shifts = append(shifts[:idx], shifts[idx+1:]...)
	schedCtx.SetShifts(shifts)
	return shifts, nil
}

// applyEditShift 修改班次快照
// 修改后重验全局硬约束，未覆盖时违反即拒绝
func (m *Manager) applyEditShift(schedCtx *constraint.Context, cm *constraint.Manager, shifts []*model.Shift, change *Change) ([]*model.Shift, []constraint.ViolationDetail, error) {
	if change.Shift == nil {
		return nil, nil, apperrors.InvalidInput("shift", "班次不能为空")
	}
	if err := change.Shift.Validate(); err != nil {
		return nil, nil, apperrors.InvalidInput("shift", err.Error())
	}

	idx := -1
	for i, s := range shifts {
		if s.ID == change.ShiftID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil, apperrors.NotFound("shift", change.ShiftID.String())
	}

	// 人数缩减后超出容量的分配必须先手动移除
	if len(schedCtx.ShiftAssignments(change.ShiftID)) > change.Shift.RequiredCount {
		return nil, nil, apperrors.ConstraintViolation("shift_capacity",
			"修改后的需求人数小于已有分配数，请先移除多余分配")
	}

	original := shifts[idx]
	edited := *change.Shift
	edited.BaseModel = original.BaseModel
	edited.BizID = original.BizID
	shifts[idx] = &edited
	schedCtx.SetShifts(shifts)

	valid, violations := cm.EvaluateHard(schedCtx)
	if !valid && !change.Override {
		// 回滚修改
		shifts[idx] = original
		schedCtx.SetShifts(shifts)
		return nil, nil, apperrors.ConstraintViolation(string(violations[0].ConstraintType),
			violations[0].Message)
	}
	if !valid {
		return shifts, violations, nil
	}
	return shifts, nil, nil
}

// Validate 对草稿做全量约束评估
func (m *Manager) Validate(ctx context.Context, draftID uuid.UUID) (*constraint.Result, []*solver.UnresolvedShift, error) {
	draft, shifts, assignments, err := m.store.GetDraft(ctx, draftID)
	if err != nil {
		return nil, nil, err
	}

	schedCtx, cm, _, err := m.buildContext(ctx, draft, shifts, assignments)
	if err != nil {
		return nil, nil, err
	}

	result := cm.Evaluate(schedCtx)

	var understaffed []*solver.UnresolvedShift
	for _, shift := range shifts {
		assigned := len(schedCtx.ShiftAssignments(shift.ID))
		if assigned < shift.RequiredCount {
			understaffed = append(understaffed, &solver.UnresolvedShift{
				ShiftID: shift.ID,
				Date:    shift.Date,
				Missing: shift.RequiredCount - assigned,
				Reason:  "班次未排满",
			})
		}
	}
	return result, understaffed, nil
}
