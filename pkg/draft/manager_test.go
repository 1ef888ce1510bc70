package draft

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/canpai/canpai/pkg/errors"
	"github.com/canpai/canpai/pkg/model"
	"github.com/canpai/canpai/pkg/scheduler/availability"
	"github.com/canpai/canpai/pkg/scheduler/solver"
)

// stubSource 固定返回的商户数据源
type stubSource struct {
	staff []*model.Staff
	rules []*model.SchedulingConstraint
	prefs []*model.StaffPreference
}

func (s *stubSource) StaffForBiz(ctx context.Context, bizID uuid.UUID) ([]*model.Staff, error) {
	return s.staff, nil
}

func (s *stubSource) RulesForBiz(ctx context.Context, bizID uuid.UUID) ([]*model.SchedulingConstraint, error) {
	return s.rules, nil
}

func (s *stubSource) PreferencesForBiz(ctx context.Context, bizID uuid.UUID) ([]*model.StaffPreference, error) {
	return s.prefs, nil
}

// 2025-06-02 是周一
func draftStaff(name string, skills ...string) *model.Staff {
	avail := make(map[time.Weekday][]model.ClockRange)
	for d := time.Sunday; d <= time.Saturday; d++ {
		avail[d] = []model.ClockRange{{Start: "08:00", End: "23:00"}}
	}
	return &model.Staff{
		BaseModel:          model.NewBaseModel(),
		Name:               name,
		Status:             "active",
		Skills:             skills,
		WeeklyAvailability: avail,
	}
}

func draftShift(date, start, end, skill string, required int) *model.Shift {
	return &model.Shift{
		BaseModel:     model.NewBaseModel(),
		Date:          date,
		StartTime:     start,
		EndTime:       end,
		RequiredSkill: skill,
		RequiredCount: required,
	}
}

type fixture struct {
	manager *Manager
	bizID   uuid.UUID
	cook    *model.Staff
	waiter  *model.Staff
	shiftA  *model.Shift
	shiftB  *model.Shift
	draft   *model.ScheduleDraft
	initial *model.DraftAssignment
}

// newFixture 构造一个含两班次、一条已有分配的草稿
func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		bizID:  uuid.New(),
		cook:   draftStaff("张三", "cooking"),
		waiter: draftStaff("李四", "service"),
		shiftA: draftShift("2025-06-02", "09:00", "17:00", "cooking", 2),
		shiftB: draftShift("2025-06-03", "09:00", "17:00", "", 1),
	}

	source := &stubSource{staff: []*model.Staff{f.cook, f.waiter}}
	f.manager = NewManager(NewMemoryStore(), source, availability.Policy{})

	f.draft = &model.ScheduleDraft{
		BaseModel: model.NewBaseModel(),
		BizID:     f.bizID,
		Status:    model.DraftStatusDraft,
		Range:     model.DateRange{StartDate: "2025-06-02", EndDate: "2025-06-08"},
		Version:   1,
	}
	f.initial = &model.DraftAssignment{
		BaseModel: model.NewBaseModel(),
		DraftID:   f.draft.ID,
		ShiftID:   f.shiftA.ID,
		StaffID:   f.cook.ID,
	}

	err := f.manager.Store().SaveDraft(context.Background(), f.draft,
		[]*model.Shift{f.shiftA, f.shiftB},
		[]*model.DraftAssignment{f.initial})
	if err != nil {
		t.Fatalf("SaveDraft() error = %v", err)
	}
	return f
}

func TestManager_CreateFromSolve(t *testing.T) {
	bizID := uuid.New()
	source := &stubSource{staff: []*model.Staff{draftStaff("张三", "cooking")}}
	m := NewManager(NewMemoryStore(), source, availability.Policy{})

	shift := draftShift("2025-06-02", "09:00", "17:00", "cooking", 1)
	input := &solver.Input{
		BizID:  bizID,
		Range:  model.DateRange{StartDate: "2025-06-02", EndDate: "2025-06-08"},
		Staff:  source.staff,
		Shifts: []*model.Shift{shift},
	}
	result := &solver.Result{
		Assignments: []*model.DraftAssignment{{
			BaseModel:   model.NewBaseModel(),
			ShiftID:     shift.ID,
			StaffID:     source.staff[0].ID,
			AIGenerated: true,
			Confidence:  0.8,
		}},
		OverallConfidence: 0.8,
	}

	draft, superseded, err := m.CreateFromSolve(context.Background(), input, result, "manager@test")
	if err != nil {
		t.Fatalf("CreateFromSolve() error = %v", err)
	}
	if draft.Status != model.DraftStatusDraft || draft.Version != 1 {
		t.Errorf("新草稿状态错误: status=%s version=%d", draft.Status, draft.Version)
	}
	if !draft.AIGenerated || draft.Confidence != 0.8 {
		t.Error("求解生成的草稿应携带 AI 标记和信心值")
	}
	if len(superseded) != 0 {
		t.Errorf("首个草稿不应替代任何草稿: %d", len(superseded))
	}

	_, shifts, assignments, err := m.Get(context.Background(), draft.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(shifts) != 1 || len(assignments) != 1 {
		t.Fatalf("快照不完整: shifts=%d assignments=%d", len(shifts), len(assignments))
	}
	if assignments[0].DraftID != draft.ID {
		t.Error("分配应挂到新草稿上")
	}

	// 范围重叠的第二份草稿把第一份归档让位
	second, superseded, err := m.CreateFromSolve(context.Background(), input, result, "manager@test")
	if err != nil {
		t.Fatalf("第二次 CreateFromSolve() error = %v", err)
	}
	if len(superseded) != 1 || superseded[0].ID != draft.ID {
		t.Fatalf("旧草稿应被替代: %+v", superseded)
	}
	if superseded[0].Status != model.DraftStatusArchived {
		t.Error("被替代的草稿应处于归档状态")
	}
	old, _, _, _ := m.Get(context.Background(), draft.ID)
	if old.Status != model.DraftStatusArchived {
		t.Error("存储中的旧草稿应已归档")
	}
	if second.ID == draft.ID {
		t.Error("新草稿应有独立 ID")
	}
}

func TestManager_CreateFromSolve_EventScaledCapacity(t *testing.T) {
	bizID := uuid.New()
	team := []*model.Staff{
		draftStaff("张三", "cooking"),
		draftStaff("李四", "cooking"),
		draftStaff("王五", "cooking"),
	}
	m := NewManager(NewMemoryStore(), &stubSource{staff: team}, availability.Policy{})

	// 高影响事件把 2 人需求放大到 3，求解结果填满 3 个空位
	shift := draftShift("2025-06-02", "09:00", "17:00", "cooking", 2)
	input := &solver.Input{
		BizID:  bizID,
		Range:  model.DateRange{StartDate: "2025-06-02", EndDate: "2025-06-08"},
		Staff:  team,
		Shifts: []*model.Shift{shift},
		Events: []*model.SpecialEvent{{Date: "2025-06-02", Impact: model.ImpactHigh}},
	}
	result := &solver.Result{OverallConfidence: 0.8}
	for _, s := range team {
		result.Assignments = append(result.Assignments, &model.DraftAssignment{
			BaseModel:   model.NewBaseModel(),
			ShiftID:     shift.ID,
			StaffID:     s.ID,
			AIGenerated: true,
		})
	}

	draft, _, err := m.CreateFromSolve(context.Background(), input, result, "manager@test")
	if err != nil {
		t.Fatalf("CreateFromSolve() error = %v", err)
	}

	// 快照存放大后的有效需求人数，3 条分配不构成超容
	_, shifts, assignments, _ := m.Get(context.Background(), draft.ID)
	if len(shifts) != 1 || shifts[0].RequiredCount != 3 {
		t.Fatalf("快照需求人数 = %d, expected 3", shifts[0].RequiredCount)
	}
	if len(assignments) != 3 {
		t.Fatalf("分配数 = %d, expected 3", len(assignments))
	}
	if shift.RequiredCount != 2 {
		t.Errorf("输入班次不应被修改: %d", shift.RequiredCount)
	}

	eval, understaffed, err := m.Validate(context.Background(), draft.ID)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !eval.IsValid {
		t.Errorf("满员草稿应有效: %+v", eval.HardViolations)
	}
	if len(understaffed) != 0 {
		t.Errorf("满员草稿不应报缺员: %+v", understaffed)
	}
}

func TestManager_CreateFromSolve_NilResult(t *testing.T) {
	m := NewManager(NewMemoryStore(), &stubSource{}, availability.Policy{})
	_, _, err := m.CreateFromSolve(context.Background(), &solver.Input{}, nil, "x")
	if !apperrors.Is(err, apperrors.CodeInvalidInput) {
		t.Errorf("error = %v, expected INVALID_INPUT", err)
	}
}

func TestManager_ApplyChange_Assign(t *testing.T) {
	f := newFixture(t)

	result, err := f.manager.ApplyChange(context.Background(), f.draft.ID, &Change{
		Type:    ChangeAssign,
		ShiftID: f.shiftB.ID,
		StaffID: f.waiter.ID,
	})
	if err != nil {
		t.Fatalf("ApplyChange() error = %v", err)
	}
	if result.Assignment == nil || result.Assignment.AIGenerated {
		t.Error("人工分配不应带 AI 标记")
	}
	if result.Assignment.ManualOverride {
		t.Error("合规人工分配不应带覆盖标记，覆盖标记只记录约束覆盖")
	}
	if result.Draft.Version != 2 {
		t.Errorf("Version = %d, expected 2", result.Draft.Version)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("合规分配不应有警告: %+v", result.Warnings)
	}

	_, _, assignments, _ := f.manager.Get(context.Background(), f.draft.ID)
	if len(assignments) != 2 {
		t.Errorf("分配数 = %d, expected 2", len(assignments))
	}
}

func TestManager_ApplyChange_Assign_Rejections(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		change *Change
		code   apperrors.Code
	}{
		{"重复分配", &Change{Type: ChangeAssign, ShiftID: f.shiftA.ID, StaffID: f.cook.ID}, apperrors.CodeConstraintViolation},
		{"技能不符", &Change{Type: ChangeAssign, ShiftID: f.shiftA.ID, StaffID: f.waiter.ID}, apperrors.CodeConstraintViolation},
		{"班次不存在", &Change{Type: ChangeAssign, ShiftID: uuid.New(), StaffID: f.cook.ID}, apperrors.CodeNotFound},
		{"员工不存在", &Change{Type: ChangeAssign, ShiftID: f.shiftB.ID, StaffID: uuid.New()}, apperrors.CodeNotFound},
		{"未知变更类型", &Change{Type: "unknown"}, apperrors.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.manager.ApplyChange(context.Background(), f.draft.ID, tt.change); !apperrors.Is(err, tt.code) {
				t.Errorf("error = %v, expected %s", err, tt.code)
			}
		})
	}
}

func TestManager_ApplyChange_Assign_Override(t *testing.T) {
	f := newFixture(t)

	// 技能不符被拒绝，强制覆盖后降级为警告
	result, err := f.manager.ApplyChange(context.Background(), f.draft.ID, &Change{
		Type:     ChangeAssign,
		ShiftID:  f.shiftA.ID,
		StaffID:  f.waiter.ID,
		Override: true,
		Note:     "临时顶班",
	})
	if err != nil {
		t.Fatalf("覆盖分配 error = %v", err)
	}
	if len(result.Warnings) == 0 {
		t.Error("覆盖硬约束违反应产生警告")
	}
	if !result.Assignment.ManualOverride || result.Assignment.OverrideNote != "临时顶班" {
		t.Error("覆盖分配应记录覆盖标记和说明")
	}
}

func TestManager_ApplyChange_CapacityNeverOverridable(t *testing.T) {
	f := newFixture(t)

	// 先把 shiftA 填满（2 人）
	if _, err := f.manager.ApplyChange(context.Background(), f.draft.ID, &Change{
		Type: ChangeAssign, ShiftID: f.shiftA.ID, StaffID: f.waiter.ID, Override: true,
	}); err != nil {
		t.Fatalf("填满班次 error = %v", err)
	}

	extra := draftStaff("王五", "cooking")
	f.manager.Source().(*stubSource).staff = append(f.manager.Source().(*stubSource).staff, extra)

	// 容量上限即使覆盖也不可突破
	_, err := f.manager.ApplyChange(context.Background(), f.draft.ID, &Change{
		Type: ChangeAssign, ShiftID: f.shiftA.ID, StaffID: extra.ID, Override: true,
	})
	if !apperrors.Is(err, apperrors.CodeConstraintViolation) {
		t.Errorf("error = %v, expected CONSTRAINT_VIOLATION", err)
	}
}

func TestManager_ApplyChange_Unassign(t *testing.T) {
	f := newFixture(t)

	if _, err := f.manager.ApplyChange(context.Background(), f.draft.ID, &Change{
		Type:         ChangeUnassign,
		AssignmentID: f.initial.ID,
	}); err != nil {
		t.Fatalf("ApplyChange() error = %v", err)
	}

	_, _, assignments, _ := f.manager.Get(context.Background(), f.draft.ID)
	if len(assignments) != 0 {
		t.Errorf("分配数 = %d, expected 0", len(assignments))
	}

	// 分配不存在
	_, err := f.manager.ApplyChange(context.Background(), f.draft.ID, &Change{
		Type:         ChangeUnassign,
		AssignmentID: uuid.New(),
	})
	if !apperrors.Is(err, apperrors.CodeNotFound) {
		t.Errorf("error = %v, expected NOT_FOUND", err)
	}
}

func TestManager_ApplyChange_Move(t *testing.T) {
	f := newFixture(t)

	result, err := f.manager.ApplyChange(context.Background(), f.draft.ID, &Change{
		Type:         ChangeMove,
		AssignmentID: f.initial.ID,
		ShiftID:      f.shiftB.ID,
	})
	if err != nil {
		t.Fatalf("ApplyChange() error = %v", err)
	}
	if result.Assignment.ShiftID != f.shiftB.ID || result.Assignment.StaffID != f.cook.ID {
		t.Error("移动后分配应指向目标班次且保留员工")
	}

	_, _, assignments, _ := f.manager.Get(context.Background(), f.draft.ID)
	if len(assignments) != 1 || assignments[0].ShiftID != f.shiftB.ID {
		t.Errorf("移动后应只剩目标班次上的分配: %+v", assignments)
	}
}

func TestManager_ApplyChange_Move_RollbackOnFailure(t *testing.T) {
	f := newFixture(t)

	// 先占满目标班次
	if _, err := f.manager.ApplyChange(context.Background(), f.draft.ID, &Change{
		Type: ChangeAssign, ShiftID: f.shiftB.ID, StaffID: f.waiter.ID,
	}); err != nil {
		t.Fatalf("占位 error = %v", err)
	}

	// 移动到已满班次失败，原分配保持不动
	_, err := f.manager.ApplyChange(context.Background(), f.draft.ID, &Change{
		Type:         ChangeMove,
		AssignmentID: f.initial.ID,
		ShiftID:      f.shiftB.ID,
	})
	if !apperrors.Is(err, apperrors.CodeConstraintViolation) {
		t.Fatalf("error = %v, expected CONSTRAINT_VIOLATION", err)
	}

	_, _, assignments, _ := f.manager.Get(context.Background(), f.draft.ID)
	found := false
	for _, a := range assignments {
		if a.ID == f.initial.ID && a.ShiftID == f.shiftA.ID {
			found = true
		}
	}
	if !found {
		t.Error("移动失败后原分配应保留在源班次")
	}
}

func TestManager_ApplyChange_AddRemoveShift(t *testing.T) {
	f := newFixture(t)

	added := draftShift("2025-06-04", "18:00", "22:00", "", 1)
	if _, err := f.manager.ApplyChange(context.Background(), f.draft.ID, &Change{
		Type:  ChangeAddShift,
		Shift: added,
	}); err != nil {
		t.Fatalf("添加班次 error = %v", err)
	}

	_, shifts, _, _ := f.manager.Get(context.Background(), f.draft.ID)
	if len(shifts) != 3 {
		t.Fatalf("班次数 = %d, expected 3", len(shifts))
	}

	// 日期超出草稿范围
	_, err := f.manager.ApplyChange(context.Background(), f.draft.ID, &Change{
		Type:  ChangeAddShift,
		Shift: draftShift("2025-07-01", "09:00", "17:00", "", 1),
	})
	if !apperrors.Is(err, apperrors.CodeInvalidInput) {
		t.Errorf("error = %v, expected INVALID_INPUT", err)
	}

	// 移除班次连带其分配
	if _, err := f.manager.ApplyChange(context.Background(), f.draft.ID, &Change{
		Type:    ChangeRemoveShift,
		ShiftID: f.shiftA.ID,
	}); err != nil {
		t.Fatalf("移除班次 error = %v", err)
	}
	_, shifts, assignments, _ := f.manager.Get(context.Background(), f.draft.ID)
	if len(shifts) != 2 {
		t.Errorf("班次数 = %d, expected 2", len(shifts))
	}
	if len(assignments) != 0 {
		t.Errorf("班次上的分配应连带移除: %+v", assignments)
	}
}

func TestManager_ApplyChange_EditShift(t *testing.T) {
	f := newFixture(t)

	edited := draftShift("2025-06-02", "10:00", "18:00", "cooking", 2)
	edited.BaseModel = f.shiftA.BaseModel

	result, err := f.manager.ApplyChange(context.Background(), f.draft.ID, &Change{
		Type:    ChangeEditShift,
		ShiftID: f.shiftA.ID,
		Shift:   edited,
	})
	if err != nil {
		t.Fatalf("修改班次 error = %v", err)
	}
	if result.Draft.Version != 2 {
		t.Errorf("Version = %d, expected 2", result.Draft.Version)
	}

	_, shifts, _, _ := f.manager.Get(context.Background(), f.draft.ID)
	for _, s := range shifts {
		if s.ID == f.shiftA.ID && s.StartTime != "10:00" {
			t.Errorf("StartTime = %s, expected 10:00", s.StartTime)
		}
	}

	// 需求人数缩到已有分配数以下被拒绝
	shrunk := draftShift("2025-06-02", "10:00", "18:00", "cooking", 0)
	_, err = f.manager.ApplyChange(context.Background(), f.draft.ID, &Change{
		Type:    ChangeEditShift,
		ShiftID: f.shiftA.ID,
		Shift:   shrunk,
	})
	if !apperrors.Is(err, apperrors.CodeInvalidInput) && !apperrors.Is(err, apperrors.CodeConstraintViolation) {
		t.Errorf("error = %v, expected 拒绝", err)
	}
}

func TestManager_ApplyChange_PublishedDraftImmutable(t *testing.T) {
	f := newFixture(t)

	draft, shifts, assignments, _ := f.manager.Get(context.Background(), f.draft.ID)
	draft.Status = model.DraftStatusPublished
	if err := f.manager.Store().UpdateDraft(context.Background(), draft, shifts, assignments); err != nil {
		t.Fatalf("UpdateDraft() error = %v", err)
	}

	_, err := f.manager.ApplyChange(context.Background(), f.draft.ID, &Change{
		Type: ChangeAssign, ShiftID: f.shiftB.ID, StaffID: f.waiter.ID,
	})
	if !apperrors.Is(err, apperrors.CodeDraftState) {
		t.Errorf("error = %v, expected DRAFT_STATE", err)
	}
}

func TestManager_Archive(t *testing.T) {
	f := newFixture(t)

	if err := f.manager.Archive(context.Background(), f.draft.ID); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	draft, _, _, _ := f.manager.Get(context.Background(), f.draft.ID)
	if draft.Status != model.DraftStatusArchived {
		t.Errorf("Status = %s, expected archived", draft.Status)
	}

	// 重复归档幂等
	if err := f.manager.Archive(context.Background(), f.draft.ID); err != nil {
		t.Errorf("重复归档应幂等: %v", err)
	}

	// 已发布草稿不能归档
	draft.Status = model.DraftStatusPublished
	_, shifts, assignments, _ := f.manager.Get(context.Background(), f.draft.ID)
	if err := f.manager.Store().UpdateDraft(context.Background(), draft, shifts, assignments); err != nil {
		t.Fatalf("UpdateDraft() error = %v", err)
	}
	if err := f.manager.Archive(context.Background(), f.draft.ID); !apperrors.Is(err, apperrors.CodeDraftState) {
		t.Errorf("error = %v, expected DRAFT_STATE", err)
	}
}

func TestManager_Archive_ReleasesLock(t *testing.T) {
	f := newFixture(t)

	// 一次变更会建立草稿专属锁
	if _, err := f.manager.ApplyChange(context.Background(), f.draft.ID, &Change{
		Type: ChangeAssign, ShiftID: f.shiftB.ID, StaffID: f.waiter.ID,
	}); err != nil {
		t.Fatalf("ApplyChange() error = %v", err)
	}
	f.manager.mu.Lock()
	_, exists := f.manager.locks[f.draft.ID]
	f.manager.mu.Unlock()
	if !exists {
		t.Fatal("变更后应存在草稿专属锁")
	}

	// 归档后锁应被移除
	if err := f.manager.Archive(context.Background(), f.draft.ID); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	f.manager.mu.Lock()
	_, exists = f.manager.locks[f.draft.ID]
	f.manager.mu.Unlock()
	if exists {
		t.Error("归档草稿的专属锁应被移除")
	}
}

func TestManager_Validate(t *testing.T) {
	f := newFixture(t)

	result, understaffed, err := f.manager.Validate(context.Background(), f.draft.ID)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !result.IsValid {
		t.Errorf("合规草稿应有效: %+v", result.HardViolations)
	}

	// shiftA 需要 2 人只排了 1 人，shiftB 空着
	if len(understaffed) != 2 {
		t.Fatalf("缺员班次数 = %d, expected 2", len(understaffed))
	}
	for _, u := range understaffed {
		if u.Missing != 1 {
			t.Errorf("Missing = %d, expected 1", u.Missing)
		}
	}
}

func TestManager_List(t *testing.T) {
	f := newFixture(t)

	drafts, err := f.manager.List(context.Background(), f.bizID, "")
	if err != nil || len(drafts) != 1 {
		t.Fatalf("List() = %d 条, err = %v", len(drafts), err)
	}

	// 状态过滤
	drafts, _ = f.manager.List(context.Background(), f.bizID, model.DraftStatusArchived)
	if len(drafts) != 0 {
		t.Errorf("归档过滤应为空, got %d", len(drafts))
	}

	// 其他商户不可见
	drafts, _ = f.manager.List(context.Background(), uuid.New(), "")
	if len(drafts) != 0 {
		t.Errorf("其他商户不应看到草稿, got %d", len(drafts))
	}
}
