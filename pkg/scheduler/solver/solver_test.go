package solver

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/canpai/canpai/pkg/errors"
	"github.com/canpai/canpai/pkg/model"
)

// 2025-06-02 是周一
func fullTimeStaff(name string, skills ...string) *model.Staff {
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

func solveShift(date, start, end, skill string, required int) *model.Shift {
	return &model.Shift{
		BaseModel:     model.NewBaseModel(),
		Date:          date,
		StartTime:     start,
		EndTime:       end,
		RequiredSkill: skill,
		RequiredCount: required,
	}
}

func weekRange() model.DateRange {
	return model.DateRange{StartDate: "2025-06-02", EndDate: "2025-06-08"}
}

func TestGreedySolver_Solve_Basic(t *testing.T) {
	input := &Input{
		BizID: uuid.New(),
		Range: weekRange(),
		Staff: []*model.Staff{
			fullTimeStaff("张三", "cooking"),
			fullTimeStaff("李四", "cooking"),
		},
		Shifts: []*model.Shift{
			solveShift("2025-06-02", "09:00", "17:00", "cooking", 2),
		},
	}

	result, err := NewGreedySolver().Solve(context.Background(), input, DefaultOptions())
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	if len(result.Assignments) != 2 {
		t.Fatalf("分配数 = %d, expected 2", len(result.Assignments))
	}
	if len(result.Unresolved) != 0 {
		t.Errorf("不应有未排满班次: %+v", result.Unresolved)
	}
	if result.Partial {
		t.Error("全部排满时 Partial 应为 false")
	}
	if !result.Evaluation.IsValid {
		t.Error("无违反时评估应有效")
	}
	if result.Statistics.FillRate != 100 {
		t.Errorf("FillRate = %.1f, expected 100", result.Statistics.FillRate)
	}

	// 同一班次不会重复分配同一员工
	seen := map[uuid.UUID]bool{}
	for _, a := range result.Assignments {
		if seen[a.StaffID] {
			t.Error("同一员工被重复分配到同一班次")
		}
		seen[a.StaffID] = true
		if !a.AIGenerated {
			t.Error("求解产生的分配应标记 AIGenerated")
		}
		if a.Confidence <= 0 || a.Confidence > 1 {
			t.Errorf("Confidence = %.2f, 应在 (0,1] 内", a.Confidence)
		}
		if a.Reasoning == "" {
			t.Error("分配应带有推荐理由")
		}
	}
	if result.OverallConfidence <= 0 {
		t.Errorf("OverallConfidence = %.2f, 应为正", result.OverallConfidence)
	}
}

func TestGreedySolver_Solve_Deterministic(t *testing.T) {
	staff := []*model.Staff{
		fullTimeStaff("张三", "cooking"),
		fullTimeStaff("李四", "cooking"),
		fullTimeStaff("王五", "cooking"),
	}
	shifts := []*model.Shift{
		solveShift("2025-06-03", "09:00", "17:00", "cooking", 1),
		solveShift("2025-06-02", "09:00", "17:00", "cooking", 1),
		solveShift("2025-06-02", "18:00", "22:00", "cooking", 1),
	}

	solve := func() []uuid.UUID {
		input := &Input{BizID: uuid.New(), Range: weekRange(), Staff: staff, Shifts: shifts}
		result, err := NewGreedySolver().Solve(context.Background(), input, DefaultOptions())
		if err != nil {
			t.Fatalf("Solve() error = %v", err)
		}
		ids := make([]uuid.UUID, len(result.Assignments))
		for i, a := range result.Assignments {
			ids[i] = a.StaffID
		}
		return ids
	}

	first := solve()
	for i := 0; i < 5; i++ {
		got := solve()
		if len(got) != len(first) {
			t.Fatalf("分配数不一致: %d vs %d", len(got), len(first))
		}
		for j := range got {
			if got[j] != first[j] {
				t.Fatalf("相同输入排班结果不一致")
			}
		}
	}
}

func TestGreedySolver_Solve_NoActiveStaff(t *testing.T) {
	inactive := fullTimeStaff("张三", "cooking")
	inactive.Status = "inactive"

	input := &Input{
		BizID:  uuid.New(),
		Range:  weekRange(),
		Staff:  []*model.Staff{inactive},
		Shifts: []*model.Shift{solveShift("2025-06-02", "09:00", "17:00", "cooking", 1)},
	}

	_, err := NewGreedySolver().Solve(context.Background(), input, DefaultOptions())
	if !apperrors.Is(err, apperrors.CodeInsufficientStaff) {
		t.Errorf("error = %v, expected INSUFFICIENT_STAFF", err)
	}
}

func TestGreedySolver_Solve_EmptyShifts(t *testing.T) {
	input := &Input{
		BizID: uuid.New(),
		Range: weekRange(),
		Staff: []*model.Staff{fullTimeStaff("张三", "cooking")},
	}

	result, err := NewGreedySolver().Solve(context.Background(), input, DefaultOptions())
	if err != nil {
		t.Fatalf("空班次列表 Solve() error = %v", err)
	}
	if len(result.Assignments) != 0 || !result.Evaluation.IsValid {
		t.Error("空班次应返回空的有效结果")
	}
}

func TestGreedySolver_Solve_UnresolvedReasons(t *testing.T) {
	weekendOnly := fullTimeStaff("李四", "bartending")
	weekendOnly.WeeklyAvailability = map[time.Weekday][]model.ClockRange{
		time.Saturday: {{Start: "08:00", End: "23:00"}},
	}

	input := &Input{
		BizID: uuid.New(),
		Range: weekRange(),
		Staff: []*model.Staff{
			fullTimeStaff("张三", "cooking"),
			weekendOnly,
		},
		Shifts: []*model.Shift{
			solveShift("2025-06-02", "09:00", "17:00", "cooking", 1),
			solveShift("2025-06-02", "09:00", "17:00", "sommelier", 1),  // 无人具备
			solveShift("2025-06-02", "18:00", "22:00", "bartending", 1), // 有技能但周一不可用
		},
	}

	result, err := NewGreedySolver().Solve(context.Background(), input, DefaultOptions())
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	if !result.Partial {
		t.Error("存在未排满班次时 Partial 应为 true")
	}
	if len(result.Unresolved) != 2 {
		t.Fatalf("未排满数 = %d, expected 2", len(result.Unresolved))
	}

	reasons := map[string]string{}
	for _, u := range result.Unresolved {
		reasons[u.Reason] = u.Message
		if u.Missing != 1 {
			t.Errorf("Missing = %d, expected 1", u.Missing)
		}
	}
	if _, ok := reasons[ReasonNoQualified]; !ok {
		t.Errorf("缺少技能原因未出现: %v", reasons)
	}
	if _, ok := reasons[ReasonNoAvailable]; !ok {
		t.Errorf("可用性原因未出现: %v", reasons)
	}
}

func TestGreedySolver_Solve_RespectHardLimits(t *testing.T) {
	staff := fullTimeStaff("张三", "cooking")
	staff.MaxWeeklyHours = 10

	var shifts []*model.Shift
	start, _ := time.Parse("2006-01-02", "2025-06-02")
	for i := 0; i < 3; i++ {
		shifts = append(shifts, solveShift(start.AddDate(0, 0, i).Format("2006-01-02"), "09:00", "17:00", "cooking", 1))
	}

	input := &Input{BizID: uuid.New(), Range: weekRange(), Staff: []*model.Staff{staff}, Shifts: shifts}
	result, err := NewGreedySolver().Solve(context.Background(), input, DefaultOptions())
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}

	// 周上限 10 小时只够一个 8 小时班次
	if len(result.Assignments) != 1 {
		t.Fatalf("分配数 = %d, expected 1", len(result.Assignments))
	}
	for _, u := range result.Unresolved {
		if u.Reason != ReasonOverLimits {
			t.Errorf("Reason = %s, expected %s", u.Reason, ReasonOverLimits)
		}
	}
	if result.Evaluation == nil || !result.Evaluation.IsValid {
		t.Error("产出的排班不应违反硬约束")
	}
}

func TestGreedySolver_Solve_SpecialEvent(t *testing.T) {
	input := &Input{
		BizID: uuid.New(),
		Range: weekRange(),
		Staff: []*model.Staff{
			fullTimeStaff("张三", "cooking"),
			fullTimeStaff("李四", "cooking"),
			fullTimeStaff("王五", "cooking"),
		},
		Shifts: []*model.Shift{solveShift("2025-06-06", "09:00", "17:00", "cooking", 2)},
		Events: []*model.SpecialEvent{{Date: "2025-06-06", Impact: model.ImpactHigh, Description: "节日大促"}},
	}

	result, err := NewGreedySolver().Solve(context.Background(), input, DefaultOptions())
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	// 高影响事件把需求从 2 放大到 3
	if result.Statistics.TotalSlots != 3 {
		t.Errorf("TotalSlots = %d, expected 3", result.Statistics.TotalSlots)
	}
	if len(result.Assignments) != 3 {
		t.Errorf("分配数 = %d, expected 3", len(result.Assignments))
	}
}

func TestGreedySolver_Solve_Timeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // 模拟超时：上下文已取消

	input := &Input{
		BizID:  uuid.New(),
		Range:  weekRange(),
		Staff:  []*model.Staff{fullTimeStaff("张三", "cooking")},
		Shifts: []*model.Shift{solveShift("2025-06-02", "09:00", "17:00", "cooking", 1)},
	}

	opts := DefaultOptions()
	opts.Timeout = 0
	result, err := NewGreedySolver().Solve(ctx, input, opts)
	if !apperrors.Is(err, apperrors.CodeSolverTimeout) {
		t.Fatalf("error = %v, expected SOLVER_TIMEOUT", err)
	}
	if result == nil || !result.TimedOut {
		t.Fatal("超时应返回带 TimedOut 标记的部分结果")
	}
	if len(result.Unresolved) != 1 || result.Unresolved[0].Reason != ReasonSolveTimeout {
		t.Errorf("超时未处理班次应带超时原因: %+v", result.Unresolved)
	}
}

func TestGreedySolver_Validate(t *testing.T) {
	solver := NewGreedySolver()

	tests := []struct {
		name  string
		input *Input
	}{
		{"空输入", nil},
		{"非法日期范围", &Input{Range: model.DateRange{StartDate: "2025-06-08", EndDate: "2025-06-02"}}},
		{"班次超出范围", &Input{
			Range:  weekRange(),
			Staff:  []*model.Staff{fullTimeStaff("张三", "cooking")},
			Shifts: []*model.Shift{solveShift("2025-07-01", "09:00", "17:00", "cooking", 1)},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := solver.Solve(context.Background(), tt.input, DefaultOptions())
			if !apperrors.Is(err, apperrors.CodeInvalidInput) {
				t.Errorf("error = %v, expected INVALID_INPUT", err)
			}
		})
	}
}

func TestGreedySolver_Solve_Substitution(t *testing.T) {
	chef := fullTimeStaff("李四", "head_chef")

	input := &Input{
		BizID:  uuid.New(),
		Range:  weekRange(),
		Staff:  []*model.Staff{chef},
		Shifts: []*model.Shift{solveShift("2025-06-02", "09:00", "17:00", "cooking", 1)},
		Rules: []*model.SchedulingConstraint{{
			BaseModel: model.NewBaseModel(),
			Type:      model.ConstraintSkillMatch,
			Priority:  model.PriorityCritical,
			Active:    true,
			Payload: &model.SkillMatchPayload{
				AllowSubstitution: true,
				Substitutes:       map[string][]string{"cooking": {"head_chef"}},
			},
		}},
	}

	result, err := NewGreedySolver().Solve(context.Background(), input, DefaultOptions())
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	if len(result.Assignments) != 1 || result.Assignments[0].StaffID != chef.ID {
		t.Error("替代技能员工应被排入班次")
	}
}
