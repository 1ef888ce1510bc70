package availability

import (
	"testing"
	"time"

	"github.com/canpai/canpai/pkg/model"
)

// 2025-06-02 是周一
func testStaff() *model.Staff {
	return &model.Staff{
		Status: "active",
		WeeklyAvailability: map[time.Weekday][]model.ClockRange{
			time.Monday:  {{Start: "09:00", End: "18:00"}},
			time.Tuesday: {{Start: "09:00", End: "12:00"}, {Start: "14:00", End: "22:00"}},
			time.Friday:  {{Start: "18:00", End: "02:00"}}, // 跨午夜可用段
		},
	}
}

func shiftOn(date, start, end string) *model.Shift {
	return &model.Shift{Date: date, StartTime: start, EndTime: end, RequiredCount: 1}
}

func TestResolver_IsAvailable(t *testing.T) {
	r := NewResolver(Policy{})

	tests := []struct {
		name     string
		staff    *model.Staff
		shift    *model.Shift
		expected bool
		reason   string
	}{
		{"完整落在可用段内", testStaff(), shiftOn("2025-06-02", "10:00", "16:00"), true, ""},
		{"与可用段边界重合", testStaff(), shiftOn("2025-06-02", "09:00", "18:00"), true, ""},
		{"超出可用段", testStaff(), shiftOn("2025-06-02", "16:00", "20:00"), false, ReasonNotContained},
		{"当天无可用时间", testStaff(), shiftOn("2025-06-04", "10:00", "16:00"), false, ReasonNoRecurring},
		{"落在第二个可用段", testStaff(), shiftOn("2025-06-03", "15:00", "21:00"), true, ""},
		{"横跨两个可用段的间隙", testStaff(), shiftOn("2025-06-03", "11:00", "15:00"), false, ReasonNotContained},
		{"跨午夜班次落在跨午夜可用段", testStaff(), shiftOn("2025-06-06", "22:00", "01:00"), true, ""},
		{"班次时间无效", testStaff(), shiftOn("2025-06-02", "bad", "16:00"), false, ReasonBadWindow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := r.IsAvailable(tt.staff, tt.shift)
			if ok != tt.expected {
				t.Errorf("IsAvailable() = %v, expected %v (reason=%s)", ok, tt.expected, reason)
			}
			if !ok && reason != tt.reason {
				t.Errorf("reason = %s, expected %s", reason, tt.reason)
			}
		})
	}
}

func TestResolver_IsAvailable_TimeOff(t *testing.T) {
	staff := testStaff()
	staff.TimeOff = []model.TimeOffWindow{
		{StartDate: "2025-06-02", EndDate: "2025-06-02", Status: model.TimeOffApproved},
	}

	r := NewResolver(Policy{})
	ok, reason := r.IsAvailable(staff, shiftOn("2025-06-02", "10:00", "16:00"))
	if ok {
		t.Error("全天请假日不应可用")
	}
	if reason != ReasonTimeOff {
		t.Errorf("reason = %s, expected %s", reason, ReasonTimeOff)
	}

	// 部分时段请假，班次落在剩余段仍可用
	staff2 := testStaff()
	staff2.TimeOff = []model.TimeOffWindow{
		{StartDate: "2025-06-02", EndDate: "2025-06-02", StartTime: "09:00", EndTime: "12:00", Status: model.TimeOffApproved},
	}
	if ok, _ := r.IsAvailable(staff2, shiftOn("2025-06-02", "13:00", "18:00")); !ok {
		t.Error("请假时段之外的班次应可用")
	}
	if ok, _ := r.IsAvailable(staff2, shiftOn("2025-06-02", "10:00", "16:00")); ok {
		t.Error("与请假时段重叠的班次不应可用")
	}
}

func TestResolver_TimeOff_CrossMidnight(t *testing.T) {
	r := NewResolver(Policy{})

	// 2025-06-06 是周五，可用段 18:00-02:00 溢出到周六
	staff := testStaff()
	staff.TimeOff = []model.TimeOffWindow{
		{StartDate: "2025-06-07", EndDate: "2025-06-07", Status: model.TimeOffApproved},
	}

	// 跨午夜班次溢出部分落入次日请假，不可用
	ok, reason := r.IsAvailable(staff, shiftOn("2025-06-06", "22:00", "01:00"))
	if ok {
		t.Error("溢出到请假日的跨午夜班次不应可用")
	}
	if reason != ReasonTimeOff {
		t.Errorf("reason = %s, expected %s", reason, ReasonTimeOff)
	}

	// 完整落在当日午夜前的班次不受次日请假影响
	if ok, _ := r.IsAvailable(staff, shiftOn("2025-06-06", "18:00", "23:00")); !ok {
		t.Error("午夜前结束的班次不应受次日请假影响")
	}
}

func TestResolver_TimeOff_FullDayCoversMidnight(t *testing.T) {
	r := NewResolver(Policy{})

	// 全天请假应覆盖到当日午夜，最后一分钟也不留空隙
	staff := testStaff()
	staff.TimeOff = []model.TimeOffWindow{
		{StartDate: "2025-06-06", EndDate: "2025-06-06", Status: model.TimeOffApproved},
	}
	if ok, _ := r.IsAvailable(staff, shiftOn("2025-06-06", "23:59", "00:00")); ok {
		t.Error("全天请假日午夜前的最后一分钟不应可用")
	}
}

func TestResolver_PendingTimeOffPolicy(t *testing.T) {
	staff := testStaff()
	staff.TimeOff = []model.TimeOffWindow{
		{StartDate: "2025-06-02", EndDate: "2025-06-02", Status: model.TimeOffPending},
	}
	shift := shiftOn("2025-06-02", "10:00", "16:00")

	// 默认待批准窗口不生效
	if ok, _ := NewResolver(Policy{}).IsAvailable(staff, shift); !ok {
		t.Error("默认策略下待批准请假不应阻塞排班")
	}

	// 开启 BlockPendingTimeOff 后生效
	if ok, _ := NewResolver(Policy{BlockPendingTimeOff: true}).IsAvailable(staff, shift); ok {
		t.Error("开启策略后待批准请假应阻塞排班")
	}

	// 已驳回窗口任何策略下都不生效
	staff.TimeOff[0].Status = model.TimeOffRejected
	if ok, _ := NewResolver(Policy{BlockPendingTimeOff: true}).IsAvailable(staff, shift); !ok {
		t.Error("已驳回请假不应阻塞排班")
	}
}

func TestResolver_AvailableWindows(t *testing.T) {
	staff := testStaff()
	staff.TimeOff = []model.TimeOffWindow{
		{StartDate: "2025-06-03", EndDate: "2025-06-03", StartTime: "09:00", EndTime: "12:00", Status: model.TimeOffApproved},
	}

	r := NewResolver(Policy{})
	windows := r.AvailableWindows(staff, model.DateRange{StartDate: "2025-06-02", EndDate: "2025-06-03"})

	// 周一整段 + 周二上午段被请假完全挖掉 + 周二下午段
	if len(windows) != 2 {
		t.Fatalf("窗口数 = %d, expected 2", len(windows))
	}
	for i := 1; i < len(windows); i++ {
		if windows[i].Start.Before(windows[i-1].Start) {
			t.Error("窗口应按开始时间升序排列")
		}
	}
}

func TestSubtract(t *testing.T) {
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	mk := func(startH, endH int) model.TimeRange {
		return model.TimeRange{
			Start: day.Add(time.Duration(startH) * time.Hour),
			End:   day.Add(time.Duration(endH) * time.Hour),
		}
	}

	tests := []struct {
		name     string
		segment  model.TimeRange
		blocked  model.TimeRange
		expected int
	}{
		{"中间挖洞分裂为两段", mk(9, 18), mk(12, 14), 2},
		{"挖掉头部", mk(9, 18), mk(8, 12), 1},
		{"挖掉尾部", mk(9, 18), mk(16, 20), 1},
		{"完全覆盖", mk(9, 18), mk(8, 20), 0},
		{"不相交保持原段", mk(9, 12), mk(14, 16), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := subtract([]model.TimeRange{tt.segment}, tt.blocked)
			if len(result) != tt.expected {
				t.Errorf("分段数 = %d, expected %d", len(result), tt.expected)
			}
		})
	}
}
