package draft

import (
	"testing"

	"github.com/google/uuid"
	"github.com/canpai/canpai/pkg/model"
)

func TestDiffPublished_FirstPublish(t *testing.T) {
	staffID := uuid.New()
	shift := draftShift("2025-06-02", "09:00", "17:00", "cooking", 1)
	next := []*model.DraftAssignment{{BaseModel: model.NewBaseModel(), ShiftID: shift.ID, StaffID: staffID}}

	diffs := DiffPublished(nil, next, []*model.Shift{shift})
	if len(diffs) != 1 {
		t.Fatalf("diffs = %d, expected 1", len(diffs))
	}
	d := diffs[staffID]
	if !d.Changed() || len(d.Added) != 1 || len(d.Removed) != 0 {
		t.Errorf("首次发布应全部为新增: %+v", d)
	}
	if d.Added[0].Date != "2025-06-02" || d.Added[0].StartTime != "09:00" {
		t.Errorf("槽位信息错误: %+v", d.Added[0])
	}
}

func TestDiffPublished_Handover(t *testing.T) {
	from, to := uuid.New(), uuid.New()
	shift := draftShift("2025-06-02", "09:00", "17:00", "cooking", 1)

	prev := []*model.PublishedAssignment{{
		BaseModel: model.NewBaseModel(),
		ShiftID:   shift.ID,
		StaffID:   from,
		Date:      shift.Date,
		StartTime: shift.StartTime,
		EndTime:   shift.EndTime,
		Skill:     shift.RequiredSkill,
	}}
	next := []*model.DraftAssignment{{BaseModel: model.NewBaseModel(), ShiftID: shift.ID, StaffID: to}}

	diffs := DiffPublished(prev, next, []*model.Shift{shift})
	if len(diffs) != 2 {
		t.Fatalf("diffs = %d, expected 2", len(diffs))
	}
	if len(diffs[from].Removed) != 1 || len(diffs[from].Added) != 0 {
		t.Errorf("原员工应只有移除: %+v", diffs[from])
	}
	if len(diffs[to].Added) != 1 || len(diffs[to].Removed) != 0 {
		t.Errorf("新员工应只有新增: %+v", diffs[to])
	}
}

func TestDiffPublished_NoChange(t *testing.T) {
	staffID := uuid.New()
	shift := draftShift("2025-06-02", "09:00", "17:00", "cooking", 1)

	prev := []*model.PublishedAssignment{{
		BaseModel: model.NewBaseModel(),
		ShiftID:   shift.ID,
		StaffID:   staffID,
		Date:      shift.Date,
		StartTime: shift.StartTime,
		EndTime:   shift.EndTime,
		Skill:     shift.RequiredSkill,
	}}
	next := []*model.DraftAssignment{{BaseModel: model.NewBaseModel(), ShiftID: shift.ID, StaffID: staffID}}

	diffs := DiffPublished(prev, next, []*model.Shift{shift})
	if d := diffs[staffID]; d != nil && d.Changed() {
		t.Errorf("相同排班不应产生变化: %+v", d)
	}
}
