// Package draft 管理排班草稿的生命周期
package draft

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/canpai/canpai/pkg/model"
)

// ShiftSlot 用于比较的班次槽位描述
type ShiftSlot struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Skill     string `json:"skill,omitempty"`
}

// Key 槽位的比较键
func (s ShiftSlot) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s", s.Date, s.StartTime, s.EndTime, s.Skill)
}

// String 槽位的可读描述
func (s ShiftSlot) String() string {
	return fmt.Sprintf("%s %s-%s", s.Date, s.StartTime, s.EndTime)
}

// StaffDiff 单个员工的排班变化
type StaffDiff struct {
	StaffID uuid.UUID   `json:"staff_id"`
	Added   []ShiftSlot `json:"added,omitempty"`
	Removed []ShiftSlot `json:"removed,omitempty"`
}

// Changed 检查员工排班是否有变化
func (d *StaffDiff) Changed() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0
}

// DiffPublished 比较上次发布与新草稿的分配，按员工汇总变化
// prev 为空时所有新分配都是新增
func DiffPublished(prev []*model.PublishedAssignment, next []*model.DraftAssignment, shifts []*model.Shift) map[uuid.UUID]*StaffDiff {
	shiftMap := make(map[uuid.UUID]*model.Shift, len(shifts))
	for _, s := range shifts {
		shiftMap[s.ID] = s
	}

	prevSlots := make(map[uuid.UUID]map[string]ShiftSlot)
	for _, a := range prev {
		slot := ShiftSlot{Date: a.Date, StartTime: a.StartTime, EndTime: a.EndTime, Skill: a.Skill}
		if prevSlots[a.StaffID] == nil {
			prevSlots[a.StaffID] = make(map[string]ShiftSlot)
		}
		prevSlots[a.StaffID][slot.Key()] = slot
	}

	nextSlots := make(map[uuid.UUID]map[string]ShiftSlot)
	for _, a := range next {
		shift := shiftMap[a.ShiftID]
		if shift == nil {
			continue
		}
		slot := ShiftSlot{Date: shift.Date, StartTime: shift.StartTime, EndTime: shift.EndTime, Skill: shift.RequiredSkill}
		if nextSlots[a.StaffID] == nil {
			nextSlots[a.StaffID] = make(map[string]ShiftSlot)
		}
		nextSlots[a.StaffID][slot.Key()] = slot
	}

	diffs := make(map[uuid.UUID]*StaffDiff)
	ensure := func(staffID uuid.UUID) *StaffDiff {
		d := diffs[staffID]
		if d == nil {
			d = &StaffDiff{StaffID: staffID}
			diffs[staffID] = d
		}
		return d
	}

	for staffID, slots := range nextSlots {
		for key, slot := range slots {
			if _, had := prevSlots[staffID][key]; !had {
				ensure(staffID).Added = append(ensure(staffID).Added, slot)
			}
		}
	}
	for staffID, slots := range prevSlots {
		for key, slot := range slots {
			if _, has := nextSlots[staffID][key]; !has {
				ensure(staffID).Removed = append(ensure(staffID).Removed, slot)
			}
		}
	}

	for _, d := range diffs {
		sortSlots(d.Added)
		sortSlots(d.Removed)
	}
	return diffs
}

// sortSlots 按日期和时间排序槽位
func sortSlots(slots []ShiftSlot) {
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].Key() < slots[j].Key()
	})
}
