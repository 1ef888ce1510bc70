// Package publish 实现草稿到正式排班的发布流水线
package publish

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/canpai/canpai/pkg/draft"
	apperrors "github.com/canpai/canpai/pkg/errors"
	"github.com/canpai/canpai/pkg/logger"
	"github.com/canpai/canpai/pkg/model"
	"github.com/canpai/canpai/pkg/scheduler/constraint"
	"github.com/canpai/canpai/pkg/scheduler/constraint/builtin"
)

// Options 发布选项
type Options struct {
	// Channel 通知投递渠道 (whatsapp/sms/email)
	Channel string `json:"channel"`
}

// DefaultOptions 默认发布选项
func DefaultOptions() Options {
	return Options{Channel: "whatsapp"}
}

// Result 发布结果
type Result struct {
	Schedule      *model.PublishedSchedule      `json:"schedule"`
	Assignments   int                           `json:"assignments"`
	Notifications []*model.ScheduleNotification `json:"notifications"`
	Understaffed  []uuid.UUID                   `json:"understaffed_shifts,omitempty"`
	Acknowledged  []constraint.ViolationDetail  `json:"acknowledged_violations,omitempty"`
}

// Pipeline 发布流水线
// 发布持有草稿锁，与编辑操作互斥；所有写入全部成功或全部失败
type Pipeline struct {
	drafts *draft.Manager
	store  Store
	opts   Options
	logger *logger.PublishLogger
}

// NewPipeline 创建发布流水线
func NewPipeline(drafts *draft.Manager, store Store, opts Options) *Pipeline {
	if opts.Channel == "" {
		opts.Channel = DefaultOptions().Channel
	}
	return &Pipeline{
		drafts: drafts,
		store:  store,
		opts:   opts,
		logger: logger.NewPublishLogger(),
	}
}

// Publish 发布草稿
func (p *Pipeline) Publish(ctx context.Context, draftID uuid.UUID) (*Result, error) {
	var result *Result
	err := p.drafts.Locked(draftID, func() error {
		var err error
		result, err = p.publishLocked(ctx, draftID)
		return err
	})
	if err != nil {
		p.logger.PublishFailed(draftID.String(), err)
		return nil, err
	}
	// 草稿已进入终态，释放其专属锁
	p.drafts.ReleaseLock(draftID)
	return result, nil
}

// publishLocked 在草稿锁内执行发布
func (p *Pipeline) publishLocked(ctx context.Context, draftID uuid.UUID) (*Result, error) {
	d, shifts, assignments, err := p.drafts.Get(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if !d.Mutable() {
		return nil, apperrors.DraftState(draftID.String(), string(d.Status), string(model.DraftStatusDraft))
	}

	// 硬约束终验：未声明强制覆盖的违反直接拒绝发布
	acknowledged, err := p.verifyConstraints(ctx, d, shifts, assignments)
	if err != nil {
		return nil, err
	}

	shiftMap := make(map[uuid.UUID]*model.Shift, len(shifts))
	assignedCount := make(map[uuid.UUID]int)
	for _, s := range shifts {
		shiftMap[s.ID] = s
	}
	for _, a := range assignments {
		assignedCount[a.ShiftID]++
	}

	// 缺员班次允许发布，但要显式标记
	var understaffed []uuid.UUID
	for _, s := range shifts {
		if s.StatusFor(assignedCount[s.ID]) != model.ShiftFilled {
			understaffed = append(understaffed, s.ID)
		}
	}
	sort.Slice(understaffed, func(i, j int) bool {
		return understaffed[i].String() < understaffed[j].String()
	})

	now := time.Now()
	schedule := &model.PublishedSchedule{
		BaseModel:   model.NewBaseModel(),
		BizID:       d.BizID,
		DraftID:     d.ID,
		Range:       d.Range,
		PublishedAt: now,
	}

	published := make([]*model.PublishedAssignment, 0, len(assignments))
	hoursByStaff := make(map[uuid.UUID]map[string]float64)
	for _, a := range assignments {
		shift := shiftMap[a.ShiftID]
		if shift == nil {
			continue
		}
		hours := shift.DurationHours()
		published = append(published, &model.PublishedAssignment{
			BaseModel:  model.NewBaseModel(),
			ScheduleID: schedule.ID,
			ShiftID:    shift.ID,
			StaffID:    a.StaffID,
			Date:       shift.Date,
			StartTime:  shift.StartTime,
			EndTime:    shift.EndTime,
			Skill:      shift.RequiredSkill,
			Hours:      hours,
		})

		weekStart := model.WeekStart(shift.Date)
		if hoursByStaff[a.StaffID] == nil {
			hoursByStaff[a.StaffID] = make(map[string]float64)
		}
		hoursByStaff[a.StaffID][weekStart] += hours
	}

	notifications, err := p.buildNotifications(ctx, d, shifts, assignments)
	if err != nil {
		return nil, err
	}

	d.Status = model.DraftStatusPublished
	d.PublishedAt = &now
	d.UpdatedAt = now

	bundle := &Bundle{
		Draft:         d,
		Schedule:      schedule,
		Assignments:   published,
		Notifications: notifications,
		HoursByStaff:  hoursByStaff,
	}
	if err := p.store.PublishTx(ctx, bundle); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "发布落库失败")
	}

	p.logger.PublishComplete(d.ID.String(), len(published), len(notifications), len(understaffed))

	return &Result{
		Schedule:      schedule,
		Assignments:   len(published),
		Notifications: notifications,
		Understaffed:  understaffed,
		Acknowledged:  acknowledged,
	}, nil
}

// verifyConstraints 发布前的硬约束终验
// 带人工覆盖标记的分配，其违反视为已确认，仅随结果返回
func (p *Pipeline) verifyConstraints(ctx context.Context, d *model.ScheduleDraft, shifts []*model.Shift, assignments []*model.DraftAssignment) ([]constraint.ViolationDetail, error) {
	source := p.drafts.Source()
	staff, err := source.StaffForBiz(ctx, d.BizID)
	if err != nil {
		return nil, err
	}
	rules, err := source.RulesForBiz(ctx, d.BizID)
	if err != nil {
		return nil, err
	}
	prefs, err := source.PreferencesForBiz(ctx, d.BizID)
	if err != nil {
		return nil, err
	}

	cm := constraint.NewManager()
	builtin.Build(cm, rules, prefs)

	schedCtx := constraint.NewContext(d.BizID, d.Range)
	schedCtx.SetStaff(staff)
	schedCtx.SetShifts(shifts)
	schedCtx.SetAssignments(assignments)

	valid, violations := cm.EvaluateHard(schedCtx)
	if valid {
		return nil, nil
	}

	overriddenSlot := make(map[string]bool)
	overriddenStaff := make(map[uuid.UUID]bool)
	for _, a := range assignments {
		if a.ManualOverride {
			overriddenSlot[a.StaffID.String()+"|"+a.ShiftID.String()] = true
			overriddenStaff[a.StaffID] = true
		}
	}

	// 计划级违反（周工时、连续天数）不携带班次 ID，按员工匹配覆盖声明
	var blocking, acknowledged []constraint.ViolationDetail
	for _, v := range violations {
		if overriddenSlot[v.StaffID.String()+"|"+v.ShiftID.String()] ||
			(v.ShiftID == uuid.Nil && overriddenStaff[v.StaffID]) {
			acknowledged = append(acknowledged, v)
			continue
		}
		blocking = append(blocking, v)
	}
	if len(blocking) > 0 {
		return nil, apperrors.ConstraintViolation(string(blocking[0].ConstraintType), blocking[0].Message).
			WithField("violations", len(blocking))
	}
	return acknowledged, nil
}

// buildNotifications 按员工生成通知
// 首次发布发送 new_schedule，覆盖既有发布的员工差异发送 schedule_change
func (p *Pipeline) buildNotifications(ctx context.Context, d *model.ScheduleDraft, shifts []*model.Shift, assignments []*model.DraftAssignment) ([]*model.ScheduleNotification, error) {
	prev, err := p.store.PreviousPublished(ctx, d.BizID, d.Range)
	if err != nil {
		return nil, err
	}

	diffs := draft.DiffPublished(prev, assignments, shifts)

	staffIDs := make([]uuid.UUID, 0, len(diffs))
	for staffID := range diffs {
		staffIDs = append(staffIDs, staffID)
	}
	sort.Slice(staffIDs, func(i, j int) bool {
		return staffIDs[i].String() < staffIDs[j].String()
	})

	firstPublish := len(prev) == 0
	var notifications []*model.ScheduleNotification
	for _, staffID := range staffIDs {
		diff := diffs[staffID]
		if !diff.Changed() {
			continue
		}

		notifyType := model.NotifyScheduleChange
		if firstPublish {
			notifyType = model.NotifyNewSchedule
		}
		notifications = append(notifications, &model.ScheduleNotification{
			BaseModel: model.NewBaseModel(),
			DraftID:   d.ID,
			StaffID:   staffID,
			Type:      notifyType,
			Channel:   p.opts.Channel,
			Content:   renderContent(notifyType, d.Range, diff),
			Status:    model.NotifyPending,
		})
	}
	return notifications, nil
}

// renderContent 渲染通知文案
func renderContent(t model.NotificationType, rng model.DateRange, diff *draft.StaffDiff) string {
	if t == model.NotifyNewSchedule {
		return fmt.Sprintf("新排班已发布 (%s 至 %s)，你共有 %d 个班次",
			rng.StartDate, rng.EndDate, len(diff.Added))
	}

	msg := fmt.Sprintf("你的排班有调整 (%s 至 %s)：", rng.StartDate, rng.EndDate)
	for _, slot := range diff.Added {
		msg += fmt.Sprintf("新增 %s；", slot.String())
	}
	for _, slot := range diff.Removed {
		msg += fmt.Sprintf("取消 %s；", slot.String())
	}
	return msg
}
