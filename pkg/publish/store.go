// Package publish 实现草稿到正式排班的发布流水线
package publish

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/canpai/canpai/pkg/draft"
	"github.com/canpai/canpai/pkg/model"
)

// Bundle 一次发布涉及的全部写入
// 实现方必须保证整体成功或整体失败
type Bundle struct {
	Draft         *model.ScheduleDraft
	Schedule      *model.PublishedSchedule
	Assignments   []*model.PublishedAssignment
	Notifications []*model.ScheduleNotification

	// HoursByStaff 员工每周新增的已发布工时，键为周一日期
	HoursByStaff map[uuid.UUID]map[string]float64
}

// Store 发布持久化接口
type Store interface {
	// PreviousPublished 查询商户在范围内上一次发布的分配
	PreviousPublished(ctx context.Context, bizID uuid.UUID, rng model.DateRange) ([]*model.PublishedAssignment, error)

	// PublishTx 原子性地落地一次发布
	PublishTx(ctx context.Context, bundle *Bundle) error
}

// MemoryStore 内存发布存储，测试和单机部署使用
type MemoryStore struct {
	drafts draft.Store

	mu            sync.Mutex
	schedules     []*model.PublishedSchedule
	assignments   []*model.PublishedAssignment
	notifications []*model.ScheduleNotification
	hours         map[uuid.UUID]map[string]float64
}

// NewMemoryStore 创建内存发布存储
func NewMemoryStore(drafts draft.Store) *MemoryStore {
	return &MemoryStore{
		drafts: drafts,
		hours:  make(map[uuid.UUID]map[string]float64),
	}
}

// PreviousPublished 查询范围内最近一次发布的分配
func (s *MemoryStore) PreviousPublished(ctx context.Context, bizID uuid.UUID, rng model.DateRange) ([]*model.PublishedAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 找出范围重叠的最近一个发布
	var latest *model.PublishedSchedule
	for _, sched := range s.schedules {
		if sched.BizID != bizID || !sched.Range.Overlaps(rng) {
			continue
		}
		if latest == nil || sched.PublishedAt.After(latest.PublishedAt) {
			latest = sched
		}
	}
	if latest == nil {
		return nil, nil
	}

	var result []*model.PublishedAssignment
	for _, a := range s.assignments {
		if a.ScheduleID == latest.ID {
			c := *a
			result = append(result, &c)
		}
	}
	return result, nil
}

// PublishTx 落地一次发布
func (s *MemoryStore) PublishTx(ctx context.Context, bundle *Bundle) error {
	// 先更新草稿状态，失败则不写入任何发布数据
	_, shifts, assignments, err := s.drafts.GetDraft(ctx, bundle.Draft.ID)
	if err != nil {
		return err
	}
	if err := s.drafts.UpdateDraft(ctx, bundle.Draft, shifts, assignments); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.schedules = append(s.schedules, bundle.Schedule)
	s.assignments = append(s.assignments, bundle.Assignments...)
	s.notifications = append(s.notifications, bundle.Notifications...)

	for staffID, weeks := range bundle.HoursByStaff {
		if s.hours[staffID] == nil {
			s.hours[staffID] = make(map[string]float64)
		}
		for weekStart, h := range weeks {
			s.hours[staffID][weekStart] += h
		}
	}
	return nil
}

// Notifications 读取全部通知（测试用）
func (s *MemoryStore) Notifications() []*model.ScheduleNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.ScheduleNotification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

// CommittedHours 读取员工某周的已发布工时（测试用）
func (s *MemoryStore) CommittedHours(staffID uuid.UUID, weekStart string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hours[staffID][weekStart]
}

// MarkSent 更新通知投递状态
func (s *MemoryStore) MarkSent(id uuid.UUID, externalID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.ID == id {
			now := time.Now()
			n.Status = model.NotifySent
			n.ExternalID = externalID
			n.SentAt = &now
			return
		}
	}
}
