// Package draft 管理排班草稿的生命周期
package draft

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	apperrors "github.com/canpai/canpai/pkg/errors"
	"github.com/canpai/canpai/pkg/model"
)

// Store 草稿持久化接口
// 草稿携带自己的班次快照，编辑班次不影响其他草稿
type Store interface {
	// SaveDraft 保存新草稿及其班次快照和分配
	SaveDraft(ctx context.Context, draft *model.ScheduleDraft, shifts []*model.Shift, assignments []*model.DraftAssignment) error

	// GetDraft 读取草稿、班次快照和分配
	GetDraft(ctx context.Context, id uuid.UUID) (*model.ScheduleDraft, []*model.Shift, []*model.DraftAssignment, error)

	// UpdateDraft 整体覆盖草稿状态
	UpdateDraft(ctx context.Context, draft *model.ScheduleDraft, shifts []*model.Shift, assignments []*model.DraftAssignment) error

	// ListDrafts 按商户和状态列出草稿
	ListDrafts(ctx context.Context, bizID uuid.UUID, status model.DraftStatus) ([]*model.ScheduleDraft, error)

	// FindOverlapping 查找同商户、日期范围重叠、处于 draft 状态的其他草稿
	FindOverlapping(ctx context.Context, bizID uuid.UUID, rng model.DateRange, exclude uuid.UUID) ([]*model.ScheduleDraft, error)
}

// GateSource 提供校验草稿变更所需的商户数据
type GateSource interface {
	StaffForBiz(ctx context.Context, bizID uuid.UUID) ([]*model.Staff, error)
	RulesForBiz(ctx context.Context, bizID uuid.UUID) ([]*model.SchedulingConstraint, error)
	PreferencesForBiz(ctx context.Context, bizID uuid.UUID) ([]*model.StaffPreference, error)
}

// draftRecord 内存存储中的一条草稿记录
type draftRecord struct {
	draft       *model.ScheduleDraft
	shifts      []*model.Shift
	assignments []*model.DraftAssignment
}

// MemoryStore 内存草稿存储，测试和单机部署使用
type MemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*draftRecord
}

// NewMemoryStore 创建内存草稿存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[uuid.UUID]*draftRecord),
	}
}

// SaveDraft 保存新草稿
func (s *MemoryStore) SaveDraft(ctx context.Context, draft *model.ScheduleDraft, shifts []*model.Shift, assignments []*model.DraftAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[draft.ID]; exists {
		return apperrors.New(apperrors.CodeAlreadyExists, "草稿已存在")
	}
	s.records[draft.ID] = &draftRecord{
		draft:       cloneDraft(draft),
		shifts:      cloneShifts(shifts),
		assignments: cloneAssignments(assignments),
	}
	return nil
}

// GetDraft 读取草稿
func (s *MemoryStore) GetDraft(ctx context.Context, id uuid.UUID) (*model.ScheduleDraft, []*model.Shift, []*model.DraftAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, nil, nil, apperrors.NotFound("draft", id.String())
	}
	return cloneDraft(rec.draft), cloneShifts(rec.shifts), cloneAssignments(rec.assignments), nil
}

// UpdateDraft 覆盖草稿
func (s *MemoryStore) UpdateDraft(ctx context.Context, draft *model.ScheduleDraft, shifts []*model.Shift, assignments []*model.DraftAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[draft.ID]; !ok {
		return apperrors.NotFound("draft", draft.ID.String())
	}
	s.records[draft.ID] = &draftRecord{
		draft:       cloneDraft(draft),
		shifts:      cloneShifts(shifts),
		assignments: cloneAssignments(assignments),
	}
	return nil
}

// ListDrafts 按商户和状态列出草稿，按创建时间倒序
func (s *MemoryStore) ListDrafts(ctx context.Context, bizID uuid.UUID, status model.DraftStatus) ([]*model.ScheduleDraft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var drafts []*model.ScheduleDraft
	for _, rec := range s.records {
		if rec.draft.BizID != bizID {
			continue
		}
		if status != "" && rec.draft.Status != status {
			continue
		}
		drafts = append(drafts, cloneDraft(rec.draft))
	}
	sort.Slice(drafts, func(i, j int) bool {
		if !drafts[i].CreatedAt.Equal(drafts[j].CreatedAt) {
			return drafts[i].CreatedAt.After(drafts[j].CreatedAt)
		}
		return drafts[i].ID.String() < drafts[j].ID.String()
	})
	return drafts, nil
}

// FindOverlapping 查找范围重叠的未发布草稿
func (s *MemoryStore) FindOverlapping(ctx context.Context, bizID uuid.UUID, rng model.DateRange, exclude uuid.UUID) ([]*model.ScheduleDraft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var drafts []*model.ScheduleDraft
	for _, rec := range s.records {
		d := rec.draft
		if d.BizID != bizID || d.ID == exclude || d.Status != model.DraftStatusDraft {
			continue
		}
		if d.Range.Overlaps(rng) {
			drafts = append(drafts, cloneDraft(d))
		}
	}
	sort.Slice(drafts, func(i, j int) bool {
		return drafts[i].ID.String() < drafts[j].ID.String()
	})
	return drafts, nil
}

func cloneDraft(d *model.ScheduleDraft) *model.ScheduleDraft {
	c := *d
	return &c
}

func cloneShifts(shifts []*model.Shift) []*model.Shift {
	out := make([]*model.Shift, len(shifts))
	for i, s := range shifts {
		c := *s
		out[i] = &c
	}
	return out
}

func cloneAssignments(assignments []*model.DraftAssignment) []*model.DraftAssignment {
	out := make([]*model.DraftAssignment, len(assignments))
	for i, a := range assignments {
		c := *a
		c.Factors = append([]model.Factor(nil), a.Factors...)
		out[i] = &c
	}
	return out
}
