// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/canpai/canpai/pkg/errors"
	"github.com/canpai/canpai/pkg/model"
)

// DraftRepository 草稿仓储，实现 draft.Store
// 班次快照以 JSONB 随草稿整体存取，分配单独成行
type DraftRepository struct {
	db DB
}

// NewDraftRepository 创建草稿仓储
func NewDraftRepository(db DB) *DraftRepository {
	return &DraftRepository{db: db}
}

// SaveDraft 保存新草稿
func (r *DraftRepository) SaveDraft(ctx context.Context, draft *model.ScheduleDraft, shifts []*model.Shift, assignments []*model.DraftAssignment) error {
	shiftsJSON, _ := json.Marshal(shifts)
	paramsJSON, _ := json.Marshal(draft.Params)

	query := `
		INSERT INTO schedule_drafts (
			id, biz_id, created_by, start_date, end_date, status, ai_generated,
			params, confidence, version, shift_snapshot, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		draft.ID, draft.BizID, draft.CreatedBy, draft.Range.StartDate, draft.Range.EndDate,
		draft.Status, draft.AIGenerated, paramsJSON, draft.Confidence, draft.Version,
		shiftsJSON, draft.CreatedAt, draft.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("保存草稿失败: %w", err)
	}

	return r.insertAssignments(ctx, draft.ID, assignments)
}

// GetDraft 读取草稿
func (r *DraftRepository) GetDraft(ctx context.Context, id uuid.UUID) (*model.ScheduleDraft, []*model.Shift, []*model.DraftAssignment, error) {
	query := `
		SELECT id, biz_id, created_by, start_date, end_date, status, ai_generated,
			params, confidence, version, shift_snapshot, published_at, created_at, updated_at
		FROM schedule_drafts
		WHERE id = $1 AND deleted_at IS NULL
	`
	draft := &model.ScheduleDraft{}
	var paramsJSON, shiftsJSON []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&draft.ID, &draft.BizID, &draft.CreatedBy,
		&draft.Range.StartDate, &draft.Range.EndDate,
		&draft.Status, &draft.AIGenerated, &paramsJSON, &draft.Confidence, &draft.Version,
		&shiftsJSON, &draft.PublishedAt, &draft.CreatedAt, &draft.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil, nil, apperrors.NotFound("draft", id.String())
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("读取草稿失败: %w", err)
	}

	var shifts []*model.Shift
	json.Unmarshal(shiftsJSON, &shifts)
	json.Unmarshal(paramsJSON, &draft.Params)

	assignments, err := r.listAssignments(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	return draft, shifts, assignments, nil
}

// UpdateDraft 整体覆盖草稿
func (r *DraftRepository) UpdateDraft(ctx context.Context, draft *model.ScheduleDraft, shifts []*model.Shift, assignments []*model.DraftAssignment) error {
	shiftsJSON, _ := json.Marshal(shifts)
	paramsJSON, _ := json.Marshal(draft.Params)

	query := `
		UPDATE schedule_drafts SET
			status = $2, params = $3, confidence = $4, version = $5,
			shift_snapshot = $6, published_at = $7, updated_at = $8
		WHERE id = $1 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query,
		draft.ID, draft.Status, paramsJSON, draft.Confidence, draft.Version,
		shiftsJSON, draft.PublishedAt, draft.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("更新草稿失败: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.NotFound("draft", draft.ID.String())
	}

	// 分配整体重建
	if _, err := r.db.ExecContext(ctx, `DELETE FROM draft_assignments WHERE draft_id = $1`, draft.ID); err != nil {
		return fmt.Errorf("清理草稿分配失败: %w", err)
	}
	return r.insertAssignments(ctx, draft.ID, assignments)
}

// ListDrafts 按商户和状态列出草稿
func (r *DraftRepository) ListDrafts(ctx context.Context, bizID uuid.UUID, status model.DraftStatus) ([]*model.ScheduleDraft, error) {
	query := `
		SELECT id, biz_id, created_by, start_date, end_date, status, ai_generated,
			params, confidence, version, published_at, created_at, updated_at
		FROM schedule_drafts
		WHERE biz_id = $1 AND ($2 = '' OR status = $2) AND deleted_at IS NULL
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, bizID, string(status))
	if err != nil {
		return nil, fmt.Errorf("查询草稿列表失败: %w", err)
	}
	defer rows.Close()

	return scanDrafts(rows)
}

// FindOverlapping 查找范围重叠的未发布草稿
func (r *DraftRepository) FindOverlapping(ctx context.Context, bizID uuid.UUID, rng model.DateRange, exclude uuid.UUID) ([]*model.ScheduleDraft, error) {
	query := `
		SELECT id, biz_id, created_by, start_date, end_date, status, ai_generated,
			params, confidence, version, published_at, created_at, updated_at
		FROM schedule_drafts
		WHERE biz_id = $1 AND id != $2 AND status = 'draft'
			AND start_date <= $4 AND end_date >= $3
			AND deleted_at IS NULL
		ORDER BY id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, bizID, exclude, rng.StartDate, rng.EndDate)
	if err != nil {
		return nil, fmt.Errorf("查询重叠草稿失败: %w", err)
	}
	defer rows.Close()

	return scanDrafts(rows)
}

// insertAssignments 批量写入分配
func (r *DraftRepository) insertAssignments(ctx context.Context, draftID uuid.UUID, assignments []*model.DraftAssignment) error {
	query := `
		INSERT INTO draft_assignments (
			id, draft_id, shift_id, staff_id, confidence, reasoning, factors,
			is_ai_generated, manual_override, override_note, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	now := time.Now()
	for _, a := range assignments {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		a.UpdatedAt = now
		a.DraftID = draftID

		factorsJSON, _ := json.Marshal(a.Factors)
		if _, err := r.db.ExecContext(ctx, query,
			a.ID, a.DraftID, a.ShiftID, a.StaffID, a.Confidence, a.Reasoning, factorsJSON,
			a.AIGenerated, a.ManualOverride, a.OverrideNote, a.CreatedAt, a.UpdatedAt,
		); err != nil {
			return fmt.Errorf("写入草稿分配失败: %w", err)
		}
	}
	return nil
}

// listAssignments 读取草稿全部分配
func (r *DraftRepository) listAssignments(ctx context.Context, draftID uuid.UUID) ([]*model.DraftAssignment, error) {
	query := `
		SELECT id, draft_id, shift_id, staff_id, confidence, reasoning, factors,
			is_ai_generated, manual_override, override_note, created_at, updated_at
		FROM draft_assignments
		WHERE draft_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, draftID)
	if err != nil {
		return nil, fmt.Errorf("查询草稿分配失败: %w", err)
	}
	defer rows.Close()

	var assignments []*model.DraftAssignment
	for rows.Next() {
		a := &model.DraftAssignment{}
		var factorsJSON []byte
		if err := rows.Scan(
			&a.ID, &a.DraftID, &a.ShiftID, &a.StaffID, &a.Confidence, &a.Reasoning, &factorsJSON,
			&a.AIGenerated, &a.ManualOverride, &a.OverrideNote, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("扫描草稿分配失败: %w", err)
		}
		json.Unmarshal(factorsJSON, &a.Factors)
		assignments = append(assignments, a)
	}
	return assignments, nil
}

// scanDrafts 扫描草稿列表
func scanDrafts(rows *sql.Rows) ([]*model.ScheduleDraft, error) {
	var drafts []*model.ScheduleDraft
	for rows.Next() {
		draft := &model.ScheduleDraft{}
		var paramsJSON []byte
		if err := rows.Scan(
			&draft.ID, &draft.BizID, &draft.CreatedBy,
			&draft.Range.StartDate, &draft.Range.EndDate,
			&draft.Status, &draft.AIGenerated, &paramsJSON, &draft.Confidence, &draft.Version,
			&draft.PublishedAt, &draft.CreatedAt, &draft.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("扫描草稿失败: %w", err)
		}
		json.Unmarshal(paramsJSON, &draft.Params)
		drafts = append(drafts, draft)
	}
	return drafts, nil
}
