// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/canpai/canpai/internal/database"
	"github.com/canpai/canpai/pkg/model"
	"github.com/canpai/canpai/pkg/publish"
)

// PublishRepository 发布仓储，实现 publish.Store
// 一次发布的全部写入跑在单个数据库事务里
type PublishRepository struct {
	db    *database.DB
	staff *StaffRepository
}

// NewPublishRepository 创建发布仓储
func NewPublishRepository(db *database.DB) *PublishRepository {
	return &PublishRepository{
		db:    db,
		staff: NewStaffRepository(db),
	}
}

// PreviousPublished 查询商户范围内最近一次发布的分配
func (r *PublishRepository) PreviousPublished(ctx context.Context, bizID uuid.UUID, rng model.DateRange) ([]*model.PublishedAssignment, error) {
	query := `
		SELECT id FROM published_schedules
		WHERE biz_id = $1 AND start_date <= $3 AND end_date >= $2
		ORDER BY published_at DESC
		LIMIT 1
	`
	var scheduleID uuid.UUID
	err := r.db.QueryRowContext(ctx, query, bizID, rng.StartDate, rng.EndDate).Scan(&scheduleID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询历史发布失败: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, schedule_id, shift_id, staff_id, date, start_time, end_time, skill, hours, created_at, updated_at
		FROM published_assignments
		WHERE schedule_id = $1
		ORDER BY date ASC, start_time ASC, id ASC
	`, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("查询历史分配失败: %w", err)
	}
	defer rows.Close()

	var assignments []*model.PublishedAssignment
	for rows.Next() {
		a := &model.PublishedAssignment{}
		if err := rows.Scan(
			&a.ID, &a.ScheduleID, &a.ShiftID, &a.StaffID, &a.Date,
			&a.StartTime, &a.EndTime, &a.Skill, &a.Hours, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("扫描历史分配失败: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, nil
}

// PublishTx 原子性地落地一次发布
func (r *PublishRepository) PublishTx(ctx context.Context, bundle *publish.Bundle) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		// 正式排班
		sched := bundle.Schedule
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO published_schedules (id, biz_id, draft_id, start_date, end_date, published_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, sched.ID, sched.BizID, sched.DraftID, sched.Range.StartDate, sched.Range.EndDate,
			sched.PublishedAt, sched.CreatedAt, sched.UpdatedAt); err != nil {
			return fmt.Errorf("写入正式排班失败: %w", err)
		}

		for _, a := range bundle.Assignments {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO published_assignments (id, schedule_id, shift_id, staff_id, date, start_time, end_time, skill, hours, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			`, a.ID, a.ScheduleID, a.ShiftID, a.StaffID, a.Date, a.StartTime, a.EndTime,
				a.Skill, a.Hours, a.CreatedAt, a.UpdatedAt); err != nil {
				return fmt.Errorf("写入正式分配失败: %w", err)
			}
		}

		// 草稿标记为已发布
		draft := bundle.Draft
		paramsJSON, _ := json.Marshal(draft.Params)
		result, err := tx.ExecContext(ctx, `
			UPDATE schedule_drafts SET
				status = $2, params = $3, confidence = $4, version = $5, published_at = $6, updated_at = $7
			WHERE id = $1 AND status = 'draft' AND deleted_at IS NULL
		`, draft.ID, draft.Status, paramsJSON, draft.Confidence, draft.Version, draft.PublishedAt, draft.UpdatedAt)
		if err != nil {
			return fmt.Errorf("更新草稿状态失败: %w", err)
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return fmt.Errorf("草稿不存在或已不在可发布状态")
		}

		// 通知入队
		for _, n := range bundle.Notifications {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO schedule_notifications (id, draft_id, staff_id, notification_type, channel, content, status, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`, n.ID, n.DraftID, n.StaffID, n.Type, n.Channel, n.Content, n.Status,
				n.CreatedAt, n.UpdatedAt); err != nil {
				return fmt.Errorf("写入排班通知失败: %w", err)
			}
		}

		// 滚动员工已发布周工时
		for staffID, weeks := range bundle.HoursByStaff {
			for weekStart, hours := range weeks {
				if err := r.staff.AddWeeklyHours(ctx, txDB{tx}, staffID, weekStart, hours); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// txDB 把 *sql.Tx 适配为 DB 接口
type txDB struct {
	*sql.Tx
}

func (t txDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return t.Tx.ExecContext(ctx, query, args...)
}

func (t txDB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return t.Tx.QueryContext(ctx, query, args...)
}

func (t txDB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return t.Tx.QueryRowContext(ctx, query, args...)
}
