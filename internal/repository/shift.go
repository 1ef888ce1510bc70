// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/canpai/canpai/pkg/model"
)

// ShiftRepository 班次仓储
type ShiftRepository struct {
	db DB
}

// NewShiftRepository 创建班次仓储
func NewShiftRepository(db DB) *ShiftRepository {
	return &ShiftRepository{db: db}
}

const shiftColumns = `id, biz_id, name, date, start_time, end_time,
	required_skill, required_count, hourly_rate, created_at, updated_at`

// Create 创建班次
func (r *ShiftRepository) Create(ctx context.Context, shift *model.Shift) error {
	if err := shift.Validate(); err != nil {
		return err
	}
	if shift.ID == uuid.Nil {
		shift.ID = uuid.New()
	}
	now := time.Now()
	shift.CreatedAt = now
	shift.UpdatedAt = now

	query := `
		INSERT INTO shifts (
			id, biz_id, name, date, start_time, end_time,
			required_skill, required_count, hourly_rate, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		shift.ID, shift.BizID, shift.Name, shift.Date, shift.StartTime, shift.EndTime,
		shift.RequiredSkill, shift.RequiredCount, shift.HourlyRate, shift.CreatedAt, shift.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("创建班次失败: %w", err)
	}
	return nil
}

// GetByID 根据ID获取班次
func (r *ShiftRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Shift, error) {
	query := fmt.Sprintf(`SELECT %s FROM shifts WHERE id = $1 AND deleted_at IS NULL`, shiftColumns)
	shift, err := scanShiftFrom(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return shift, err
}

// Update 更新班次
func (r *ShiftRepository) Update(ctx context.Context, shift *model.Shift) error {
	if err := shift.Validate(); err != nil {
		return err
	}
	shift.UpdatedAt = time.Now()

	query := `
		UPDATE shifts SET
			name = $2, date = $3, start_time = $4, end_time = $5,
			required_skill = $6, required_count = $7, hourly_rate = $8, updated_at = $9
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query,
		shift.ID, shift.Name, shift.Date, shift.StartTime, shift.EndTime,
		shift.RequiredSkill, shift.RequiredCount, shift.HourlyRate, shift.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("更新班次失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("班次不存在")
	}
	return nil
}

// Delete 软删除班次
func (r *ShiftRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE shifts SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("删除班次失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("班次不存在")
	}
	return nil
}

// List 查询班次列表
func (r *ShiftRepository) List(ctx context.Context, filter ListFilter) ([]*model.Shift, int, error) {
	var conditions []string
	var args []interface{}
	argIndex := 1

	conditions = append(conditions, "deleted_at IS NULL")

	if filter.BizID != nil {
		conditions = append(conditions, fmt.Sprintf("biz_id = $%d", argIndex))
		args = append(args, *filter.BizID)
		argIndex++
	}
	if filter.StartDate != "" {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", argIndex))
		args = append(args, filter.StartDate)
		argIndex++
	}
	if filter.EndDate != "" {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", argIndex))
		args = append(args, filter.EndDate)
		argIndex++
	}
	if skill, ok := filter.Extra["skill"].(string); ok && skill != "" {
		conditions = append(conditions, fmt.Sprintf("required_skill = $%d", argIndex))
		args = append(args, skill)
		argIndex++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM shifts WHERE %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("查询总数失败: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM shifts
		WHERE %s
		ORDER BY date ASC, start_time ASC, id ASC
		LIMIT $%d OFFSET $%d
	`, shiftColumns, whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("查询列表失败: %w", err)
	}
	defer rows.Close()

	var shifts []*model.Shift
	for rows.Next() {
		s, err := scanShiftFrom(rows)
		if err != nil {
			return nil, 0, err
		}
		shifts = append(shifts, s)
	}
	return shifts, total, nil
}

// ListByRange 查询商户在日期范围内的全部班次
func (r *ShiftRepository) ListByRange(ctx context.Context, bizID uuid.UUID, rng model.DateRange) ([]*model.Shift, error) {
	filter := DefaultListFilter().
		WithBizID(bizID).
		WithDateRange(rng.StartDate, rng.EndDate).
		WithLimit(10000)
	shifts, _, err := r.List(ctx, filter)
	return shifts, err
}

// scanShiftFrom 从扫描器读取班次数据
func scanShiftFrom(s Scanner) (*model.Shift, error) {
	shift := &model.Shift{}
	err := s.Scan(
		&shift.ID, &shift.BizID, &shift.Name, &shift.Date, &shift.StartTime, &shift.EndTime,
		&shift.RequiredSkill, &shift.RequiredCount, &shift.HourlyRate,
		&shift.CreatedAt, &shift.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("扫描班次数据失败: %w", err)
	}
	return shift, nil
}
