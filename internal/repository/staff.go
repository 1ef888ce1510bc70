// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/canpai/canpai/pkg/model"
)

// StaffRepository 员工仓储
type StaffRepository struct {
	db DB
}

// NewStaffRepository 创建员工仓储
func NewStaffRepository(db DB) *StaffRepository {
	return &StaffRepository{db: db}
}

const staffColumns = `id, biz_id, name, code, status, skills, weekly_availability, time_off,
	max_weekly_hours, max_consecutive_days, hourly_rate, reliability_score,
	recent_weekly_hours, created_at, updated_at`

// Create 创建员工
func (r *StaffRepository) Create(ctx context.Context, staff *model.Staff) error {
	if staff.ID == uuid.Nil {
		staff.ID = uuid.New()
	}
	now := time.Now()
	staff.CreatedAt = now
	staff.UpdatedAt = now

	availJSON, _ := json.Marshal(staff.WeeklyAvailability)
	timeOffJSON, _ := json.Marshal(staff.TimeOff)
	hoursJSON, _ := json.Marshal(staff.RecentWeeklyHours)

	query := `
		INSERT INTO staff (
			id, biz_id, name, code, status, skills, weekly_availability, time_off,
			max_weekly_hours, max_consecutive_days, hourly_rate, reliability_score,
			recent_weekly_hours, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.ExecContext(ctx, query,
		staff.ID, staff.BizID, staff.Name, staff.Code, staff.Status,
		pq.Array(staff.Skills), availJSON, timeOffJSON,
		staff.MaxWeeklyHours, staff.MaxConsecutiveDays, staff.HourlyRate, staff.ReliabilityScore,
		hoursJSON, staff.CreatedAt, staff.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("创建员工失败: %w", err)
	}
	return nil
}

// GetByID 根据ID获取员工
func (r *StaffRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Staff, error) {
	query := fmt.Sprintf(`SELECT %s FROM staff WHERE id = $1 AND deleted_at IS NULL`, staffColumns)
	return r.scanStaff(r.db.QueryRowContext(ctx, query, id))
}

// GetByCode 根据商户和工号获取员工
func (r *StaffRepository) GetByCode(ctx context.Context, bizID uuid.UUID, code string) (*model.Staff, error) {
	query := fmt.Sprintf(`SELECT %s FROM staff WHERE biz_id = $1 AND code = $2 AND deleted_at IS NULL`, staffColumns)
	return r.scanStaff(r.db.QueryRowContext(ctx, query, bizID, code))
}

// Update 更新员工
func (r *StaffRepository) Update(ctx context.Context, staff *model.Staff) error {
	staff.UpdatedAt = time.Now()

	availJSON, _ := json.Marshal(staff.WeeklyAvailability)
	timeOffJSON, _ := json.Marshal(staff.TimeOff)
	hoursJSON, _ := json.Marshal(staff.RecentWeeklyHours)

	query := `
		UPDATE staff SET
			name = $2, code = $3, status = $4, skills = $5, weekly_availability = $6,
			time_off = $7, max_weekly_hours = $8, max_consecutive_days = $9,
			hourly_rate = $10, reliability_score = $11, recent_weekly_hours = $12, updated_at = $13
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query,
		staff.ID, staff.Name, staff.Code, staff.Status,
		pq.Array(staff.Skills), availJSON, timeOffJSON,
		staff.MaxWeeklyHours, staff.MaxConsecutiveDays,
		staff.HourlyRate, staff.ReliabilityScore, hoursJSON, staff.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("更新员工失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("员工不存在")
	}
	return nil
}

// Delete 软删除员工
func (r *StaffRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE staff SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("删除员工失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("员工不存在")
	}
	return nil
}

// List 查询员工列表
func (r *StaffRepository) List(ctx context.Context, filter ListFilter) ([]*model.Staff, int, error) {
	var conditions []string
	var args []interface{}
	argIndex := 1

	conditions = append(conditions, "deleted_at IS NULL")

	if filter.BizID != nil {
		conditions = append(conditions, fmt.Sprintf("biz_id = $%d", argIndex))
		args = append(args, *filter.BizID)
		argIndex++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, filter.Status)
		argIndex++
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR code ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+filter.Search+"%")
		argIndex++
	}
	if skill, ok := filter.Extra["skill"].(string); ok && skill != "" {
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(skills)", argIndex))
		args = append(args, skill)
		argIndex++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM staff WHERE %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("查询总数失败: %w", err)
	}

	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = "created_at"
	}
	orderDir := filter.OrderDir
	if orderDir == "" {
		orderDir = "desc"
	}

	query := fmt.Sprintf(`
		SELECT %s FROM staff
		WHERE %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, staffColumns, whereClause, orderBy, orderDir, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("查询列表失败: %w", err)
	}
	defer rows.Close()

	var staff []*model.Staff
	for rows.Next() {
		s, err := r.scanStaffRow(rows)
		if err != nil {
			return nil, 0, err
		}
		staff = append(staff, s)
	}
	return staff, total, nil
}

// ListActive 获取商户下所有在职员工
func (r *StaffRepository) ListActive(ctx context.Context, bizID uuid.UUID) ([]*model.Staff, error) {
	filter := DefaultListFilter().WithBizID(bizID).WithStatus("active").WithLimit(10000)
	staff, _, err := r.List(ctx, filter)
	return staff, err
}

// AddWeeklyHours 累加员工某周的已发布工时
func (r *StaffRepository) AddWeeklyHours(ctx context.Context, db DB, staffID uuid.UUID, weekStart string, hours float64) error {
	query := `
		UPDATE staff SET
			recent_weekly_hours = jsonb_set(
				COALESCE(recent_weekly_hours, '{}'::jsonb),
				ARRAY[$2::text],
				to_jsonb(COALESCE((recent_weekly_hours->>$2)::float, 0) + $3)
			),
			updated_at = $4
		WHERE id = $1 AND deleted_at IS NULL
	`
	_, err := db.ExecContext(ctx, query, staffID, weekStart, hours, time.Now())
	if err != nil {
		return fmt.Errorf("累加员工周工时失败: %w", err)
	}
	return nil
}

// scanStaff 扫描单行员工数据
func (r *StaffRepository) scanStaff(row *sql.Row) (*model.Staff, error) {
	staff, err := scanStaffFrom(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return staff, err
}

// scanStaffRow 扫描Rows中的员工数据
func (r *StaffRepository) scanStaffRow(rows *sql.Rows) (*model.Staff, error) {
	return scanStaffFrom(rows)
}

// scanStaffFrom 从扫描器读取员工数据
func scanStaffFrom(s Scanner) (*model.Staff, error) {
	staff := &model.Staff{}
	var availJSON, timeOffJSON, hoursJSON []byte

	err := s.Scan(
		&staff.ID, &staff.BizID, &staff.Name, &staff.Code, &staff.Status,
		pq.Array(&staff.Skills), &availJSON, &timeOffJSON,
		&staff.MaxWeeklyHours, &staff.MaxConsecutiveDays, &staff.HourlyRate, &staff.ReliabilityScore,
		&hoursJSON, &staff.CreatedAt, &staff.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("扫描员工数据失败: %w", err)
	}

	json.Unmarshal(availJSON, &staff.WeeklyAvailability)
	json.Unmarshal(timeOffJSON, &staff.TimeOff)
	json.Unmarshal(hoursJSON, &staff.RecentWeeklyHours)

	return staff, nil
}
