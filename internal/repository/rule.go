// Package repository 提供数据访问层
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/canpai/canpai/pkg/model"
)

// RuleRepository 约束规则与员工偏好仓储
type RuleRepository struct {
	db DB
}

// NewRuleRepository 创建规则仓储
func NewRuleRepository(db DB) *RuleRepository {
	return &RuleRepository{db: db}
}

// CreateConstraint 创建约束规则
func (r *RuleRepository) CreateConstraint(ctx context.Context, rule *model.SchedulingConstraint) error {
	if rule.Payload != nil {
		if err := rule.Payload.Validate(); err != nil {
			return err
		}
	}
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	payloadJSON, _ := json.Marshal(rule.Payload)

	query := `
		INSERT INTO scheduling_constraints (id, biz_id, type, priority, active, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		rule.ID, rule.BizID, rule.Type, rule.Priority, rule.Active, payloadJSON,
		rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("创建约束规则失败: %w", err)
	}
	return nil
}

// UpdateConstraint 更新约束规则
func (r *RuleRepository) UpdateConstraint(ctx context.Context, rule *model.SchedulingConstraint) error {
	if rule.Payload != nil {
		if err := rule.Payload.Validate(); err != nil {
			return err
		}
	}
	rule.UpdatedAt = time.Now()

	payloadJSON, _ := json.Marshal(rule.Payload)

	query := `
		UPDATE scheduling_constraints SET
			priority = $2, active = $3, payload = $4, updated_at = $5
		WHERE id = $1 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query,
		rule.ID, rule.Priority, rule.Active, payloadJSON, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("更新约束规则失败: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("约束规则不存在")
	}
	return nil
}

// ListConstraints 查询商户的全部生效约束规则
func (r *RuleRepository) ListConstraints(ctx context.Context, bizID uuid.UUID) ([]*model.SchedulingConstraint, error) {
	query := `
		SELECT id, biz_id, type, priority, active, payload, created_at, updated_at
		FROM scheduling_constraints
		WHERE biz_id = $1 AND active = TRUE AND deleted_at IS NULL
		ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, bizID)
	if err != nil {
		return nil, fmt.Errorf("查询约束规则失败: %w", err)
	}
	defer rows.Close()

	var rules []*model.SchedulingConstraint
	for rows.Next() {
		rule := &model.SchedulingConstraint{}
		var payloadJSON []byte
		if err := rows.Scan(
			&rule.ID, &rule.BizID, &rule.Type, &rule.Priority, &rule.Active,
			&payloadJSON, &rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("扫描约束规则失败: %w", err)
		}

		payload, err := model.ParseConstraintPayload(rule.Type, payloadJSON)
		if err != nil {
			return nil, err
		}
		rule.Payload = payload
		rules = append(rules, rule)
	}
	return rules, nil
}

// CreatePreference 创建员工偏好
func (r *RuleRepository) CreatePreference(ctx context.Context, pref *model.StaffPreference) error {
	if pref.Payload != nil {
		if err := pref.Payload.Validate(); err != nil {
			return err
		}
	}
	if pref.ID == uuid.Nil {
		pref.ID = uuid.New()
	}
	now := time.Now()
	pref.CreatedAt = now
	pref.UpdatedAt = now

	payloadJSON, _ := json.Marshal(pref.Payload)

	query := `
		INSERT INTO staff_preferences (
			id, staff_id, type, priority, active, effective_from, expires_at, payload, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		pref.ID, pref.StaffID, pref.Type, pref.Priority, pref.Active,
		nullableDate(pref.EffectiveFrom), nullableDate(pref.ExpiresAt), payloadJSON,
		pref.CreatedAt, pref.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("创建员工偏好失败: %w", err)
	}
	return nil
}

// ListPreferencesByBiz 查询商户全部员工的生效偏好
func (r *RuleRepository) ListPreferencesByBiz(ctx context.Context, bizID uuid.UUID) ([]*model.StaffPreference, error) {
	query := `
		SELECT p.id, p.staff_id, p.type, p.priority, p.active,
			COALESCE(p.effective_from::text, ''), COALESCE(p.expires_at::text, ''),
			p.payload, p.created_at, p.updated_at
		FROM staff_preferences p
		JOIN staff s ON s.id = p.staff_id
		WHERE s.biz_id = $1 AND p.active = TRUE AND p.deleted_at IS NULL AND s.deleted_at IS NULL
		ORDER BY p.created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, bizID)
	if err != nil {
		return nil, fmt.Errorf("查询员工偏好失败: %w", err)
	}
	defer rows.Close()

	var prefs []*model.StaffPreference
	for rows.Next() {
		pref := &model.StaffPreference{}
		var payloadJSON []byte
		if err := rows.Scan(
			&pref.ID, &pref.StaffID, &pref.Type, &pref.Priority, &pref.Active,
			&pref.EffectiveFrom, &pref.ExpiresAt, &payloadJSON,
			&pref.CreatedAt, &pref.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("扫描员工偏好失败: %w", err)
		}

		payload, err := model.ParsePreferencePayload(pref.Type, payloadJSON)
		if err != nil {
			return nil, err
		}
		pref.Payload = payload
		prefs = append(prefs, pref)
	}
	return prefs, nil
}

// nullableDate 空字符串转NULL
func nullableDate(date string) interface{} {
	if date == "" {
		return nil
	}
	return date
}
