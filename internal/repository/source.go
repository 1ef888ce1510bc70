// Package repository 提供数据访问层
package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/canpai/canpai/pkg/model"
)

// BizSource 聚合商户数据，实现 draft.GateSource
type BizSource struct {
	staff *StaffRepository
	rules *RuleRepository
}

// NewBizSource 创建商户数据源
func NewBizSource(staff *StaffRepository, rules *RuleRepository) *BizSource {
	return &BizSource{staff: staff, rules: rules}
}

// StaffForBiz 查询商户全部在职员工
func (s *BizSource) StaffForBiz(ctx context.Context, bizID uuid.UUID) ([]*model.Staff, error) {
	return s.staff.ListActive(ctx, bizID)
}

// RulesForBiz 查询商户生效约束规则
func (s *BizSource) RulesForBiz(ctx context.Context, bizID uuid.UUID) ([]*model.SchedulingConstraint, error) {
	return s.rules.ListConstraints(ctx, bizID)
}

// PreferencesForBiz 查询商户员工偏好
func (s *BizSource) PreferencesForBiz(ctx context.Context, bizID uuid.UUID) ([]*model.StaffPreference, error) {
	return s.rules.ListPreferencesByBiz(ctx, bizID)
}
