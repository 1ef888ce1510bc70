// Package builtin 提供内置约束实现
package builtin

import (
	"github.com/google/uuid"
	"github.com/canpai/canpai/pkg/model"
	"github.com/canpai/canpai/pkg/scheduler/constraint"
)

// BaseConstraint 约束基类
type BaseConstraint struct {
	name     string
	typ      model.ConstraintType
	category constraint.Category
	weight   int
}

// NewBaseConstraint 创建基础约束
func NewBaseConstraint(name string, typ model.ConstraintType, cat constraint.Category, weight int) *BaseConstraint {
	return &BaseConstraint{
		name:     name,
		typ:      typ,
		category: cat,
		weight:   weight,
	}
}

// Name 返回约束名称
func (c *BaseConstraint) Name() string { return c.name }

// Type 返回约束类型
func (c *BaseConstraint) Type() model.ConstraintType { return c.typ }

// Category 返回约束类别
func (c *BaseConstraint) Category() constraint.Category { return c.category }

// Weight 返回约束权重
func (c *BaseConstraint) Weight() int { return c.weight }

// severity 返回违反严重级别
func (c *BaseConstraint) severity() string {
	if c.category == constraint.CategoryHard {
		return "error"
	}
	return "warning"
}

// violation 创建违反详情
func (c *BaseConstraint) violation(staffID, shiftID uuid.UUID, date, message string, penalty int) constraint.ViolationDetail {
	return constraint.ViolationDetail{
		ConstraintType: c.typ,
		ConstraintName: c.name,
		StaffID:        staffID,
		ShiftID:        shiftID,
		Date:           date,
		Message:        message,
		Severity:       c.severity(),
		Penalty:        penalty,
	}
}
