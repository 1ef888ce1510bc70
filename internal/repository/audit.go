// Package repository 提供数据访问层
package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/canpai/canpai/internal/audit"
)

// AuditRepository 审计事件仓储，实现 audit.Recorder
type AuditRepository struct {
	db DB
}

// NewAuditRepository 创建审计仓储
func NewAuditRepository(db DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record 持久化审计事件
func (r *AuditRepository) Record(ctx context.Context, event *audit.Event) error {
	detailJSON, _ := json.Marshal(event.Detail)

	query := `
		INSERT INTO audit_events (id, biz_id, draft_id, action, actor, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.BizID, event.DraftID, event.Action, event.Actor,
		detailJSON, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("写入审计事件失败: %w", err)
	}
	return nil
}
