// Package audit 提供排班操作审计事件
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/canpai/canpai/pkg/logger"
	"github.com/canpai/canpai/pkg/model"
)

// Action 审计动作
type Action string

const (
	ActionDraftCreate  Action = "draft_create"
	ActionDraftChange  Action = "draft_change"
	ActionDraftArchive Action = "draft_archive"
	ActionPublish      Action = "publish"
)

// Event 审计事件
type Event struct {
	ID        uuid.UUID     `json:"id" db:"id"`
	BizID     uuid.UUID     `json:"biz_id" db:"biz_id"`
	DraftID   uuid.UUID     `json:"draft_id" db:"draft_id"`
	Action    Action        `json:"action" db:"action"`
	Actor     string        `json:"actor" db:"actor"`
	Detail    model.JSONMap `json:"detail,omitempty" db:"detail"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}

// NewEvent 创建审计事件
func NewEvent(bizID, draftID uuid.UUID, action Action, actor string) *Event {
	return &Event{
		ID:        uuid.New(),
		BizID:     bizID,
		DraftID:   draftID,
		Action:    action,
		Actor:     actor,
		Detail:    model.JSONMap{},
		CreatedAt: time.Now(),
	}
}

// With 附加事件明细
func (e *Event) With(key string, value interface{}) *Event {
	e.Detail[key] = value
	return e
}

// Recorder 审计事件记录器
type Recorder interface {
	Record(ctx context.Context, event *Event) error
}

// LogRecorder 把审计事件写入结构化日志
type LogRecorder struct{}

// NewLogRecorder 创建日志记录器
func NewLogRecorder() *LogRecorder {
	return &LogRecorder{}
}

// Record 记录事件
func (r *LogRecorder) Record(ctx context.Context, event *Event) error {
	logger.Info().
		Str("component", "audit").
		Str("event_id", event.ID.String()).
		Str("biz_id", event.BizID.String()).
		Str("draft_id", event.DraftID.String()).
		Str("action", string(event.Action)).
		Str("actor", event.Actor).
		Interface("detail", event.Detail).
		Msg("审计事件")
	return nil
}
