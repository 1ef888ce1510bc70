// Package handler 提供HTTP请求处理器
package handler

import (
	"net/http"

	"github.com/canpai/canpai/internal/audit"
	"github.com/canpai/canpai/internal/metrics"
	apperrors "github.com/canpai/canpai/pkg/errors"
	"github.com/canpai/canpai/pkg/model"
)

// PublishDraft 发布草稿为正式排班
func (h *Handlers) PublishDraft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, apperrors.New(apperrors.CodeInvalidInput, "仅支持POST方法"))
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}

	result, err := h.pipeline.Publish(r.Context(), id)
	if err != nil {
		metrics.RecordPublish(false, 0, "")
		respondError(w, err)
		return
	}

	notifyType := string(model.NotifyNewSchedule)
	if len(result.Notifications) > 0 {
		notifyType = string(result.Notifications[0].Type)
	}
	metrics.RecordPublish(true, len(result.Notifications), notifyType)

	h.recordAudit(r.Context(), audit.NewEvent(result.Schedule.BizID, id, audit.ActionPublish, r.Header.Get("X-Actor")).
		With("schedule_id", result.Schedule.ID.String()).
		With("assignments", result.Assignments).
		With("notifications", len(result.Notifications)).
		With("understaffed", len(result.Understaffed)))

	respondJSON(w, http.StatusOK, result)
}
