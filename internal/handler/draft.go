// Package handler 提供HTTP请求处理器
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/canpai/canpai/internal/audit"
	"github.com/canpai/canpai/internal/metrics"
	"github.com/canpai/canpai/pkg/draft"
	apperrors "github.com/canpai/canpai/pkg/errors"
	"github.com/canpai/canpai/pkg/model"
)

// DraftResponse 草稿详情响应
type DraftResponse struct {
	Draft       *model.ScheduleDraft     `json:"draft"`
	Shifts      []*model.Shift           `json:"shifts"`
	Assignments []*model.DraftAssignment `json:"assignments"`
}

// GetDraft 查询草稿详情
func (h *Handlers) GetDraft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, apperrors.New(apperrors.CodeInvalidInput, "仅支持GET方法"))
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}

	d, shifts, assignments, err := h.drafts.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, DraftResponse{Draft: d, Shifts: shifts, Assignments: assignments})
}

// ListDrafts 查询商户草稿列表
func (h *Handlers) ListDrafts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, apperrors.New(apperrors.CodeInvalidInput, "仅支持GET方法"))
		return
	}
	bizID, err := uuid.Parse(r.URL.Query().Get("biz_id"))
	if err != nil {
		respondError(w, apperrors.InvalidInput("biz_id", "无效的商户ID格式"))
		return
	}
	status := model.DraftStatus(r.URL.Query().Get("status"))

	drafts, err := h.drafts.List(r.Context(), bizID, status)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"drafts": drafts,
		"total":  len(drafts),
	})
}

// ApplyChange 对草稿应用一次人工调整
func (h *Handlers) ApplyChange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, apperrors.New(apperrors.CodeInvalidInput, "仅支持POST方法"))
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}

	var change draft.Change
	if err := json.NewDecoder(r.Body).Decode(&change); err != nil {
		respondError(w, apperrors.Wrap(err, apperrors.CodeInvalidInput, "解析请求失败"))
		return
	}
	if change.Type == "" {
		respondError(w, apperrors.InvalidInput("type", "变更类型不能为空"))
		return
	}

	result, err := h.drafts.ApplyChange(r.Context(), id, &change)
	metrics.RecordDraftChange(string(change.Type), err == nil)
	if err != nil {
		respondError(w, err)
		return
	}

	h.recordAudit(r.Context(), audit.NewEvent(result.Draft.BizID, id, audit.ActionDraftChange, r.Header.Get("X-Actor")).
		With("change_type", string(change.Type)).
		With("override", change.Override).
		With("version", result.Draft.Version))

	respondJSON(w, http.StatusOK, result)
}

// ArchiveDraft 归档草稿
func (h *Handlers) ArchiveDraft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, apperrors.New(apperrors.CodeInvalidInput, "仅支持POST方法"))
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}

	if err := h.drafts.Archive(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}

	bizID := uuid.Nil
	if d, _, _, err := h.drafts.Get(r.Context(), id); err == nil {
		bizID = d.BizID
	}
	h.recordAudit(r.Context(), audit.NewEvent(bizID, id, audit.ActionDraftArchive, r.Header.Get("X-Actor")))

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"draft_id": id.String(),
		"status":   model.DraftStatusArchived,
	})
}
