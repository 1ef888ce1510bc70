// Package handler 提供HTTP请求处理器
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/canpai/canpai/internal/audit"
	"github.com/canpai/canpai/internal/config"
	"github.com/canpai/canpai/pkg/draft"
	apperrors "github.com/canpai/canpai/pkg/errors"
	"github.com/canpai/canpai/pkg/logger"
	"github.com/canpai/canpai/pkg/model"
	"github.com/canpai/canpai/pkg/publish"
	"github.com/canpai/canpai/pkg/scheduler/solver"
)

// ShiftSource 按商户和日期范围提供班次
type ShiftSource interface {
	ListByRange(ctx context.Context, bizID uuid.UUID, rng model.DateRange) ([]*model.Shift, error)
}

// Handlers 聚合全部HTTP处理器依赖
type Handlers struct {
	cfg      *config.Config
	solver   solver.Solver
	drafts   *draft.Manager
	pipeline *publish.Pipeline
	shifts   ShiftSource
	auditor  audit.Recorder
}

// New 创建处理器集合
func New(cfg *config.Config, s solver.Solver, drafts *draft.Manager, pipeline *publish.Pipeline, shifts ShiftSource, auditor audit.Recorder) *Handlers {
	return &Handlers{
		cfg:      cfg,
		solver:   s,
		drafts:   drafts,
		pipeline: pipeline,
		shifts:   shifts,
		auditor:  auditor,
	}
}

// recordAudit 记录审计事件，失败只告警不影响主流程
func (h *Handlers) recordAudit(ctx context.Context, event *audit.Event) {
	if h.auditor == nil {
		return
	}
	if err := h.auditor.Record(ctx, event); err != nil {
		logger.Warn().Err(err).Str("action", string(event.Action)).Msg("审计事件写入失败")
	}
}

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError 返回错误响应
func respondError(w http.ResponseWriter, err error) {
	appErr := asAppError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"code":    appErr.Code,
		"message": appErr.Message,
		"details": appErr.Details,
		"fields":  appErr.Fields,
	})
}

// asAppError 归一化为应用错误
func asAppError(err error) *apperrors.AppError {
	if appErr, ok := err.(*apperrors.AppError); ok {
		return appErr
	}
	return apperrors.Wrap(err, apperrors.CodeInternal, "内部错误")
}

// parseID 解析路径中的UUID参数
func parseID(r *http.Request, name string) (uuid.UUID, error) {
	raw := r.PathValue(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.InvalidInput(name, "无效的UUID格式: "+raw)
	}
	return id, nil
}
