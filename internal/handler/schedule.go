// Package handler 提供HTTP请求处理器
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/canpai/canpai/internal/audit"
	"github.com/canpai/canpai/internal/metrics"
	apperrors "github.com/canpai/canpai/pkg/errors"
	"github.com/canpai/canpai/pkg/model"
	"github.com/canpai/canpai/pkg/scheduler/availability"
	"github.com/canpai/canpai/pkg/scheduler/constraint"
	"github.com/canpai/canpai/pkg/scheduler/scoring"
	"github.com/canpai/canpai/pkg/scheduler/solver"
)

// GenerateRequest 排班生成请求
// 班次可以内联提交，也可以省略由服务端按日期范围加载
type GenerateRequest struct {
	BizID     string                `json:"biz_id"`
	StartDate string                `json:"start_date"`
	EndDate   string                `json:"end_date"`
	CreatedBy string                `json:"created_by,omitempty"`
	Shifts    []*model.Shift        `json:"shifts,omitempty"`
	Events    []*model.SpecialEvent `json:"events,omitempty"`
	Options   *GenerateOptions      `json:"options,omitempty"`
}

// GenerateOptions 生成选项
type GenerateOptions struct {
	TimeoutSeconds int  `json:"timeout_seconds,omitempty"`
	DryRun         bool `json:"dry_run,omitempty"` // 只求解不落库
}

// GenerateResponse 排班生成响应
type GenerateResponse struct {
	Success           bool                     `json:"success"`
	Partial           bool                     `json:"partial,omitempty"`
	TimedOut          bool                     `json:"timed_out,omitempty"`
	Message           string                   `json:"message,omitempty"`
	DraftID           string                   `json:"draft_id,omitempty"`
	Superseded        []string                 `json:"superseded_drafts,omitempty"`
	Assignments       []*model.DraftAssignment `json:"assignments"`
	Unresolved        []*solver.UnresolvedShift `json:"unresolved,omitempty"`
	OverallConfidence float64                  `json:"overall_confidence"`
	Statistics        *solver.Statistics       `json:"statistics"`
	Duration          string                   `json:"duration"`
}

// Generate 生成排班草稿
func (h *Handlers) Generate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, apperrors.New(apperrors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperrors.Wrap(err, apperrors.CodeInvalidInput, "解析请求失败"))
		return
	}

	bizID, err := uuid.Parse(req.BizID)
	if err != nil {
		respondError(w, apperrors.InvalidInput("biz_id", "无效的商户ID格式"))
		return
	}
	rng := model.DateRange{StartDate: req.StartDate, EndDate: req.EndDate}
	if err := rng.Validate(); err != nil {
		respondError(w, apperrors.InvalidInput("range", err.Error()))
		return
	}

	input, err := h.buildInput(r, bizID, rng, &req)
	if err != nil {
		respondError(w, err)
		return
	}

	opts := h.solveOptions(&req)
	start := time.Now()
	result, solveErr := h.solver.Solve(r.Context(), input, opts)

	// 超时携带部分解继续走草稿流程，其余错误直接返回
	if solveErr != nil && !(apperrors.Is(solveErr, apperrors.CodeSolverTimeout) && result != nil && len(result.Assignments) > 0) {
		metrics.RecordSolve(bizID.String(), false, time.Since(start), 0)
		respondError(w, solveErr)
		return
	}
	metrics.RecordSolve(bizID.String(), true, result.Duration, result.OverallConfidence)

	resp := GenerateResponse{
		Success:           true,
		Partial:           result.Partial,
		TimedOut:          result.TimedOut,
		Assignments:       result.Assignments,
		Unresolved:        result.Unresolved,
		OverallConfidence: result.OverallConfidence,
		Statistics:        result.Statistics,
		Duration:          result.Duration.String(),
	}
	if result.Partial {
		resp.Message = "生成了部分排班方案，存在未满足的班次"
	}

	if req.Options != nil && req.Options.DryRun {
		respondJSON(w, http.StatusOK, resp)
		return
	}

	d, superseded, err := h.drafts.CreateFromSolve(r.Context(), input, result, req.CreatedBy)
	if err != nil {
		respondError(w, err)
		return
	}
	resp.DraftID = d.ID.String()
	for _, s := range superseded {
		resp.Superseded = append(resp.Superseded, s.ID.String())
	}

	h.recordAudit(r.Context(), audit.NewEvent(bizID, d.ID, audit.ActionDraftCreate, req.CreatedBy).
		With("assignments", len(result.Assignments)).
		With("unresolved", len(result.Unresolved)).
		With("superseded", len(superseded)))

	respondJSON(w, http.StatusOK, resp)
}

// buildInput 组装求解输入
func (h *Handlers) buildInput(r *http.Request, bizID uuid.UUID, rng model.DateRange, req *GenerateRequest) (*solver.Input, error) {
	ctx := r.Context()
	source := h.drafts.Source()

	staff, err := source.StaffForBiz(ctx, bizID)
	if err != nil {
		return nil, err
	}
	rules, err := source.RulesForBiz(ctx, bizID)
	if err != nil {
		return nil, err
	}
	prefs, err := source.PreferencesForBiz(ctx, bizID)
	if err != nil {
		return nil, err
	}

	shifts := req.Shifts
	if len(shifts) == 0 && h.shifts != nil {
		shifts, err = h.shifts.ListByRange(ctx, bizID, rng)
		if err != nil {
			return nil, err
		}
	}
	for _, s := range shifts {
		s.BizID = bizID
	}

	return &solver.Input{
		BizID:       bizID,
		Range:       rng,
		Staff:       staff,
		Shifts:      shifts,
		Rules:       rules,
		Preferences: prefs,
		Events:      req.Events,
	}, nil
}

// solveOptions 由配置和请求选项合成求解参数
func (h *Handlers) solveOptions(req *GenerateRequest) solver.Options {
	opts := solver.DefaultOptions()
	if h.cfg != nil {
		opts.Timeout = h.cfg.Scheduler.SolveTimeout
		opts.Workers = h.cfg.Scheduler.Workers
		opts.Weights = scoring.Weights{
			SkillFit:    h.cfg.Scheduler.WeightSkillFit,
			Preference:  h.cfg.Scheduler.WeightPreference,
			Fairness:    h.cfg.Scheduler.WeightFairness,
			Reliability: h.cfg.Scheduler.WeightReliability,
			LaborCost:   h.cfg.Scheduler.WeightLaborCost,
		}
		opts.Availability = availability.Policy{
			BlockPendingTimeOff: h.cfg.Scheduler.BlockPendingTimeOff,
		}
	}
	if req.Options != nil && req.Options.TimeoutSeconds > 0 {
		opts.Timeout = time.Duration(req.Options.TimeoutSeconds) * time.Second
	}
	return opts
}

// ValidateResponse 草稿验证响应
type ValidateResponse struct {
	IsValid    bool                         `json:"is_valid"`
	Score      float64                      `json:"score"`
	Violations []constraint.ViolationDetail `json:"violations,omitempty"`
	Unresolved []*solver.UnresolvedShift    `json:"unresolved,omitempty"`
}

// ValidateDraft 对草稿当前状态做全量约束校验
func (h *Handlers) ValidateDraft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, apperrors.New(apperrors.CodeInvalidInput, "仅支持POST方法"))
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}

	result, unresolved, err := h.drafts.Validate(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}

	var violations []constraint.ViolationDetail
	violations = append(violations, result.HardViolations...)
	violations = append(violations, result.SoftViolations...)
	respondJSON(w, http.StatusOK, ValidateResponse{
		IsValid:    result.IsValid,
		Score:      result.Score,
		Violations: violations,
		Unresolved: unresolved,
	})
}
