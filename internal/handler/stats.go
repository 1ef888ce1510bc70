// Package handler 提供HTTP请求处理器
package handler

import (
	"net/http"

	"github.com/canpai/canpai/internal/metrics"
	apperrors "github.com/canpai/canpai/pkg/errors"
	"github.com/canpai/canpai/pkg/stats"
)

// DraftStatsResponse 草稿统计响应
type DraftStatsResponse struct {
	DraftID  string                 `json:"draft_id"`
	Fairness *stats.FairnessMetrics `json:"fairness"`
	Coverage *stats.CoverageMetrics `json:"coverage"`
}

// DraftStats 对草稿当前分配做公平性和覆盖率分析
func (h *Handlers) DraftStats(w http.ResponseWriter, r *http.Request) {
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
	staff, err := h.drafts.Source().StaffForBiz(r.Context(), d.BizID)
	if err != nil {
		respondError(w, err)
		return
	}

	fairness := stats.NewFairnessAnalyzer().Analyze(assignments, shifts, staff)
	coverage := stats.NewCoverageAnalyzer().Analyze(assignments, shifts)

	metrics.SetFairnessGini(d.BizID.String(), "workload", fairness.WorkloadGini)
	metrics.SetFairnessGini(d.BizID.String(), "weekend", fairness.WeekendGini)
	metrics.SetCoverageRate(d.BizID.String(), coverage.OverallCoverage)

	respondJSON(w, http.StatusOK, DraftStatsResponse{
		DraftID:  id.String(),
		Fairness: fairness,
		Coverage: coverage,
	})
}
