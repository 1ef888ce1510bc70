package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/canpai/canpai/pkg/draft"
	"github.com/canpai/canpai/pkg/model"
	"github.com/canpai/canpai/pkg/publish"
	"github.com/canpai/canpai/pkg/scheduler/availability"
	"github.com/canpai/canpai/pkg/scheduler/solver"
)

// stubSource 固定返回的商户数据源
type stubSource struct {
	staff []*model.Staff
}

func (s *stubSource) StaffForBiz(ctx context.Context, bizID uuid.UUID) ([]*model.Staff, error) {
	return s.staff, nil
}

func (s *stubSource) RulesForBiz(ctx context.Context, bizID uuid.UUID) ([]*model.SchedulingConstraint, error) {
	return nil, nil
}

func (s *stubSource) PreferencesForBiz(ctx context.Context, bizID uuid.UUID) ([]*model.StaffPreference, error) {
	return nil, nil
}

// stubShifts 固定返回的班次源
type stubShifts struct {
	shifts []*model.Shift
}

func (s *stubShifts) ListByRange(ctx context.Context, bizID uuid.UUID, rng model.DateRange) ([]*model.Shift, error) {
	return s.shifts, nil
}

type testServer struct {
	mux     *http.ServeMux
	manager *draft.Manager
	bizID   uuid.UUID
	cook    *model.Staff
	waiter  *model.Staff
}

func newTestServer(t *testing.T, shifts []*model.Shift) *testServer {
	t.Helper()

	avail := make(map[time.Weekday][]model.ClockRange)
	for d := time.Sunday; d <= time.Saturday; d++ {
		avail[d] = []model.ClockRange{{Start: "08:00", End: "23:00"}}
	}
	ts := &testServer{
		bizID: uuid.New(),
		cook: &model.Staff{
			BaseModel: model.NewBaseModel(), Name: "张三", Status: "active",
			Skills: []string{"cooking"}, WeeklyAvailability: avail,
		},
		waiter: &model.Staff{
			BaseModel: model.NewBaseModel(), Name: "李四", Status: "active",
			Skills: []string{"service"}, WeeklyAvailability: avail,
		},
	}

	store := draft.NewMemoryStore()
	ts.manager = draft.NewManager(store, &stubSource{staff: []*model.Staff{ts.cook, ts.waiter}}, availability.Policy{})
	pipeline := publish.NewPipeline(ts.manager, publish.NewMemoryStore(store), publish.DefaultOptions())

	h := New(nil, solver.NewGreedySolver(), ts.manager, pipeline, &stubShifts{shifts: shifts}, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/schedule/generate", h.Generate)
	mux.HandleFunc("/api/v1/drafts", h.ListDrafts)
	mux.HandleFunc("/api/v1/drafts/{id}", h.GetDraft)
	mux.HandleFunc("/api/v1/drafts/{id}/changes", h.ApplyChange)
	mux.HandleFunc("/api/v1/drafts/{id}/validate", h.ValidateDraft)
	mux.HandleFunc("/api/v1/drafts/{id}/archive", h.ArchiveDraft)
	mux.HandleFunc("/api/v1/drafts/{id}/publish", h.PublishDraft)
	mux.HandleFunc("/api/v1/drafts/{id}/stats", h.DraftStats)
	ts.mux = mux
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	ts.mux.ServeHTTP(w, req)
	return w
}

// generate 走完整生成流程并返回草稿ID
func (ts *testServer) generate(t *testing.T) string {
	t.Helper()

	w := ts.do(t, http.MethodPost, "/api/v1/schedule/generate", GenerateRequest{
		BizID:     ts.bizID.String(),
		StartDate: "2025-06-02",
		EndDate:   "2025-06-08",
		CreatedBy: "manager@test",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp GenerateResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.NotEmpty(t, resp.DraftID)
	return resp.DraftID
}

func weekShifts() []*model.Shift {
	return []*model.Shift{{
		BaseModel:     model.NewBaseModel(),
		Date:          "2025-06-02",
		StartTime:     "09:00",
		EndTime:       "17:00",
		RequiredSkill: "cooking",
		RequiredCount: 1,
	}}
}

func TestHandlers_Generate(t *testing.T) {
	ts := newTestServer(t, weekShifts())

	w := ts.do(t, http.MethodPost, "/api/v1/schedule/generate", GenerateRequest{
		BizID:     ts.bizID.String(),
		StartDate: "2025-06-02",
		EndDate:   "2025-06-08",
		CreatedBy: "manager@test",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp GenerateResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.DraftID)
	assert.Len(t, resp.Assignments, 1)
	assert.Equal(t, ts.cook.ID, resp.Assignments[0].StaffID)
	assert.Greater(t, resp.OverallConfidence, 0.0)
	assert.NotNil(t, resp.Statistics)
}

func TestHandlers_Generate_DryRun(t *testing.T) {
	ts := newTestServer(t, weekShifts())

	w := ts.do(t, http.MethodPost, "/api/v1/schedule/generate", GenerateRequest{
		BizID:     ts.bizID.String(),
		StartDate: "2025-06-02",
		EndDate:   "2025-06-08",
		Options:   &GenerateOptions{DryRun: true},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp GenerateResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Empty(t, resp.DraftID, "试运行不应创建草稿")

	drafts, err := ts.manager.List(context.Background(), ts.bizID, "")
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestHandlers_Generate_Errors(t *testing.T) {
	ts := newTestServer(t, weekShifts())

	tests := []struct {
		name   string
		method string
		body   interface{}
		status int
		code   string
	}{
		{"GET被拒绝", http.MethodGet, nil, http.StatusBadRequest, "INVALID_INPUT"},
		{"非法商户ID", http.MethodPost, GenerateRequest{BizID: "not-a-uuid", StartDate: "2025-06-02", EndDate: "2025-06-08"}, http.StatusBadRequest, "INVALID_INPUT"},
		{"起止日期颠倒", http.MethodPost, GenerateRequest{BizID: uuid.NewString(), StartDate: "2025-06-08", EndDate: "2025-06-02"}, http.StatusBadRequest, "INVALID_INPUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, tt.method, "/api/v1/schedule/generate", tt.body)
			assert.Equal(t, tt.status, w.Code)

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

func TestHandlers_GetDraft(t *testing.T) {
	ts := newTestServer(t, weekShifts())
	draftID := ts.generate(t)

	w := ts.do(t, http.MethodGet, "/api/v1/drafts/"+draftID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp DraftResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, draftID, resp.Draft.ID.String())
	assert.Len(t, resp.Shifts, 1)
	assert.Len(t, resp.Assignments, 1)

	// 非法和未知ID
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/v1/drafts/not-a-uuid", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/v1/drafts/"+uuid.NewString(), nil).Code)
}

func TestHandlers_ListDrafts(t *testing.T) {
	ts := newTestServer(t, weekShifts())
	ts.generate(t)

	w := ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/drafts?biz_id=%s", ts.bizID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Drafts []*model.ScheduleDraft `json:"drafts"`
		Total  int                    `json:"total"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Total)

	// 状态过滤
	w = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/drafts?biz_id=%s&status=archived", ts.bizID), nil)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 0, resp.Total)

	// biz_id 必填
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/v1/drafts", nil).Code)
}

func TestHandlers_ApplyChange(t *testing.T) {
	ts := newTestServer(t, weekShifts())
	draftID := ts.generate(t)

	// 先取出已有分配
	var detail DraftResponse
	w := ts.do(t, http.MethodGet, "/api/v1/drafts/"+draftID, nil)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&detail))

	w = ts.do(t, http.MethodPost, "/api/v1/drafts/"+draftID+"/changes", draft.Change{
		Type:         draft.ChangeUnassign,
		AssignmentID: detail.Assignments[0].ID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result draft.ChangeResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	assert.Equal(t, 2, result.Draft.Version)

	// 空变更类型被拒绝
	w = ts.do(t, http.MethodPost, "/api/v1/drafts/"+draftID+"/changes", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlers_ValidateDraft(t *testing.T) {
	ts := newTestServer(t, weekShifts())
	draftID := ts.generate(t)

	w := ts.do(t, http.MethodPost, "/api/v1/drafts/"+draftID+"/validate", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ValidateResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.IsValid)
	assert.Greater(t, resp.Score, 0.0)
	assert.Empty(t, resp.Unresolved)
}

func TestHandlers_PublishDraft(t *testing.T) {
	ts := newTestServer(t, weekShifts())
	draftID := ts.generate(t)

	w := ts.do(t, http.MethodPost, "/api/v1/drafts/"+draftID+"/publish", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result publish.Result
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	assert.Equal(t, 1, result.Assignments)
	assert.Len(t, result.Notifications, 1)

	// 重复发布返回状态冲突
	w = ts.do(t, http.MethodPost, "/api/v1/drafts/"+draftID+"/publish", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandlers_ArchiveDraft(t *testing.T) {
	ts := newTestServer(t, weekShifts())
	draftID := ts.generate(t)

	w := ts.do(t, http.MethodPost, "/api/v1/drafts/"+draftID+"/archive", nil)
	require.Equal(t, http.StatusOK, w.Code)

	d, _, _, err := ts.manager.Get(context.Background(), uuid.MustParse(draftID))
	require.NoError(t, err)
	assert.Equal(t, model.DraftStatusArchived, d.Status)
}

func TestHandlers_DraftStats(t *testing.T) {
	ts := newTestServer(t, weekShifts())
	draftID := ts.generate(t)

	w := ts.do(t, http.MethodGet, "/api/v1/drafts/"+draftID+"/stats", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp DraftStatsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, draftID, resp.DraftID)
	require.NotNil(t, resp.Fairness)
	require.NotNil(t, resp.Coverage)
	assert.Equal(t, 100.0, resp.Coverage.OverallCoverage)
}
