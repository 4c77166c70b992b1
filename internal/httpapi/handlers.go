package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Yuvraj171/Pdm-AI-Engine/internal/models"
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/report"
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/repository"
)

// ScoringService 评分服务接口（service.Scorer 实现）
type ScoringService interface {
	Score(machineID string, sample models.TelemetrySample) (*models.RiskVerdict, error)
	ModelsLoaded() int
	Degraded() bool
}

// VerdictStore 裁决查询接口（repository.VerdictRepository 实现）
type VerdictStore interface {
	GetLatestVerdict(ctx context.Context, machineID string) (*models.RiskVerdict, error)
	GetVerdict(ctx context.Context, verdictID string) (*models.RiskVerdict, error)
	ListVerdicts(ctx context.Context, filters repository.VerdictFilters) ([]models.RiskVerdict, error)
}

// VerdictCache 裁决缓存读取接口（consumer.CacheManager 实现），可为 nil
type VerdictCache interface {
	GetCachedVerdict(ctx context.Context, machineID string) (*models.RiskVerdict, error)
}

// Handler HTTP API 处理器
type Handler struct {
	scorer ScoringService
	store  VerdictStore
	cache  VerdictCache
	logger *zap.Logger
}

// NewHandler 创建 HTTP API 处理器
func NewHandler(scorer ScoringService, store VerdictStore, cache VerdictCache, logger *zap.Logger) *Handler {
	return &Handler{
		scorer: scorer,
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// PredictRequest POST /api/predict 请求体
type PredictRequest struct {
	MachineID string                 `json:"machine_id"`
	Sample    models.TelemetrySample `json:"sample"`
}

// Predict 同步评分一条遥测样本
// POST /api/predict
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if req.MachineID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("machine_id is required"))
		return
	}

	verdict, err := h.scorer.Score(req.MachineID, req.Sample)
	if err != nil {
		h.writeScoringError(w, req.MachineID, err)
		return
	}

	writeJSON(w, http.StatusOK, Ok(verdict))
}

// GetMachineVerdict 获取机台最新裁决（缓存优先，回落数据库）
// GET /api/machines/{machine_id}/verdict
func (h *Handler) GetMachineVerdict(w http.ResponseWriter, r *http.Request) {
	machineID := mux.Vars(r)["machine_id"]
	if machineID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("machine_id is required"))
		return
	}

	ctx := r.Context()
	if h.cache != nil {
		verdict, err := h.cache.GetCachedVerdict(ctx, machineID)
		if err != nil {
			h.logger.Warn("Verdict cache read failed, falling back to database",
				zap.String("machine_id", machineID),
				zap.Error(err),
			)
		} else if verdict != nil {
			writeJSON(w, http.StatusOK, Ok(verdict))
			return
		}
	}

	verdict, err := h.store.GetLatestVerdict(ctx, machineID)
	if err != nil {
		h.logger.Error("Failed to get latest verdict",
			zap.String("machine_id", machineID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, Fail("failed to get verdict"))
		return
	}
	if verdict == nil {
		writeJSON(w, http.StatusNotFound, Fail(fmt.Sprintf("no verdict for machine %s", machineID)))
		return
	}

	writeJSON(w, http.StatusOK, Ok(verdict))
}

// ListVerdicts 查询裁决列表
// GET /api/verdicts?machine_id=&status=&start=&end=&limit=
func (h *Handler) ListVerdicts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := repository.VerdictFilters{
		Limit: parseInt(q.Get("limit"), 0),
	}
	if v := q.Get("machine_id"); v != "" {
		filters.MachineID = &v
	}
	if v := q.Get("status"); v != "" {
		filters.Status = &v
	}
	if v := q.Get("root_cause"); v != "" {
		filters.RootCause = &v
	}
	if v := q.Get("start"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid start time, expected RFC3339"))
			return
		}
		filters.StartTime = &ts
	}
	if v := q.Get("end"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid end time, expected RFC3339"))
			return
		}
		filters.EndTime = &ts
	}

	verdicts, err := h.store.ListVerdicts(r.Context(), filters)
	if err != nil {
		h.logger.Error("Failed to list verdicts", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to list verdicts"))
		return
	}
	if verdicts == nil {
		verdicts = []models.RiskVerdict{}
	}

	writeJSON(w, http.StatusOK, Ok(verdicts))
}

// ShiftReport 导出班次风险报告
// GET /api/reports/shift?start=&end=&machine_id=
// start/end 缺省为最近 8 小时
func (h *Handler) ShiftReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	shiftEnd := time.Now()
	shiftStart := shiftEnd.Add(-8 * time.Hour)
	if v := q.Get("start"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid start time, expected RFC3339"))
			return
		}
		shiftStart = ts
	}
	if v := q.Get("end"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid end time, expected RFC3339"))
			return
		}
		shiftEnd = ts
	}

	filters := repository.VerdictFilters{
		StartTime: &shiftStart,
		EndTime:   &shiftEnd,
		Limit:     1000,
	}
	if v := q.Get("machine_id"); v != "" {
		filters.MachineID = &v
	}

	verdicts, err := h.store.ListVerdicts(r.Context(), filters)
	if err != nil {
		h.logger.Error("Failed to list verdicts for report", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to build report"))
		return
	}

	data, err := report.GenerateShiftReport(verdicts, shiftStart, shiftEnd)
	if err != nil {
		h.logger.Error("Failed to generate shift report", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to build report"))
		return
	}

	filename := fmt.Sprintf("shift-report-%s.xlsx", shiftEnd.Format("20060102-1504"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// HealthResponse GET /health 响应体
type HealthResponse struct {
	Status       string `json:"status"`
	ModelsLoaded int    `json:"models_loaded"`
	Degraded     bool   `json:"degraded"`
}

// Health 健康检查
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:       "ok",
		ModelsLoaded: h.scorer.ModelsLoaded(),
		Degraded:     h.scorer.Degraded(),
	}
	status := http.StatusOK
	if resp.ModelsLoaded == 0 {
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	} else if resp.Degraded {
		resp.Status = "degraded"
	}

	writeJSON(w, status, resp)
}

// writeScoringError 把评分错误映射为 HTTP 状态码
func (h *Handler) writeScoringError(w http.ResponseWriter, machineID string, err error) {
	var schemaErr *models.SchemaError
	var orderErr *models.OutOfOrderError
	var noModelErr *models.NoModelError

	switch {
	case errors.As(err, &schemaErr):
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
	case errors.As(err, &orderErr):
		writeJSON(w, http.StatusConflict, Fail(err.Error()))
	case errors.As(err, &noModelErr):
		writeJSON(w, http.StatusServiceUnavailable, Fail(err.Error()))
	default:
		h.logger.Error("Scoring failed",
			zap.String("machine_id", machineID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, Fail("scoring failed"))
	}
}
