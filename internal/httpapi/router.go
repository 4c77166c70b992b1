package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Yuvraj171/Pdm-AI-Engine/internal/metrics"
)

// NewRouter 组装 HTTP 路由
func NewRouter(h *Handler) *mux.Router {
	router := mux.NewRouter()
	router.Use(metricsMiddleware)

	router.HandleFunc("/api/predict", h.Predict).Methods("POST")
	router.HandleFunc("/api/machines/{machine_id}/verdict", h.GetMachineVerdict).Methods("GET")
	router.HandleFunc("/api/verdicts", h.ListVerdicts).Methods("GET")
	router.HandleFunc("/api/reports/shift", h.ShiftReport).Methods("GET")
	router.HandleFunc("/health", h.Health).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return router
}

// statusRecorder 捕获响应状态码用于指标
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tmpl
			}
		}

		metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, strconv.Itoa(rec.status)).Inc()
		metrics.RequestDuration.WithLabelValues(endpoint, r.Method).Observe(time.Since(start).Seconds())
	})
}
