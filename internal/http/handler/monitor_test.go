package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/pulse/internal/http/handler"
	"basegraph.app/pulse/internal/model"
	"basegraph.app/pulse/internal/scheduler"
)

var _ = Describe("MonitorHandler", func() {
	var (
		router  *gin.Engine
		monitor *mockMonitor
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		monitor = &mockMonitor{}
		h := handler.NewMonitorHandler(monitor)
		router.GET("/status", h.Status)
		router.POST("/start", h.Start)
		router.POST("/stop", h.Stop)
	})

	do := func(method, path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
		return w
	}

	It("returns stats and performance ordered by assignee", func() {
		next := time.Date(2026, time.March, 11, 10, 10, 0, 0, time.UTC)
		monitor.statusFn = func() scheduler.Status {
			return scheduler.Status{
				Running:     true,
				Interval:    "10m0s",
				NextCycleAt: &next,
				Stats:       model.ScanStats{CyclesPerformed: 4, CommentsAdded: 9, TasksSeenLastCycle: 3},
				Performance: map[string]model.EmployeePerformance{
					"2": {AssigneeID: "2", AssigneeName: "Bob", CompletedTasks: 4, OnTimeCompleted: 1, Trend: model.TrendDeclining},
					"1": {AssigneeID: "1", AssigneeName: "Alice", CompletedTasks: 2, OnTimeCompleted: 2, Trend: model.TrendStable},
				},
			}
		}

		w := do(http.MethodGet, "/status")
		Expect(w.Code).To(Equal(http.StatusOK))

		var resp struct {
			Running     bool   `json:"running"`
			Interval    string `json:"interval"`
			NextCycleAt string `json:"next_cycle_at"`
			Stats       struct {
				CyclesPerformed int `json:"cycles_performed"`
				CommentsAdded   int `json:"comments_added"`
			} `json:"stats"`
			Performance []struct {
				AssigneeName string  `json:"assignee_name"`
				OnTimeRate   float64 `json:"on_time_rate"`
				Trend        string  `json:"trend"`
			} `json:"performance"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Running).To(BeTrue())
		Expect(resp.Interval).To(Equal("10m0s"))
		Expect(resp.NextCycleAt).To(Equal("2026-03-11T10:10:00Z"))
		Expect(resp.Stats.CyclesPerformed).To(Equal(4))
		Expect(resp.Stats.CommentsAdded).To(Equal(9))
		Expect(resp.Performance).To(HaveLen(2))
		Expect(resp.Performance[0].AssigneeName).To(Equal("Alice"))
		Expect(resp.Performance[0].OnTimeRate).To(Equal(1.0))
		Expect(resp.Performance[1].OnTimeRate).To(Equal(0.25))
		Expect(resp.Performance[1].Trend).To(Equal("declining"))
	})

	It("starts the monitor", func() {
		var started bool
		monitor.startFn = func(context.Context) error { started = true; return nil }

		w := do(http.MethodPost, "/start")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(started).To(BeTrue())
		Expect(w.Body.String()).To(ContainSubstring(`"running":true`))
	})

	It("returns 409 when already running", func() {
		monitor.startFn = func(context.Context) error { return scheduler.ErrAlreadyRunning }

		w := do(http.MethodPost, "/start")
		Expect(w.Code).To(Equal(http.StatusConflict))
	})

	It("stops the monitor", func() {
		w := do(http.MethodPost, "/stop")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(`"running":false`))
	})

	It("returns 409 when not running", func() {
		monitor.stopFn = func() error { return scheduler.ErrNotRunning }

		w := do(http.MethodPost, "/stop")
		Expect(w.Code).To(Equal(http.StatusConflict))
	})

	It("returns 500 on unexpected errors", func() {
		monitor.stopFn = func() error { return errors.New("boom") }

		w := do(http.MethodPost, "/stop")
		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(w.Body.String()).NotTo(ContainSubstring("boom"))
	})
})

var _ = Describe("HealthHandler", func() {
	It("reports ok when every check passes", func() {
		gin.SetMode(gin.TestMode)
		router := gin.New()
		h := handler.NewHealthHandler(map[string]handler.Pinger{
			"database": handler.PingFunc(func(context.Context) error { return nil }),
		})
		router.GET("/health", h.Health)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(`"database":"ok"`))
	})

	It("reports 503 when a dependency is down", func() {
		gin.SetMode(gin.TestMode)
		router := gin.New()
		h := handler.NewHealthHandler(map[string]handler.Pinger{
			"database": handler.PingFunc(func(context.Context) error { return nil }),
			"redis":    handler.PingFunc(func(context.Context) error { return errors.New("connection refused") }),
		})
		router.GET("/health", h.Health)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
		Expect(w.Body.String()).To(ContainSubstring(`"status":"degraded"`))
		Expect(w.Body.String()).To(ContainSubstring("connection refused"))
	})
})
