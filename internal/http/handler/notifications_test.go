package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/pulse/internal/http/handler"
	"basegraph.app/pulse/internal/model"
	"basegraph.app/pulse/internal/queue"
)

var _ = Describe("NotificationHandler", func() {
	var router *gin.Engine

	serve := func(h *handler.NotificationHandler, req *http.Request) *httptest.ResponseRecorder {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		router.GET("/stream", h.Stream)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("relays notifications as server-sent events until the client leaves", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		calls := 0
		source := &mockSource{readFn: func(_ context.Context, lastID string) ([]queue.Message, string, error) {
			calls++
			switch calls {
			case 1:
				return []queue.Message{{
					ID: "1700000000000-0",
					Notification: model.Notification{
						TaskID:    "7/1",
						Recipient: "Alice",
						Category:  model.CategoryGentleReminder,
						Body:      "Hi Alice",
						PostedAt:  time.Date(2026, time.March, 11, 10, 0, 0, 0, time.UTC),
					},
				}}, "1700000000000-0", nil
			case 2:
				return nil, lastID, nil
			default:
				cancel()
				return nil, lastID, context.Canceled
			}
		}}

		req := httptest.NewRequest(http.MethodGet, "/stream?last_id=0", nil).WithContext(ctx)
		w := serve(handler.NewNotificationHandler(source), req)

		Expect(w.Header().Get("Content-Type")).To(Equal("text/event-stream"))
		body := w.Body.String()
		Expect(body).To(HavePrefix("event: ping\ndata: ready\n\n"))
		Expect(body).To(ContainSubstring("id: 1700000000000-0\nevent: notification\n"))
		Expect(body).To(ContainSubstring(`"task_id":"7/1"`))
		Expect(strings.Count(body, "event: ping")).To(Equal(2))
		Expect(source.lastID).To(Equal([]string{"0", "1700000000000-0", "1700000000000-0"}))
	})

	It("resumes from Last-Event-ID", func() {
		ctx, cancel := context.WithCancel(context.Background())
		source := &mockSource{readFn: func(context.Context, string) ([]queue.Message, string, error) {
			cancel()
			return nil, "", context.Canceled
		}}

		req := httptest.NewRequest(http.MethodGet, "/stream", nil).WithContext(ctx)
		req.Header.Set("Last-Event-ID", "42-0")
		serve(handler.NewNotificationHandler(source), req)

		Expect(source.lastID).To(Equal([]string{"42-0"}))
	})

	It("starts from new entries by default", func() {
		ctx, cancel := context.WithCancel(context.Background())
		source := &mockSource{readFn: func(context.Context, string) ([]queue.Message, string, error) {
			cancel()
			return nil, "", context.Canceled
		}}

		serve(handler.NewNotificationHandler(source), httptest.NewRequest(http.MethodGet, "/stream", nil).WithContext(ctx))

		Expect(source.lastID).To(Equal([]string{queue.LatestID}))
	})

	It("returns 503 without a source", func() {
		w := serve(handler.NewNotificationHandler(nil), httptest.NewRequest(http.MethodGet, "/stream", nil))
		Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
	})
})
