package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func get(r http.Handler, path string, hdr ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func ok(c *gin.Context) { c.String(http.StatusOK, "ok") }

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(KeyRequestID)) })

	w := get(r, "/", KeyRequestID, "abc-123")
	assert.Equal(t, "abc-123", w.Header().Get(KeyRequestID))
	assert.Equal(t, "abc-123", w.Body.String())

	w = get(r, "/")
	assert.Len(t, w.Header().Get(KeyRequestID), 36)
}

func TestAccessLog_UsesRoutePattern(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(RequestID(), AccessLog(zap.New(core)))
	r.PATCH("/users/resetPassword/:token", ok)

	req := httptest.NewRequest(http.MethodPatch, "/users/resetPassword/s3cr3t?token=abc&lang=en", nil)
	req.Header.Set(KeyRequestID, "rid-1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "/users/resetPassword/:token", fields["path"])
	assert.Equal(t, "rid-1", fields["rid"])
	assert.EqualValues(t, 200, fields["status"])
	assert.NotContains(t, logs.All()[0].Message+strings.Join(flatten(fields), " "), "s3cr3t")
	q := fields["query"].(map[string][]string)
	assert.Equal(t, []string{"****"}, q["token"])
	assert.Equal(t, []string{"en"}, q["lang"])
}

func flatten(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func TestRateLimitPerIP(t *testing.T) {
	r := gin.New()
	r.GET("/login", RateLimitPerIP(0.0001, 2), ok)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, get(r, "/login", "X-Forwarded-For", "10.0.0.1").Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	// 另一个 IP 不受影响
	assert.Equal(t, 200, get(r, "/login", "X-Forwarded-For", "10.0.0.2").Code)
}

func TestRateLimitPerIP_Concurrent(t *testing.T) {
	r := gin.New()
	r.GET("/login", RateLimitPerIP(1000, 1000), ok)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			get(r, "/login", "X-Forwarded-For", "10.0.0.9")
		}()
	}
	wg.Wait()
}

func TestRateLimit_Global(t *testing.T) {
	r := gin.New()
	r.GET("/", RateLimit(0.0001, 1), ok)
	assert.Equal(t, 200, get(r, "/").Code)
	assert.Equal(t, 429, get(r, "/").Code)
}

func TestTimeout(t *testing.T) {
	r := gin.New()
	r.GET("/slow", Timeout(20*time.Millisecond), func(c *gin.Context) {
		<-c.Request.Context().Done()
	})
	r.GET("/fast", Timeout(time.Second), func(c *gin.Context) {
		_, has := c.Request.Context().Deadline()
		assert.True(t, has)
		ok(c)
	})

	assert.Equal(t, http.StatusGatewayTimeout, get(r, "/slow").Code)
	assert.Equal(t, http.StatusOK, get(r, "/fast").Code)
}

func TestMaxBodyBytes(t *testing.T) {
	r := gin.New()
	r.POST("/", MaxBodyBytes(8), func(c *gin.Context) {
		var v map[string]any
		if err := c.ShouldBindJSON(&v); err != nil {
			var mbe *http.MaxBytesError
			assert.ErrorAs(t, err, &mbe)
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		ok(c)
	})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":"0123456789"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestConcurrencyLimit(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	r := gin.New()
	r.GET("/", ConcurrencyLimit(1), func(c *gin.Context) {
		entered <- struct{}{}
		<-release
		ok(c)
	})

	done := make(chan int)
	go func() { done <- get(r, "/").Code }()
	<-entered

	// 第二个请求在等待中被取消
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	close(release)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestMetricsHandler(t *testing.T) {
	r := gin.New()
	r.Use(Metrics())
	r.GET("/ping", ok)
	r.GET("/metrics", MetricsHandler())

	get(r, "/ping")
	w := get(r, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `http_requests_total{method="GET",path="/ping",status="200"}`)
}
