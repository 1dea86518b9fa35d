package http

import (
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	// The rate limiter's cleanup goroutine lives for the process lifetime.
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/zeroapp/credvault/internal/http.(*rateLimiterStore).cleanupStale"),
	)
}
