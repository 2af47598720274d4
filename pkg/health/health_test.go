package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func up(context.Context) ComponentHealth { return ComponentHealth{Status: StatusUp} }

func TestRunAggregatesWorstStatus(t *testing.T) {
	c := NewChecker()
	c.Register("generation", up)
	assert.Equal(t, StatusUp, c.Run(context.Background()).Status)

	c.Register("redis", func(context.Context) ComponentHealth {
		return ComponentHealth{Status: StatusDegraded, Message: "not configured"}
	})
	report := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.True(t, report.Ready())

	c.Register("store", func(context.Context) ComponentHealth {
		return ComponentHealth{Status: StatusDown}
	})
	report = c.Run(context.Background())
	assert.Equal(t, StatusDown, report.Status)
	assert.False(t, report.Ready())
	assert.Len(t, report.Components, 3)
	assert.Equal(t, []string{"generation", "redis", "store"}, c.Names())
}

func TestRunTimesOutSlowCheck(t *testing.T) {
	c := NewChecker()
	c.SetTimeout(20 * time.Millisecond)
	c.Register("stuck", func(context.Context) ComponentHealth {
		time.Sleep(time.Second)
		return ComponentHealth{Status: StatusUp}
	})

	start := time.Now()
	report := c.Run(context.Background())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, StatusDown, report.Components["stuck"].Status)
	assert.Equal(t, "check timed out", report.Components["stuck"].Message)
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.Register("redis", func(context.Context) ComponentHealth {
		return ComponentHealth{Status: StatusDegraded}
	})
	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	c.Register("generation", func(context.Context) ComponentHealth {
		return ComponentHealth{Status: StatusDown, Message: "no generation loaded"}
	})
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "no generation loaded", report.Components["generation"].Message)
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}
