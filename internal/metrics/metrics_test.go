package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareCountsByRoute(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/ideas/:id", func(c echo.Context) error {
		if c.Param("id") == "missing" {
			return echo.NewHTTPError(http.StatusNotFound)
		}
		return c.NoContent(http.StatusOK)
	})

	for _, id := range []string{"a", "b", "missing"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ideas/"+id, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/api/ideas/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/api/ideas/:id", "404")))
}

func TestHandlerExposesDomainCounters(t *testing.T) {
	m := New()
	m.Likes.WithLabelValues("liked").Inc()
	m.Comments.Add(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `buildea_likes_total{result="liked"} 1`), body)
	assert.True(t, strings.Contains(body, "buildea_comments_total 2"))
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.Comments.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Comments))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Comments))
}
