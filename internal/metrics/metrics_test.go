package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SeparateRegistries(t *testing.T) {
	a := New()
	b := New()

	a.MessagesSentTotal.Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(a.MessagesSentTotal))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.MessagesSentTotal))
}

func TestMiddleware_LabelsByRouteTemplate(t *testing.T) {
	m := New()

	r := mux.NewRouter()
	r.Use(m.Middleware)
	r.HandleFunc("/messages/{peerUserId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}).Methods(http.MethodGet)

	for _, peer := range []string{"u1", "u2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/messages/"+peer, nil))
		assert.Equal(t, http.StatusTeapot, rec.Code)
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/messages/{peerUserId}", "418")))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m := New()
	m.ConversationsCreatedTotal.Inc()
	m.RealtimeDroppedTotal.WithLabelValues("hub_full").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "gochat_conversations_created_total 1"))
	assert.Contains(t, body, `gochat_realtime_dropped_total{reason="hub_full"} 1`)
	assert.Contains(t, body, "go_goroutines")
}
