package observability_test

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couplet-run/couplet/internal/observability"
)

type staticStatus struct {
	status observability.RunStatus
}

func (s staticStatus) Status() observability.RunStatus { return s.status }

func TestHandler_Status(t *testing.T) {
	code := 0
	src := staticStatus{status: observability.RunStatus{
		State: "running",
		Models: []observability.ModelStatus{
			{Name: "a", State: "exited", ExitCode: &code},
			{Name: "b", State: "running"},
		},
	}}

	h := observability.NewHandler(src, observability.NewMetrics())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/status", nil))
	require.Equal(t, 200, rec.Code)

	var got observability.RunStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "running", got.State)
	require.Len(t, got.Models, 2)
	assert.Equal(t, "a", got.Models[0].Name)
	require.NotNil(t, got.Models[0].ExitCode)
	assert.Equal(t, 0, *got.Models[0].ExitCode)
}

func TestHandler_Metrics(t *testing.T) {
	m := observability.NewMetrics()
	m.ProcessesSpawned.Inc()

	h := observability.NewHandler(staticStatus{}, m)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "couplet_processes_spawned_total 1")
}
