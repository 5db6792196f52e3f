package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prefixhider/internal/labels"
)

func TestRegisterExposesStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	stats := &labels.Stats{}
	Register(reg, stats)

	stats.LabelsWritten.Add(3)
	stats.FullPasses.Add(1)
	stats.ReadFailures.Add(2)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "prefixhider_labels_written_total 3")
	assert.Contains(t, string(body), "prefixhider_full_passes_total 1")
	assert.Contains(t, string(body), "prefixhider_read_failures_total 2")
	assert.Contains(t, string(body), "prefixhider_discovery_retries_total 0")
}

func TestRegisterTwicePanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg, &labels.Stats{})
	assert.Panics(t, func() { Register(reg, &labels.Stats{}) })
}
