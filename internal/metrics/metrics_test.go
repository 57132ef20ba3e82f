package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTextfile(t *testing.T) {
	BatchCallsTotal.WithLabelValues("screening", "ok").Inc()
	path := filepath.Join(t.TempDir(), "agent.prom")
	require.NoError(t, WriteTextfile(path))

	blob, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(blob), "arxiv_agent_batch_calls_total"))
}

func TestWriteTextfileDisabled(t *testing.T) {
	require.NoError(t, WriteTextfile(""))
}

func TestVerdictCounter(t *testing.T) {
	before := testutil.ToFloat64(VerdictsTotal.WithLabelValues("high"))
	VerdictsTotal.WithLabelValues("high").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(VerdictsTotal.WithLabelValues("high")))
}
