package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammar0144/reportq/pkg/report"
)

func TestOutputFormatter(t *testing.T) {
	total := int64(1)
	result := report.Result{
		Columns:    []string{"name"},
		TotalCount: &total,
		Limit:      10,
	}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&OutputFormatter{Format: "json", Writer: &buf}).Write(result))
		assert.Contains(t, buf.String(), "\n  \"columns\": [")
	})

	t.Run("yaml uses json field names", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&OutputFormatter{Format: "yaml", Writer: &buf}).Write(result))
		assert.Contains(t, buf.String(), "columns:\n  - name\n")
		assert.Contains(t, buf.String(), "total_count: 1")
	})
}
