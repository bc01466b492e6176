package recorder

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorozuya-cybersecurity/ecomprobe/internal/schema"
)

func TestRecordKeepsInsertionOrder(t *testing.T) {
	var buf bytes.Buffer
	r := New().WithLogger(zerolog.New(&buf))

	r.Record(schema.NewFinding(schema.SeverityLow, "Missing Security Header", "first", "http://t/a", ""))
	r.Record(schema.NewFinding(schema.SeverityHigh, "SQL Injection", "second", "http://t/b", "admin'--"))
	r.Record(schema.NewFinding(schema.SeverityMedium, "CORS Misconfiguration", "third", "http://t/c", "null"))

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{all[0].Description, all[1].Description, all[2].Description})
	assert.Equal(t, 3, r.Len())

	assert.Contains(t, buf.String(), `"payload":"admin'--"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestAllReturnsCopy(t *testing.T) {
	r := New().WithLogger(zerolog.Nop())
	r.Record(schema.NewFinding(schema.SeverityHigh, "c", "d", "e", ""))

	all := r.All()
	all[0].Description = "changed"
	assert.Equal(t, "d", r.All()[0].Description)
}

func TestCountsBySeverity(t *testing.T) {
	r := New().WithLogger(zerolog.Nop())
	assert.Equal(t, map[schema.Severity]int{
		schema.SeverityHigh:   0,
		schema.SeverityMedium: 0,
		schema.SeverityLow:    0,
	}, r.CountsBySeverity())

	r.Record(schema.NewFinding(schema.SeverityHigh, "c", "d", "e", ""))
	r.Record(schema.NewFinding(schema.SeverityHigh, "c", "d", "e", ""))
	r.Record(schema.NewFinding(schema.SeverityLow, "c", "d", "e", ""))

	counts := r.CountsBySeverity()
	assert.Equal(t, 2, counts[schema.SeverityHigh])
	assert.Equal(t, 0, counts[schema.SeverityMedium])
	assert.Equal(t, 1, counts[schema.SeverityLow])
}
