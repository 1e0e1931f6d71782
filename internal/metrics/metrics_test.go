package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	require.NotNil(t, m)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestRecordInvocation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordInvocation("wasi:rpc/bridge", "call", "ok", 0.01)

	assert.Equal(t, 1, testutil.CollectAndCount(m.InvocationsTotal))
}

func TestRecordBytesWrittenAndRead(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordBytesWritten("params", 128)
	m.RecordBytesRead("results", 64)

	assert.InDelta(t, 128, testutil.ToFloat64(m.BytesWritten.WithLabelValues("params")), 0.001)
	assert.InDelta(t, 64, testutil.ToFloat64(m.BytesRead.WithLabelValues("results")), 0.001)
}

func TestRecordDeferredWriter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordDeferredWriter("ok", 0.002)
	assert.Equal(t, 1, testutil.CollectAndCount(m.DeferredWritersTotal))
}

func TestSetResourceTableSize(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SetResourceTableSize(3)
	assert.InDelta(t, 3, testutil.ToFloat64(m.ResourceTableSize), 0.001)
}

func TestNull_IsNilSafe(t *testing.T) {
	m := Null()
	require.Nil(t, m)

	// None of these should panic on a nil receiver.
	m.RecordInvocation("i", "f", "ok", 0)
	m.RecordBytesWritten("params", 1)
	m.RecordBytesRead("results", 1)
	m.RecordDeferredWriter("ok", 0)
	m.SetResourceTableSize(1)
}
