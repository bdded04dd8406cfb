package counters

import (
	"io"
	"os"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func batchRegistry(t testing.TB) (*Registry, *Schema, *Schema) {
	t.Helper()
	reg := NewRegistry()
	a, b := taskstatsSchema(t), mixedSchema(t)
	require.NoError(t, reg.Register(a))
	require.NoError(t, reg.Register(b))
	reg.Seal()
	return reg, a, b
}

func TestBatchRoundTripMixedSchemas(t *testing.T) {
	reg, a, b := batchRegistry(t)

	records := []*Unpacked{
		record(t, a, map[string]any{"cpu_delay_total": 1, "ac_btime": 2, "ac_etime": 3, "ac_comm": "bash"}),
		record(t, b, map[string]any{"u8": 1, "u16": 2, "i8": -3, "i16": -4, "i32": 5, "i64": -6,
			"f32": 0.25, "f64": 1e-9, "label": "gpu0"}),
		record(t, a, map[string]any{"cpu_delay_total": 10, "ac_btime": 20, "ac_etime": 30, "ac_comm": "python3"}),
		record(t, a, map[string]any{"cpu_delay_total": 0, "ac_btime": 0, "ac_etime": 0, "ac_comm": ""}),
	}
	for i, r := range records {
		r.SetHeaders("cn042", uint64(i), 1700000042)
	}

	buf, err := PackUnpacked(records)
	require.NoError(t, err)
	assert.Len(t, buf, 3*a.Len()+b.Len())

	got, err := UnpackBatch(reg, buf)
	require.NoError(t, err)
	require.Len(t, got, len(records))
	for i := range records {
		assert.True(t, records[i].Equal(got[i]), "record %d", i)
	}
}

func TestPackBatchMixedRepresentations(t *testing.T) {
	reg, a, _ := batchRegistry(t)
	u := record(t, a, map[string]any{"cpu_delay_total": 7, "ac_btime": 1, "ac_etime": 2, "ac_comm": "x"})
	p := u.Pack()

	buf, err := PackBatch([]Record{p, u})
	require.NoError(t, err)

	got, err := UnpackBatch(reg, buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Equal(got[1]))
	assert.True(t, u.Equal(got[0]))
}

func TestUnpackBatchEmpty(t *testing.T) {
	reg, _, _ := batchRegistry(t)
	got, err := UnpackBatch(reg, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUnpackBatchTruncatedByOneByte(t *testing.T) {
	reg, a, b := batchRegistry(t)
	buf, err := PackUnpacked([]*Unpacked{New(a), New(b)})
	require.NoError(t, err)

	got, err := UnpackBatch(reg, buf[:len(buf)-1])
	assert.Nil(t, got)
	var tb *TruncatedBatchError
	require.ErrorAs(t, err, &tb)
	assert.Equal(t, a.Len(), tb.Offset)
	assert.Equal(t, b.Len(), tb.Want)
	assert.Equal(t, b.Len()-1, tb.Remaining)
	assert.True(t, IsIntegrity(err))
}

func TestUnpackBatchTruncatedInsideTag(t *testing.T) {
	reg, a, _ := batchRegistry(t)
	buf, err := PackUnpacked([]*Unpacked{New(a), New(a)})
	require.NoError(t, err)

	_, err = UnpackBatch(reg, buf[:a.Len()+10])
	var tb *TruncatedBatchError
	require.ErrorAs(t, err, &tb)
	assert.Equal(t, NameWidth, tb.Want)
}

func TestUnpackBatchUnknownSchema(t *testing.T) {
	reg, a, _ := batchRegistry(t)
	foreign, err := NewSchemaBuilder("lustre_default").
		Counter("read_bytes", UInt64, Bytes, Add, "").
		Build()
	require.NoError(t, err)

	buf, err := PackUnpacked([]*Unpacked{New(a), New(foreign)})
	require.NoError(t, err)

	got, err := UnpackBatch(reg, buf)
	assert.Nil(t, got)
	var nf *SchemaNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "lustre_default", nf.Name)
	assert.False(t, IsIntegrity(err))
}

// ============================================================================
// Benchmarks
// ============================================================================

func BenchmarkPackBatch(b *testing.B) {
	_, s, _ := batchRegistry(b)
	records := make([]*Unpacked, 256)
	for i := range records {
		records[i] = record(b, s, map[string]any{"cpu_delay_total": i, "ac_btime": i, "ac_etime": i, "ac_comm": "worker"})
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := PackUnpacked(records); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkUnpackBatch(b *testing.B) {
	reg, s, _ := batchRegistry(b)
	records := make([]*Unpacked, 256)
	for i := range records {
		records[i] = record(b, s, map[string]any{"cpu_delay_total": i, "ac_comm": "worker"})
	}
	buf, err := PackUnpacked(records)
	require.NoError(b, err)

	b.SetBytes(int64(len(buf)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := UnpackBatch(reg, buf); err != nil {
			b.Fatal(err)
		}
	}
}
