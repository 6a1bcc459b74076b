package download

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func requireContiguous(t *testing.T, chunks []Chunk, size int64) {
	t.Helper()
	require.NotEmpty(t, chunks)
	require.Equal(t, int64(0), chunks[0].StartByte)
	require.Equal(t, size-1, chunks[len(chunks)-1].EndByte)
	for i, chunk := range chunks {
		require.Equal(t, i, chunk.Index)
		require.True(t, chunk.Ranged)
		require.LessOrEqual(t, chunk.StartByte, chunk.EndByte)
		if i > 0 {
			require.Equal(t, chunks[i-1].EndByte+1, chunk.StartByte)
		}
	}
}

func TestPartitionContiguity(t *testing.T) {
	sizes := []int64{1, 100, 1024, 12345, 31, 33, 999999937, 640 * 1024 * 1024, 1024 * 1024 * 1024}
	for _, size := range sizes {
		chunks := Partition(size, true, DefaultBlockCount, DefaultBlockSize)
		requireContiguous(t, chunks, size)
		var covered int64
		for _, chunk := range chunks {
			covered += chunk.Span()
		}
		require.Equal(t, size, covered, "size %d", size)
	}
}

func TestPartitionSmallRegimeAtThreshold(t *testing.T) {
	// Exactly blockCount*blockSize stays in the small-resource regime.
	size := int64(32 * 10 * 1024 * 1024)
	chunks := Partition(size, true, 32, 10*1024*1024)
	require.Len(t, chunks, 32)
	requireContiguous(t, chunks, size)
	for _, chunk := range chunks {
		require.Equal(t, int64(10*1024*1024), chunk.Span())
	}
}

func TestPartitionJustAboveThreshold(t *testing.T) {
	// One byte past the threshold switches to fixed-size blocks.
	size := int64(32*10*1024*1024 + 1)
	chunks := Partition(size, true, 32, 10*1024*1024)
	require.Len(t, chunks, 33)
	requireContiguous(t, chunks, size)
	require.Equal(t, int64(1), chunks[32].Span())
}

func TestPartitionLargeRegime(t *testing.T) {
	// 640MiB is twice the 320MiB threshold, so it splits into fixed
	// 10MiB blocks rather than 32 equal ones.
	size := int64(640 * 1024 * 1024)
	chunks := Partition(size, true, 32, 10*1024*1024)
	require.Len(t, chunks, 64)
	requireContiguous(t, chunks, size)
	for _, chunk := range chunks {
		require.Equal(t, int64(10*1024*1024), chunk.Span())
	}
}

func TestPartitionLargeRegimeRemainder(t *testing.T) {
	size := int64(1024 * 1024 * 1024)
	chunks := Partition(size, true, 32, 10*1024*1024)
	require.Len(t, chunks, 103)
	requireContiguous(t, chunks, size)
	for _, chunk := range chunks[:102] {
		require.Equal(t, int64(10*1024*1024), chunk.Span())
	}
	require.Equal(t, int64(4*1024*1024), chunks[102].Span())
}

func TestPartitionEqualBlocks(t *testing.T) {
	chunks := Partition(100, true, 4, 10*1024*1024)
	require.Len(t, chunks, 4)
	requireContiguous(t, chunks, 100)
	for _, chunk := range chunks {
		require.Equal(t, int64(25), chunk.Span())
	}
}

func TestPartitionRangesUnsupported(t *testing.T) {
	for _, size := range []int64{0, 1, 1024, 1024 * 1024 * 1024} {
		chunks := Partition(size, false, 32, 10*1024*1024)
		require.Len(t, chunks, 1)
		require.False(t, chunks[0].Ranged)
		require.Equal(t, 0, chunks[0].Index)
		require.Equal(t, int64(0), chunks[0].StartByte)
	}
}

func TestPartitionUnknownSize(t *testing.T) {
	chunks := Partition(0, true, 32, 10*1024*1024)
	require.Len(t, chunks, 1)
	require.False(t, chunks[0].Ranged)
}

func TestPartitionFewerBytesThanBlocks(t *testing.T) {
	chunks := Partition(10, true, 32, 10*1024*1024)
	require.Len(t, chunks, 1)
	require.True(t, chunks[0].Ranged)
	require.Equal(t, int64(0), chunks[0].StartByte)
	require.Equal(t, int64(9), chunks[0].EndByte)
}

func TestChunkRangeHeader(t *testing.T) {
	require.Equal(t, "bytes=0-24", Chunk{StartByte: 0, EndByte: 24, Ranged: true}.RangeHeader())
	require.Equal(t, "", Chunk{Ranged: false}.RangeHeader())
}
