package download

// Partition splits a resource of the given size into contiguous chunks.
//
// When ranges are unsupported or the size is unknown, the whole resource is
// a single unranged chunk. Otherwise one of two regimes applies: resources
// up to blockCount*blockSize bytes are split into exactly blockCount
// equal-size blocks, larger ones into fixed blockSize blocks with the count
// computed from the size. In both regimes the last block absorbs the
// remainder, so chunk spans always cover [0, size) exactly once.
func Partition(size int64, acceptRanges bool, blockCount int, blockSize int64) []Chunk {
	if !acceptRanges || size <= 0 {
		return []Chunk{{Index: 0, StartByte: 0, Ranged: false}}
	}

	var count int
	var block int64
	if size <= int64(blockCount)*blockSize {
		count = blockCount
		block = size / int64(blockCount)
		if block == 0 {
			// Fewer bytes than blocks, no point splitting.
			return []Chunk{{Index: 0, StartByte: 0, EndByte: size - 1, Ranged: true}}
		}
	} else {
		block = blockSize
		count = int((size + blockSize - 1) / blockSize)
	}

	chunks := make([]Chunk, 0, count)
	var position int64 = 0
	for i := 0; i < count; i++ {
		startByte := position
		endByte := startByte + block - 1
		if i == count-1 {
			endByte = size - 1
		}
		chunks = append(chunks, Chunk{
			Index:     i,
			StartByte: startByte,
			EndByte:   endByte,
			Ranged:    true,
		})
		position = endByte + 1
	}
	return chunks
}
