package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/annel0/voxelcore/internal/world"
	"github.com/klauspost/compress/zstd"
)

const (
	codecMagic   byte = 'V'
	codecVersion byte = 1
)

// ErrCorruptChunk возвращается, если сохранённые данные не читаются
var ErrCorruptChunk = errors.New("corrupt chunk record")

// ChunkCodec кодирует чанк в серии (RLE), записанные varint'ами и сжатые zstd.
// Encoder и Decoder из klauspost допускают параллельные EncodeAll/DecodeAll.
type ChunkCodec struct {
	compressor   *zstd.Encoder
	decompressor *zstd.Decoder
}

// NewChunkCodec создаёт кодек
func NewChunkCodec() (*ChunkCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("ошибка создания zstd decoder: %w", err)
	}
	return &ChunkCodec{compressor: enc, decompressor: dec}, nil
}

// Close освобождает ресурсы zstd
func (c *ChunkCodec) Close() {
	c.compressor.Close()
	c.decompressor.Close()
}

// Encode сериализует чанк
func (c *ChunkCodec) Encode(raw *world.RawChunk) []byte {
	runs := world.Compact(raw)
	buf := make([]byte, 0, 2+binary.MaxVarintLen64*(1+2*len(runs)))
	buf = binary.AppendUvarint(buf, uint64(len(runs)))
	for _, r := range runs {
		buf = binary.AppendUvarint(buf, uint64(r.Cell))
		buf = binary.AppendUvarint(buf, uint64(r.Count))
	}

	out := make([]byte, 0, len(buf)/2+2)
	out = append(out, codecMagic, codecVersion)
	return c.compressor.EncodeAll(buf, out)
}

// Decode восстанавливает чанк
func (c *ChunkCodec) Decode(data []byte) (*world.RawChunk, error) {
	if len(data) < 2 || data[0] != codecMagic {
		return nil, fmt.Errorf("%w: неверная сигнатура", ErrCorruptChunk)
	}
	if data[1] != codecVersion {
		return nil, fmt.Errorf("%w: неизвестная версия %d", ErrCorruptChunk, data[1])
	}

	buf, err := c.decompressor.DecodeAll(data[2:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptChunk, err)
	}

	n, read := binary.Uvarint(buf)
	if read <= 0 || n > world.Volume {
		return nil, fmt.Errorf("%w: число серий", ErrCorruptChunk)
	}
	buf = buf[read:]

	runs := make([]world.Run, 0, n)
	for i := uint64(0); i < n; i++ {
		cell, r1 := binary.Uvarint(buf)
		if r1 <= 0 || cell > 0xFFFFFFFF {
			return nil, fmt.Errorf("%w: серия %d", ErrCorruptChunk, i)
		}
		buf = buf[r1:]
		count, r2 := binary.Uvarint(buf)
		if r2 <= 0 || count > world.Volume {
			return nil, fmt.Errorf("%w: серия %d", ErrCorruptChunk, i)
		}
		buf = buf[r2:]
		runs = append(runs, world.Run{Cell: world.Cell(cell), Count: int(count)})
	}

	raw, err := world.Decompact(runs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptChunk, err)
	}
	return raw, nil
}
