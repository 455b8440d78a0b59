package world

import (
	"context"

	"github.com/annel0/voxelcore/internal/world/block"
)

// Generator строит начальное содержимое чанка. Реализация должна быть
// детерминированной для фиксированного сида и допускать параллельные вызовы
// для разных позиций.
type Generator interface {
	Generate(ctx context.Context, pos ChunkPos, seed int64) (*RawChunk, error)
}

// GeneratorFunc позволяет использовать функцию как Generator
type GeneratorFunc func(ctx context.Context, pos ChunkPos, seed int64) (*RawChunk, error)

// Generate вызывает f
func (f GeneratorFunc) Generate(ctx context.Context, pos ChunkPos, seed int64) (*RawChunk, error) {
	return f(ctx, pos, seed)
}

// FlatGenerator заполняет чанки с Y < 0 блоком Ground, остальные - воздухом с полным небесным светом
type FlatGenerator struct {
	Ground block.BlockID
}

// Generate реализует Generator
func (g FlatGenerator) Generate(ctx context.Context, pos ChunkPos, _ int64) (*RawChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw := NewRawChunk()
	if pos.Y < 0 {
		raw.Fill(MakeCell(g.Ground, 0, 0))
	} else {
		raw.Fill(MakeCell(block.AirID, 0, MaxLight))
	}
	return raw, nil
}
