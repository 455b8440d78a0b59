package world

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/annel0/voxelcore/internal/world/block"
)

// RawChunk - содержимое чанка без синхронизации. Его возвращает генератор
// и хранилище; после вставки в мир данные копируются в Chunk.
type RawChunk struct {
	Cells [Volume]Cell
}

// NewRawChunk создаёт чанк, заполненный воздухом
func NewRawChunk() *RawChunk {
	return &RawChunk{}
}

// Cell возвращает ячейку по локальным координатам
func (r *RawChunk) Cell(x, y, z int) Cell {
	return r.Cells[Index(x, y, z)]
}

// Set устанавливает блок, сохраняя освещение
func (r *RawChunk) Set(x, y, z int, id block.BlockID) {
	i := Index(x, y, z)
	r.Cells[i] = r.Cells[i].WithID(id)
}

// SetCell записывает ячейку целиком
func (r *RawChunk) SetCell(x, y, z int, c Cell) {
	r.Cells[Index(x, y, z)] = c
}

// Fill заполняет весь чанк одной ячейкой
func (r *RawChunk) Fill(c Cell) {
	for i := range r.Cells {
		r.Cells[i] = c
	}
}

// Chunk - резидентный чанк мира. Содержимое защищено RWMutex: много читателей
// (физика, меширование) или один писатель (правки, свет).
//
// Доступ только через гарды Read/Write. Гард можно освободить из любой
// горутины: sync.RWMutex не привязан к горутине, захватившей блокировку,
// и задания меширования освобождают гарды уже на воркере.
type Chunk struct {
	pos ChunkPos

	mu    sync.RWMutex
	cells [Volume]Cell

	version  atomic.Uint64
	modified atomic.Bool
	evicted  atomic.Bool // выставляется под mu.Lock при выгрузке

	readers atomic.Int32
	writers atomic.Int32
	pins    atomic.Int32
}

func newChunk(pos ChunkPos, raw *RawChunk) *Chunk {
	c := &Chunk{pos: pos}
	if raw != nil {
		c.cells = raw.Cells
	}
	return c
}

// Pos возвращает позицию чанка
func (c *Chunk) Pos() ChunkPos {
	return c.pos
}

// Version увеличивается при каждом изменяющем освобождении WriteGuard
func (c *Chunk) Version() uint64 {
	return c.version.Load()
}

// Modified сообщает, менялся ли чанк с момента генерации
func (c *Chunk) Modified() bool {
	return c.modified.Load()
}

// Readers возвращает число живых гардов чтения
func (c *Chunk) Readers() int {
	return int(c.readers.Load())
}

// Pins возвращает число закреплений (ожидающих заданий)
func (c *Chunk) Pins() int {
	return int(c.pins.Load())
}

// Read захватывает гард чтения. Возвращает ErrChunkNotLoaded,
// если чанк уже выгружен.
func (c *Chunk) Read() (*ReadGuard, error) {
	c.mu.RLock()
	if c.evicted.Load() {
		c.mu.RUnlock()
		return nil, fmt.Errorf("%w: %v", ErrChunkNotLoaded, c.pos)
	}
	c.readers.Add(1)
	return &ReadGuard{c: c}, nil
}

// Write захватывает эксклюзивный гард записи
func (c *Chunk) Write() (*WriteGuard, error) {
	c.mu.Lock()
	if c.evicted.Load() {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrChunkNotLoaded, c.pos)
	}
	c.writers.Add(1)
	return &WriteGuard{c: c}, nil
}

// snapshot копирует содержимое; вызывается только когда чанк недоступен другим
func (c *Chunk) snapshot() *RawChunk {
	raw := &RawChunk{}
	raw.Cells = c.cells
	return raw
}

// ReadGuard - разделяемый доступ к содержимому чанка
type ReadGuard struct {
	c        *Chunk
	released atomic.Bool
}

// Pos возвращает позицию чанка
func (g *ReadGuard) Pos() ChunkPos {
	return g.c.pos
}

// Cell возвращает ячейку по локальным координатам
func (g *ReadGuard) Cell(x, y, z int) Cell {
	return g.c.cells[Index(x, y, z)]
}

// Block возвращает ID блока по локальным координатам
func (g *ReadGuard) Block(x, y, z int) block.BlockID {
	return g.c.cells[Index(x, y, z)].ID()
}

// CopyTo копирует содержимое чанка
func (g *ReadGuard) CopyTo(raw *RawChunk) {
	raw.Cells = g.c.cells
}

// Release освобождает гард. Повторный вызов ничего не делает.
func (g *ReadGuard) Release() {
	if !g.released.CompareAndSwap(false, true) {
		return
	}
	g.c.readers.Add(-1)
	g.c.mu.RUnlock()
}

// WriteGuard - эксклюзивный доступ к содержимому чанка
type WriteGuard struct {
	c        *Chunk
	changed  bool
	released atomic.Bool
}

// Pos возвращает позицию чанка
func (g *WriteGuard) Pos() ChunkPos {
	return g.c.pos
}

// Cell возвращает ячейку по локальным координатам
func (g *WriteGuard) Cell(x, y, z int) Cell {
	return g.c.cells[Index(x, y, z)]
}

// Set меняет блок, сохраняя освещение. Возвращает true, если значение изменилось.
func (g *WriteGuard) Set(x, y, z int, id block.BlockID) bool {
	i := Index(x, y, z)
	old := g.c.cells[i]
	next := old.WithID(id)
	if next == old {
		return false
	}
	g.c.cells[i] = next
	g.changed = true
	return true
}

// SetLight меняет освещение ячейки
func (g *WriteGuard) SetLight(x, y, z int, blockLight, skyLight uint8) bool {
	i := Index(x, y, z)
	old := g.c.cells[i]
	next := old.WithLight(blockLight, skyLight)
	if next == old {
		return false
	}
	g.c.cells[i] = next
	g.changed = true
	return true
}

// Changed сообщает, были ли изменения через этот гард
func (g *WriteGuard) Changed() bool {
	return g.changed
}

// Release освобождает гард и фиксирует версию, если что-то изменилось
func (g *WriteGuard) Release() {
	if !g.released.CompareAndSwap(false, true) {
		return
	}
	if g.changed {
		g.c.version.Add(1)
		g.c.modified.Store(true)
	}
	g.c.writers.Add(-1)
	g.c.mu.Unlock()
}
