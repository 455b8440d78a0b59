package world

import (
	"encoding/binary"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const shardCount = 64

type chunkShard struct {
	mu     sync.RWMutex
	chunks map[ChunkPos]*Chunk
	// order держится от изменения карты до отправки события,
	// поэтому события одной позиции уходят в порядке изменений
	order sync.Mutex
}

// chunkIndex - шардированная карта позиция -> чанк. Вставка и удаление
// блокируют только свой шард и не мешают чтению несвязанных чанков.
type chunkIndex struct {
	shards [shardCount]chunkShard
}

func newChunkIndex() *chunkIndex {
	ix := &chunkIndex{}
	for i := range ix.shards {
		ix.shards[i].chunks = make(map[ChunkPos]*Chunk)
	}
	return ix
}

func (ix *chunkIndex) shard(pos ChunkPos) *chunkShard {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:], uint64(pos.X))
	binary.LittleEndian.PutUint64(buf[8:], uint64(pos.Y))
	binary.LittleEndian.PutUint64(buf[16:], uint64(pos.Z))
	return &ix.shards[xxhash.Sum64(buf[:])%shardCount]
}

// sequence возвращает замок порядка событий для шарда позиции
func (ix *chunkIndex) sequence(pos ChunkPos) *sync.Mutex {
	return &ix.shard(pos).order
}

func (ix *chunkIndex) get(pos ChunkPos) (*Chunk, bool) {
	s := ix.shard(pos)
	s.mu.RLock()
	c, ok := s.chunks[pos]
	s.mu.RUnlock()
	return c, ok
}

// insert добавляет чанк, если позиция свободна. Возвращает резидентный чанк
// и признак того, что вставлен именно c.
func (ix *chunkIndex) insert(c *Chunk) (*Chunk, bool) {
	s := ix.shard(c.pos)
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.chunks[c.pos]; ok {
		return existing, false
	}
	s.chunks[c.pos] = c
	return c, true
}

// pin закрепляет чанк под read-блокировкой шарда, что исключает гонку с выгрузкой
func (ix *chunkIndex) pin(pos ChunkPos) (*Chunk, bool) {
	s := ix.shard(pos)
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunks[pos]
	if !ok {
		return nil, false
	}
	c.pins.Add(1)
	return c, true
}

// remove удаляет чанк, если у него нет закреплений и гардов
func (ix *chunkIndex) remove(pos ChunkPos) (*Chunk, error) {
	s := ix.shard(pos)
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chunks[pos]
	if !ok {
		return nil, ErrChunkNotLoaded
	}
	if c.pins.Load() > 0 {
		return nil, ErrUnloadBlocked
	}
	if !c.mu.TryLock() {
		return nil, ErrUnloadBlocked
	}
	c.evicted.Store(true)
	c.mu.Unlock()

	delete(s.chunks, pos)
	return c, nil
}

func (ix *chunkIndex) len() int {
	n := 0
	for i := range ix.shards {
		s := &ix.shards[i]
		s.mu.RLock()
		n += len(s.chunks)
		s.mu.RUnlock()
	}
	return n
}

func (ix *chunkIndex) positions() []ChunkPos {
	var out []ChunkPos
	for i := range ix.shards {
		s := &ix.shards[i]
		s.mu.RLock()
		for pos := range s.chunks {
			out = append(out, pos)
		}
		s.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
