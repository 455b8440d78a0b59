package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/annel0/voxelcore/internal/logging"
	"github.com/annel0/voxelcore/internal/world"
	"github.com/dgraph-io/badger/v3"
)

const chunkKeyPrefix = "chunk:"

// BadgerStore хранит изменённые чанки, вытесненные из памяти.
// Пустой путь открывает BadgerDB в памяти процесса.
// Это удержание данных между выгрузкой и повторной загрузкой, а не формат сохранений.
type BadgerStore struct {
	db    *badger.DB
	codec *ChunkCodec
	log   *logging.Logger

	mutex   sync.RWMutex
	isReady bool
}

var _ world.ChunkStore = (*BadgerStore)(nil)

// NewBadgerStore открывает хранилище в каталоге dir или в памяти, если dir пуст
func NewBadgerStore(dir string) (*BadgerStore, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	codec, err := NewChunkCodec()
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BadgerStore{
		db:      db,
		codec:   codec,
		log:     logging.GetStorageLogger(),
		isReady: true,
	}, nil
}

// Close закрывает хранилище
func (s *BadgerStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isReady {
		return nil
	}
	s.isReady = false
	s.codec.Close()
	return s.db.Close()
}

// Save сохраняет чанк
func (s *BadgerStore) Save(pos world.ChunkPos, raw *world.RawChunk) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return fmt.Errorf("хранилище не готово")
	}

	data := s.codec.Encode(raw)
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(chunkKey(pos), data)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	s.log.Debug("Чанк %v сохранён (%d байт)", pos, len(data))
	return nil
}

// Load читает чанк. Отсутствие записи не является ошибкой.
func (s *BadgerStore) Load(pos world.ChunkPos) (*world.RawChunk, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return nil, false, fmt.Errorf("хранилище не готово")
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chunkKey(pos))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	raw, err := s.codec.Decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("чанк %v: %w", pos, err)
	}
	return raw, true, nil
}

// Delete удаляет запись о чанке
func (s *BadgerStore) Delete(pos world.ChunkPos) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return fmt.Errorf("хранилище не готово")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(chunkKey(pos))
	})
}

// Count возвращает число сохранённых чанков
func (s *BadgerStore) Count() (int, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return 0, fmt.Errorf("хранилище не готово")
	}

	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(chunkKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func chunkKey(pos world.ChunkPos) []byte {
	return []byte(fmt.Sprintf("%s%d:%d:%d", chunkKeyPrefix, pos.X, pos.Y, pos.Z))
}
