package world

import (
	"errors"

	"github.com/annel0/voxelcore/internal/world/block"
)

var (
	// ErrChunkNotLoaded - чанк не резидентен; вызывающий должен запросить загрузку
	ErrChunkNotLoaded = errors.New("chunk not loaded")
	// ErrUnloadBlocked - у чанка есть живые гарды или ожидающие задания
	ErrUnloadBlocked = errors.New("chunk unload blocked")
	// ErrGenerationFailed - генерация или загрузка чанка не удалась
	ErrGenerationFailed = errors.New("chunk generation failed")
	// ErrUnknownBlock - ID блока не зарегистрирован
	ErrUnknownBlock = block.ErrUnknownBlock
	// ErrOutOfRange - значение вне допустимого диапазона
	ErrOutOfRange = errors.New("value out of range")
)
