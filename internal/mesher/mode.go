package mesher

import (
	"fmt"
	"strings"
)

// Mode выбирает алгоритм меширования. Задаётся при запуске и не меняется.
type Mode uint8

const (
	ModeSimple Mode = iota
	ModeGreedy
)

// ParseMode разбирает "simple" или "greedy"
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "simple":
		return ModeSimple, nil
	case "greedy":
		return ModeGreedy, nil
	default:
		return ModeSimple, fmt.Errorf("неизвестный режим мешера %q (ожидается simple или greedy)", s)
	}
}

func (m Mode) String() string {
	switch m {
	case ModeSimple:
		return "simple"
	case ModeGreedy:
		return "greedy"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// MarshalText позволяет использовать Mode в конфигурации
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText разбирает режим из конфигурации
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
