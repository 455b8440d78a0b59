package world

// Категории отладочного канала
const (
	CategoryWorldLoad   = "world-load"
	CategoryWorldAccess = "world-access"
	CategoryMesher      = "mesher"
)

// DebugSink принимает отладочные события. Реализация не должна блокировать:
// ядро отправляет события по принципу fire-and-forget.
type DebugSink interface {
	Emit(category, kind string, fields map[string]interface{})
}

type nopSink struct{}

func (nopSink) Emit(string, string, map[string]interface{}) {}

// NopDebugSink отбрасывает все события
var NopDebugSink DebugSink = nopSink{}

func eventCategory(ev Event) string {
	if ev.GetType() == EventTypeModified {
		return CategoryWorldAccess
	}
	return CategoryWorldLoad
}

func eventFields(ev Event) map[string]interface{} {
	switch e := ev.(type) {
	case EventLoading:
		return map[string]interface{}{"pos": e.Pos.String()}
	case EventLoaded:
		return map[string]interface{}{"pos": e.Pos.String()}
	case EventLoadFailed:
		return map[string]interface{}{"pos": e.Pos.String(), "error": e.Err.Error(), "permanent": e.Permanent}
	case EventUnloaded:
		return map[string]interface{}{"pos": e.Pos.String()}
	case EventModified:
		touched := make([]string, len(e.Touched))
		for i, p := range e.Touched {
			touched[i] = p.String()
		}
		return map[string]interface{}{"touched": touched}
	default:
		return nil
	}
}
