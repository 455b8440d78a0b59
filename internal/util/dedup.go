package util

// DedupQueue - FIFO-очередь без повторов. Повторная вставка элемента,
// уже стоящего в очереди, ничего не меняет; удалённый элемент можно вставить снова,
// и он встанет в конец. Не потокобезопасна.
type DedupQueue[T comparable] struct {
	items []queued[T]
	head  int
	seq   uint64
	live  map[T]uint64 // элемент -> номер его действующей записи в items
}

type queued[T comparable] struct {
	v   T
	seq uint64
}

// NewDedupQueue создаёт пустую очередь
func NewDedupQueue[T comparable]() *DedupQueue[T] {
	return &DedupQueue[T]{live: make(map[T]uint64)}
}

// Push добавляет элемент в конец, если его ещё нет. Возвращает true при вставке.
func (q *DedupQueue[T]) Push(v T) bool {
	if _, ok := q.live[v]; ok {
		return false
	}
	q.seq++
	q.live[v] = q.seq
	q.items = append(q.items, queued[T]{v: v, seq: q.seq})
	return true
}

// Pop извлекает первый элемент
func (q *DedupQueue[T]) Pop() (T, bool) {
	var zero T
	for q.head < len(q.items) {
		it := q.items[q.head]
		q.items[q.head] = queued[T]{}
		q.head++
		// запись могла устареть после Remove
		if seq, ok := q.live[it.v]; ok && seq == it.seq {
			delete(q.live, it.v)
			q.compact()
			return it.v, true
		}
	}
	q.compact()
	return zero, false
}

// Remove убирает элемент из очереди. Возвращает true, если он там был.
func (q *DedupQueue[T]) Remove(v T) bool {
	if _, ok := q.live[v]; !ok {
		return false
	}
	delete(q.live, v)
	return true
}

// Contains проверяет наличие элемента
func (q *DedupQueue[T]) Contains(v T) bool {
	_, ok := q.live[v]
	return ok
}

// Len возвращает число элементов в очереди
func (q *DedupQueue[T]) Len() int {
	return len(q.live)
}

// compact освобождает прочитанный префикс, когда он занимает больше половины буфера
func (q *DedupQueue[T]) compact() {
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
		return
	}
	if q.head > 64 && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		q.items = q.items[:n]
		q.head = 0
	}
}
