package world

// admissionQueue is the FIFO waiting list for sessions deferred at capacity.
// Positions reported to clients are 1-based and contiguous. Tick goroutine
// only.
type admissionQueue struct {
	items []*Session
}

func (q *admissionQueue) push(s *Session) int {
	q.items = append(q.items, s)
	return len(q.items)
}

func (q *admissionQueue) len() int    { return len(q.items) }
func (q *admissionQueue) empty() bool { return len(q.items) == 0 }

func (q *admissionQueue) popFront() *Session {
	if len(q.items) == 0 {
		return nil
	}
	s := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return s
}

// remove takes s out of the queue and returns the 1-based position it held,
// or 0 if s was not queued.
func (q *admissionQueue) remove(s *Session) int {
	for i, it := range q.items {
		if it == s {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return i + 1
		}
	}
	return 0
}

// find returns the waiting session for the given account, if any.
func (q *admissionQueue) find(accountID uint32) *Session {
	for _, s := range q.items {
		if s.accountID == accountID {
			return s
		}
	}
	return nil
}

// each visits waiting sessions front to back with their current positions.
func (q *admissionQueue) each(fn func(pos int, s *Session)) {
	for i, s := range q.items {
		fn(i+1, s)
	}
}
