package world

import "sync"

// intake is the concurrent-producer half of the admission pipeline. Any
// goroutine may append; only the tick goroutine drains. Appends never block
// and the buffers are unbounded. Admission policy is applied at drain time,
// not here.
type intake struct {
	mu       sync.Mutex
	sessions []*Session
	links    []linkRequest
}

type linkRequest struct {
	conn      Conn
	accountID uint32
	token     string
}

func (in *intake) submit(s *Session) {
	in.mu.Lock()
	in.sessions = append(in.sessions, s)
	in.mu.Unlock()
}

func (in *intake) submitLink(conn Conn, accountID uint32, token string) {
	in.mu.Lock()
	in.links = append(in.links, linkRequest{conn: conn, accountID: accountID, token: token})
	in.mu.Unlock()
}

// drain swaps out both pending buffers in one critical section.
func (in *intake) drain() ([]*Session, []linkRequest) {
	in.mu.Lock()
	sessions, links := in.sessions, in.links
	in.sessions, in.links = nil, nil
	in.mu.Unlock()
	return sessions, links
}
