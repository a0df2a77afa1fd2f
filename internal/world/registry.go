package world

// registry is the authoritative account → session map plus a secondary index
// by group identifier (many sessions may share one group, e.g. a shared
// billing account). Accessed only from the tick goroutine; no mutex needed.
type registry struct {
	byAccount map[uint32]*Session
	byGroup   map[uint32][]*Session
}

func newRegistry() *registry {
	return &registry{
		byAccount: make(map[uint32]*Session),
		byGroup:   make(map[uint32][]*Session),
	}
}

func (r *registry) get(accountID uint32) *Session {
	return r.byAccount[accountID]
}

func (r *registry) put(s *Session) {
	r.byAccount[s.accountID] = s
	r.byGroup[s.groupID] = append(r.byGroup[s.groupID], s)
}

// remove deletes s from both indexes without disturbing group siblings.
func (r *registry) remove(s *Session) {
	if r.byAccount[s.accountID] == s {
		delete(r.byAccount, s.accountID)
	}
	peers := r.byGroup[s.groupID]
	for i, p := range peers {
		if p == s {
			peers = append(peers[:i], peers[i+1:]...)
			break
		}
	}
	if len(peers) == 0 {
		delete(r.byGroup, s.groupID)
	} else {
		r.byGroup[s.groupID] = peers
	}
}

func (r *registry) count() int { return len(r.byAccount) }

func (r *registry) group(groupID uint32) []*Session { return r.byGroup[groupID] }

// each iterates all sessions. Safe to remove the visited session during
// iteration (map delete during range is fine).
func (r *registry) each(fn func(*Session)) {
	for _, s := range r.byAccount {
		fn(s)
	}
}
