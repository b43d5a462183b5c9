package session

// Subscribe registers a listener for state snapshots. The channel is
// buffered; a slow consumer misses intermediate snapshots rather than
// blocking mutations.
func (s *Store) Subscribe() (int, <-chan State) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	ch := make(chan State, 8)
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a listener and closes its channel.
func (s *Store) Unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		delete(s.subscribers, id)
		close(ch)
	}
}

func (s *Store) notify() {
	snapshot := s.Snapshot()
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- snapshot:
		default:
		}
	}
}
