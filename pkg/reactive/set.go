package reactive

// valueSet is an insertion-ordered set of Values. Edge sets and the pending
// set use it so that propagation and flush order are deterministic.
type valueSet struct {
	items []*Value
	pos   map[*Value]int
}

func (s *valueSet) add(v *Value) bool {
	if s.pos == nil {
		s.pos = make(map[*Value]int)
	}
	if _, ok := s.pos[v]; ok {
		return false
	}
	s.pos[v] = len(s.items)
	s.items = append(s.items, v)
	return true
}

func (s *valueSet) remove(v *Value) bool {
	i, ok := s.pos[v]
	if !ok {
		return false
	}
	delete(s.pos, v)
	copy(s.items[i:], s.items[i+1:])
	s.items[len(s.items)-1] = nil
	s.items = s.items[:len(s.items)-1]
	for j := i; j < len(s.items); j++ {
		s.pos[s.items[j]] = j
	}
	return true
}

func (s *valueSet) has(v *Value) bool {
	_, ok := s.pos[v]
	return ok
}

func (s *valueSet) len() int {
	return len(s.items)
}

// snapshot returns a copy safe to iterate while the set is mutated.
func (s *valueSet) snapshot() []*Value {
	if len(s.items) == 0 {
		return nil
	}
	out := make([]*Value, len(s.items))
	copy(out, s.items)
	return out
}

func (s *valueSet) clear() {
	s.items = nil
	s.pos = nil
}
