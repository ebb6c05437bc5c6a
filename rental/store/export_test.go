package store

// LockEntries reports how many row lock entries the store keeps.
func (m *Memory) LockEntries() int {
	n := 0
	m.locks.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
