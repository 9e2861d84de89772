// Package lpm implements a prefix tree keyed by name components.
package lpm

// Matcher maps component paths to values. The zero value is empty and ready
// to use. It is not safe for concurrent use.
type Matcher[T any] struct {
	root node[T]
}

type node[T any] struct {
	val   T
	set   bool
	table map[string]*node[T]
}

func (n *node[T]) empty() bool {
	return !n.set && len(n.table) == 0
}

func (n *node[T]) update(key []string, depth int, f func(T, bool) (T, bool)) {
	if len(key) == depth {
		n.val, n.set = f(n.val, n.set)
		if !n.set {
			var zero T
			n.val = zero
		}
		return
	}
	v, ok := n.table[key[depth]]
	if !ok {
		v = new(node[T])
	}
	v.update(key, depth+1, f)
	if v.empty() {
		delete(n.table, key[depth])
		return
	}
	if !ok {
		if n.table == nil {
			n.table = make(map[string]*node[T])
		}
		n.table[key[depth]] = v
	}
}

func (n *node[T]) match(key []string, depth int, f func(int, T)) {
	if n.set {
		f(depth, n.val)
	}
	if len(key) == depth {
		return
	}
	v, ok := n.table[key[depth]]
	if !ok {
		return
	}
	v.match(key, depth+1, f)
}

func (n *node[T]) visit(key []string, f func([]string, T) (T, bool)) {
	if n.set {
		n.val, n.set = f(key, n.val)
		if !n.set {
			var zero T
			n.val = zero
		}
	}
	for k, v := range n.table {
		v.visit(append(key, k), f)
		if v.empty() {
			delete(n.table, k)
		}
	}
}

// Update replaces the value stored at key with f(old, exists). Returning
// false from f removes the entry.
func (m *Matcher[T]) Update(key []string, f func(T, bool) (T, bool)) {
	m.root.update(key, 0, f)
}

func (m *Matcher[T]) Get(key []string) (v T, ok bool) {
	m.root.match(key, 0, func(depth int, val T) {
		if depth == len(key) {
			v, ok = val, true
		}
	})
	return
}

// Match returns the value of the longest stored prefix of key.
func (m *Matcher[T]) Match(key []string) (v T, ok bool) {
	m.root.match(key, 0, func(_ int, val T) {
		v, ok = val, true
	})
	return
}

// MatchAll calls f for every stored prefix of key, shortest first, with the
// prefix length.
func (m *Matcher[T]) MatchAll(key []string, f func(int, T)) {
	m.root.match(key, 0, f)
}

// Visit calls f for every entry. Returning false from f removes the entry.
func (m *Matcher[T]) Visit(f func([]string, T) (T, bool)) {
	key := make([]string, 0, 16)
	m.root.visit(key, f)
}

// Len counts the stored entries.
func (m *Matcher[T]) Len() (n int) {
	m.Visit(func(_ []string, v T) (T, bool) {
		n++
		return v, true
	})
	return
}
