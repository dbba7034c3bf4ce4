package manifest

import "go.uber.org/zap"

// ClosureOf returns every transitive dependency of the named bundle, ordered
// so that each bundle appears after all of its own dependencies. The bundle
// itself is never included and shared dependencies appear once. Results are
// memoized until the next Reload; callers must not modify the returned slice.
func (m *Manifest) ClosureOf(name string) []string {
	m.mu.RLock()
	if deps, ok := m.closures[name]; ok {
		m.mu.RUnlock()
		return deps
	}
	idx := m.idx
	m.mu.RUnlock()

	deps := m.collect(idx, name)

	m.mu.Lock()
	// A Reload in between invalidates what we computed.
	if m.idx == idx {
		m.closures[name] = deps
	}
	m.mu.Unlock()
	return deps
}

type walker struct {
	idx     *index
	logger  *zap.Logger
	visited map[string]bool
	onStack map[string]bool
	out     []string
}

func (m *Manifest) collect(idx *index, root string) []string {
	if _, ok := idx.byName[root]; !ok {
		return []string{}
	}
	w := &walker{
		idx:     idx,
		logger:  m.logger,
		visited: map[string]bool{root: true},
		onStack: map[string]bool{root: true},
		out:     []string{},
	}
	w.visit(root)
	return w.out
}

// visit emits the unvisited dependencies of name in post-order.
func (w *walker) visit(name string) {
	b, ok := w.idx.byName[name]
	if !ok {
		return
	}
	for _, dep := range b.Depends {
		if w.onStack[dep] {
			w.logger.Warn("Dependency cycle, skipping edge",
				zap.String("bundle", name),
				zap.String("dependency", dep),
			)
			continue
		}
		if w.visited[dep] {
			continue
		}
		w.visited[dep] = true
		w.onStack[dep] = true
		w.visit(dep)
		w.onStack[dep] = false
		w.out = append(w.out, dep)
	}
}
