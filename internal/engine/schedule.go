package engine

import "slices"

// buildSchedule orders the integrated modules for rendering.
//
// Modules are placed in dependency levels (a module's level is one more than
// the highest level of any producer feeding it). Inside a level, modules are
// batched by cost, expensive first, then by id, so the order is deterministic
// for a given graph. Modules with a ProcessDefer hook are returned separately
// in the same order.
//
// A cycle cannot be rendered and is reported as a consistency violation; the
// control path rejects cyclic source connections before they reach here.
func buildSchedule(modules map[*Module]struct{}) (order, deferred []*Module) {
	indeg := make(map[*Module]int, len(modules))
	consumers := make(map[*Module][]*Module, len(modules))
	for m := range modules {
		indeg[m] = 0
		m.level = 0
	}
	for m := range modules {
		each := func(l inputLink) {
			if l.src == nil {
				return
			}
			indeg[m]++
			consumers[l.src] = append(consumers[l.src], m)
		}
		for _, l := range m.inputs {
			each(l)
		}
		for _, links := range m.jinputs {
			for _, l := range links {
				each(l)
			}
		}
	}

	ready := make([]*Module, 0, len(modules))
	for m, d := range indeg {
		if d == 0 {
			ready = append(ready, m)
		}
	}
	order = make([]*Module, 0, len(modules))
	for len(ready) > 0 {
		m := ready[0]
		ready = ready[1:]
		order = append(order, m)
		for _, c := range consumers[m] {
			if m.level+1 > c.level {
				c.level = m.level + 1
			}
			indeg[c]--
			if indeg[c] == 0 {
				ready = append(ready, c)
			}
		}
	}
	if len(order) != len(modules) {
		assertf("schedule", nil, "cycle among %d modules", len(modules)-len(order))
	}

	slices.SortStableFunc(order, func(a, b *Module) int {
		if a.level != b.level {
			return a.level - b.level
		}
		if a.class.Cost != b.class.Cost {
			return int(b.class.Cost) - int(a.class.Cost)
		}
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		}
		return 0
	})
	for _, m := range order {
		if m.class.ProcessDefer != nil {
			deferred = append(deferred, m)
		}
	}
	return order, deferred
}
