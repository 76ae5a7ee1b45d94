package flexplan

// Priority sentinel values for an item in a DependencyChain. Non-negative
// values are level indices: 0 means the item has no unresolved in-chain
// predecessors.
const (
	PriorityIndependent = -1 // no edges at all
	PriorityInvalid     = -2 // depends on an invalid or missing node
	PriorityCyclic      = -3 // part of a dependency cycle
	PriorityNotFound    = -4 // declared as a predecessor but never added
)

// item is a single node in a DependencyChain.
type item[T comparable] struct {
	name     T
	sup      map[T]struct{} // immediate predecessors
	sub      map[T]struct{} // immediate successors
	priority int
}

func newItem[T comparable](name T) *item[T] {
	return &item[T]{name: name, sup: map[T]struct{}{}, sub: map[T]struct{}{}, priority: PriorityIndependent}
}

// DependencyChain is a partial-order data structure over named items. It
// supports deep and shallow relation queries, cycle and missing-dependency
// detection, and level-based enumeration. T must be comparable so items can
// be used as map keys, generalizing the "hashable identifier" of the
// original design to Go's type system.
type DependencyChain[T comparable] struct {
	items map[T]*item[T]
}

// NewDependencyChain constructs an empty chain.
func NewDependencyChain[T comparable]() *DependencyChain[T] {
	return &DependencyChain[T]{items: map[T]*item[T]{}}
}

// Add inserts item name into the chain with the given predecessors. after
// may be nil or empty. Add fails if name already exists and its prior state
// was not cyclic (a cyclic entry may be rewritten), or if name depends on
// itself.
func (c *DependencyChain[T]) Add(name T, after ...T) error {
	// A not-found marker means name was only ever referenced as someone
	// else's predecessor, never actually added: it is rewritable just like
	// a cyclic entry. Only a genuinely-added item blocks re-add.
	if existing, ok := c.items[name]; ok &&
		existing.priority != PriorityCyclic && existing.priority != PriorityNotFound {
		return ErrItemExists
	}

	for _, p := range after {
		if p == name {
			return ErrSelfDependency
		}
	}

	it, ok := c.items[name]
	if !ok {
		it = newItem(name)
		c.items[name] = it
	} else {
		// Rewriting a cyclic or not-found entry: clear its previous edges and
		// sentinel before recomputing from the new predecessor set.
		for p := range it.sup {
			delete(c.items[p].sub, name)
		}
		it.sup = map[T]struct{}{}
		it.priority = PriorityIndependent
	}

	for _, p := range after {
		it.sup[p] = struct{}{}
		if pItem, exists := c.items[p]; exists {
			pItem.sub[name] = struct{}{}
		} else {
			// Create a placeholder not-found marker so edges stay mirror-consistent.
			ph := newItem(p)
			ph.priority = PriorityNotFound
			ph.sub[name] = struct{}{}
			c.items[p] = ph
		}
	}

	c.recomputePriority(name, map[T]struct{}{})
	c.propagateToSuccessors(name, map[T]struct{}{})
	return nil
}

// recomputePriority derives name's priority from its current
// predecessors. An item on a sup-cycle is marked cyclic; an item whose
// predecessor is missing, invalid, or cyclic is marked invalid; otherwise
// the priority is 1 + the highest predecessor priority, with independent
// predecessors promoted to level 0 as they gain their first dependent.
// visiting stops revisits within one recursive pass on adversarial graphs.
func (c *DependencyChain[T]) recomputePriority(name T, visiting map[T]struct{}) {
	it := c.items[name]
	if it == nil {
		return
	}
	if _, busy := visiting[name]; busy {
		return
	}
	visiting[name] = struct{}{}
	defer delete(visiting, name)

	if len(it.sup) == 0 {
		if it.priority != PriorityNotFound {
			it.priority = PriorityIndependent
		}
		return
	}

	if c.onCycle(name) {
		it.priority = PriorityCyclic
		return
	}

	best := -1
	sawBad := false

	for p := range it.sup {
		pItem := c.items[p]
		if pItem == nil {
			sawBad = true
			continue
		}
		switch {
		case pItem.priority == PriorityNotFound ||
			pItem.priority == PriorityCyclic ||
			pItem.priority == PriorityInvalid:
			sawBad = true
		case pItem.priority == PriorityIndependent:
			// An independent predecessor is promoted to level 0 the moment
			// it gains a dependent; propagate that promotion to its own
			// other successors too.
			pItem.priority = 0
			if best < 1 {
				best = 1
			}
			c.propagateToSuccessors(p, map[T]struct{}{})
		default:
			if pItem.priority+1 > best {
				best = pItem.priority + 1
			}
		}
	}

	switch {
	case sawBad:
		it.priority = PriorityInvalid
	case best < 0:
		it.priority = PriorityIndependent
	default:
		it.priority = best
	}
}

// onCycle reports whether name can reach itself by following sup edges.
func (c *DependencyChain[T]) onCycle(name T) bool {
	seen := map[T]struct{}{}
	var walk func(n T) bool
	walk = func(n T) bool {
		it := c.items[n]
		if it == nil {
			return false
		}
		for p := range it.sup {
			if p == name {
				return true
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			if walk(p) {
				return true
			}
		}
		return false
	}
	return walk(name)
}

// propagateToSuccessors recomputes priority transitively for every
// successor of name.
func (c *DependencyChain[T]) propagateToSuccessors(name T, seen map[T]struct{}) {
	if _, done := seen[name]; done {
		return
	}
	seen[name] = struct{}{}

	it := c.items[name]
	if it == nil {
		return
	}
	for s := range it.sub {
		c.recomputePriority(s, map[T]struct{}{})
		c.propagateToSuccessors(s, seen)
	}
}

// Remove drops item name and all incident edges. Successors that end up
// with no remaining edges become independent; all successors' priorities
// are recomputed.
func (c *DependencyChain[T]) Remove(name T) error {
	it, ok := c.items[name]
	if !ok {
		return ErrItemNotFound
	}

	successors := make([]T, 0, len(it.sub))
	for s := range it.sub {
		successors = append(successors, s)
	}
	predecessors := make([]T, 0, len(it.sup))
	for p := range it.sup {
		predecessors = append(predecessors, p)
	}
	for _, p := range predecessors {
		if pItem, exists := c.items[p]; exists {
			delete(pItem.sub, name)
		}
	}
	for _, s := range successors {
		delete(c.items[s].sup, name)
	}
	delete(c.items, name)

	c.reduceOrphanedPredecessors(predecessors)

	for _, s := range successors {
		c.recomputePriority(s, map[T]struct{}{})
		if sItem := c.items[s]; sItem != nil && len(sItem.sup) == 0 && len(sItem.sub) == 0 {
			sItem.priority = PriorityIndependent
		}
		c.propagateToSuccessors(s, map[T]struct{}{})
	}
	return nil
}

// reduceOrphanedPredecessors restores former predecessors of a dropped
// item: a not-found marker that no longer has any successor was only ever
// created by the dropped item's reference and is deleted outright, while a
// real item left with no edges at all reverts to independent, undoing its
// earlier promotion to level 0.
func (c *DependencyChain[T]) reduceOrphanedPredecessors(predecessors []T) {
	for _, p := range predecessors {
		pItem, exists := c.items[p]
		if !exists || len(pItem.sub) > 0 {
			continue
		}
		if pItem.priority == PriorityNotFound {
			delete(c.items, p)
			continue
		}
		if len(pItem.sup) == 0 {
			pItem.priority = PriorityIndependent
		}
	}
}

// Ignore drops item name but re-parents its successors onto its own
// predecessors, preserving the transitive-closure bypass.
func (c *DependencyChain[T]) Ignore(name T) error {
	it, ok := c.items[name]
	if !ok {
		return ErrItemNotFound
	}

	preds := make([]T, 0, len(it.sup))
	for p := range it.sup {
		preds = append(preds, p)
	}
	succs := make([]T, 0, len(it.sub))
	for s := range it.sub {
		succs = append(succs, s)
	}

	for p := range it.sup {
		if pItem, exists := c.items[p]; exists {
			delete(pItem.sub, name)
		}
	}
	for _, s := range succs {
		sItem := c.items[s]
		delete(sItem.sup, name)
		for _, p := range preds {
			sItem.sup[p] = struct{}{}
			if pItem, exists := c.items[p]; exists {
				pItem.sub[s] = struct{}{}
			}
		}
	}
	delete(c.items, name)

	c.reduceOrphanedPredecessors(preds)

	for _, s := range succs {
		c.recomputePriority(s, map[T]struct{}{})
		c.propagateToSuccessors(s, map[T]struct{}{})
	}
	return nil
}

// SupOf returns the immediate (or, if deep, transitive) predecessors of
// name.
func (c *DependencyChain[T]) SupOf(name T, deep bool) ([]T, error) {
	it, ok := c.items[name]
	if !ok {
		return nil, ErrItemNotFound
	}
	if !deep {
		return keys(it.sup), nil
	}
	seen := map[T]struct{}{}
	c.collectSup(name, seen)
	delete(seen, name)
	return keys(seen), nil
}

func (c *DependencyChain[T]) collectSup(name T, seen map[T]struct{}) {
	if _, ok := seen[name]; ok {
		return
	}
	seen[name] = struct{}{}
	it := c.items[name]
	if it == nil {
		return
	}
	for p := range it.sup {
		c.collectSup(p, seen)
	}
}

// SubOf returns the immediate (or, if deep, transitive) successors of name.
// When opt_dep is true (deep must also be true), the closure additionally
// includes every other predecessor of any transitively reached successor —
// the set of items co-required by anything name transitively enables —
// excluding name itself.
func (c *DependencyChain[T]) SubOf(name T, deep bool, optDep bool) ([]T, error) {
	it, ok := c.items[name]
	if !ok {
		return nil, ErrItemNotFound
	}
	if !deep {
		return keys(it.sub), nil
	}

	seen := map[T]struct{}{}
	c.collectSub(name, seen)
	delete(seen, name)

	if optDep {
		extra := map[T]struct{}{}
		for s := range seen {
			sItem := c.items[s]
			if sItem == nil {
				continue
			}
			for p := range sItem.sup {
				if p == name {
					continue
				}
				extra[p] = struct{}{}
			}
		}
		for p := range extra {
			seen[p] = struct{}{}
		}
		delete(seen, name)
	}
	return keys(seen), nil
}

func (c *DependencyChain[T]) collectSub(name T, seen map[T]struct{}) {
	if _, ok := seen[name]; ok {
		return
	}
	seen[name] = struct{}{}
	it := c.items[name]
	if it == nil {
		return
	}
	for s := range it.sub {
		c.collectSub(s, seen)
	}
}

// SubChain produces a new chain consisting of the union of each input
// item and everything related to it: its SubOf(deep=true, optDep=true)
// closure plus the deep predecessor closure of every included item, so the
// result is closed under both relation queries. Sup edges are preserved
// verbatim (not recomputed), matching the original implementation's
// behavior of copying predecessor sets rather than re-deriving them.
func (c *DependencyChain[T]) SubChain(names ...T) (*DependencyChain[T], error) {
	included := map[T]struct{}{}
	for _, n := range names {
		if _, ok := c.items[n]; !ok {
			return nil, ErrItemNotFound
		}
		included[n] = struct{}{}
		related, err := c.SubOf(n, true, true)
		if err != nil {
			return nil, err
		}
		for _, r := range related {
			included[r] = struct{}{}
		}
	}

	// Predecessor closure: every included item pulls in its own deep sups,
	// including those of items added by the optDep expansion.
	queue := keys(included)
	for len(queue) > 0 {
		n := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		it := c.items[n]
		if it == nil {
			continue
		}
		for p := range it.sup {
			if _, ok := included[p]; !ok {
				included[p] = struct{}{}
				queue = append(queue, p)
			}
		}
	}

	out := NewDependencyChain[T]()
	for n := range included {
		out.items[n] = newItem(n)
	}
	for n := range included {
		src := c.items[n]
		dst := out.items[n]
		for p := range src.sup {
			dst.sup[p] = struct{}{}
			if pOut, ok := out.items[p]; ok {
				pOut.sub[n] = struct{}{}
			} else {
				ph := newItem(p)
				ph.priority = PriorityNotFound
				ph.sub[n] = struct{}{}
				out.items[p] = ph
			}
		}
	}
	for n := range out.items {
		out.recomputePriority(n, map[T]struct{}{})
	}
	return out, nil
}

// Levels returns 1 + the maximum non-sentinel priority present in the
// chain, or 0 if there is no such item.
func (c *DependencyChain[T]) Levels() int {
	max := -1
	for _, it := range c.items {
		if it.priority >= 0 && it.priority > max {
			max = it.priority
		}
	}
	if max < 0 {
		return 0
	}
	return max + 1
}

// GetLevel returns the set of items whose priority equals i. Negative i
// indexes from the top: -1 is the highest level, -2 the one below it, etc.
func (c *DependencyChain[T]) GetLevel(i int) []T {
	levels := c.Levels()
	target := i
	if i < 0 {
		target = levels + i
		if target < 0 {
			return nil
		}
	}
	var out []T
	for _, it := range c.items {
		if it.priority == target {
			out = append(out, it.name)
		}
	}
	return out
}

// IndependentItems returns every item with no edges at all.
func (c *DependencyChain[T]) IndependentItems() []T { return c.filterPriority(PriorityIndependent) }

// CyclicItems returns every item participating in a cycle.
func (c *DependencyChain[T]) CyclicItems() []T { return c.filterPriority(PriorityCyclic) }

// NotFoundItems returns every item declared as a predecessor but never added.
func (c *DependencyChain[T]) NotFoundItems() []T { return c.filterPriority(PriorityNotFound) }

// ErrorDepItems returns every item depending on an invalid or missing node.
func (c *DependencyChain[T]) ErrorDepItems() []T { return c.filterPriority(PriorityInvalid) }

// InvalidItems returns the union of cyclic, not-found, and error-dep items.
func (c *DependencyChain[T]) InvalidItems() []T {
	out := c.CyclicItems()
	out = append(out, c.NotFoundItems()...)
	out = append(out, c.ErrorDepItems()...)
	return out
}

// DependentItems returns every item that is neither invalid nor independent.
func (c *DependencyChain[T]) DependentItems() []T {
	var out []T
	for _, it := range c.items {
		switch it.priority {
		case PriorityIndependent, PriorityInvalid, PriorityCyclic, PriorityNotFound:
			continue
		default:
			out = append(out, it.name)
		}
	}
	return out
}

func (c *DependencyChain[T]) filterPriority(p int) []T {
	var out []T
	for _, it := range c.items {
		if it.priority == p {
			out = append(out, it.name)
		}
	}
	return out
}

// Priority returns the current priority of name.
func (c *DependencyChain[T]) Priority(name T) (int, error) {
	it, ok := c.items[name]
	if !ok {
		return 0, ErrItemNotFound
	}
	return it.priority, nil
}

// Has reports whether name has been added to the chain (excluding
// not-found placeholder markers created by predecessor references).
func (c *DependencyChain[T]) Has(name T) bool {
	it, ok := c.items[name]
	return ok && it.priority != PriorityNotFound
}

// Items returns every item name currently tracked by the chain, including
// not-found placeholder markers.
func (c *DependencyChain[T]) Items() []T {
	out := make([]T, 0, len(c.items))
	for n := range c.items {
		out = append(out, n)
	}
	return out
}

func keys[T comparable](m map[T]struct{}) []T {
	out := make([]T, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
