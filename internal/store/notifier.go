package store

import "sync"

// Table identifies an entity group for change notification.
type Table string

// Entity groups emitting change hints.
const (
	TableSources  Table = "sources"
	TableBooks    Table = "books"
	TableProgress Table = "progress"
	TableShelves  Table = "shelves"
	TableTags     Table = "tags"
)

// Change is a hint that rows in the named tables were committed.
type Change struct {
	Tables []Table
}

// Notifier fans out commit hints to subscribers. Library views subscribe
// and re-issue their queries when a relevant table changes; canceling a
// subscription stops future emissions.
type Notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Change
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]chan Change)}
}

// Subscribe registers a new subscriber and returns its channel plus a
// cancel function. The channel is buffered; a subscriber that falls
// behind misses intermediate hints rather than blocking writers.
func (n *Notifier) Subscribe() (<-chan Change, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++

	ch := make(chan Change, 8)
	n.subs[id] = ch

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if sub, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(sub)
		}
	}

	return ch, cancel
}

// Notify emits a change hint for the given tables to all subscribers.
// Sends never block: a full subscriber buffer drops the hint.
func (n *Notifier) Notify(tables ...Table) {
	if len(tables) == 0 {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	change := Change{Tables: tables}
	for _, ch := range n.subs {
		select {
		case ch <- change:
		default:
		}
	}
}
