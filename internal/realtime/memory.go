package realtime

import (
	"context"
	"sync"

	"github.com/npezzotti/go-agritour/internal/observable"
)

type listSub struct {
	path string
	ch   chan []Entry
}

type treeSub struct {
	parent string
	ch     chan map[string][]Entry
}

// MemoryStore keeps lists in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	lists    map[string]map[string][]Entry
	listSubs map[*listSub]struct{}
	treeSubs map[*treeSub]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lists:    make(map[string]map[string][]Entry),
		listSubs: make(map[*listSub]struct{}),
		treeSubs: make(map[*treeSub]struct{}),
	}
}

func (s *MemoryStore) Append(ctx context.Context, p, key string, value []byte) error {
	parent, child, err := splitPath(p)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lists[parent] == nil {
		s.lists[parent] = make(map[string][]Entry)
	}
	s.lists[parent][child] = append(s.lists[parent][child], Entry{Key: key, Value: append([]byte(nil), value...)})

	full := parent + "/" + child
	for sub := range s.listSubs {
		if sub.path == full {
			observable.Offer(sub.ch, copyEntries(s.lists[parent][child]))
		}
	}

	for sub := range s.treeSubs {
		if sub.parent == parent {
			observable.Offer(sub.ch, s.childrenLocked(parent))
		}
	}

	return nil
}

func (s *MemoryStore) List(ctx context.Context, p string) ([]Entry, error) {
	parent, child, err := splitPath(p)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return copyEntries(s.lists[parent][child]), nil
}

func (s *MemoryStore) Children(ctx context.Context, parent string) (map[string][]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.childrenLocked(parent), nil
}

func (s *MemoryStore) childrenLocked(parent string) map[string][]Entry {
	out := make(map[string][]Entry, len(s.lists[parent]))
	for child, entries := range s.lists[parent] {
		out[child] = copyEntries(entries)
	}
	return out
}

func (s *MemoryStore) Subscribe(ctx context.Context, p string) (<-chan []Entry, error) {
	parent, child, err := splitPath(p)
	if err != nil {
		return nil, err
	}

	sub := &listSub{path: parent + "/" + child, ch: make(chan []Entry, 1)}

	s.mu.Lock()
	s.listSubs[sub] = struct{}{}
	sub.ch <- copyEntries(s.lists[parent][child])
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.listSubs, sub)
		close(sub.ch)
		s.mu.Unlock()
	}()

	return sub.ch, nil
}

func (s *MemoryStore) SubscribeChildren(ctx context.Context, parent string) (<-chan map[string][]Entry, error) {
	sub := &treeSub{parent: parent, ch: make(chan map[string][]Entry, 1)}

	s.mu.Lock()
	s.treeSubs[sub] = struct{}{}
	sub.ch <- s.childrenLocked(parent)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.treeSubs, sub)
		close(sub.ch)
		s.mu.Unlock()
	}()

	return sub.ch, nil
}
