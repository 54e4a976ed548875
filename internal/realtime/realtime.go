// Package realtime stores append-only lists addressed by slash separated
// paths and streams full snapshots of them to subscribers.
//
// Paths have two levels, "parent/child". A subscription to a child path
// receives the whole list after every append to it; a subscription to a
// parent receives every child list under that parent.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/teris-io/shortid"
)

type Entry struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

type Store interface {
	Append(ctx context.Context, path, key string, value []byte) error
	List(ctx context.Context, path string) ([]Entry, error)
	Children(ctx context.Context, parent string) (map[string][]Entry, error)
	// Subscribe delivers the current list and then the full list after
	// every change, until ctx is done. Slow readers only see the latest list.
	Subscribe(ctx context.Context, path string) (<-chan []Entry, error)
	// SubscribeChildren is Subscribe for every child list under parent.
	SubscribeChildren(ctx context.Context, parent string) (<-chan map[string][]Entry, error)
}

var keyGen = shortid.MustNew(1, shortid.DefaultABC, 2342)

// GenerateKey returns a new unique key for an appended entry.
func GenerateKey() (string, error) {
	return keyGen.Generate()
}

func splitPath(p string) (parent, child string, err error) {
	p = strings.Trim(p, "/")
	parent, child = path.Split(p)
	parent = strings.TrimSuffix(parent, "/")
	if parent == "" || child == "" || strings.Contains(parent, "/") {
		return "", "", fmt.Errorf("invalid path %q: want parent/child", p)
	}

	return parent, child, nil
}

func copyEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}
