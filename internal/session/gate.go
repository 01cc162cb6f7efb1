package session

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Gate serializes optimistic patches per column. Patches on disjoint columns
// run concurrently; a patch touching a column already held waits for the
// holder to release it.
type Gate struct {
	mu   sync.Mutex
	seq  uint64
	held map[uuid.UUID]*Ticket
}

func NewGate() *Gate {
	return &Gate{held: make(map[uuid.UUID]*Ticket)}
}

// Ticket is a held set of columns. Seq increases with every ticket handed out
// and tags the optimistic write made under it.
type Ticket struct {
	Seq     uint64
	gate    *Gate
	columns []uuid.UUID
	done    chan struct{}
	once    sync.Once
}

// Acquire blocks until none of columns is held, then holds all of them.
func (g *Gate) Acquire(ctx context.Context, columns ...uuid.UUID) (*Ticket, error) {
	for {
		g.mu.Lock()
		var holder *Ticket
		for _, c := range columns {
			if t, ok := g.held[c]; ok {
				holder = t
				break
			}
		}
		if holder == nil {
			g.seq++
			t := &Ticket{
				Seq:     g.seq,
				gate:    g,
				columns: slices.Clone(columns),
				done:    make(chan struct{}),
			}
			for _, c := range columns {
				g.held[c] = t
			}
			g.mu.Unlock()
			return t, nil
		}
		g.mu.Unlock()

		select {
		case <-holder.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Holds reports whether every column is covered by t.
func (t *Ticket) Holds(columns ...uuid.UUID) bool {
	for _, c := range columns {
		if !slices.Contains(t.columns, c) {
			return false
		}
	}
	return true
}

// Release frees the columns. It is safe to call more than once.
func (t *Ticket) Release() {
	t.once.Do(func() {
		t.gate.mu.Lock()
		for _, c := range t.columns {
			if t.gate.held[c] == t {
				delete(t.gate.held, c)
			}
		}
		t.gate.mu.Unlock()
		close(t.done)
	})
}
