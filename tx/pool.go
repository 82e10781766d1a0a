package tx

import (
	"fmt"
	"sort"
	"sync"
)

// Pool is the selectable set of wallet outputs. Outputs taken by a draft are
// reserved until the draft is either spent or released, so no two drafts can
// be built over the same outpoint.
type Pool struct {
	mu       sync.Mutex
	utxos    map[Outpoint]*UTXO
	reserved map[Outpoint]uint64
	nextID   uint64
}

// Reservation is a set of outpoints held by one draft.
type Reservation struct {
	id        uint64
	outpoints []Outpoint
}

// Outpoints returns the reserved outpoints.
func (r *Reservation) Outpoints() []Outpoint {
	return append([]Outpoint(nil), r.outpoints...)
}

// NewPool creates a pool tracking utxos.
func NewPool(utxos ...*UTXO) *Pool {
	p := &Pool{
		utxos:    make(map[Outpoint]*UTXO),
		reserved: make(map[Outpoint]uint64),
	}
	p.Add(utxos...)
	return p
}

// Add tracks utxos. Outpoints already tracked are left as they are.
func (p *Pool) Add(utxos ...*UTXO) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range utxos {
		if u == nil {
			continue
		}
		op := u.Outpoint()
		if _, ok := p.utxos[op]; !ok {
			p.utxos[op] = u
		}
	}
}

// Available returns the unreserved outputs ordered by outpoint.
func (p *Pool) Available() []*UTXO {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*UTXO, 0, len(p.utxos))
	for op, u := range p.utxos {
		if _, held := p.reserved[op]; !held {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Outpoint().less(out[j].Outpoint()) })
	return out
}

// Balance sums the unreserved outputs.
func (p *Pool) Balance() uint64 {
	return TotalValue(p.Available())
}

// Len returns the number of tracked outputs, reserved ones included.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.utxos)
}

// Reserve holds every outpoint of utxos for one draft, or none of them.
func (p *Pool) Reserve(utxos []*UTXO) (*Reservation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ops := make([]Outpoint, 0, len(utxos))
	seen := make(map[Outpoint]struct{}, len(utxos))
	for _, u := range utxos {
		if u == nil {
			return nil, fmt.Errorf("%w: utxo", ErrNilParam)
		}
		op := u.Outpoint()
		if _, dup := seen[op]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateInput, op)
		}
		seen[op] = struct{}{}
		if _, ok := p.utxos[op]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUTXONotFound, op)
		}
		if _, held := p.reserved[op]; held {
			return nil, fmt.Errorf("%w: %s", ErrUTXOReserved, op)
		}
		ops = append(ops, op)
	}

	p.nextID++
	r := &Reservation{id: p.nextID, outpoints: ops}
	for _, op := range ops {
		p.reserved[op] = r.id
	}
	return r, nil
}

// Release returns the outpoints of r to the selectable set.
func (p *Pool) Release(r *Reservation) {
	if r == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, op := range r.outpoints {
		if p.reserved[op] == r.id {
			delete(p.reserved, op)
		}
	}
}

// MarkSpent drops the outpoints of r from the pool.
func (p *Pool) MarkSpent(r *Reservation) {
	if r == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, op := range r.outpoints {
		if p.reserved[op] == r.id {
			delete(p.reserved, op)
			delete(p.utxos, op)
		}
	}
}
