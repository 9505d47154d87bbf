// Package chain defines the chain metadata consumed by the account model:
// identifier, display name, ethereum flag and address format.
// Built-in chains are registered per family in init(); an external chain
// list can replace the registry contents at runtime.
package chain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/klingon-exchange/klingvault/internal/address"
)

// ErrChainNotFound is returned for unknown chain ids.
var ErrChainNotFound = errors.New("chain not found")

// Chain contains the parameters of one network.
type Chain struct {
	ID              string         // opaque identifier (genesis hash, CAIP-2 id, ...)
	Name            string         // Polkadot, Moonbeam, etc.
	IsEthereumBased bool           // accounts are 20-byte ethereum ids
	Format          address.Format // address rendering
	Testnet         bool
}

// Validate checks that the chain parameters are consistent.
func (c *Chain) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("chain id is empty")
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("chain %s: name is empty", c.ID)
	}
	if err := c.Format.Validate(); err != nil {
		return fmt.Errorf("chain %s: %w", c.ID, err)
	}
	if c.IsEthereumBased && c.Format.Kind != address.KindEthereum {
		return fmt.Errorf("chain %s: ethereum-based chain must use the ethereum address format", c.ID)
	}
	if !c.IsEthereumBased && c.Format.Kind != address.KindSubstrate {
		return fmt.Errorf("chain %s: substrate chain must use the ss58 address format", c.ID)
	}
	return nil
}

// Change describes a mutation of the registry.
type Change struct {
	Added   []Chain
	Removed []Chain
	Updated []Chain
}

// Empty returns true if the change carries nothing.
func (c Change) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Updated) == 0
}

// Registry holds chains indexed by id, in registration order.
type Registry struct {
	mu     sync.RWMutex
	chains map[string]Chain
	order  []string

	subMu     sync.Mutex
	nextSubID int
	subs      map[int]func(Change)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		chains: make(map[string]Chain),
		subs:   make(map[int]func(Change)),
	}
}

var defaultRegistry = NewRegistry()

// Default returns the registry holding the built-in chains.
func Default() *Registry {
	return defaultRegistry
}

// Builtin returns a copy of the built-in chain list.
func Builtin() []Chain {
	return defaultRegistry.List()
}

// Register adds or updates a chain.
func (r *Registry) Register(c Chain) error {
	if err := c.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	prev, existed := r.chains[c.ID]
	r.chains[c.ID] = c
	if !existed {
		r.order = append(r.order, c.ID)
	}
	r.mu.Unlock()

	switch {
	case !existed:
		r.notify(Change{Added: []Chain{c}})
	case prev != c:
		r.notify(Change{Updated: []Chain{c}})
	}
	return nil
}

// Remove deletes a chain. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	c, ok := r.chains[id]
	if ok {
		delete(r.chains, id)
		r.order = removeID(r.order, id)
	}
	r.mu.Unlock()

	if ok {
		r.notify(Change{Removed: []Chain{c}})
	}
}

// Replace swaps the registry contents for the given list and returns the
// difference. Subscribers receive a single notification.
func (r *Registry) Replace(chains []Chain) (Change, error) {
	next := make(map[string]Chain, len(chains))
	order := make([]string, 0, len(chains))
	for _, c := range chains {
		if err := c.Validate(); err != nil {
			return Change{}, err
		}
		if _, dup := next[c.ID]; dup {
			return Change{}, fmt.Errorf("duplicate chain id %s", c.ID)
		}
		next[c.ID] = c
		order = append(order, c.ID)
	}

	var change Change
	r.mu.Lock()
	for _, id := range order {
		prev, ok := r.chains[id]
		switch {
		case !ok:
			change.Added = append(change.Added, next[id])
		case prev != next[id]:
			change.Updated = append(change.Updated, next[id])
		}
	}
	for _, id := range r.order {
		if _, ok := next[id]; !ok {
			change.Removed = append(change.Removed, r.chains[id])
		}
	}
	r.chains = next
	r.order = order
	r.mu.Unlock()

	if !change.Empty() {
		r.notify(change)
	}
	return change, nil
}

// Get returns a chain by id.
func (r *Registry) Get(id string) (Chain, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.chains[id]
	return c, ok
}

// Lookup returns a chain by id or an error wrapping ErrChainNotFound.
func (r *Registry) Lookup(id string) (Chain, error) {
	c, ok := r.Get(id)
	if !ok {
		return Chain{}, fmt.Errorf("%w: %s", ErrChainNotFound, id)
	}
	return c, nil
}

// List returns all chains in registration order.
func (r *Registry) List() []Chain {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Chain, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.chains[id])
	}
	return out
}

// ListByEthereumFlag returns the chains whose IsEthereumBased flag matches.
func (r *Registry) ListByEthereumFlag(ethereumBased bool) []Chain {
	var out []Chain
	for _, c := range r.List() {
		if c.IsEthereumBased == ethereumBased {
			out = append(out, c)
		}
	}
	return out
}

// Len returns the number of registered chains.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Subscribe registers a callback for registry changes. Callbacks run
// synchronously after the registry lock is released. The returned
// function removes the subscription.
func (r *Registry) Subscribe(fn func(Change)) func() {
	r.subMu.Lock()
	id := r.nextSubID
	r.nextSubID++
	r.subs[id] = fn
	r.subMu.Unlock()

	return func() {
		r.subMu.Lock()
		delete(r.subs, id)
		r.subMu.Unlock()
	}
}

func (r *Registry) notify(change Change) {
	r.subMu.Lock()
	ids := make([]int, 0, len(r.subs))
	for id := range r.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, r.subs[id])
	}
	r.subMu.Unlock()

	for _, fn := range fns {
		fn(change)
	}
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func mustRegister(c Chain) {
	if err := defaultRegistry.Register(c); err != nil {
		panic(err)
	}
}
