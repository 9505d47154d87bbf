package account

import "github.com/klingon-exchange/klingvault/internal/chain"

// Resolution is the outcome of AccountFor on one chain.
type Resolution struct {
	ChainID   string
	Identity  Identity
	Source    Source
	Available bool
}

// Projection is the read-side view of which chains a wallet can use.
type Projection struct {
	MetaID      string
	Available   []string // chain ids, registry order
	Missing     []string
	Resolutions map[string]Resolution
}

// Project resolves m against every chain. It never mutates m.
func Project(m *MetaAccount, chains []chain.Chain) Projection {
	p := Projection{
		MetaID:      m.ID(),
		Resolutions: make(map[string]Resolution, len(chains)),
	}
	for _, c := range chains {
		id, src, ok := m.AccountFor(c)
		p.Resolutions[c.ID] = Resolution{ChainID: c.ID, Identity: id, Source: src, Available: ok}
		if ok {
			p.Available = append(p.Available, c.ID)
		} else {
			p.Missing = append(p.Missing, c.ID)
		}
	}
	return p
}

// ProjectAll projects every wallet.
func ProjectAll(metas []*MetaAccount, chains []chain.Chain) []Projection {
	out := make([]Projection, 0, len(metas))
	for _, m := range metas {
		out = append(out, Project(m, chains))
	}
	return out
}

// ProjectionDiff lists the chains whose availability changed for one wallet.
type ProjectionDiff struct {
	MetaID        string   `json:"meta_id"`
	NowAvailable  []string `json:"now_available,omitempty"`
	NowMissing    []string `json:"now_missing,omitempty"`
	NoLongerKnown []string `json:"no_longer_known,omitempty"`
}

// Empty returns true if nothing changed.
func (d ProjectionDiff) Empty() bool {
	return len(d.NowAvailable) == 0 && len(d.NowMissing) == 0 && len(d.NoLongerKnown) == 0
}

// DiffProjections compares two sets of projections by meta id. Wallets only
// present in next are reported against an empty previous projection;
// wallets only present in prev are ignored.
func DiffProjections(prev, next []Projection) []ProjectionDiff {
	before := make(map[string]Projection, len(prev))
	for _, p := range prev {
		before[p.MetaID] = p
	}

	var out []ProjectionDiff
	for _, n := range next {
		p := before[n.MetaID]
		d := ProjectionDiff{MetaID: n.MetaID}

		for _, id := range n.Available {
			if r, ok := p.Resolutions[id]; !ok || !r.Available {
				d.NowAvailable = append(d.NowAvailable, id)
			}
		}
		for _, id := range n.Missing {
			if r, ok := p.Resolutions[id]; !ok || r.Available {
				d.NowMissing = append(d.NowMissing, id)
			}
		}
		for _, id := range append(append([]string(nil), p.Available...), p.Missing...) {
			if _, ok := n.Resolutions[id]; !ok {
				d.NoLongerKnown = append(d.NoLongerKnown, id)
			}
		}

		if !d.Empty() {
			out = append(out, d)
		}
	}
	return out
}
