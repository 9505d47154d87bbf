package account

import (
	"reflect"
	"testing"

	"github.com/klingon-exchange/klingvault/internal/chain"
)

func TestProject(t *testing.T) {
	m := substrateOnly(t)
	before := m.Clone()

	p := Project(m, []chain.Chain{polkadot, moonbeam, kusama})

	if !reflect.DeepEqual(p.Available, []string{"polkadot", "kusama"}) {
		t.Errorf("Available = %v", p.Available)
	}
	if !reflect.DeepEqual(p.Missing, []string{"moonbeam"}) {
		t.Errorf("Missing = %v", p.Missing)
	}
	if r := p.Resolutions["polkadot"]; !r.Available || r.Source != SourceSubstrate {
		t.Errorf("polkadot resolution = %+v", r)
	}

	if !reflect.DeepEqual(before.ChainAccounts(), m.ChainAccounts()) || before.Name() != m.Name() {
		t.Error("Project must not mutate the wallet")
	}
}

func TestDiffProjections(t *testing.T) {
	plain := substrateOnly(t)
	eth := withEthereum(t)

	prev := ProjectAll([]*MetaAccount{plain, eth}, []chain.Chain{polkadot, kusama})
	next := ProjectAll([]*MetaAccount{plain, eth}, []chain.Chain{polkadot, moonbeam})

	diffs := DiffProjections(prev, next)
	if len(diffs) != 2 {
		t.Fatalf("got %d diffs, want 2", len(diffs))
	}

	byID := map[string]ProjectionDiff{}
	for _, d := range diffs {
		byID[d.MetaID] = d
	}

	d := byID[plain.ID()]
	if !reflect.DeepEqual(d.NowMissing, []string{"moonbeam"}) || len(d.NowAvailable) != 0 {
		t.Errorf("plain diff = %+v", d)
	}
	if !reflect.DeepEqual(d.NoLongerKnown, []string{"kusama"}) {
		t.Errorf("plain NoLongerKnown = %v", d.NoLongerKnown)
	}

	d = byID[eth.ID()]
	if !reflect.DeepEqual(d.NowAvailable, []string{"moonbeam"}) || len(d.NowMissing) != 0 {
		t.Errorf("eth diff = %+v", d)
	}

	if got := DiffProjections(next, next); len(got) != 0 {
		t.Errorf("identical projections produced diffs: %+v", got)
	}
}
