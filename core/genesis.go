package core

import (
	"fmt"

	"github.com/holiman/uint256"

	"gigchain/core/genesis"
	"gigchain/core/types"
	"gigchain/native/bank"
	"gigchain/native/escrow"
	"gigchain/native/reputation"
)

var genesisMarkerKey = []byte("node/genesis")

type genesisMarker struct {
	NetworkName string
	Time        uint64
}

// initGenesis applies spec once. Later starts only check the network name.
func (n *Node) initGenesis(spec *genesis.GenesisSpec) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	var marker genesisMarker
	ok, err := n.state.KVGet(genesisMarkerKey, &marker)
	if err != nil {
		return fmt.Errorf("core: read genesis marker: %w", err)
	}
	if ok {
		if spec != nil && spec.NetworkName != "" && spec.NetworkName != marker.NetworkName {
			return fmt.Errorf("core: store belongs to network %q, genesis is %q", marker.NetworkName, spec.NetworkName)
		}
		return nil
	}

	if spec == nil {
		spec = &genesis.GenesisSpec{}
	}
	target := genesisTarget{node: n}
	if err := genesis.Apply(spec, target); err != nil {
		n.state.Discard()
		n.buffer.drain()
		return fmt.Errorf("core: apply genesis: %w", err)
	}
	// genesis writes are state, not events
	n.buffer.drain()

	at := spec.GenesisTimestamp().Unix()
	if spec.GenesisTimestamp().IsZero() || at < 0 {
		at = n.nowFn().Unix()
	}
	marker = genesisMarker{NetworkName: spec.NetworkName, Time: uint64(at)}
	if err := n.state.KVPut(genesisMarkerKey, &marker); err != nil {
		n.state.Discard()
		return err
	}
	if err := n.state.Commit(); err != nil {
		n.state.Discard()
		return fmt.Errorf("core: commit genesis: %w", err)
	}
	n.logger.Info("genesis applied",
		"network", spec.NetworkName,
		"balances", len(spec.Balances()),
		"jurors", len(spec.JurorAddresses()))
	return nil
}

// genesisTarget applies genesis writes through the engines.
type genesisTarget struct {
	node *Node
}

func (g genesisTarget) GrantModuleRoles() error {
	escrowAddr := bank.ModuleAddress(escrow.ModuleName)
	if err := g.node.state.SetRole(reputation.RoleMinter, escrowAddr.Bytes()); err != nil {
		return err
	}
	return g.node.state.SetRole(reputation.RoleBurner, escrowAddr.Bytes())
}

func (g genesisTarget) CreditBalance(addr types.Address, amount *uint256.Int) error {
	return g.node.bank.Credit(addr, amount)
}

func (g genesisTarget) MintReputation(addr types.Address, amount *uint256.Int) error {
	return g.node.reputation.Authority(bank.ModuleAddress(escrow.ModuleName)).Mint(addr, amount)
}

func (g genesisTarget) RegisterJuror(addr types.Address) error {
	_, err := g.node.dispute.RegisterAsJuror(addr)
	return err
}
