package genesis

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"gigchain/core/types"
)

// GenesisSpec is the initial state document. It is YAML; JSON documents decode
// as well since YAML is a superset.
type GenesisSpec struct {
	GenesisTime string            `yaml:"genesisTime" json:"genesisTime"`
	NetworkName string            `yaml:"networkName" json:"networkName"`
	Alloc       map[string]string `yaml:"alloc" json:"alloc"`           // addr -> settlement amount
	Reputation  map[string]string `yaml:"reputation" json:"reputation"` // addr -> reputation
	Jurors      []string          `yaml:"jurors" json:"jurors"`

	genesisTimestamp time.Time
	balances         []Allocation
	reputation       []Allocation
	jurors           []types.Address
}

// Allocation is a validated address/amount pair.
type Allocation struct {
	Address types.Address
	Amount  *uint256.Int
}

// LoadGenesisSpec reads and validates the genesis document at path.
func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseGenesisSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseGenesisSpec decodes and validates a genesis document. Unknown fields are
// rejected.
func ParseGenesisSpec(raw []byte) (*GenesisSpec, error) {
	var spec GenesisSpec
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return &spec, nil
}

func (s *GenesisSpec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

// Balances returns the settlement allocations sorted by address.
func (s *GenesisSpec) Balances() []Allocation { return cloneAllocations(s.balances) }

// ReputationAllocations returns the initial reputation sorted by address.
func (s *GenesisSpec) ReputationAllocations() []Allocation { return cloneAllocations(s.reputation) }

// JurorAddresses returns the initial juror registry in document order.
func (s *GenesisSpec) JurorAddresses() []types.Address {
	return append([]types.Address(nil), s.jurors...)
}

func (s *GenesisSpec) validate() error {
	if strings.TrimSpace(s.GenesisTime) != "" {
		parsed, err := parseGenesisTime(s.GenesisTime)
		if err != nil {
			return err
		}
		s.genesisTimestamp = parsed
	}
	if strings.TrimSpace(s.NetworkName) == "" {
		return fmt.Errorf("networkName must be provided")
	}
	balances, err := parseAllocations("alloc", s.Alloc)
	if err != nil {
		return err
	}
	reputation, err := parseAllocations("reputation", s.Reputation)
	if err != nil {
		return err
	}
	seen := make(map[types.Address]struct{}, len(s.Jurors))
	jurors := make([]types.Address, 0, len(s.Jurors))
	for _, raw := range s.Jurors {
		addr, err := types.ParseAddress(raw)
		if err != nil {
			return fmt.Errorf("jurors: %w", err)
		}
		if addr.IsZero() {
			return fmt.Errorf("jurors: null identity")
		}
		if _, dup := seen[addr]; dup {
			return fmt.Errorf("jurors: duplicate %s", addr.Hex())
		}
		seen[addr] = struct{}{}
		jurors = append(jurors, addr)
	}
	s.balances = balances
	s.reputation = reputation
	s.jurors = jurors
	return nil
}

func parseAllocations(field string, raw map[string]string) ([]Allocation, error) {
	out := make([]Allocation, 0, len(raw))
	seen := make(map[types.Address]struct{}, len(raw))
	for addrStr, amountStr := range raw {
		addr, err := types.ParseAddress(addrStr)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		if addr.IsZero() {
			return nil, fmt.Errorf("%s: null identity", field)
		}
		if _, dup := seen[addr]; dup {
			return nil, fmt.Errorf("%s: duplicate %s", field, addr.Hex())
		}
		seen[addr] = struct{}{}
		amount, err := types.ParseAmount(amountStr)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", field, addr.Hex(), err)
		}
		out = append(out, Allocation{Address: addr, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Address[:], out[j].Address[:]) < 0
	})
	return out, nil
}

func cloneAllocations(in []Allocation) []Allocation {
	out := make([]Allocation, len(in))
	for i, a := range in {
		out[i] = Allocation{Address: a.Address, Amount: types.CloneAmount(a.Amount)}
	}
	return out
}

func parseGenesisTime(value string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("invalid genesisTime %q", value)
}
