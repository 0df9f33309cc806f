package farm

import "farmfleet.dev/internal/protocol"

// SeedOption is one purchasable seed, derived from the shop listing.
type SeedOption struct {
	GoodsID  int64
	SeedID   int64
	Price    int64
	MinLevel int64
}

// SeedOptions filters a shop listing down to seeds the account can buy now.
func SeedOptions(goods []protocol.Goods) []SeedOption {
	opts := make([]SeedOption, 0, len(goods))
	for _, g := range goods {
		if !g.Unlocked || g.Price <= 0 {
			continue
		}
		if g.LimitCount > 0 && g.BoughtNum >= g.LimitCount {
			continue
		}
		opt := SeedOption{GoodsID: g.ID, SeedID: g.ItemID, Price: g.Price}
		for _, c := range g.Conds {
			if c.Type == protocol.CondLevel {
				opt.MinLevel = c.Param
			}
		}
		opts = append(opts, opt)
	}
	return opts
}

// Strategy picks which seed to replant with. Implementations must be pure:
// same options in, same choice out.
type Strategy interface {
	Name() string
	Select(opts []SeedOption) (SeedOption, bool)
}

type lowestCost struct{}

func (lowestCost) Name() string { return "lowest-cost" }

func (lowestCost) Select(opts []SeedOption) (SeedOption, bool) {
	var best SeedOption
	found := false
	for _, o := range opts {
		if !found || o.Price < best.Price {
			best = o
			found = true
		}
	}
	return best, found
}

type highestLevel struct{}

func (highestLevel) Name() string { return "highest-level" }

func (highestLevel) Select(opts []SeedOption) (SeedOption, bool) {
	var best SeedOption
	found := false
	for _, o := range opts {
		if !found || o.MinLevel > best.MinLevel {
			best = o
			found = true
		}
	}
	return best, found
}

type lowestLevel struct{}

func (lowestLevel) Name() string { return "lowest-level" }

func (lowestLevel) Select(opts []SeedOption) (SeedOption, bool) {
	var best SeedOption
	found := false
	for _, o := range opts {
		if !found || o.MinLevel < best.MinLevel {
			best = o
			found = true
		}
	}
	return best, found
}

// preferred plants one specific seed and falls back to the cheapest when
// the shop no longer offers it.
type preferred struct {
	seedID int64
}

func (preferred) Name() string { return "preferred" }

func (p preferred) Select(opts []SeedOption) (SeedOption, bool) {
	for _, o := range opts {
		if o.SeedID == p.seedID {
			return o, true
		}
	}
	return lowestCost{}.Select(opts)
}

// StrategyByName resolves a config string. Unknown names fall back to
// lowest-cost, the safe default for low-level accounts.
func StrategyByName(name string, preferredSeed int64) Strategy {
	switch name {
	case "preferred":
		return preferred{seedID: preferredSeed}
	case "highest-level":
		return highestLevel{}
	case "lowest-level":
		return lowestLevel{}
	default:
		return lowestCost{}
	}
}
