package services

import (
	"sort"

	"github.com/floorops/loyalty_ledger/internal/core/domain"
)

// TierLevel is one row of the threshold table: the lowest lifetime point
// count that grants the tier.
type TierLevel struct {
	Tier      domain.Tier
	Threshold int64
}

// TierPolicy converts lifetime points to a tier and a progress percentage.
// It is deterministic and never mutates state; tier business policy beyond
// this lookup lives outside the ledger.
type TierPolicy struct {
	levels []TierLevel
}

// NewTierPolicy builds a policy from threshold rows. Rows are sorted by
// threshold ascending; equal thresholds resolve toward the later (higher)
// tier in the sorted order.
func NewTierPolicy(levels []TierLevel) *TierPolicy {
	sorted := make([]TierLevel, len(levels))
	copy(sorted, levels)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Threshold < sorted[j].Threshold
	})
	return &TierPolicy{levels: sorted}
}

// DefaultTierPolicy returns the stock threshold table. Deployments override
// it by injecting their own levels.
func DefaultTierPolicy() *TierPolicy {
	return NewTierPolicy([]TierLevel{
		{Tier: domain.TierBronze, Threshold: 0},
		{Tier: domain.TierSilver, Threshold: 1000},
		{Tier: domain.TierGold, Threshold: 5000},
		{Tier: domain.TierPlatinum, Threshold: 15000},
	})
}

// TierFor returns the tier whose threshold is the highest one not exceeding
// lifetimePoints, and the percentage of the way from that threshold to the
// next one, clamped to [0,100]. The top tier reports 100.
func (p *TierPolicy) TierFor(lifetimePoints int64) (domain.Tier, int) {
	idx := 0
	for i, lvl := range p.levels {
		if lifetimePoints >= lvl.Threshold {
			idx = i
		}
	}

	if idx == len(p.levels)-1 {
		return p.levels[idx].Tier, 100
	}

	cur := p.levels[idx].Threshold
	next := p.levels[idx+1].Threshold
	progress := int((lifetimePoints - cur) * 100 / (next - cur))
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	return p.levels[idx].Tier, progress
}
