package sponsors

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxDepth bounds every upward walk of the sponsor graph. The graph is not
// assumed to be acyclic, so the budget is what guarantees termination.
const MaxDepth = 5

// cycleWalkLimit caps the cycle guard, which walks past MaxDepth so that
// loops longer than a commission chain are rejected too.
const cycleWalkLimit = 1024

// ChainLink is one ancestor of a buyer together with its 1-based distance.
type ChainLink struct {
	AffiliateID uuid.UUID `json:"affiliate_id"`
	Level       int       `json:"level"`
}

// SponsorLookup returns the sponsor of a user. It returns nil for users
// without a sponsor and gorm.ErrRecordNotFound for unknown users.
type SponsorLookup interface {
	FindSponsorID(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error)
}

// Resolver walks the sponsor relation upward.
type Resolver struct {
	lookup SponsorLookup
}

// NewResolver wires a resolver over the provided lookup.
func NewResolver(lookup SponsorLookup) (*Resolver, error) {
	if lookup == nil {
		return nil, fmt.Errorf("sponsor lookup required")
	}
	return &Resolver{lookup: lookup}, nil
}

// ResolveChain returns the buyer's ancestors, nearest first, at most MaxDepth
// long. A sponsor is only appended once its own row has been read, so a
// reference to a missing user ends the chain without an error.
func (r *Resolver) ResolveChain(ctx context.Context, buyerID uuid.UUID) ([]ChainLink, error) {
	chain := make([]ChainLink, 0, MaxDepth)
	next, err := r.lookup.FindSponsorID(ctx, buyerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chain, nil
		}
		return nil, fmt.Errorf("lookup sponsor of %s: %w", buyerID, err)
	}
	for level := 1; level <= MaxDepth; level++ {
		if next == nil || *next == uuid.Nil {
			break
		}
		current := *next
		next, err = r.lookup.FindSponsorID(ctx, current)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				break
			}
			return nil, fmt.Errorf("lookup sponsor of %s: %w", current, err)
		}
		chain = append(chain, ChainLink{AffiliateID: current, Level: level})
	}
	return chain, nil
}

// WouldCreateCycle reports whether making proposedSponsorID the sponsor of
// userID closes a loop: either the two ids are equal or userID already sits
// anywhere in the proposed sponsor's upward chain. The walk stops when it
// revisits an id, so an existing loop above the proposed sponsor ends it.
func (r *Resolver) WouldCreateCycle(ctx context.Context, userID, proposedSponsorID uuid.UUID) (bool, error) {
	if userID == proposedSponsorID {
		return true, nil
	}
	visited := map[uuid.UUID]struct{}{proposedSponsorID: {}}
	current := proposedSponsorID
	for step := 0; step < cycleWalkLimit; step++ {
		sponsorID, err := r.lookup.FindSponsorID(ctx, current)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, nil
			}
			return false, fmt.Errorf("lookup sponsor of %s: %w", current, err)
		}
		if sponsorID == nil || *sponsorID == uuid.Nil {
			return false, nil
		}
		if *sponsorID == userID {
			return true, nil
		}
		if _, seen := visited[*sponsorID]; seen {
			return false, nil
		}
		visited[*sponsorID] = struct{}{}
		current = *sponsorID
	}
	return false, nil
}
