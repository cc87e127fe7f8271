// Package recipients turns preferences or explicit address lists into
// concrete (channel, address) destinations.
package recipients

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"leanpulse/internal/types"
)

// PreferenceStore lists preference records whose category toggle is on.
type PreferenceStore interface {
	ListByCategory(ctx context.Context, c types.Category) ([]*types.NotificationPreference, error)
}

// Resolver resolves destinations for categories.
type Resolver struct {
	prefs PreferenceStore
}

func NewResolver(prefs PreferenceStore) *Resolver {
	return &Resolver{prefs: prefs}
}

// OptedIn returns the preference records of every user opted in to c,
// ordered by user id.
func (r *Resolver) OptedIn(ctx context.Context, c types.Category) ([]*types.NotificationPreference, error) {
	if !c.Valid() {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidCategory,
			fmt.Sprintf("unknown notification category %q", c), nil)
	}

	prefs, err := r.prefs.ListByCategory(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("OptedIn: %w", err)
	}

	// The store orders by user_id; sort again so the guarantee does not
	// depend on the query.
	sort.SliceStable(prefs, func(i, j int) bool { return prefs[i].UserID < prefs[j].UserID })

	out := make([]*types.NotificationPreference, 0, len(prefs))
	for _, p := range prefs {
		if p.CategoryEnabled(c) {
			out = append(out, p)
		}
	}
	return out, nil
}

// ResolveForCategory returns one destination per enabled channel with an
// address for every user opted in to c, ordered by user id then channel.
func (r *Resolver) ResolveForCategory(ctx context.Context, c types.Category) ([]types.Destination, error) {
	prefs, err := r.OptedIn(ctx, c)
	if err != nil {
		return nil, err
	}
	var out []types.Destination
	for _, p := range prefs {
		out = append(out, p.Destinations()...)
	}
	return out, nil
}

// Explicit builds destinations from a caller-supplied address list. Blank
// entries are dropped; duplicates keep their first position.
func Explicit(addresses []string, channel types.ChannelType) []types.Destination {
	seen := make(map[string]struct{}, len(addresses))
	out := make([]types.Destination, 0, len(addresses))
	for _, a := range addresses {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, types.Destination{Channel: channel, Recipient: types.Recipient{Address: a}})
	}
	return out
}

// ChannelGroup is the recipient list for one channel.
type ChannelGroup struct {
	Channel    types.ChannelType
	Recipients []types.Recipient
}

// GroupByChannel partitions destinations by channel in types.ChannelOrder,
// preserving order within a channel and dropping repeated (channel, address)
// pairs. Channels without recipients are omitted.
func GroupByChannel(dests []types.Destination) []ChannelGroup {
	byChannel := make(map[types.ChannelType][]types.Recipient)
	seen := make(map[string]struct{}, len(dests))
	for _, d := range dests {
		if _, dup := seen[d.Key()]; dup {
			continue
		}
		seen[d.Key()] = struct{}{}
		byChannel[d.Channel] = append(byChannel[d.Channel], d.Recipient)
	}

	var out []ChannelGroup
	for _, ch := range types.ChannelOrder {
		if rs := byChannel[ch]; len(rs) > 0 {
			out = append(out, ChannelGroup{Channel: ch, Recipients: rs})
		}
	}
	return out
}

// Recipients flattens destinations to their recipients, dropping the channel.
func Recipients(dests []types.Destination) []types.Recipient {
	out := make([]types.Recipient, len(dests))
	for i, d := range dests {
		out[i] = d.Recipient
	}
	return out
}

// Merge appends extra to base, skipping any (channel, address) pair already
// present in base.
func Merge(base, extra []types.Destination) []types.Destination {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]types.Destination, 0, len(base)+len(extra))
	for _, d := range base {
		seen[d.Key()] = struct{}{}
		out = append(out, d)
	}
	for _, d := range extra {
		if _, dup := seen[d.Key()]; dup {
			continue
		}
		seen[d.Key()] = struct{}{}
		out = append(out, d)
	}
	return out
}
