/*
Copyright (C) 2026 Netmaint Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package maintenance

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/netmaint/netmaint/internal/telemetry"
	"github.com/netmaint/netmaint/internal/topology"
)

// ItemKind discriminates the item variant.
type ItemKind string

const (
	ItemSwitch ItemKind = "switch"
	ItemUNI    ItemKind = "uni"
	ItemLink   ItemKind = "link"
)

// Item is one maintenance target: an opaque switch token, a resolved
// UNI, or a resolved link. Exactly one variant field is populated,
// matching Kind. Raw holds the original descriptor for opaque items
// that were not plain strings, so they serialize back unchanged.
type Item struct {
	Kind   ItemKind
	Switch string
	Raw    any
	UNI    *topology.UNI
	Link   *topology.Link
}

// AsDict returns the wire representation: switch tokens and opaque
// descriptors pass through unchanged, resolved objects serialize via
// their own dict form.
func (it Item) AsDict() any {
	switch it.Kind {
	case ItemUNI:
		return it.UNI.AsDict()
	case ItemLink:
		return it.Link.AsDict()
	default:
		if it.Raw != nil {
			return it.Raw
		}
		return it.Switch
	}
}

// itemDecoder interprets raw heterogeneous descriptors against the
// topology resolver. Items whose referenced interfaces cannot be
// resolved are dropped and reported; descriptors matching neither the
// UNI nor the link shape pass through as opaque switch tokens.
type itemDecoder struct {
	resolver topology.Resolver
	logger   zerolog.Logger
}

// decodeAll interprets a raw item list, dropping unresolvable entries.
func (d itemDecoder) decodeAll(ctx context.Context, raws []any) []Item {
	items := make([]Item, 0, len(raws))
	for _, raw := range raws {
		item, ok := d.decode(ctx, raw)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items
}

// decode interprets one descriptor. Shape checks run in priority
// order: UNI (has interface_id), link (has both endpoints), opaque
// token. The second return is false when the item must be dropped.
func (d itemDecoder) decode(ctx context.Context, raw any) (Item, bool) {
	switch v := raw.(type) {
	case string:
		return Item{Kind: ItemSwitch, Switch: v}, true
	case map[string]any:
		if _, ok := v["interface_id"]; ok {
			return d.decodeUNI(ctx, v)
		}
		_, hasA := v["endpoint_a"]
		_, hasB := v["endpoint_b"]
		if hasA && hasB {
			return d.decodeLink(ctx, v)
		}
		return opaqueItem(v), true
	default:
		return opaqueItem(v), true
	}
}

func (d itemDecoder) decodeUNI(ctx context.Context, raw map[string]any) (Item, bool) {
	intfID, ok := raw["interface_id"].(string)
	if !ok || intfID == "" {
		return opaqueItem(raw), true
	}
	tagDict, ok := raw["tag"].(map[string]any)
	if !ok {
		return opaqueItem(raw), true
	}
	tag, err := topology.TagFromDict(tagDict)
	if err != nil {
		return opaqueItem(raw), true
	}

	intf, err := d.resolver.GetInterfaceByID(ctx, intfID)
	if err != nil {
		d.logger.Warn().Err(err).Str("interface_id", intfID).Msg("dropping UNI item, interface unresolved")
		telemetry.ResolutionFailuresTotal.WithLabelValues(string(ItemUNI)).Inc()
		return Item{}, false
	}

	return Item{Kind: ItemUNI, UNI: &topology.UNI{Interface: intf, Tag: tag}}, true
}

func (d itemDecoder) decodeLink(ctx context.Context, raw map[string]any) (Item, bool) {
	idA, okA := endpointID(raw["endpoint_a"])
	idB, okB := endpointID(raw["endpoint_b"])
	if !okA || !okB {
		return opaqueItem(raw), true
	}

	endpointA, err := d.resolver.GetInterfaceByID(ctx, idA)
	if err != nil {
		d.logger.Warn().Err(err).Str("endpoint", idA).Msg("dropping link item, endpoint unresolved")
		telemetry.ResolutionFailuresTotal.WithLabelValues(string(ItemLink)).Inc()
		return Item{}, false
	}
	endpointB, err := d.resolver.GetInterfaceByID(ctx, idB)
	if err != nil {
		d.logger.Warn().Err(err).Str("endpoint", idB).Msg("dropping link item, endpoint unresolved")
		telemetry.ResolutionFailuresTotal.WithLabelValues(string(ItemLink)).Inc()
		return Item{}, false
	}

	link := &topology.Link{EndpointA: endpointA, EndpointB: endpointB}
	if md, ok := raw["metadata"].(map[string]any); ok {
		link.ExtendMetadata(md)
	}
	if vlan, ok := link.GetMetadata(topology.MetadataVLANKey); ok {
		if vlanDict, ok := vlan.(map[string]any); ok {
			if tag, err := topology.TagFromDict(vlanDict); err == nil {
				link.UpdateMetadata(topology.MetadataVLANKey, tag)
			}
		}
	}

	return Item{Kind: ItemLink, Link: link}, true
}

// endpointID pulls the id out of an {"id": ...} endpoint descriptor.
func endpointID(raw any) (string, bool) {
	dict, ok := raw.(map[string]any)
	if !ok {
		return "", false
	}
	id, ok := dict["id"].(string)
	return id, ok && id != ""
}

// opaqueItem turns a descriptor that matched no known shape into a
// pass-through switch token, so one malformed entry never loses the
// whole window. Non-string descriptors keep their original value.
func opaqueItem(raw any) Item {
	if s, ok := raw.(string); ok {
		return Item{Kind: ItemSwitch, Switch: s}
	}
	return Item{Kind: ItemSwitch, Raw: raw}
}
