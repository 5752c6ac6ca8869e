/*
Copyright (C) 2026 Netmaint Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package maintenance

import (
	"github.com/netmaint/netmaint/internal/topology"
)

// Classified groups a window's items into disjoint resource
// categories, preserving each item's relative order. Switch entries
// are the items' wire forms: token strings, or the original value for
// opaque descriptors.
type Classified struct {
	Switches []any
	UNIs     []*topology.UNI
	Links    []*topology.Link
}

// Classify partitions items by variant. Every item lands in exactly
// one category; the function is pure.
func Classify(items []Item) Classified {
	var c Classified
	for _, item := range items {
		switch item.Kind {
		case ItemUNI:
			c.UNIs = append(c.UNIs, item.UNI)
		case ItemLink:
			c.Links = append(c.Links, item.Link)
		default:
			c.Switches = append(c.Switches, item.AsDict())
		}
	}
	return c
}
