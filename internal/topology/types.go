/*
Copyright (C) 2026 Netmaint Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package topology

import (
	"fmt"
)

// MetadataVLANKey is the link metadata key carrying a service VLAN tag.
const MetadataVLANKey = "s_vlan"

// Interface is a port on a switch, identified as "<dpid>:<port>".
type Interface struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	SwitchID string `json:"switch" yaml:"switch"`
	Port     int    `json:"port" yaml:"port"`
}

// AsDict returns the wire representation used in records and events.
func (i *Interface) AsDict() map[string]any {
	return map[string]any{
		"id":     i.ID,
		"name":   i.Name,
		"switch": i.SwitchID,
		"port":   i.Port,
	}
}

// Tag is a VLAN (or similar) tag binding.
type Tag struct {
	TagType string `json:"tag_type"`
	Value   int    `json:"value"`
}

// TagFromDict builds a Tag from its wire shape.
func TagFromDict(raw map[string]any) (*Tag, error) {
	tagType, _ := raw["tag_type"].(string)
	if tagType == "" {
		return nil, fmt.Errorf("tag missing tag_type")
	}
	value, ok := numberValue(raw["value"])
	if !ok {
		return nil, fmt.Errorf("tag missing value")
	}
	return &Tag{TagType: tagType, Value: value}, nil
}

// AsDict returns the wire representation of the tag.
func (t *Tag) AsDict() map[string]any {
	return map[string]any{
		"tag_type": t.TagType,
		"value":    t.Value,
	}
}

// UNI is a client-facing binding of an interface to a tag.
type UNI struct {
	Interface *Interface `json:"interface"`
	Tag       *Tag       `json:"tag"`
}

// AsDict returns the wire representation of the UNI.
func (u *UNI) AsDict() map[string]any {
	return map[string]any{
		"interface_id": u.Interface.ID,
		"tag":          u.Tag.AsDict(),
	}
}

// Link connects two interface endpoints, optionally tagged via metadata.
type Link struct {
	EndpointA *Interface
	EndpointB *Interface
	Metadata  map[string]any
}

// ExtendMetadata merges the supplied metadata into the link.
func (l *Link) ExtendMetadata(md map[string]any) {
	if l.Metadata == nil {
		l.Metadata = make(map[string]any, len(md))
	}
	for k, v := range md {
		l.Metadata[k] = v
	}
}

// GetMetadata returns the metadata value for key, if present.
func (l *Link) GetMetadata(key string) (any, bool) {
	v, ok := l.Metadata[key]
	return v, ok
}

// UpdateMetadata sets a single metadata key.
func (l *Link) UpdateMetadata(key string, value any) {
	if l.Metadata == nil {
		l.Metadata = make(map[string]any, 1)
	}
	l.Metadata[key] = value
}

// AsDict returns the wire representation of the link.
func (l *Link) AsDict() map[string]any {
	out := map[string]any{
		"endpoint_a": map[string]any{"id": l.EndpointA.ID},
		"endpoint_b": map[string]any{"id": l.EndpointB.ID},
	}
	if len(l.Metadata) > 0 {
		md := make(map[string]any, len(l.Metadata))
		for k, v := range l.Metadata {
			if tag, ok := v.(*Tag); ok {
				md[k] = tag.AsDict()
				continue
			}
			md[k] = v
		}
		out["metadata"] = md
	}
	return out
}

// numberValue coerces JSON and YAML numeric decodings to int.
func numberValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
