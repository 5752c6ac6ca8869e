/*
Copyright (C) 2026 Netmaint Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package topology

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestGetInterfaceByID(t *testing.T) {
	svc := NewService(zerolog.Nop())
	intf := &Interface{ID: "00:00:00:00:00:00:00:01:1", Name: "eth1", SwitchID: "00:00:00:00:00:00:00:01", Port: 1}
	if err := svc.AddInterface(intf); err != nil {
		t.Fatalf("add interface: %v", err)
	}

	got, err := svc.GetInterfaceByID(context.Background(), intf.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Name != "eth1" {
		t.Fatalf("unexpected interface: %+v", got)
	}

	if _, err := svc.GetInterfaceByID(context.Background(), "missing"); !errors.Is(err, ErrInterfaceNotFound) {
		t.Fatalf("expected ErrInterfaceNotFound, got %v", err)
	}
}

func TestLoadInventory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inventory.yaml")
	contents := `interfaces:
  - id: "00:00:00:00:00:00:00:01:1"
    name: eth1
    switch: "00:00:00:00:00:00:00:01"
    port: 1
  - id: "00:00:00:00:00:00:00:02:2"
    name: eth2
    switch: "00:00:00:00:00:00:00:02"
    port: 2
  - name: orphan-without-id
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write inventory: %v", err)
	}

	svc := NewService(zerolog.Nop())
	if err := svc.LoadInventory(path); err != nil {
		t.Fatalf("load inventory: %v", err)
	}

	list := svc.ListInterfaces()
	if len(list) != 2 {
		t.Fatalf("expected 2 interfaces, got %d", len(list))
	}
	if list[0].ID != "00:00:00:00:00:00:00:01:1" {
		t.Fatalf("unexpected ordering: %v", list[0].ID)
	}
}

func TestTagFromDict(t *testing.T) {
	tests := []struct {
		name    string
		raw     map[string]any
		wantErr bool
		value   int
	}{
		{name: "json decoded numbers", raw: map[string]any{"tag_type": "vlan", "value": float64(100)}, value: 100},
		{name: "native ints", raw: map[string]any{"tag_type": "vlan", "value": 23}, value: 23},
		{name: "missing tag_type", raw: map[string]any{"value": 100}, wantErr: true},
		{name: "missing value", raw: map[string]any{"tag_type": "vlan"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag, err := TagFromDict(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tag.Value != tt.value {
				t.Fatalf("value = %d, want %d", tag.Value, tt.value)
			}
		})
	}
}

func TestLinkMetadataRoundTrip(t *testing.T) {
	a := &Interface{ID: "00:00:00:00:00:00:00:01:1"}
	b := &Interface{ID: "00:00:00:00:00:00:00:02:1"}
	link := &Link{EndpointA: a, EndpointB: b}

	link.ExtendMetadata(map[string]any{"bandwidth": "10G"})
	link.UpdateMetadata(MetadataVLANKey, &Tag{TagType: "vlan", Value: 200})

	dict := link.AsDict()
	md, ok := dict["metadata"].(map[string]any)
	if !ok {
		t.Fatal("expected metadata in dict")
	}
	vlan, ok := md[MetadataVLANKey].(map[string]any)
	if !ok {
		t.Fatalf("expected serialized tag, got %T", md[MetadataVLANKey])
	}
	if vlan["value"] != 200 {
		t.Fatalf("unexpected vlan value: %v", vlan["value"])
	}
	if md["bandwidth"] != "10G" {
		t.Fatalf("unexpected bandwidth: %v", md["bandwidth"])
	}
}
