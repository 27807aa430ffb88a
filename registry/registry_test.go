package registry_test

import (
	"testing"

	"github.com/hpfc/hpfc/registry"
)

func TestLookupKnownFields(t *testing.T) {
	cases := []struct {
		name   string
		offset int
		length int
		mask   uint32
	}{
		{"ether.type", 12, 2, 0},
		{"ipv4.ver", 0, 1, 0x0f},
		{"ipv4.ihl", 0, 1, 0xf0},
		{"tcp.dport", 2, 2, 0},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f, ok := registry.Lookup(c.name)
			if !ok {
				t.Fatalf("Lookup(%q) missing", c.name)
			}
			if f.Offset != c.offset || f.Length != c.length || f.Mask != c.mask {
				t.Fatalf("Lookup(%q) = %+v, want offset=%d length=%d mask=%#x",
					c.name, f, c.offset, c.length, c.mask)
			}
		})
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, ok := registry.Lookup("nope.nope"); ok {
		t.Fatal("Lookup of unregistered field should fail")
	}
}

func TestLookupProto(t *testing.T) {
	p, ok := registry.LookupProto("ipv4")
	if !ok {
		t.Fatal("LookupProto(ipv4) missing")
	}
	if p.Layer != registry.LayerNetwork {
		t.Fatalf("ipv4 layer = %v, want %v", p.Layer, registry.LayerNetwork)
	}
}
