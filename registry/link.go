package registry

// Link-layer protocols, mirroring link_protos.c.

func init() {
	Register(Proto{Name: "ether", Layer: LayerLink, Base: 0}, []Field{
		{Name: "type", Offset: 12, Length: 2},
		{Name: "src", Offset: 6, Length: 6},
		{Name: "dst", Offset: 0, Length: 6},
	})

	Register(Proto{Name: "vlan", Layer: LayerLink, Base: 0}, []Field{
		{Name: "tci", Offset: 14, Length: 2},
		{Name: "type", Offset: 16, Length: 2},
	})

	// arp is assumed to follow a bare (untagged) Ethernet header.
	Register(Proto{Name: "arp", Layer: LayerLink, Base: 14}, []Field{
		{Name: "op", Offset: 6, Length: 2},
	})
}
