package registry

// Network and transport layer protocols. ipv4.ver/ipv4.ihl mirror
// net_protos.c's fields exactly (same offsets/masks); the rest round out
// the set with the fields a realistic filter expression needs.

// Bases assume a bare, untagged Ethernet frame (network headers at 14);
// the transport base of 34 further assumes an option-free IPv4 header
// (14 + 20 bytes), the same fixed-offset assumption net_protos.c makes
// for ipv4.ver/ipv4.ihl.
func init() {
	Register(Proto{Name: "ipv4", Layer: LayerNetwork, Base: 14}, []Field{
		{Name: "ver", Offset: 0, Length: 1, Mask: 0x0f},
		{Name: "ihl", Offset: 0, Length: 1, Mask: 0xf0},
		{Name: "tos", Offset: 1, Length: 1},
		{Name: "len", Offset: 2, Length: 2},
		{Name: "ttl", Offset: 8, Length: 1},
		{Name: "proto", Offset: 9, Length: 1},
		{Name: "src", Offset: 12, Length: 4},
		{Name: "dst", Offset: 16, Length: 4},
	})

	Register(Proto{Name: "ip6", Layer: LayerNetwork, Base: 14}, []Field{
		{Name: "nexthdr", Offset: 6, Length: 1},
		{Name: "hoplimit", Offset: 7, Length: 1},
	})

	Register(Proto{Name: "tcp", Layer: LayerTransport, Base: 34}, []Field{
		{Name: "sport", Offset: 0, Length: 2},
		{Name: "dport", Offset: 2, Length: 2},
		{Name: "flags", Offset: 13, Length: 1},
	})

	Register(Proto{Name: "udp", Layer: LayerTransport, Base: 34}, []Field{
		{Name: "sport", Offset: 0, Length: 2},
		{Name: "dport", Offset: 2, Length: 2},
		{Name: "len", Offset: 4, Length: 2},
	})
}
