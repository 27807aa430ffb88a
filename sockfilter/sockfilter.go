//go:build linux

// Package sockfilter attaches a compiled cBPF program to a raw packet
// socket via SO_ATTACH_FILTER, the kernel-facing half of "suitable for
// kernel socket-filter attachment" that the core compiler packages
// never touch directly. It is Linux-only and used only by the CLI's
// opt-in -a flag.
package sockfilter

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/hpfc/hpfc/bpf"
)

// toSockFilter converts the compiler's program representation to the
// identical-layout unix.SockFilter the kernel ABI expects, field for
// field, with no reinterpretation of any value.
func toSockFilter(prog []bpf.RawInstruction) []unix.SockFilter {
	out := make([]unix.SockFilter, len(prog))
	for i, ins := range prog {
		out[i] = unix.SockFilter{Code: ins.Op, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	return out
}

// htons converts a host-order 16-bit value to network byte order, the
// form AF_PACKET socket protocol numbers and SockaddrLinklayer.Protocol
// are specified in.
func htons(h uint16) uint16 {
	return (h << 8) | (h >> 8)
}

// Attach opens an AF_PACKET/SOCK_RAW socket bound to ifaceName, attaches
// prog to it via SO_ATTACH_FILTER, and returns the socket's file
// descriptor. The caller owns the returned fd and must close it.
func Attach(ifaceName string, prog []bpf.RawInstruction) (int, error) {
	if len(prog) == 0 {
		return -1, fmt.Errorf("sockfilter: cannot attach an empty program")
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return -1, fmt.Errorf("sockfilter: socket: %w", err)
	}

	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("sockfilter: unknown interface %q: %w", ifaceName, err)
	}

	addr := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  iface.Index,
	}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("sockfilter: bind to %s: %w", ifaceName, err)
	}

	fprog := &unix.SockFprog{
		Len:    uint16(len(prog)),
		Filter: &toSockFilter(prog)[0],
	}
	if err := unix.SetsockoptSockFprog(fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, fprog); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("sockfilter: SO_ATTACH_FILTER: %w", err)
	}

	return fd, nil
}
