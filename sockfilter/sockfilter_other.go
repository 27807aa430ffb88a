//go:build !linux

package sockfilter

import (
	"fmt"
	"runtime"

	"github.com/hpfc/hpfc/bpf"
)

// Attach is unavailable outside Linux: SO_ATTACH_FILTER and AF_PACKET
// raw sockets are a Linux-specific facility with no portable
// equivalent, so the CLI's -a flag fails cleanly here instead of the
// build failing outright.
func Attach(ifaceName string, prog []bpf.RawInstruction) (int, error) {
	return -1, fmt.Errorf("sockfilter: socket-filter attachment is not supported on %s", runtime.GOOS)
}
