// Command hpfc compiles a packet-filter expression into classic BPF and,
// on request, disassembles or attaches the result to a live interface.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/hpfc/hpfc"
	"github.com/hpfc/hpfc/disasm"
	"github.com/hpfc/hpfc/sockfilter"
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: hpfc -e EXPR [options]

ex:
 $> hpfc -e 'ether.type == 0x800' -d
 $> hpfc -e 'ipv4.ihl >= 5' -O -a eth0

options:
`,
		)
		flag.PrintDefaults()
		os.Exit(1)
	}
}

var (
	flagExpr   = flag.String("e", "", "filter expression (required)")
	flagDump   = flag.Bool("d", false, "dump disassembly of the emitted program")
	flagNoOpt  = flag.Bool("O", false, "disable the constant-folding/dead-store optimizer")
	flagAttach = flag.String("a", "", "attach the compiled program to a raw socket bound to IFACE")
)

func main() {
	log.SetPrefix("hpfc: ")
	log.SetFlags(0)

	flag.Parse()

	if *flagExpr == "" {
		flag.Usage()
		os.Exit(1)
	}

	res, err := hpfc.Compile(*flagExpr, !*flagNoOpt)
	if err != nil {
		log.Fatalf("compile: %v", err)
	}
	for _, d := range res.Diagnostics {
		log.Printf("diagnostic: %v", d)
	}

	if *flagDump {
		for _, line := range disasm.Program(res.Program) {
			fmt.Println(line)
		}
	}

	if *flagAttach != "" {
		fd, err := sockfilter.Attach(*flagAttach, res.Program)
		if err != nil {
			log.Fatalf("attach: %v", err)
		}
		fmt.Printf("attached %d instructions to %s (fd=%d)\n", len(res.Program), *flagAttach, fd)
	}
}
