package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sealbox-protocol/sealbox/internal/dhgroup"
)

func main() {
	bits := flag.Int("bits", dhgroup.DefaultBits, "Group size in bits (2048, 3072 or 4096 use well-known groups)")
	flag.Parse()

	params, err := dhgroup.Generate(*bits)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate group: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Prime (%d bits, hex): %s\n", params.Bits(), params.PrimeHex())
	fmt.Printf("Generator (hex):      %s\n", params.GeneratorHex())
}
