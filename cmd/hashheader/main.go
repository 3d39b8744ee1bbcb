package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/yourusername/btcverifier/internal/crypto"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: hashheader [header_hex ...]")
		fmt.Fprintln(os.Stderr, "\nPrints the double SHA-256 of each hex argument, or of each line on stdin.")
	}
	flag.Parse()

	inputs := flag.Args()
	if len(inputs) == 0 {
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			inputs = append(inputs, strings.TrimSpace(scanner.Text()))
		}
		if err := scanner.Err(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to read stdin: %v\n", err)
			os.Exit(1)
		}
	}

	failed := false
	for _, input := range inputs {
		digest, err := crypto.HashHeader(input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%q: %v\n", input, err)
			failed = true
			continue
		}
		fmt.Println(digest)
	}

	if failed {
		os.Exit(1)
	}
}
