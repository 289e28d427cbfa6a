// medcase renders simulator exports from case bundle files without a server.
//
// Usage:
//
//	medcase export   -f case.yaml -o ./out [--tier 1] [--strict]
//	medcase validate -f case.json [--tier 1] [--strict]
//	medcase debug    -f case.json [--tier 2]
//	medcase summary  -f case.json
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
