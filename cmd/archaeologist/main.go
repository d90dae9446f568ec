// archaeologist analyzes a legacy codebase and proposes a modernization plan.
//
// Usage:
//
//	archaeologist analyze [dir|repo-url] [--format text|json|yaml] [--diff] [--save]
//	archaeologist plans [--repo <source>]
//	archaeologist serve [--port :8081]
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
