// Inspect a table file page by page.
// Usage: go run ./cmd/quilldb-inspect <path-to-.ibd>
// Example: go run ./cmd/quilldb-inspect data/shop/users.ibd
package main

import (
	"fmt"
	"os"

	bplus "QuillDB/bplustree"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <table.ibd>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Example: %s data/shop/users.ibd\n", os.Args[0])
		os.Exit(1)
	}
	if err := bplus.DumpTableFile(os.Args[1], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
