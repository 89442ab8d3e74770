// simplechat is a retrieval-augmented chat service: an HTTP API with
// streaming chat, a pgvector knowledge base, and a document ingestion
// pipeline. All logic lives in the cmd package.
package main

import (
	"fmt"
	"os"

	"github.com/pokhrel-dev/simplechat-sub001/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
