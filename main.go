package main

import (
	"log"

	"github.com/thiagokokada/revgraph/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		log.Fatalf("revgraph: %v", err)
	}
}
