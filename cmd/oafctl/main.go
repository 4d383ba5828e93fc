// Command oafctl queries the collections of an OGC API Features dataset.
package main

import (
	"os"

	"github.com/hugr-lab/oaf-go/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
