// Command skyapi resolves the API modules of sky projects.
package main

import (
	"os"

	"github.com/albertocavalcante/skyapi/internal/cmd/skyapi"
)

func main() {
	os.Exit(skyapi.Run(os.Args[1:]))
}
