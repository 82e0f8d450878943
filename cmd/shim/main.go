// Command shim runs an HTTP gateway that exposes a stateful
// array-database client as a RESTful session-oriented service.
package main

import (
	"fmt"
	"os"

	"github.com/medo6/shim/cmd/shim/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "there was an error: %v\n", err)
		os.Exit(1)
	}
}
