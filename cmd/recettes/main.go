// Command recettes serves and inspects the recipe recommendation engine.
package main

import (
	"os"

	"github.com/cognicore/recettes/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logging.Error().Err(err).Msg("recettes failed")
		os.Exit(1)
	}
}
