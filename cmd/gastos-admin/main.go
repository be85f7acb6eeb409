// Command gastos-admin manages the allow-list and password accounts, and
// runs one-off exports against the configured backend.
package main

import (
	"os"

	"gastos/internal/cli"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	if err := newRootCmd().Execute(); err != nil {
		logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
