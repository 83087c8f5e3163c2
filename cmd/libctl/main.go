// Command libctl is the operator tool for the library service: schema
// migrations, staff account bootstrap and bulk catalog imports.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bookshelf/pkg/config"
)

const ServiceName = "libctl"

// env connects lazily so --help works without a database.
type env struct {
	cfg *config.Config
}

func (e *env) connect() *config.Config {
	if e.cfg == nil {
		e.cfg = config.Load(ServiceName)
		e.cfg.SetMongo()
	}
	return e.cfg
}

func (e *env) close() {
	if e.cfg != nil {
		e.cfg.GracefulShutdown()
	}
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "libctl",
		Short:         "Operate the bookshelf library service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			e.close()
		},
	}

	root.AddCommand(
		newMigrateCmd(e),
		newCreateUserCmd(e),
		newImportBooksCmd(e),
	)
	return root
}

func main() {
	e := &env{}
	if err := newRootCmd(e).Execute(); err != nil {
		e.close()
		fmt.Fprintln(os.Stderr, "libctl:", err)
		os.Exit(1)
	}
}
