// Command pvfs-client is the userspace client core: a long-lived daemon
// bridging a kernel VFS character device to remote cluster servers
// (spec.md §6).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	os.Exit(newRootCmd().run())
}

type rootCmd struct {
	cmd   *cobra.Command
	flags cliFlags
	code  int
}

func newRootCmd() *rootCmd {
	r := &rootCmd{code: exitFatal}
	r.cmd = &cobra.Command{
		Use:           "pvfs-client",
		Short:         "Userspace client core bridging a kernel VFS device to cluster servers",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			r.code = run(&r.flags)
			return nil
		},
	}
	r.flags.register(r.cmd)
	return r
}

func (r *rootCmd) run() int {
	if err := r.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pvfs-client:", err)
		return exitFatal
	}
	return r.code
}
