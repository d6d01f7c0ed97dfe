package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fsckCmd = &cobra.Command{
	Use:   "fsck",
	Short: "Verify the integrity of locally stored objects (not yet implemented)",
	Long: `fsck would walk every stored object and recompute its digest, but
ObjectStore deliberately exposes no enumeration method — only lookup by a
caller-known (type, digest) pair, since the pull engine never needs to list
what it already has. A real integrity checker needs a backend-specific
full-scan (e.g. a BadgerDB key-prefix iterator or a Postgres table scan)
that bypasses the ObjectStore abstraction, which this command does not yet
do.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return fmt.Errorf("fsck is not implemented: ObjectStore has no enumeration surface to walk")
	},
}
