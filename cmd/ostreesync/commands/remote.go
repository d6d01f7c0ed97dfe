package commands

import (
	"fmt"
	"os"
	"sort"

	"github.com/manifoldco/promptui"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/marmos91/ostreesync/pkg/repoconfig"
)

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Manage the repository's configured remotes",
}

var (
	remoteAddGPGVerify     bool
	remoteAddNoGPGVerify   bool
	remoteAddTLSPermissive bool
	remoteAddBranches      []string
	remoteAddYes           bool
)

var remoteAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Add a remote section to the configuration file",
	Long: `Add writes a new remote "<name>" section to the configuration file.
Branches default to ["stable"] when --branch is omitted.

A remote configured with --tls-permissive or --no-gpg-verify weakens the
guarantees a pull normally gets from the remote: a tls-permissive remote
accepts whatever certificate the server presents, and gpg-verify=false
skips signature checking on fetched commits entirely. Both require an
interactive confirmation unless --yes is given.`,
	Args: cobra.ExactArgs(2),
	RunE: runRemoteAdd,
}

var remoteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the repository's configured remotes",
	Args:  cobra.NoArgs,
	RunE:  runRemoteList,
}

var remoteShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a single remote's configuration",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemoteShow,
}

func init() {
	remoteAddCmd.Flags().BoolVar(&remoteAddGPGVerify, "gpg-verify", true, "require GPG signature verification on fetched commits")
	remoteAddCmd.Flags().BoolVar(&remoteAddNoGPGVerify, "no-gpg-verify", false, "skip GPG signature verification (unsafe)")
	remoteAddCmd.Flags().BoolVar(&remoteAddTLSPermissive, "tls-permissive", false, "accept any TLS certificate the remote presents (unsafe)")
	remoteAddCmd.Flags().StringSliceVar(&remoteAddBranches, "branch", nil, "branch to track (repeatable; defaults to \"stable\")")
	remoteAddCmd.Flags().BoolVarP(&remoteAddYes, "yes", "y", false, "skip the interactive confirmation for unsafe settings")

	remoteCmd.AddCommand(remoteAddCmd)
	remoteCmd.AddCommand(remoteListCmd)
	remoteCmd.AddCommand(remoteShowCmd)
}

func runRemoteAdd(cmd *cobra.Command, args []string) error {
	name, url := args[0], args[1]

	unsafe := remoteAddTLSPermissive || remoteAddNoGPGVerify
	if unsafe && !remoteAddYes {
		confirmed, err := confirmUnsafeRemote(name, remoteAddTLSPermissive, remoteAddNoGPGVerify)
		if err != nil {
			return err
		}
		if !confirmed {
			return fmt.Errorf("aborted: remote %q was not added", name)
		}
	}

	path := GetConfigFile()
	if path == "" {
		path = repoconfig.GetDefaultConfigPath()
	}

	cfg, err := loadOrDefaultConfig(path)
	if err != nil {
		return err
	}

	branches := remoteAddBranches
	if len(branches) == 0 {
		branches = []string{"stable"}
	}

	spec := repoconfig.RemoteSpec{
		URL:           url,
		TLSPermissive: remoteAddTLSPermissive,
		Branches:      branches,
	}
	if remoteAddNoGPGVerify {
		verify := false
		spec.GPGVerify = &verify
	}

	if cfg.Remotes == nil {
		cfg.Remotes = make(map[string]repoconfig.RemoteSpec)
	}
	cfg.Remotes[name] = spec

	if err := repoconfig.Save(cfg, path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("Added remote %q -> %s\n", name, url)
	return nil
}

func confirmUnsafeRemote(name string, tlsPermissive, noGPGVerify bool) (bool, error) {
	var reasons []string
	if tlsPermissive {
		reasons = append(reasons, "accept any TLS certificate")
	}
	if noGPGVerify {
		reasons = append(reasons, "skip GPG signature verification")
	}

	label := fmt.Sprintf("Remote %q will %s. Continue?", name, joinWithAnd(reasons))
	prompt := promptui.Prompt{Label: label, IsConfirm: true}

	_, err := prompt.Run()
	if err != nil {
		if err == promptui.ErrAbort {
			return false, nil
		}
		if err == promptui.ErrInterrupt {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func joinWithAnd(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return parts[0] + " and " + parts[1]
	}
}

func runRemoteList(cmd *cobra.Command, args []string) error {
	path := GetConfigFile()
	if path == "" {
		path = repoconfig.GetDefaultConfigPath()
	}
	cfg, err := loadOrDefaultConfig(path)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(cfg.Remotes))
	for name := range cfg.Remotes {
		names = append(names, name)
	}
	sort.Strings(names)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"name", "url", "branches", "tls-permissive", "gpg-verify"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	for _, name := range names {
		spec := cfg.Remotes[name]
		table.Append([]string{
			name,
			spec.URL,
			fmt.Sprint(spec.Branches),
			fmt.Sprint(spec.TLSPermissive),
			gpgVerifyString(spec.GPGVerify),
		})
	}
	table.Render()
	return nil
}

func runRemoteShow(cmd *cobra.Command, args []string) error {
	name := args[0]

	path := GetConfigFile()
	if path == "" {
		path = repoconfig.GetDefaultConfigPath()
	}
	cfg, err := loadOrDefaultConfig(path)
	if err != nil {
		return err
	}

	spec, ok := cfg.Remotes[name]
	if !ok {
		return fmt.Errorf("remote %q is not configured", name)
	}

	fmt.Printf("name:           %s\n", name)
	fmt.Printf("url:            %s\n", spec.URL)
	fmt.Printf("branches:       %v\n", spec.Branches)
	fmt.Printf("tls-permissive: %t\n", spec.TLSPermissive)
	fmt.Printf("gpg-verify:     %s\n", gpgVerifyString(spec.GPGVerify))
	return nil
}

func gpgVerifyString(v *bool) string {
	if v == nil {
		return "true (default)"
	}
	return fmt.Sprint(*v)
}

func loadOrDefaultConfig(path string) (*repoconfig.Config, error) {
	if path == "" {
		path = repoconfig.GetDefaultConfigPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return repoconfig.DefaultConfig(), nil
	}
	return repoconfig.Load(path)
}
