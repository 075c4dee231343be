package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// containerExts are the file extensions offered for container arguments.
var containerExts = []string{"sb3", "sprite3"}

// completionCommand creates the completion command.
func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Completion prints a completion script for the given shell. File arguments
complete to .sb3 and .sprite3 files, and flags such as --monitors and
--enumeration complete to their accepted values.

  bash:        source <(sb3min completion bash)
  zsh:         sb3min completion zsh > "${fpath[1]}/_sb3min"
  fish:        sb3min completion fish > ~/.config/fish/completions/sb3min.fish
  powershell:  sb3min completion powershell | Out-String | Invoke-Expression`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := cmd.Root()
			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(os.Stdout, true)
			case "zsh":
				return root.GenZshCompletion(os.Stdout)
			case "fish":
				return root.GenFishCompletion(os.Stdout, true)
			default:
				return root.GenPowerShellCompletionWithDesc(os.Stdout)
			}
		},
	}
}

// completeContainers completes the first maxArgs positional arguments to
// container files. A negative maxArgs means no limit.
func completeContainers(maxArgs int) cobra.CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if maxArgs >= 0 && len(args) >= maxArgs {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return containerExts, cobra.ShellCompDirectiveFilterFileExt
	}
}

// completeFlagValues registers fixed value completions for the named flags
// that cmd defines.
func completeFlagValues(cmd *cobra.Command, values map[string][]string) {
	for name, vals := range values {
		if cmd.Flags().Lookup(name) == nil {
			continue
		}
		_ = cmd.RegisterFlagCompletionFunc(name, cobra.FixedCompletions(vals, cobra.ShellCompDirectiveNoFileComp))
	}
}
