package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for casetrack.

To load completions:

Bash:
  $ source <(casetrack completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ casetrack completion bash > /etc/bash_completion.d/casetrack
  # macOS:
  $ casetrack completion bash > $(brew --prefix)/etc/bash_completion.d/casetrack

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ casetrack completion zsh > "${fpath[1]}/_casetrack"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ casetrack completion fish | source

  # To load completions for each session, execute once:
  $ casetrack completion fish > ~/.config/fish/completions/casetrack.fish

PowerShell:
  PS> casetrack completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(os.Stdout)
		case "zsh":
			return cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			return cmd.Root().GenFishCompletion(os.Stdout, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
