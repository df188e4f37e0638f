package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "chatclone",
		Short:         "Multi-conversation chat with a hosted language model",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CHATCLONE_CONFIG"), "config file (default: chatclone.yaml in . or $HOME/.chatclone)")
	root.AddCommand(newServeCommand(), newVersionCommand())
	return root
}

// Execute runs the root command and returns its error for main to report.
func Execute() error {
	return NewRootCommand().Execute()
}
