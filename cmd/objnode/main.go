package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/xuperchain/objcore/cmd/objnode/cmd"
)

func main() {
	rootCmd, err := NewServiceCommand()
	if err != nil {
		log.Fatalf("new command failed.err:%v", err)
	}

	if err = rootCmd.Execute(); err != nil {
		log.Fatalf("command exec failed.err:%v", err)
	}
}

func NewServiceCommand() (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:           cmd.CmdLineName + " <command> [arguments]",
		Short:         "objnode runs an object store node and talks to it.",
		Long:          "objnode runs an object store node and talks to it.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example:       cmd.CmdLineName + " startup --conf ./conf/env.yaml",
	}

	// cmd version
	rootCmd.AddCommand(cmd.GetVersionCmd().GetCmd())
	// cmd service
	rootCmd.AddCommand(cmd.GetStartupCmd().GetCmd())
	rootCmd.AddCommand(cmd.GetConfigCmd().GetCmd())
	// client
	rootCmd.AddCommand(cmd.GetRequestCmd().GetCmd())
	rootCmd.AddCommand(cmd.GetStateCmd().GetCmd())
	rootCmd.AddCommand(cmd.GetKeysCmd().GetCmd())
	return rootCmd, nil
}
