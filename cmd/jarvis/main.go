// Command jarvis is a voice-first assistant that talks to a realtime
// multimodal model over a single live session.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "jarvis",
		Short:         "Realtime voice assistant backed by a live multimodal session",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		Long: `jarvis streams microphone audio to a realtime model, plays back its spoken
answers and runs the tools it asks for (image generation, reimagining the
latest camera frame, grounded web search).

Type text or slash commands on stdin while it runs; /help lists them.`,
	}

	run := newRunCmd()
	root.AddCommand(run, newDevicesCmd())

	// Running without a subcommand behaves like "jarvis run".
	root.Flags().AddFlagSet(run.Flags())
	root.RunE = run.RunE
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
