package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MrWong99/jarvis/pkg/audio"
	"github.com/MrWong99/jarvis/pkg/audio/portaudio"
)

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio devices",
		Long:  "Lists input and output devices with their channel counts and default sample rates. Use the names in audio.input_device and audio.output_device.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			backend, err := portaudio.New()
			if err != nil {
				return err
			}
			defer backend.Close()

			devs, err := backend.Devices()
			if err != nil {
				return err
			}
			return printDevices(cmd.OutOrStdout(), devs)
		},
	}
}

func printDevices(w io.Writer, devs []audio.DeviceInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tIN\tOUT\tRATE\tDEFAULT")
	for _, d := range devs {
		def := ""
		switch {
		case d.IsDefaultInput && d.IsDefaultOutput:
			def = "in,out"
		case d.IsDefaultInput:
			def = "in"
		case d.IsDefaultOutput:
			def = "out"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.0f\t%s\n", d.Name, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate, def)
	}
	return tw.Flush()
}
