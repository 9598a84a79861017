package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"photoingest/formats"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List the supported file extensions",
	Run: func(cmd *cobra.Command, args []string) {
		var raw, std []string
		for _, ext := range formats.SupportedExtensions() {
			if formats.ExtensionKind(ext) == formats.KindRaw {
				raw = append(raw, ext)
			} else {
				std = append(std, ext)
			}
		}
		fmt.Printf("Standard and high-efficiency: %s\n", strings.Join(std, " "))
		fmt.Printf("Camera RAW:                   %s\n", strings.Join(raw, " "))
	},
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}
