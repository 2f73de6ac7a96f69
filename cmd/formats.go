package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"squeeze/internal/codec"
	"squeeze/pkg/imgutil"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List supported input extensions and output formats",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		native := codec.NewNative()
		fmt.Fprintf(os.Stdout, "Input extensions: %s\n", strings.Join(imgutil.InputExtensions, " "))
		fmt.Fprintln(os.Stdout, "Output formats:")
		for _, f := range imgutil.Formats {
			backends := "vips"
			if native.CanEncode(f) {
				backends = "vips, native"
			}
			fmt.Fprintf(os.Stdout, "  %-5s %-6s %s\n", f, f.Extension(), backends)
		}
	},
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}
