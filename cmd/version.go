package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/blink-homekit/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the version number of the tool",

	RunE: func(cmd *cobra.Command, args []string) error {
		return doVersion(os.Stdout)
	},
}

func init() {
	versionCmd.Flags().Bool("json", false, "Return version as JSON")
	errPanic(viper.GetViper().BindPFlag("version.json", versionCmd.Flags().Lookup("json")))

	rootCmd.AddCommand(versionCmd)
}

type versionResult struct {
	Version   string `json:"version"`
	UserAgent string `json:"user-agent"`
	GoVersion string `json:"go"`
}

func doVersion(out io.Writer) error {
	if viper.GetBool("version.json") {
		v := versionResult{
			Version:   version.Version,
			UserAgent: version.UserAgent(),
			GoVersion: runtime.Version(),
		}

		b, err := json.MarshalIndent(v, "", "    ")
		if err != nil {
			return err
		}

		fmt.Fprintln(out, string(b))
	} else {
		fmt.Fprintf(out, "blink-homekit version %s (%s)\n", version.Version, runtime.Version())
	}

	return nil
}
