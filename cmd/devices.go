package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jake-scott/blink-homekit/internal/pkg/accessory"
	"github.com/jake-scott/blink-homekit/internal/pkg/blink"
	"github.com/jake-scott/blink-homekit/internal/pkg/overrides"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the accessories the bridge would publish",

	RunE: func(cmd *cobra.Command, args []string) error {
		return doDevices(os.Stdout)
	},
}

func init() {
	devicesCmd.Flags().Bool("yaml", false, "Output as YAML")
	devicesCmd.Flags().Bool("json", false, "Output as JSON")
	devicesCmd.Flags().Bool("all", false, "Include devices excluded by homekit.exclude")

	errPanic(viper.GetViper().BindPFlag("devices.yaml", devicesCmd.Flags().Lookup("yaml")))
	errPanic(viper.GetViper().BindPFlag("devices.json", devicesCmd.Flags().Lookup("json")))
	errPanic(viper.GetViper().BindPFlag("devices.all", devicesCmd.Flags().Lookup("all")))

	rootCmd.AddCommand(devicesCmd)
}

type deviceRow struct {
	ID              string                 `json:"id" yaml:"id"`
	Kind            accessory.Kind         `json:"kind" yaml:"kind"`
	Name            string                 `json:"name" yaml:"name"`
	Model           string                 `json:"model" yaml:"model"`
	Serial          string                 `json:"serial" yaml:"serial"`
	Firmware        string                 `json:"firmware" yaml:"firmware"`
	Characteristics map[string]interface{} `json:"characteristics" yaml:"characteristics"`
	Error           string                 `json:"error,omitempty" yaml:"error,omitempty"`
}

func deviceRows(ctx context.Context, tables []*accessory.Table) []deviceRow {
	rows := make([]deviceRow, 0, len(tables))
	for _, t := range tables {
		info := t.Info()
		row := deviceRow{
			ID:              t.ID,
			Kind:            t.Kind,
			Name:            t.Name(),
			Model:           info.Model,
			Serial:          info.Serial,
			Firmware:        info.Firmware,
			Characteristics: make(map[string]interface{}),
		}

		values, err := t.ReadAll(ctx)
		if err != nil {
			row.Error = err.Error()
		}
		for id, v := range values {
			row.Characteristics[string(id)] = v
		}

		rows = append(rows, row)
	}
	return rows
}

func writeDevices(out io.Writer, rows []deviceRow, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "    ")
		return enc.Encode(rows)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return err
		}
		return enc.Close()
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tNAME\tMODEL\tVALUES")
	for _, r := range rows {
		keys := make([]string, 0, len(r.Characteristics))
		for k := range r.Characteristics {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		values := make([]string, 0, len(keys))
		for _, k := range keys {
			values = append(values, fmt.Sprintf("%s=%v", k, r.Characteristics[k]))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Kind, r.Name, r.Model, strings.Join(values, " "))
	}
	return w.Flush()
}

func doDevices(out io.Writer) error {
	ctx := context.Background()

	// switch states are read from the bridge's database when there is one
	var ovr blink.OverrideStore
	if db := viper.GetString("overrides.database"); db != "" {
		if _, err := os.Stat(db); err == nil {
			sqlite, err := overrides.Open(ctx, db)
			if err != nil {
				return err
			}
			defer sqlite.Close()
			ovr = sqlite
		}
	}

	store, err := openStore(ctx, viper.GetString("blink.session-file"), viper.GetDuration("blink.api-timeout"), ovr, blink.Config{})
	if err != nil {
		return err
	}

	var filter *accessory.Filter
	if !viper.GetBool("devices.all") {
		if filter, err = accessory.NewFilter(viper.GetStringSlice("homekit.exclude")); err != nil {
			return err
		}
	}

	opts := accessory.Options{
		HideAwayModeSwitch: viper.GetBool("hide-away-mode-switch"),
		HidePrivacySwitch:  viper.GetBool("hide-privacy-switch"),
	}
	rows := deviceRows(ctx, accessory.ForStore(store, opts, filter))

	format := ""
	switch {
	case viper.GetBool("devices.json"):
		format = "json"
	case viper.GetBool("devices.yaml"):
		format = "yaml"
	}
	return writeDevices(out, rows, format)
}
