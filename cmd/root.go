package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/blink-homekit/internal/pkg/logging"
)

var (
	_cfgFile string
	_debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "blink-homekit",
	Short: "Bridge Blink cameras to HomeKit and MQTT",
	Long: `Expose the networks and cameras of a Blink account as HomeKit
security systems and cameras, and optionally to Home Assistant over MQTT.`,
	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Configure(viper.GetViper())
	},
}

// Execute runs the command named on the command line
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func errPanic(err error) {
	if err != nil {
		panic(err)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&_cfgFile, "config", "", "config file (default is $HOME/.blink-homekit.yaml)")
	rootCmd.PersistentFlags().BoolVar(&_debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("log-location", "stderr", "stderr, stdout or a file name")
	rootCmd.PersistentFlags().String("log-format", "text", "text or json")
	rootCmd.PersistentFlags().String("session-file", "", "file holding the Blink login session (default is $HOME/.blink-homekit-session.json)")

	errPanic(viper.GetViper().BindPFlag("logging.location", rootCmd.PersistentFlags().Lookup("log-location")))
	errPanic(viper.GetViper().BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format")))
	errPanic(viper.GetViper().BindPFlag("blink.session-file", rootCmd.PersistentFlags().Lookup("session-file")))
}

// initConfig reads the config file, a .env file in the working directory
// and BLINK_* environment variables, in increasing order of precedence
func initConfig() {
	if _debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logging.Logger(nil).WithError(err).Warn("reading .env")
	}

	home, err := homedir.Dir()
	if err != nil {
		logging.Logger(nil).WithError(err).Fatal("finding home directory")
	}

	if _cfgFile != "" {
		viper.SetConfigFile(_cfgFile)
	} else {
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".blink-homekit")
	}

	viper.SetDefault("blink.session-file", home+"/.blink-homekit-session.json")

	viper.SetEnvPrefix("blink")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || _cfgFile != "" {
			logging.Logger(nil).WithError(err).Fatal("reading config file")
		}
	} else {
		logging.Logger(nil).Debugf("using config file %s", viper.ConfigFileUsed())
	}
}

func checkRequiredFlags(needFlags ...string) error {
	missingFlags := []string{}

	for _, f := range needFlags {
		if !viper.IsSet(f) || viper.GetString(f) == "" {
			missingFlags = append(missingFlags, f)
		}
	}

	if len(missingFlags) > 0 {
		itemPlural := "item"
		if len(missingFlags) > 1 {
			itemPlural = "items"
		}
		return fmt.Errorf("required config %s `%s` not set", itemPlural, strings.Join(missingFlags, "`, `"))
	}

	return nil
}
