package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/alice-bridge/internal/pkg/logging"
)

var _rootCmdOpts struct {
	cfgFile   string
	debug     bool
	storeType string
	storePath string
}

var rootCmd = &cobra.Command{
	Use:   "alice-bridge",
	Short: "Smart home provider bridging the Alice device API to RF/IR senders",

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _rootCmdOpts.debug {
			logrus.SetLevel(logrus.DebugLevel)
		}

		return logging.Configure(viper.GetViper())
	},
}

// Execute runs the command line
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&_rootCmdOpts.cfgFile, "config", "", "config file (default is $HOME/.alice-bridge.yaml)")
	rootCmd.PersistentFlags().BoolVar(&_rootCmdOpts.debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&_rootCmdOpts.storeType, "store-type", "sqlite", "device store type, sqlite or file")
	rootCmd.PersistentFlags().StringVar(&_rootCmdOpts.storePath, "store-path", "", "device store location (database or YAML file)")

	errPanic(viper.GetViper().BindPFlag("store.type", rootCmd.PersistentFlags().Lookup("store-type")))
	errPanic(viper.GetViper().BindPFlag("store.path", rootCmd.PersistentFlags().Lookup("store-path")))

	viper.SetDefault("mqtt.client-id", "alice-bridge")
	viper.SetDefault("mqtt.qos", 1)
	viper.SetDefault("mqtt.connect-timeout", "10s")
	viper.SetDefault("mqtt.publish-timeout", "5s")
	viper.SetDefault("influxdb.enabled", false)
	viper.SetDefault("influxdb.flush-interval", "10s")
	viper.SetDefault("yandex.max-concurrent", 4)
	viper.SetDefault("yandex.resolve-timeout", "10s")
}

// initConfig reads the config file and the ALICE_BRIDGE_ environment
func initConfig() {
	if _rootCmdOpts.cfgFile != "" {
		viper.SetConfigFile(_rootCmdOpts.cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.SetConfigName(".alice-bridge")
		viper.SetConfigType("yaml")

		viper.SetDefault("store.path", filepath.Join(home, ".alice-bridge", "devices.db"))
	}

	viper.SetEnvPrefix("ALICE_BRIDGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logging.Logger(nil).Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); !ok || _rootCmdOpts.cfgFile != "" {
		fmt.Fprintf(os.Stderr, "reading config: %s\n", err)
		os.Exit(1)
	}
}

func errPanic(err error) {
	if err != nil {
		panic(err)
	}
}
