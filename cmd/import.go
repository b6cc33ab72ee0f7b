package cmd

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/alice-bridge/internal/pkg/logging"
	"github.com/jake-scott/alice-bridge/internal/pkg/store"
)

var _importCmdOpts struct {
	noValidate bool
}

var importCmd = &cobra.Command{
	Use:   "import <seed.yaml>",
	Short: "Load users, tokens and devices from a YAML file into the SQLite store",
	Args:  cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		if err := doImport(args[0]); err != nil {
			return err
		}

		return nil
	},

	PreRunE: func(cmd *cobra.Command, args []string) error {
		return checkRequiredFlags("store.path")
	},
}

func init() {
	importCmd.Flags().BoolVar(&_importCmdOpts.noValidate, "no-validate", false, "import devices without building them first")

	errPanic(viper.GetViper().BindPFlag("import.no-validate", importCmd.Flags().Lookup("no-validate")))

	rootCmd.AddCommand(importCmd)
}

// validateSeed builds every device of the seed before anything is written
func validateSeed(seed store.Seed) error {
	src, err := offlineDrivers(store.NewMemoryStates())
	if err != nil {
		return err
	}

	for _, u := range seed.Users {
		for _, rec := range u.Devices {
			if _, err := rec.Builder(src).
				WithCapabilities(rec.Capabilities...).
				WithProperties(rec.Properties...).
				Build(); err != nil {
				return errors.Wrapf(err, "user %s device %s", u.ID, rec.DeviceID)
			}
		}
	}

	return nil
}

func doImport(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening seed file")
	}
	defer f.Close()

	seed, err := store.ParseSeed(f)
	if err != nil {
		return errors.Wrapf(err, "parsing %s", path)
	}

	if !viper.GetBool("import.no-validate") {
		if err := validateSeed(seed); err != nil {
			return err
		}
	}

	ctx := context.Background()
	db, err := store.OpenSQLite(ctx, viper.GetString("store.path"))
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Import(ctx, seed); err != nil {
		return err
	}

	logging.Logger(nil).Infof("imported %d users into %s", len(seed.Users), viper.GetString("store.path"))
	return nil
}
