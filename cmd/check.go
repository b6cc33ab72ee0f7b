package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/korovkin/limiter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/alice-bridge/internal/pkg/drivers"
	"github.com/jake-scott/alice-bridge/internal/pkg/drivers/loopback"
	"github.com/jake-scott/alice-bridge/internal/pkg/logging"
	"github.com/jake-scott/alice-bridge/internal/pkg/store"
	"github.com/jake-scott/alice-bridge/internal/pkg/yandex"
)

var _checkCmdOpts struct {
	userID        string
	resolve       bool
	maxConcurrent int
	timeout       time.Duration
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Build every configured device of a user and report configuration errors",

	RunE: func(cmd *cobra.Command, args []string) error {
		if err := doCheck(); err != nil {
			return err
		}

		return nil
	},

	PreRunE: func(cmd *cobra.Command, args []string) error {
		return checkRequiredFlags("check.user", "store.path")
	},
}

func init() {
	checkCmd.Flags().StringVar(&_checkCmdOpts.userID, "user", "", "user whose devices are checked")
	checkCmd.Flags().BoolVar(&_checkCmdOpts.resolve, "resolve", false, "also query every device through the loopback driver")
	checkCmd.Flags().IntVar(&_checkCmdOpts.maxConcurrent, "max-concurrent", 10, "devices checked in parallel")
	checkCmd.Flags().DurationVar(&_checkCmdOpts.timeout, "timeout", time.Second*30, "maximum duration of the check, eg. 1m or 10s")

	errPanic(viper.GetViper().BindPFlag("check.user", checkCmd.Flags().Lookup("user")))
	errPanic(viper.GetViper().BindPFlag("check.resolve", checkCmd.Flags().Lookup("resolve")))
	errPanic(viper.GetViper().BindPFlag("check.max-concurrent", checkCmd.Flags().Lookup("max-concurrent")))
	errPanic(viper.GetViper().BindPFlag("check.timeout", checkCmd.Flags().Lookup("timeout")))

	rootCmd.AddCommand(checkCmd)
}

// anyLoopback binds every driver name to one loopback driver, so a check
// never reaches a real transport
type anyLoopback struct {
	d *loopback.Driver
}

func (a anyLoopback) Get(name string) (drivers.Driver, error) {
	return a.d, nil
}

type checkReport struct {
	mu       sync.Mutex
	failures int
}

func (c *checkReport) fail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
}

func checkLoop(maxConcurrent int, src drivers.Source, records []store.DeviceRecord) int {
	limit := limiter.NewConcurrencyLimiter(maxConcurrent)
	report := &checkReport{}

	for _, rec := range records {
		rec := rec
		limit.ExecuteWithTicket(func(ticket int) {
			logging.Logger(nil).Debugf("check-goroutine %d: building %s", ticket, rec.DeviceID)

			if _, err := rec.Builder(src).
				WithCapabilities(rec.Capabilities...).
				WithProperties(rec.Properties...).
				Build(); err != nil {
				report.fail()
				fmt.Printf("FAIL %s: %s\n", rec.DeviceID, err)
				return
			}

			fmt.Printf("ok   %s (%s)\n", rec.DeviceID, rec.Name)
		})
	}

	limit.Wait()
	return report.failures
}

func resolveCheck(ctx context.Context, maxConcurrent int, src drivers.Source, records []store.DeviceRecord) error {
	jobs := make([]yandex.Job, 0, len(records))
	for _, rec := range records {
		rec := rec
		jobs = append(jobs, yandex.Job{
			ID: rec.DeviceID,
			Build: func() (*yandex.Device, error) {
				caps, props := yandex.QuerySpecs(rec.Capabilities, rec.Properties)
				return rec.Builder(src).WithCapabilities(caps...).WithProperties(props...).Build()
			},
		})
	}

	states := make([]yandex.DeviceState, 0, len(jobs))
	for _, o := range yandex.ResolveAll(ctx, jobs, maxConcurrent) {
		states = append(states, o.State())
	}

	b, err := json.MarshalIndent(states, "", "    ")
	if err != nil {
		return err
	}

	fmt.Println(string(b))
	return nil
}

func doCheck() error {
	userID := viper.GetString("check.user")
	maxConcurrent := viper.GetInt("check.max-concurrent")

	ctx, cancel := context.WithTimeout(context.Background(), viper.GetDuration("check.timeout"))
	defer cancel()

	backend, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	records, err := backend.LoadDevices(ctx, userID)
	if err != nil {
		return errors.Wrapf(err, "loading devices of user %s", userID)
	}

	// Building only needs the driver names, nothing is connected
	states := store.NewMemoryStates()
	src, err := offlineDrivers(states)
	if err != nil {
		return err
	}

	if failures := checkLoop(maxConcurrent, src, records); failures > 0 {
		return errors.Errorf("%d of %d devices failed to build", failures, len(records))
	}

	if viper.GetBool("check.resolve") {
		return resolveCheck(ctx, maxConcurrent, anyLoopback{d: loopback.New(states)}, records)
	}

	return nil
}
