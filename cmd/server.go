package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/alice-bridge/internal/pkg/handlers"
	"github.com/jake-scott/alice-bridge/internal/pkg/logging"
	"github.com/jake-scott/alice-bridge/internal/pkg/store"
	"github.com/jake-scott/alice-bridge/pkg/middlewares"
)

var _serverCmdOpts struct {
	httpsPort       uint16
	tlsCertPath     string
	tlsKeyPath      string
	plainHTTP       bool
	gracefulTimeout time.Duration
	readTimeout     time.Duration
	writeTimeout    time.Duration
	resolveTimeout  time.Duration
	maxConcurrent   int
	corsOrigins     []string
	logRequests     bool
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the smart home provider web server",

	RunE: func(cmd *cobra.Command, args []string) error {
		if err := doServer(); err != nil {
			return err
		}

		return nil
	},

	PreRunE: func(cmd *cobra.Command, args []string) error {
		if viper.GetBool("https.plain-http") {
			return checkRequiredFlags("store.path")
		}
		return checkRequiredFlags("https.key", "https.cert", "store.path")
	},
}

func init() {
	serverCmd.Flags().Uint16Var(&_serverCmdOpts.httpsPort, "https-port", 4343, "HTTP port numbers")
	serverCmd.Flags().StringVar(&_serverCmdOpts.tlsCertPath, "tls-cert", "", "TLS certificate file")
	serverCmd.Flags().StringVar(&_serverCmdOpts.tlsKeyPath, "tls-key", "", "TLS key file")
	serverCmd.Flags().BoolVar(&_serverCmdOpts.plainHTTP, "plain-http", false, "serve plain HTTP, for use behind a TLS terminating proxy")
	serverCmd.Flags().DurationVar(&_serverCmdOpts.gracefulTimeout, "graceful-timeout", time.Second*15, "duration to wait for server to finish, eg. 1m or 10s")
	serverCmd.Flags().DurationVar(&_serverCmdOpts.readTimeout, "read-timeout", time.Second*15, "duration to wait for request read, eg. 1m or 10s")
	serverCmd.Flags().DurationVar(&_serverCmdOpts.writeTimeout, "write-timeout", time.Second*60, "duration to wait for request write, eg. 1m or 10s")
	serverCmd.Flags().DurationVar(&_serverCmdOpts.resolveTimeout, "resolve-timeout", time.Second*10, "maximum duration of a query or action batch, eg. 1m or 10s")
	serverCmd.Flags().IntVar(&_serverCmdOpts.maxConcurrent, "max-concurrent", 4, "devices resolved in parallel per request")
	serverCmd.Flags().StringSliceVar(&_serverCmdOpts.corsOrigins, "cors-origins", nil, "origins allowed to call the API from a browser")
	serverCmd.Flags().BoolVar(&_serverCmdOpts.logRequests, "log-requests", false, "log requests and responses (only in debug mode)")

	errPanic(viper.GetViper().BindPFlag("https.port", serverCmd.Flags().Lookup("https-port")))
	errPanic(viper.GetViper().BindPFlag("https.cert", serverCmd.Flags().Lookup("tls-cert")))
	errPanic(viper.GetViper().BindPFlag("https.key", serverCmd.Flags().Lookup("tls-key")))
	errPanic(viper.GetViper().BindPFlag("https.plain-http", serverCmd.Flags().Lookup("plain-http")))
	errPanic(viper.GetViper().BindPFlag("https.graceful-timeout", serverCmd.Flags().Lookup("graceful-timeout")))
	errPanic(viper.GetViper().BindPFlag("https.read-timeout", serverCmd.Flags().Lookup("read-timeout")))
	errPanic(viper.GetViper().BindPFlag("https.write-timeout", serverCmd.Flags().Lookup("write-timeout")))
	errPanic(viper.GetViper().BindPFlag("yandex.resolve-timeout", serverCmd.Flags().Lookup("resolve-timeout")))
	errPanic(viper.GetViper().BindPFlag("yandex.max-concurrent", serverCmd.Flags().Lookup("max-concurrent")))
	errPanic(viper.GetViper().BindPFlag("cors.allowed-origins", serverCmd.Flags().Lookup("cors-origins")))
	errPanic(viper.GetViper().BindPFlag("logging.log-requests", serverCmd.Flags().Lookup("log-requests")))

	rootCmd.AddCommand(serverCmd)
}

func checkRequiredFlags(needFlags ...string) error {
	missingFlags := []string{}

	for _, f := range needFlags {
		if !viper.IsSet(f) {
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

// newRouter mounts the device API.  CORS wraps the router so pre-flight
// requests are answered before route matching and authentication.
func newRouter(backend store.Backend, dh *handlers.DeviceHandler, logRequests bool, origins []string) http.Handler {
	r := mux.NewRouter()
	r.Use(middlewares.NewCorrelationMw("X-Request-Id"))
	r.Use(middlewares.NewLoggingMw(logRequests))
	r.Use(middlewares.NewRecoveryMw())
	r.Use(middlewares.NewAuthMw(handlers.TokenValidator(backend)))

	api := r.PathPrefix("/v1.0").Subrouter()
	api.HandleFunc("/", dh.HandlePing).Methods(http.MethodHead)
	api.HandleFunc("/user/unlink", dh.HandleUnlink).Methods(http.MethodGet, http.MethodPost)
	api.HandleFunc("/user/devices", dh.HandleDevices).Methods(http.MethodGet)
	api.HandleFunc("/user/devices/query", dh.HandleQuery).Methods(http.MethodPost)
	api.HandleFunc("/user/devices/action", dh.HandleAction).Methods(http.MethodPost)
	r.HandleFunc("/ping", dh.HandlePing).Methods(http.MethodGet, http.MethodHead)

	if len(origins) == 0 {
		return r
	}

	return middlewares.NewCors(middlewares.CorsOptions(origins), r)
}

func doServer() error {
	wait := viper.GetDuration("https.graceful-timeout")
	port := viper.GetUint("https.port")
	certFile := viper.GetString("https.cert")
	keyFile := viper.GetString("https.key")
	plainHTTP := viper.GetBool("https.plain-http")

	var logRequests bool
	if viper.GetBool("logging.log-requests") {
		if logrus.IsLevelEnabled(logrus.DebugLevel) {
			logRequests = true
		} else {
			logging.Logger(nil).Warn("log-requests ignored when not in debug mode")
		}
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startCancel()

	backend, err := openStore(startCtx)
	if err != nil {
		return err
	}
	defer backend.Close()

	stopDrivers, err := startDrivers(stateStoreFor(backend))
	if err != nil {
		return err
	}
	defer stopDrivers()

	recorder, err := startHistory(startCtx)
	if err != nil {
		return err
	}
	defer recorder.Close()

	dh := handlers.NewDeviceHandler(backend).
		WithHistory(recorder).
		WithMaxConcurrent(viper.GetInt("yandex.max-concurrent")).
		WithResolveTimeout(viper.GetDuration("yandex.resolve-timeout"))

	s := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		ReadTimeout:  viper.GetDuration("https.read-timeout"),
		WriteTimeout: viper.GetDuration("https.write-timeout"),
		IdleTimeout:  time.Second * 60,
		Handler:      newRouter(backend, &dh, logRequests, viper.GetStringSlice("cors.allowed-origins")),
	}

	logging.Logger(nil).Infof("Serving on port %d", port)
	go func() {
		var err error
		if plainHTTP {
			err = s.ListenAndServe()
		} else {
			err = s.ListenAndServeTLS(certFile, keyFile)
		}
		if err != nil && err != http.ErrServerClosed {
			logging.Logger(nil).WithError(err).Error("running server")
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	// Block until we receive a signal
	<-c

	// Create a deadline to wait for.
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	logging.Logger(nil).Info("shutting down")
	if err := s.Shutdown(ctx); err != nil {
		logging.Logger(nil).WithError(err).Errorf("shutting down")
	}
	logging.Logger(nil).Info("exiting")
	return nil
}
