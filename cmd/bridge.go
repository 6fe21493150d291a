package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/blink-homekit/internal/pkg/accessory"
	"github.com/jake-scott/blink-homekit/internal/pkg/blink"
	"github.com/jake-scott/blink-homekit/internal/pkg/blinkapi"
	"github.com/jake-scott/blink-homekit/internal/pkg/exporter"
	"github.com/jake-scott/blink-homekit/internal/pkg/handlers"
	"github.com/jake-scott/blink-homekit/internal/pkg/homekit"
	"github.com/jake-scott/blink-homekit/internal/pkg/logging"
	"github.com/jake-scott/blink-homekit/internal/pkg/metrics"
	"github.com/jake-scott/blink-homekit/internal/pkg/mqtt"
	"github.com/jake-scott/blink-homekit/internal/pkg/overrides"
	"github.com/jake-scott/blink-homekit/internal/pkg/poller"
	"github.com/jake-scott/blink-homekit/internal/pkg/session"
	"github.com/jake-scott/blink-homekit/pkg/middlewares"
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Run the HomeKit bridge",

	RunE: func(cmd *cobra.Command, args []string) error {
		if err := doBridge(); err != nil {
			return err
		}

		return nil
	},

	PreRunE: func(cmd *cobra.Command, args []string) error {
		return checkRequiredFlags("homekit.pin")
	},
}

func init() {
	f := bridgeCmd.Flags()
	f.Int("poll-seconds", 30, "seconds between account refreshes")
	f.Duration("api-timeout", time.Second*30, "maximum duration of a Blink API call, eg. 1m or 10s")
	f.Bool("avoid-thumbnail-battery-drain", false, "allow thumbnails up to 10 minutes old before asking the camera for a new one")
	f.Bool("hide-away-mode-switch", false, "don't expose the occupied switch on security systems")
	f.Bool("hide-privacy-switch", false, "don't expose the privacy switch on cameras")
	f.String("homekit-pin", "", "eight digit HomeKit setup code")
	f.String("homekit-storage", "./hkdata", "directory for HomeKit pairing data")
	f.StringSlice("exclude", nil, "glob patterns of device names or IDs to leave out")
	f.Bool("mqtt", false, "also publish to an MQTT broker")
	f.String("mqtt-broker", "tcp://localhost:1883", "MQTT broker URI")
	f.String("mqtt-username", "", "MQTT user name")
	f.String("mqtt-password", "", "MQTT password")
	f.String("mqtt-topic-prefix", "blink", "prefix of state and command topics")
	f.String("mqtt-discovery-prefix", "homeassistant", "Home Assistant discovery prefix")
	f.Int("http-port", 8080, "status API port, 0 to disable")
	f.StringSlice("cors-origin", nil, "origins allowed to call the status API from a browser")
	f.Duration("graceful-timeout", time.Second*15, "duration to wait for the status API to finish, eg. 1m or 10s")
	f.Duration("read-timeout", time.Second*15, "duration to wait for request read, eg. 1m or 10s")
	f.Duration("write-timeout", time.Second*60, "duration to wait for request write, eg. 1m or 10s")
	f.Bool("log-requests", false, "log requests and responses (only in debug mode)")
	f.String("overrides-db", "./blink-homekit.db", "SQLite database for switch states kept by the bridge")
	f.Bool("no-persist", false, "keep switch states in memory only")

	for key, flag := range map[string]string{
		"camera-status-polling-seconds": "poll-seconds",
		"blink.api-timeout":             "api-timeout",
		"avoid-thumbnail-battery-drain": "avoid-thumbnail-battery-drain",
		"hide-away-mode-switch":         "hide-away-mode-switch",
		"hide-privacy-switch":           "hide-privacy-switch",
		"homekit.pin":                   "homekit-pin",
		"homekit.storage-path":          "homekit-storage",
		"homekit.exclude":               "exclude",
		"mqtt.enabled":                  "mqtt",
		"mqtt.broker":                   "mqtt-broker",
		"mqtt.username":                 "mqtt-username",
		"mqtt.password":                 "mqtt-password",
		"mqtt.topic-prefix":             "mqtt-topic-prefix",
		"mqtt.discovery-prefix":         "mqtt-discovery-prefix",
		"http.port":                     "http-port",
		"http.cors-origins":             "cors-origin",
		"http.graceful-timeout":         "graceful-timeout",
		"http.read-timeout":             "read-timeout",
		"http.write-timeout":            "write-timeout",
		"logging.log-requests":          "log-requests",
		"overrides.database":            "overrides-db",
		"overrides.no-persist":          "no-persist",
	} {
		errPanic(viper.GetViper().BindPFlag(key, f.Lookup(flag)))
	}

	rootCmd.AddCommand(bridgeCmd)
}

// openStore logs in with the saved session and loads the account
func openStore(ctx context.Context, sessionFile string, timeout time.Duration, ovr blink.OverrideStore, cfg blink.Config) (*blink.Store, error) {
	state, err := session.LoadOrNew(sessionFile)
	if err != nil {
		return nil, err
	}
	tok := state.Token()
	if tok == nil {
		return nil, errors.Errorf("no Blink session in %s, run `blink-homekit login` first", sessionFile)
	}
	if !state.Valid() && tok.RefreshToken == "" {
		return nil, errors.Errorf("Blink session in %s has expired, run `blink-homekit login` again", sessionFile)
	}

	client := blinkapi.NewLiveClient(state.WithContext(ctx)).WithTimeout(timeout)
	store := blink.NewStore(client, ovr, cfg)

	devices, err := store.Initialize(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "loading Blink account")
	}
	logging.Logger(ctx).Infof("found %d Blink devices", len(devices))

	return store, nil
}

// orphanedOverrides lists the stored override IDs of devices no longer in
// the account
func orphanedOverrides(store *blink.Store, all map[string]blink.Overrides) []string {
	var ids []string
	for id := range all {
		if _, err := store.Device(id); err != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func newRegistry(store *blink.Store) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		return nil, err
	}
	if err := reg.Register(exporter.NewCollector(store, nil)); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}
	return reg, nil
}

func newHTTPServer(opts *bridgeOptions, store *blink.Store, tables []*accessory.Table) (*http.Server, error) {
	var logRequests bool
	if opts.LogRequests {
		if logrus.IsLevelEnabled(logrus.DebugLevel) {
			logRequests = true
		} else {
			logging.Logger(nil).Warn("log-requests ignored when not in debug mode")
		}
	}

	reg, err := newRegistry(store)
	if err != nil {
		return nil, errors.Wrap(err, "registering metrics")
	}

	r := mux.NewRouter()
	r.Use(middlewares.NewLoggingMw(logRequests))
	r.Use(middlewares.NewRecoveryMw())
	r.Use(middlewares.NewCorrelationMw("X-Correlation-ID"))
	handlers.NewStatusHandler(store, tables).Register(r)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	// preflight requests match no route so CORS wraps the router
	handler := middlewares.NewCorsMw(middlewares.CorsOptions(opts.CorsOrigins, logRequests))(r)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.HTTPPort),
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  time.Second * 60,
		Handler:      handler,
	}, nil
}

func doBridge() error {
	opts, err := loadBridgeOptions(viper.GetViper())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ovr blink.OverrideStore
	var db *overrides.SQLite
	if !opts.NoPersist {
		db, err = overrides.Open(ctx, opts.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		ovr = db
	}

	store, err := openStore(ctx, opts.SessionFile, opts.APITimeout, ovr, opts.storeConfig())
	if err != nil {
		return err
	}

	if db != nil {
		all, err := db.All(ctx)
		if err != nil {
			return err
		}
		for _, id := range orphanedOverrides(store, all) {
			logging.Logger(ctx).Warnf("stored switch states for %s match no device in the account", id)
		}
	}

	filter, err := accessory.NewFilter(opts.Exclude)
	if err != nil {
		return err
	}
	tables := accessory.ForStore(store, opts.Accessory, filter)

	hk := homekit.New(ctx, opts.HomeKit, tables)
	if err := hk.Start(ctx, store); err != nil {
		return err
	}
	defer hk.Stop()

	if opts.MQTT != nil {
		pub := mqtt.New(*opts.MQTT, tables)
		if err := pub.Start(ctx, store); err != nil {
			return err
		}
		defer pub.Stop()
	}

	p := poller.New(store, opts.pollInterval())
	if err := p.Start(ctx); err != nil {
		return err
	}
	defer p.Stop()

	var s *http.Server
	if opts.HTTPPort > 0 {
		s, err = newHTTPServer(opts, store, tables)
		if err != nil {
			return err
		}

		logging.Logger(nil).Infof("status API on port %d", opts.HTTPPort)
		go func() {
			if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Logger(nil).WithError(err).Error("running status API")
			}
		}()
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal
	<-c
	logging.Logger(nil).Info("shutting down")

	if s != nil {
		sctx, scancel := context.WithTimeout(context.Background(), opts.GracefulTimeout)
		defer scancel()
		if err := s.Shutdown(sctx); err != nil {
			logging.Logger(nil).WithError(err).Errorf("shutting down status API")
		}
	}

	logging.Logger(nil).Info("exiting")
	return nil
}
