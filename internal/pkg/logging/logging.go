package logging

import (
	"context"
	"fmt"
	"os"
	"path"

	stdlog "log"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

/*
 *  Provides request, device and diagnostics logging facilities
 */

type ctxID int

const (
	txnIDKey ctxID = iota
	deviceKey
)

// WithTxnID returns a context which knows its transaction ID
func WithTxnID(ctx context.Context, txnID string) context.Context {
	return context.WithValue(ctx, txnIDKey, txnID)
}

// WithDevice returns a context which knows the accessory it is working for
func WithDevice(ctx context.Context, canonicalID string) context.Context {
	return context.WithValue(ctx, deviceKey, canonicalID)
}

// TxnID is the transaction ID stored in ctx, if any
func TxnID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(txnIDKey).(string)
	return id
}

type logger struct {
	logger  *logrus.Entry
	logFile *os.File
}

// The one singleton logger
var gLogger logger
var gInstanceID string

// Logger returns the global logger, decorated with any transaction or
// device found in ctx
func Logger(ctx context.Context) *logrus.Entry {
	if ctx == nil {
		return gLogger.logger
	}

	fields := logrus.Fields{}
	if txnID, ok := ctx.Value(txnIDKey).(string); ok {
		fields["txnid"] = txnID
	}
	if device, ok := ctx.Value(deviceKey).(string); ok {
		fields["device"] = device
	}

	if len(fields) == 0 {
		return gLogger.logger
	}

	return gLogger.logger.WithFields(fields)
}

// InstanceID is the random ID of this process, also used as the default
// Blink client name suffix
func InstanceID() string {
	return gInstanceID
}

func defaultFields() logrus.Fields {
	return logrus.Fields{
		"pid":      os.Getpid(),
		"exe":      path.Base(os.Args[0]),
		"instance": gInstanceID,
	}
}

func init() {
	// Viper defaults
	viper.SetDefault("logging.location", "stderr")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.level", "info")

	// The app instantiation ID
	gInstanceID = uuid.New().String()

	gLogger.logger = logrus.WithFields(defaultFields())
}

// Configure sets the log level and output location/format
func Configure(cfg *viper.Viper) error {
	switch loc := cfg.GetString("logging.location"); loc {
	case "stdout":
		logrus.SetOutput(os.Stdout)
		gLogger.logger = logrus.WithFields(logrus.Fields{})
	case "stderr":
		logrus.SetOutput(os.Stderr)
		gLogger.logger = logrus.WithFields(logrus.Fields{})
	default:
		file, err := os.OpenFile(loc, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}

		gLogger.logger.Debugf("Switching system log to %s", loc)
		logrus.SetOutput(file)

		if gLogger.logFile != nil {
			gLogger.logFile.Close()
		}

		gLogger.logFile = file
		gLogger.logger = logrus.WithFields(defaultFields())
	}

	// Obey the level setting in the config if not already in debug mode
	if !logrus.IsLevelEnabled(logrus.DebugLevel) {
		level := cfg.GetString("logging.level")
		val, err := logrus.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("bad log level: [%s]", level)
		}
		logrus.SetLevel(val)
	}

	switch format := cfg.GetString("logging.format"); format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("bad log format: [%s]", format)
	}

	// Override the standard system logger, brutella/hc and paho both use it
	stdlog.SetOutput(Logger(nil).WriterLevel(logrus.DebugLevel))

	return nil
}
