package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	placeerrors "github.com/vango-dev/place/internal/errors"
	"github.com/vango-dev/place/pkg/canvas"
	"github.com/vango-dev/place/pkg/protocol"
	"github.com/vango-dev/place/pkg/snapshot"
)

// EnvPrefix is prepended to every environment variable, e.g. PLACE_WIDTH.
const EnvPrefix = "PLACE"

// Configuration keys. Each key is also a flag name and, upper-cased with
// dashes turned into underscores, an environment variable.
const (
	KeyConfig            = "config"
	KeyAddress           = "address"
	KeyWidth             = "width"
	KeyHeight            = "height"
	KeySaveInterval      = "save-interval"
	KeySaveCron          = "save-cron"
	KeySaveLocation      = "save-location"
	KeySaveAllImages     = "save-all-images"
	KeyReadTimeout       = "read-timeout"
	KeyWriteTimeout      = "write-timeout"
	KeyHeartbeatInterval = "heartbeat-interval"
	KeyMaxMessageSize    = "max-message-size"
	KeyMaxOutboundQueue  = "max-outbound-queue"
	KeyMaxSessions       = "max-sessions"
	KeyHubBuffer         = "hub-buffer"
	KeyApplierQueue      = "applier-queue"
	KeyShutdownTimeout   = "shutdown-timeout"
	KeyMetrics           = "metrics"
	KeyOTLPEndpoint      = "otlp-endpoint"
	KeyS3Bucket          = "s3-bucket"
	KeyS3Prefix          = "s3-prefix"
	KeyS3Region          = "s3-region"
	KeyS3Endpoint        = "s3-endpoint"
	KeyLogLevel          = "log-level"
	KeyLogFormat         = "log-format"
)

// Defaults.
const (
	DefaultAddress           = "0.0.0.0:8080"
	DefaultWidth             = 1000
	DefaultHeight            = 1000
	DefaultSaveInterval      = snapshot.DefaultInterval
	DefaultSaveLocation      = snapshot.DefaultPath
	DefaultReadTimeout       = time.Duration(0)
	DefaultWriteTimeout      = 10 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultMaxMessageSize    = 1024
	DefaultMaxOutboundQueue  = 1024
	DefaultHubBuffer         = 1024
	DefaultApplierQueue      = 4096
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
)

// Config is the resolved server configuration. Values come from, in
// increasing priority: defaults, the config file, PLACE_* environment
// variables and command-line flags.
type Config struct {
	// File is the config file that was read, empty when none was.
	File string

	Address string
	Width   uint32
	Height  uint32

	// SaveInterval is the time between scheduled saves. SaveCron, when set,
	// replaces it.
	SaveInterval  time.Duration
	SaveCron      string
	SaveLocation  string
	SaveAllImages bool

	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	HeartbeatInterval time.Duration
	MaxMessageSize    int64
	MaxOutboundQueue  int
	MaxSessions       int
	HubBuffer         int
	ApplierQueue      int
	ShutdownTimeout   time.Duration

	MetricsEnabled bool
	// OTLPEndpoint enables tracing when set: host:port or grpc:// for OTLP
	// over gRPC, http:// or https:// for OTLP over HTTP.
	OTLPEndpoint string

	S3Bucket   string
	S3Prefix   string
	S3Region   string
	S3Endpoint string

	LogLevel  string
	LogFormat string
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Address:           DefaultAddress,
		Width:             DefaultWidth,
		Height:            DefaultHeight,
		SaveInterval:      DefaultSaveInterval,
		SaveLocation:      DefaultSaveLocation,
		ReadTimeout:       DefaultReadTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		HeartbeatInterval: DefaultHeartbeatInterval,
		MaxMessageSize:    DefaultMaxMessageSize,
		MaxOutboundQueue:  DefaultMaxOutboundQueue,
		HubBuffer:         DefaultHubBuffer,
		ApplierQueue:      DefaultApplierQueue,
		ShutdownTimeout:   DefaultShutdownTimeout,
		LogLevel:          DefaultLogLevel,
		LogFormat:         DefaultLogFormat,
	}
}

// RegisterFlags adds every configuration flag to fs with its default value.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.StringP(KeyConfig, "c", "", "path to a config file (yaml, json or toml)")
	fs.String(KeyAddress, d.Address, "listen address")
	fs.Uint32(KeyWidth, d.Width, "canvas width in pixels")
	fs.Uint32(KeyHeight, d.Height, "canvas height in pixels")
	fs.Duration(KeySaveInterval, d.SaveInterval, "time between canvas snapshots")
	fs.String(KeySaveCron, "", "cron expression for snapshots, replaces --save-interval")
	fs.String(KeySaveLocation, d.SaveLocation, "snapshot path; the extension selects the format (png, bmp, tif, tiff)")
	fs.Bool(KeySaveAllImages, false, "keep every previous snapshot under a timestamped name")
	fs.Duration(KeyReadTimeout, d.ReadTimeout, "close a client that sends nothing for this long (0 disables)")
	fs.Duration(KeyWriteTimeout, d.WriteTimeout, "deadline for a single websocket write")
	fs.Duration(KeyHeartbeatInterval, d.HeartbeatInterval, "interval between keepalive pings")
	fs.Int64(KeyMaxMessageSize, d.MaxMessageSize, "largest inbound websocket message in bytes")
	fs.Int(KeyMaxOutboundQueue, d.MaxOutboundQueue, "pending outbound messages per client before it is disconnected")
	fs.Int(KeyMaxSessions, 0, "maximum concurrent clients (0 means unlimited)")
	fs.Int(KeyHubBuffer, d.HubBuffer, "broadcast buffer per client before it is evicted")
	fs.Int(KeyApplierQueue, d.ApplierQueue, "pending pixel writes before readers block")
	fs.Duration(KeyShutdownTimeout, d.ShutdownTimeout, "time allowed for a graceful shutdown")
	fs.Bool(KeyMetrics, false, "serve prometheus metrics on /metrics")
	fs.String(KeyOTLPEndpoint, "", "export trace spans to this OTLP collector")
	fs.String(KeyS3Bucket, "", "mirror snapshots to this S3 bucket")
	fs.String(KeyS3Prefix, "", "key prefix for mirrored snapshots")
	fs.String(KeyS3Region, "", "S3 region (default us-east-1)")
	fs.String(KeyS3Endpoint, "", "custom S3 endpoint, e.g. a MinIO URL")
	fs.String(KeyLogLevel, d.LogLevel, "log level: debug, info, warn, error")
	fs.String(KeyLogFormat, d.LogFormat, "log format: text or json")
}

// NewViper returns a viper instance that reads PLACE_* environment variables
// and has every flag in fs bound to its key.
func NewViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, placeerrors.New(placeerrors.CodeInvalidConfig).Wrap(err)
		}
	}
	setDefaults(v)
	return v, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyAddress, d.Address)
	v.SetDefault(KeyWidth, d.Width)
	v.SetDefault(KeyHeight, d.Height)
	v.SetDefault(KeySaveInterval, d.SaveInterval)
	v.SetDefault(KeySaveLocation, d.SaveLocation)
	v.SetDefault(KeyReadTimeout, d.ReadTimeout)
	v.SetDefault(KeyWriteTimeout, d.WriteTimeout)
	v.SetDefault(KeyHeartbeatInterval, d.HeartbeatInterval)
	v.SetDefault(KeyMaxMessageSize, d.MaxMessageSize)
	v.SetDefault(KeyMaxOutboundQueue, d.MaxOutboundQueue)
	v.SetDefault(KeyHubBuffer, d.HubBuffer)
	v.SetDefault(KeyApplierQueue, d.ApplierQueue)
	v.SetDefault(KeyShutdownTimeout, d.ShutdownTimeout)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyLogFormat, d.LogFormat)
}

// Load resolves the configuration from fs, the environment and, when the
// config key is set, a config file. The result is validated.
func Load(fs *pflag.FlagSet) (Config, error) {
	v, err := NewViper(fs)
	if err != nil {
		return Config{}, err
	}
	return FromViper(v)
}

// FromViper resolves the configuration from an already prepared viper
// instance.
func FromViper(v *viper.Viper) (Config, error) {
	file, err := loadConfigFile(v)
	if err != nil {
		return Config{}, err
	}

	width, err := uintValue(v, KeyWidth)
	if err != nil {
		return Config{}, err
	}
	height, err := uintValue(v, KeyHeight)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		File:              file,
		Address:           strings.TrimSpace(v.GetString(KeyAddress)),
		Width:             width,
		Height:            height,
		SaveInterval:      v.GetDuration(KeySaveInterval),
		SaveCron:          strings.TrimSpace(v.GetString(KeySaveCron)),
		SaveLocation:      strings.TrimSpace(v.GetString(KeySaveLocation)),
		SaveAllImages:     v.GetBool(KeySaveAllImages),
		ReadTimeout:       v.GetDuration(KeyReadTimeout),
		WriteTimeout:      v.GetDuration(KeyWriteTimeout),
		HeartbeatInterval: v.GetDuration(KeyHeartbeatInterval),
		MaxMessageSize:    v.GetInt64(KeyMaxMessageSize),
		MaxOutboundQueue:  v.GetInt(KeyMaxOutboundQueue),
		MaxSessions:       v.GetInt(KeyMaxSessions),
		HubBuffer:         v.GetInt(KeyHubBuffer),
		ApplierQueue:      v.GetInt(KeyApplierQueue),
		ShutdownTimeout:   v.GetDuration(KeyShutdownTimeout),
		MetricsEnabled:    v.GetBool(KeyMetrics),
		OTLPEndpoint:      strings.TrimSpace(v.GetString(KeyOTLPEndpoint)),
		S3Bucket:          strings.TrimSpace(v.GetString(KeyS3Bucket)),
		S3Prefix:          strings.TrimSpace(v.GetString(KeyS3Prefix)),
		S3Region:          strings.TrimSpace(v.GetString(KeyS3Region)),
		S3Endpoint:        strings.TrimSpace(v.GetString(KeyS3Endpoint)),
		LogLevel:          strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
		LogFormat:         strings.ToLower(strings.TrimSpace(v.GetString(KeyLogFormat))),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// uintValue reads a dimension. Negative and non-numeric values are rejected
// here because viper's unsigned cast would silently turn them into zero.
func uintValue(v *viper.Viper, key string) (uint32, error) {
	raw := strings.TrimSpace(fmt.Sprint(v.Get(key)))
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, placeerrors.New(placeerrors.CodeInvalidDimensions).
			WithField(key).
			WithDetailf("%q is not a valid %s.", raw, key)
	}
	return uint32(n), nil
}

// loadConfigFile reads the file named by the config key. A missing file is an
// error only because it was asked for explicitly.
func loadConfigFile(v *viper.Viper) (string, error) {
	path := strings.TrimSpace(v.GetString(KeyConfig))
	if path == "" {
		return "", nil
	}
	expanded, err := expandPath(path)
	if err != nil {
		return "", placeerrors.New(placeerrors.CodeConfigFile).WithField(KeyConfig).Wrap(err)
	}
	info, err := os.Stat(expanded)
	if err != nil {
		return "", placeerrors.New(placeerrors.CodeConfigFile).WithField(KeyConfig).Wrap(err)
	}
	if info.IsDir() {
		return "", placeerrors.New(placeerrors.CodeConfigFile).
			WithField(KeyConfig).
			WithDetailf("%s is a directory.", expanded)
	}
	v.SetConfigFile(expanded)
	if err := v.ReadInConfig(); err != nil {
		return "", placeerrors.New(placeerrors.CodeConfigFile).WithField(KeyConfig).Wrap(err)
	}
	return expanded, nil
}

func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}

var (
	logLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	logFormats = map[string]bool{"text": true, "json": true}
)

// Validate checks the configuration and returns the first problem as a coded
// error.
func (c Config) Validate() error {
	if c.Address == "" {
		return placeerrors.New(placeerrors.CodeInvalidAddress).WithField(KeyAddress)
	}
	if _, _, err := net.SplitHostPort(c.Address); err != nil {
		return placeerrors.New(placeerrors.CodeInvalidAddress).WithField(KeyAddress).Wrap(err)
	}

	for _, side := range []struct {
		key string
		n   uint32
	}{{KeyWidth, c.Width}, {KeyHeight, c.Height}} {
		if side.n == 0 || side.n > canvas.MaxSide {
			return placeerrors.New(placeerrors.CodeInvalidDimensions).
				WithField(side.key).
				WithDetailf("Each side must be between 1 and %d pixels, got %d.", canvas.MaxSide, side.n)
		}
	}
	if px := uint64(c.Width) * uint64(c.Height); px > canvas.MaxPixels {
		return placeerrors.New(placeerrors.CodeInvalidDimensions).
			WithField(KeyWidth).
			WithDetailf("A %dx%d canvas has %d pixels; the limit is %d.", c.Width, c.Height, px, uint64(canvas.MaxPixels))
	}

	if c.SaveLocation == "" {
		return placeerrors.New(placeerrors.CodeInvalidConfig).
			WithField(KeySaveLocation).
			WithDetail("The save location must not be empty.")
	}
	if _, err := snapshot.CodecFor(c.SaveLocation); err != nil {
		return placeerrors.New(placeerrors.CodeUnsupportedFormat).WithField(KeySaveLocation).Wrap(err)
	}

	if c.SaveCron != "" {
		if err := snapshot.ValidateCron(c.SaveCron); err != nil {
			return placeerrors.New(placeerrors.CodeInvalidSchedule).WithField(KeySaveCron).Wrap(err)
		}
	} else if c.SaveInterval <= 0 {
		return placeerrors.New(placeerrors.CodeInvalidSchedule).WithField(KeySaveInterval)
	}

	if !logLevels[c.LogLevel] {
		return placeerrors.New(placeerrors.CodeInvalidLogSettings).
			WithField(KeyLogLevel).
			WithDetailf("Unknown log level %q.", c.LogLevel)
	}
	if !logFormats[c.LogFormat] {
		return placeerrors.New(placeerrors.CodeInvalidLogSettings).
			WithField(KeyLogFormat).
			WithDetailf("Unknown log format %q.", c.LogFormat)
	}

	positive := []struct {
		key string
		ok  bool
	}{
		{KeyWriteTimeout, c.WriteTimeout > 0},
		{KeyHeartbeatInterval, c.HeartbeatInterval > 0},
		{KeyMaxMessageSize, c.MaxMessageSize >= protocol.PointSize},
		{KeyMaxOutboundQueue, c.MaxOutboundQueue > 0},
		{KeyHubBuffer, c.HubBuffer > 0},
		{KeyApplierQueue, c.ApplierQueue > 0},
		{KeyShutdownTimeout, c.ShutdownTimeout > 0},
		{KeyReadTimeout, c.ReadTimeout >= 0},
		{KeyMaxSessions, c.MaxSessions >= 0},
	}
	for _, p := range positive {
		if !p.ok {
			return placeerrors.New(placeerrors.CodeInvalidLimit).WithField(p.key)
		}
	}
	return nil
}

// MirrorEnabled reports whether snapshots are mirrored to S3.
func (c Config) MirrorEnabled() bool {
	return c.S3Bucket != ""
}

// ImagePath returns the HTTP path the canvas image is served on. It carries
// the snapshot extension, e.g. /place.png.
func (c Config) ImagePath() string {
	ext := strings.ToLower(filepath.Ext(c.SaveLocation))
	if ext == "" {
		ext = ".png"
	}
	return "/place" + ext
}
