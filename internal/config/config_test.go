package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	placeerrors "github.com/vango-dev/place/internal/errors"
	"github.com/vango-dev/place/pkg/canvas"
	"github.com/vango-dev/place/pkg/protocol"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse(%v) error = %v", args, err)
	}
	return fs
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if cfg.Address != "0.0.0.0:8080" {
		t.Errorf("Address = %q", cfg.Address)
	}
	if cfg.Width != 1000 || cfg.Height != 1000 {
		t.Errorf("size = %dx%d, want 1000x1000", cfg.Width, cfg.Height)
	}
	if cfg.SaveInterval != 120*time.Second {
		t.Errorf("SaveInterval = %v, want 2m", cfg.SaveInterval)
	}
	if cfg.SaveLocation != "place.png" {
		t.Errorf("SaveLocation = %q", cfg.SaveLocation)
	}
	if cfg.SaveAllImages {
		t.Error("SaveAllImages = true, want false")
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newFlags(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := Default()
	if cfg != want {
		t.Errorf("Load() = %+v\nwant %+v", cfg, want)
	}
}

func TestLoad_Flags(t *testing.T) {
	fs := newFlags(t,
		"--address", "127.0.0.1:9000",
		"--width", "64",
		"--height", "32",
		"--save-interval", "5s",
		"--save-location", "canvas.bmp",
		"--save-all-images",
		"--metrics",
		"--max-sessions", "10",
	)
	cfg, err := Load(fs)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Address != "127.0.0.1:9000" {
		t.Errorf("Address = %q", cfg.Address)
	}
	if cfg.Width != 64 || cfg.Height != 32 {
		t.Errorf("size = %dx%d, want 64x32", cfg.Width, cfg.Height)
	}
	if cfg.SaveInterval != 5*time.Second {
		t.Errorf("SaveInterval = %v", cfg.SaveInterval)
	}
	if cfg.SaveLocation != "canvas.bmp" {
		t.Errorf("SaveLocation = %q", cfg.SaveLocation)
	}
	if !cfg.SaveAllImages || !cfg.MetricsEnabled {
		t.Errorf("SaveAllImages = %v, MetricsEnabled = %v, want both true", cfg.SaveAllImages, cfg.MetricsEnabled)
	}
	if cfg.MaxSessions != 10 {
		t.Errorf("MaxSessions = %d", cfg.MaxSessions)
	}
	if got := cfg.ImagePath(); got != "/place.bmp" {
		t.Errorf("ImagePath() = %q, want /place.bmp", got)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("PLACE_WIDTH", "20")
	t.Setenv("PLACE_SAVE_LOCATION", "env.tiff")
	t.Setenv("PLACE_SAVE_ALL_IMAGES", "true")
	t.Setenv("PLACE_LOG_FORMAT", "JSON")

	cfg, err := Load(newFlags(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Width != 20 {
		t.Errorf("Width = %d, want 20", cfg.Width)
	}
	if cfg.Height != DefaultHeight {
		t.Errorf("Height = %d, want default", cfg.Height)
	}
	if cfg.SaveLocation != "env.tiff" {
		t.Errorf("SaveLocation = %q", cfg.SaveLocation)
	}
	if !cfg.SaveAllImages {
		t.Error("SaveAllImages = false, want true")
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want json", cfg.LogFormat)
	}
}

func TestLoad_FlagBeatsEnvironment(t *testing.T) {
	t.Setenv("PLACE_WIDTH", "20")
	cfg, err := Load(newFlags(t, "--width", "30"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Width != 30 {
		t.Errorf("Width = %d, want flag value 30", cfg.Width)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	path := writeFile(t, "place.yaml", `
address: 127.0.0.1:7000
width: 8
height: 9
save-cron: "@every 1m"
s3-bucket: canvases
`)
	t.Setenv("PLACE_HEIGHT", "12")

	cfg, err := Load(newFlags(t, "--config", path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.File == "" {
		t.Error("File is empty, want the config path")
	}
	if cfg.Address != "127.0.0.1:7000" {
		t.Errorf("Address = %q", cfg.Address)
	}
	if cfg.Width != 8 {
		t.Errorf("Width = %d, want file value 8", cfg.Width)
	}
	if cfg.Height != 12 {
		t.Errorf("Height = %d, want env value 12", cfg.Height)
	}
	if cfg.SaveCron != "@every 1m" {
		t.Errorf("SaveCron = %q", cfg.SaveCron)
	}
	if !cfg.MirrorEnabled() {
		t.Error("MirrorEnabled() = false, want true")
	}
}

func TestLoad_ConfigFileErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"missing", filepath.Join(t.TempDir(), "nope.yaml")},
		{"directory", t.TempDir()},
		{"malformed", writeFile(t, "bad.yaml", "width: [1, 2\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(newFlags(t, "--config", tt.path))
			if !placeerrors.HasCode(err, placeerrors.CodeConfigFile) {
				t.Fatalf("Load() error = %v, want %s", err, placeerrors.CodeConfigFile)
			}
		})
	}
}

func TestLoad_RejectsNegativeDimension(t *testing.T) {
	t.Setenv("PLACE_WIDTH", "-1")
	_, err := Load(newFlags(t))
	if !placeerrors.HasCode(err, placeerrors.CodeInvalidDimensions) {
		t.Fatalf("Load() error = %v, want %s", err, placeerrors.CodeInvalidDimensions)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		code   string
		field  string
	}{
		{"empty address", func(c *Config) { c.Address = "" }, placeerrors.CodeInvalidAddress, KeyAddress},
		{"address without port", func(c *Config) { c.Address = "localhost" }, placeerrors.CodeInvalidAddress, KeyAddress},
		{"zero width", func(c *Config) { c.Width = 0 }, placeerrors.CodeInvalidDimensions, KeyWidth},
		{"zero height", func(c *Config) { c.Height = 0 }, placeerrors.CodeInvalidDimensions, KeyHeight},
		{"max uint32 sides", func(c *Config) { c.Width, c.Height = math.MaxUint32, math.MaxUint32 }, placeerrors.CodeInvalidDimensions, KeyWidth},
		{"height over side limit", func(c *Config) { c.Height = canvas.MaxSide + 1 }, placeerrors.CodeInvalidDimensions, KeyHeight},
		{"too many pixels", func(c *Config) { c.Width, c.Height = canvas.MaxSide, canvas.MaxSide }, placeerrors.CodeInvalidDimensions, KeyWidth},
		{"message smaller than a point", func(c *Config) { c.MaxMessageSize = protocol.PointSize - 1 }, placeerrors.CodeInvalidLimit, KeyMaxMessageSize},
		{"empty save location", func(c *Config) { c.SaveLocation = "" }, placeerrors.CodeInvalidConfig, KeySaveLocation},
		{"unsupported format", func(c *Config) { c.SaveLocation = "canvas.jpg" }, placeerrors.CodeUnsupportedFormat, KeySaveLocation},
		{"zero interval", func(c *Config) { c.SaveInterval = 0 }, placeerrors.CodeInvalidSchedule, KeySaveInterval},
		{"bad cron", func(c *Config) { c.SaveCron = "every now and then" }, placeerrors.CodeInvalidSchedule, KeySaveCron},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, placeerrors.CodeInvalidLogSettings, KeyLogLevel},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, placeerrors.CodeInvalidLogSettings, KeyLogFormat},
		{"zero queue", func(c *Config) { c.MaxOutboundQueue = 0 }, placeerrors.CodeInvalidLimit, KeyMaxOutboundQueue},
		{"zero hub buffer", func(c *Config) { c.HubBuffer = 0 }, placeerrors.CodeInvalidLimit, KeyHubBuffer},
		{"negative read timeout", func(c *Config) { c.ReadTimeout = -time.Second }, placeerrors.CodeInvalidLimit, KeyReadTimeout},
		{"negative max sessions", func(c *Config) { c.MaxSessions = -1 }, placeerrors.CodeInvalidLimit, KeyMaxSessions},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			err := cfg.Validate()
			pe := placeerrors.FromError(err, "")
			if pe == nil || pe.Code != tt.code {
				t.Fatalf("Validate() error = %v, want code %s", err, tt.code)
			}
			if pe.Field != tt.field {
				t.Errorf("Field = %q, want %q", pe.Field, tt.field)
			}
		})
	}
}

func TestValidate_CronReplacesInterval(t *testing.T) {
	cfg := Default()
	cfg.SaveInterval = 0
	cfg.SaveCron = "*/30 * * * * *"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestDefault_ReadDeadlineIsOptIn(t *testing.T) {
	if got := Default().ReadTimeout; got != 0 {
		t.Errorf("default ReadTimeout = %v, want 0 (keepalive pings only)", got)
	}
	cfg := Default()
	cfg.ReadTimeout = 90 * time.Second
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() with a read deadline error = %v", err)
	}
}

func TestValidate_LargestAcceptedCanvas(t *testing.T) {
	cfg := Default()
	cfg.Width = canvas.MaxSide
	cfg.Height = canvas.MaxPixels / canvas.MaxSide
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() %dx%d error = %v", cfg.Width, cfg.Height, err)
	}
	cfg.MaxMessageSize = protocol.PointSize
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() with MaxMessageSize = PointSize error = %v", err)
	}
}
