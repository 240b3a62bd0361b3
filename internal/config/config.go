package config

import (
	"os"
	"path/filepath"
	"strings"

	"codeberg.org/mutker/unabara/internal/errors"
	"codeberg.org/mutker/unabara/internal/prefs"
	"codeberg.org/mutker/unabara/internal/store"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel     = LogLevelInfo
	DefaultFFmpegPath   = "ffmpeg"
	DefaultVideoCodec   = "h264"
	DefaultVideoBitrate = 8000
	DefaultKillTimeout  = 3

	defaultEnvPrefix = "UNABARA"
	configName       = "unabara"
)

type Config struct {
	LogLevel     LogLevel `mapstructure:"log_level"`
	StorePath    string   `mapstructure:"store_path"`
	PrefsPath    string   `mapstructure:"prefs_path"`
	FFmpegPath   string   `mapstructure:"ffmpeg_path"`
	VideoCodec   string   `mapstructure:"video_codec"`
	VideoBitrate int      `mapstructure:"video_bitrate"`
	// KillTimeout is in seconds.
	KillTimeout int `mapstructure:"kill_timeout"`

	// File is the configuration file that was read, if any.
	File string `mapstructure:"-"`
}

// flag name -> config key
var flagKeys = map[string]string{
	"log-level":    "log_level",
	"store":        "store_path",
	"prefs":        "prefs_path",
	"ffmpeg":       "ffmpeg_path",
	"codec":        "video_codec",
	"bitrate":      "video_bitrate",
	"kill-timeout": "kill_timeout",
}

// Load builds the configuration from defaults, the TOML file, UNABARA_*
// environment variables and the global flags in args, in increasing order
// of precedence. Parsing stops at the first non-flag argument; the
// remaining arguments are returned.
func Load(args []string, opts ...Option) (*Config, []string, error) {
	errFactory := errors.New()

	o := options{envPrefix: defaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	fs := pflag.NewFlagSet(configName, pflag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.String("config", "", "Path to configuration file")
	fs.String("log-level", string(DefaultLogLevel), "Log level (debug, info, warning, error)")
	fs.String("store", "", "Path to the dive catalog database")
	fs.String("prefs", "", "Path to the preferences file")
	fs.String("ffmpeg", DefaultFFmpegPath, "ffmpeg executable")
	fs.String("codec", DefaultVideoCodec, "Video codec (h264, hevc, prores, vp9)")
	fs.Int("bitrate", DefaultVideoBitrate, "Video bitrate in kbit/s")
	fs.Int("kill-timeout", DefaultKillTimeout, "Seconds to wait for the encoder to exit after cancellation")

	if err := fs.Parse(args); err != nil {
		return nil, nil, errFactory.Wrap(errors.ErrInvalidArgument, err)
	}

	v := viper.New()
	setDefaults(v)

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	path := o.configPath
	if path == "" {
		path, _ = fs.GetString("config")
	}
	if path == "" {
		path = os.Getenv(o.envPrefix + "_CONFIG")
	}

	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		for _, dir := range searchPaths() {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, nil, errFactory.WithData(errors.ErrReadConfig, struct {
				Path  string
				Error string
			}{
				Path:  path,
				Error: err.Error(),
			})
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return cfg, fs.Args(), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", string(DefaultLogLevel))
	v.SetDefault("store_path", store.DefaultConfig().Path)
	v.SetDefault("prefs_path", prefs.DefaultPath())
	v.SetDefault("ffmpeg_path", DefaultFFmpegPath)
	v.SetDefault("video_codec", DefaultVideoCodec)
	v.SetDefault("video_bitrate", DefaultVideoBitrate)
	v.SetDefault("kill_timeout", DefaultKillTimeout)
}

func searchPaths() []string {
	var paths []string
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, configName))
	}
	return append(paths, filepath.Join("/etc", configName))
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	if !c.LogLevel.IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, struct{ LogLevel string }{string(c.LogLevel)})
	}
	if c.StorePath == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "store_path must not be empty")
	}
	if c.VideoBitrate <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, struct{ VideoBitrate int }{c.VideoBitrate})
	}
	if c.KillTimeout <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, struct{ KillTimeout int }{c.KillTimeout})
	}
	return nil
}

func (c *Config) GetLogLevel() LogLevel { return c.LogLevel }
func (c *Config) GetStorePath() string { return c.StorePath }
func (c *Config) GetPrefsPath() string { return c.PrefsPath }
func (c *Config) GetFFmpegPath() string { return c.FFmpegPath }
func (c *Config) GetVideoCodec() string { return c.VideoCodec }
func (c *Config) GetVideoBitrate() int { return c.VideoBitrate }
func (c *Config) GetKillTimeout() int { return c.KillTimeout }
