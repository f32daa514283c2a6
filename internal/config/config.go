package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Paths    PathsConfig   `mapstructure:"paths"`
	Phoneme  PhonemeConfig `mapstructure:"phoneme"`
	Runtime  RuntimeConfig `mapstructure:"runtime"`
	Server   ServerConfig  `mapstructure:"server"`
	TTS      TTSConfig     `mapstructure:"tts"`
	LogLevel string        `mapstructure:"log_level"`
}

type PathsConfig struct {
	ModelDir string `mapstructure:"model_dir"`
}

type PhonemeConfig struct {
	EspeakPath string `mapstructure:"espeak_path"`
}

type RuntimeConfig struct {
	ORTLibraryPath string `mapstructure:"ort_library_path"`
	ORTVersion     string `mapstructure:"ort_version"`
	ORTAPIVersion  uint32 `mapstructure:"ort_api_version"`
}

type ServerConfig struct {
	ListenAddr             string `mapstructure:"listen_addr"`
	MaxTextBytes           int    `mapstructure:"max_text_bytes"`
	Workers                int    `mapstructure:"workers"`
	RequestTimeoutSeconds  int    `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
}

type TTSConfig struct {
	ChunkSize       int     `mapstructure:"chunk_size"`
	SampleRate      int     `mapstructure:"sample_rate"`
	SilenceDuration float64 `mapstructure:"silence_duration"`
	Language        string  `mapstructure:"language"`
	Concurrency     int     `mapstructure:"concurrency"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Paths:   PathsConfig{ModelDir: "models/nix-en"},
		Phoneme: PhonemeConfig{EspeakPath: "espeak-ng"},
		Runtime: RuntimeConfig{ORTAPIVersion: 23},
		Server: ServerConfig{
			ListenAddr:             ":8080",
			MaxTextBytes:           65536,
			Workers:                2,
			RequestTimeoutSeconds:  120,
			ShutdownTimeoutSeconds: 30,
		},
		TTS: TTSConfig{
			ChunkSize:       50,
			SampleRate:      22050,
			SilenceDuration: 0.1,
			Language:        "en-us",
			Concurrency:     1,
		},
		LogLevel: "info",
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("paths-model-dir", defaults.Paths.ModelDir, "Directory holding the model artifacts")
	fs.String("model-dir", defaults.Paths.ModelDir, "Directory holding the model artifacts (alias for --paths-model-dir)")
	fs.String("phoneme-espeak-path", defaults.Phoneme.EspeakPath, "Path to the espeak-ng executable")
	fs.String("runtime-ort-library-path", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library")
	fs.String("ort-lib", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library (alias for --runtime-ort-library-path)")
	fs.String("runtime-ort-version", defaults.Runtime.ORTVersion, "Expected ONNX Runtime version")
	fs.Uint32("runtime-ort-api-version", defaults.Runtime.ORTAPIVersion, "ONNX Runtime C API version")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("server-max-text-bytes", defaults.Server.MaxTextBytes, "Maximum accepted request text size in bytes")
	fs.Int("server-workers", defaults.Server.Workers, "Maximum concurrent synthesis requests")
	fs.Int("server-request-timeout-seconds", defaults.Server.RequestTimeoutSeconds, "Per-request synthesis timeout in seconds")
	fs.Int("server-shutdown-timeout-seconds", defaults.Server.ShutdownTimeoutSeconds, "Graceful shutdown timeout in seconds")
	fs.Int("tts-chunk-size", defaults.TTS.ChunkSize, "Maximum characters per synthesis chunk")
	fs.Int("tts-sample-rate", defaults.TTS.SampleRate, "Output sample rate in Hz")
	fs.Float64("tts-silence-duration", defaults.TTS.SilenceDuration, "Silence appended after each chunk in seconds")
	fs.String("tts-language", defaults.TTS.Language, "espeak voice used for phonemization")
	fs.Int("tts-concurrency", defaults.TTS.Concurrency, "Max chunks synthesized in parallel")
	fs.String("log-level", defaults.LogLevel, "Log level (debug, info, warn, error)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("NIXTTS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_", "__", "_"))
	if err := v.BindEnv("runtime.ort_library_path", "NIXTTS_ORT_LIB", "ORT_LIBRARY_PATH"); err != nil {
		return Config{}, fmt.Errorf("bind ort env vars: %w", err)
	}
	v.AutomaticEnv()

	if err := readConfigFile(v, opts.ConfigFile); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

// readConfigFile loads an explicit config file strictly; without one, a
// nixtts.* file in the working directory is optional.
func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file: %w", err)
		}

		return nil
	}

	v.SetConfigName("nixtts")
	v.AddConfigPath(".")

	var notFound viper.ConfigFileNotFoundError
	if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("read config file: %w", err)
	}

	return nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.model_dir", c.Paths.ModelDir)
	v.SetDefault("phoneme.espeak_path", c.Phoneme.EspeakPath)
	v.SetDefault("runtime.ort_library_path", c.Runtime.ORTLibraryPath)
	v.SetDefault("runtime.ort_version", c.Runtime.ORTVersion)
	v.SetDefault("runtime.ort_api_version", c.Runtime.ORTAPIVersion)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.max_text_bytes", c.Server.MaxTextBytes)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.request_timeout_seconds", c.Server.RequestTimeoutSeconds)
	v.SetDefault("server.shutdown_timeout_seconds", c.Server.ShutdownTimeoutSeconds)
	v.SetDefault("tts.chunk_size", c.TTS.ChunkSize)
	v.SetDefault("tts.sample_rate", c.TTS.SampleRate)
	v.SetDefault("tts.silence_duration", c.TTS.SilenceDuration)
	v.SetDefault("tts.language", c.TTS.Language)
	v.SetDefault("tts.concurrency", c.TTS.Concurrency)
	v.SetDefault("log_level", c.LogLevel)
}

// flagBindings maps each config key to its CLI flag, plus an optional short
// alias spelling.
var flagBindings = []struct {
	key   string
	flag  string
	alias string
}{
	{key: "paths.model_dir", flag: "paths-model-dir", alias: "model-dir"},
	{key: "phoneme.espeak_path", flag: "phoneme-espeak-path"},
	{key: "runtime.ort_library_path", flag: "runtime-ort-library-path", alias: "ort-lib"},
	{key: "runtime.ort_version", flag: "runtime-ort-version"},
	{key: "runtime.ort_api_version", flag: "runtime-ort-api-version"},
	{key: "server.listen_addr", flag: "server-listen-addr"},
	{key: "server.max_text_bytes", flag: "server-max-text-bytes"},
	{key: "server.workers", flag: "server-workers"},
	{key: "server.request_timeout_seconds", flag: "server-request-timeout-seconds"},
	{key: "server.shutdown_timeout_seconds", flag: "server-shutdown-timeout-seconds"},
	{key: "tts.chunk_size", flag: "tts-chunk-size"},
	{key: "tts.sample_rate", flag: "tts-sample-rate"},
	{key: "tts.silence_duration", flag: "tts-silence-duration"},
	{key: "tts.language", flag: "tts-language"},
	{key: "tts.concurrency", flag: "tts-concurrency"},
	{key: "log_level", flag: "log-level"},
}

// bindFlags binds each config key directly to its flag so that changed flags
// outrank env vars and config files, while unset flags fall through to them.
// An alias spelling wins only when it was set explicitly and the long
// spelling was not.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, b := range flagBindings {
		f := fs.Lookup(b.flag)
		if f == nil {
			continue
		}

		if b.alias != "" {
			if a := fs.Lookup(b.alias); a != nil && a.Changed && !f.Changed {
				f = a
			}
		}

		if err := v.BindPFlag(b.key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", b.flag, err)
		}
	}

	return nil
}
