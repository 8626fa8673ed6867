package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/erickim73/lineclient/internal/logger"
	"github.com/erickim73/lineclient/pkg/protocol"
	"gopkg.in/yaml.v3"
)

type yamlConfig struct {
	Host            string  `yaml:"host"`
	Port            int     `yaml:"port"`
	Network         string  `yaml:"network"`
	Terminator      string  `yaml:"terminator"`
	FlushAfterWrite *bool   `yaml:"flush_after_write"`
	BufferSize      int     `yaml:"buffer_size"`
	DialTimeoutMS   int     `yaml:"dial_timeout_ms"`
	Prompt          *string `yaml:"prompt"`
	ExitKeyword     string  `yaml:"exit_keyword"`

	// ambient settings
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsPort int    `yaml:"metrics_port"`
	HistoryDir  string `yaml:"history_dir"`
}

type Config struct {
	// connection settings
	Host    string
	Port    int
	Network string // tcp, tcp4 or tcp6

	// wire settings
	Terminator      string // lf, cr or crlf
	FlushAfterWrite bool
	BufferSize      int
	DialTimeout     time.Duration

	// console settings
	Prompt      string
	ExitKeyword string

	// logging settings
	LogLevel  string // debug, info, warn, error
	LogFormat string // text or json

	// metrics endpoint, 0 disables it
	MetricsPort int

	// transcript store directory, empty disables it
	HistoryDir string
}

func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            7878,
		Network:         "tcp",
		Terminator:      "lf",
		FlushAfterWrite: true,
		BufferSize:      1024,
		DialTimeout:     0,
		Prompt:          "> ",
		ExitKeyword:     "exit",
		LogLevel:        string(logger.LevelWarn),
		LogFormat:       "text",
		MetricsPort:     0,
		HistoryDir:      "",
	}
}

// reads a yaml file on top of the defaults. keys missing from the file keep their default value
func LoadFromFile(fileName string) (*Config, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}

	var yc yamlConfig
	err = yaml.Unmarshal(data, &yc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", fileName, err)
	}

	cfg := DefaultConfig()
	if yc.Host != "" {
		cfg.Host = yc.Host
	}
	if yc.Port != 0 {
		cfg.Port = yc.Port
	}
	if yc.Network != "" {
		cfg.Network = yc.Network
	}
	if yc.Terminator != "" {
		cfg.Terminator = yc.Terminator
	}
	if yc.FlushAfterWrite != nil {
		cfg.FlushAfterWrite = *yc.FlushAfterWrite
	}
	if yc.BufferSize != 0 {
		cfg.BufferSize = yc.BufferSize
	}
	if yc.DialTimeoutMS != 0 {
		cfg.DialTimeout = time.Duration(yc.DialTimeoutMS) * time.Millisecond
	}
	if yc.Prompt != nil {
		cfg.Prompt = *yc.Prompt
	}
	if yc.ExitKeyword != "" {
		cfg.ExitKeyword = yc.ExitKeyword
	}
	if yc.LogLevel != "" {
		cfg.LogLevel = yc.LogLevel
	}
	if yc.LogFormat != "" {
		cfg.LogFormat = yc.LogFormat
	}
	cfg.MetricsPort = yc.MetricsPort
	cfg.HistoryDir = yc.HistoryDir

	return cfg, nil
}

// registers flags on fs with cfg values as defaults and parses args. returns the config file path and the show-history switch
func ParseFlags(fs *flag.FlagSet, cfg *Config, args []string) (string, bool, error) {
	// config file path flag
	configFile := fs.String("config", "", "Path to config file")
	showHistory := fs.Bool("show-history", false, "Print the recorded transcript and exit")

	// connection flags
	fs.StringVar(&cfg.Host, "host", cfg.Host, "Server host")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "Server port")
	fs.StringVar(&cfg.Network, "network", cfg.Network, "Network: tcp, tcp4 or tcp6")

	// wire flags
	fs.StringVar(&cfg.Terminator, "terminator", cfg.Terminator, "Line terminator: lf, cr or crlf")
	fs.BoolVar(&cfg.FlushAfterWrite, "flush", cfg.FlushAfterWrite, "Flush after every write")
	fs.IntVar(&cfg.BufferSize, "buffer-size", cfg.BufferSize, "Reply buffer size in bytes")
	dialMS := fs.Int("dial-timeout", int(cfg.DialTimeout.Milliseconds()), "Dial timeout in milliseconds, 0 for none")

	// console flags
	fs.StringVar(&cfg.Prompt, "prompt", cfg.Prompt, "Prompt marker")
	fs.StringVar(&cfg.ExitKeyword, "exit-keyword", cfg.ExitKeyword, "Keyword that ends the session")

	// ambient flags
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text or json")
	fs.IntVar(&cfg.MetricsPort, "metrics-port", cfg.MetricsPort, "Prometheus metrics port, 0 disables")
	fs.StringVar(&cfg.HistoryDir, "history-dir", cfg.HistoryDir, "Transcript store directory, empty disables")

	err := fs.Parse(args)
	if err != nil {
		return "", false, err
	}

	cfg.DialTimeout = time.Duration(*dialMS) * time.Millisecond

	return *configFile, *showHistory, nil
}

// re-applies flags that were set explicitly, so they win over values loaded from a file
func ApplyFlags(fs *flag.FlagSet, cfg *Config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = f.Value.String()
		case "port":
			fmt.Sscanf(f.Value.String(), "%d", &cfg.Port)
		case "network":
			cfg.Network = f.Value.String()
		case "terminator":
			cfg.Terminator = f.Value.String()
		case "flush":
			cfg.FlushAfterWrite, _ = strconv.ParseBool(f.Value.String())
		case "buffer-size":
			fmt.Sscanf(f.Value.String(), "%d", &cfg.BufferSize)
		case "dial-timeout":
			var ms int
			fmt.Sscanf(f.Value.String(), "%d", &ms)
			cfg.DialTimeout = time.Duration(ms) * time.Millisecond
		case "prompt":
			cfg.Prompt = f.Value.String()
		case "exit-keyword":
			cfg.ExitKeyword = f.Value.String()
		case "log-level":
			cfg.LogLevel = f.Value.String()
		case "log-format":
			cfg.LogFormat = f.Value.String()
		case "metrics-port":
			fmt.Sscanf(f.Value.String(), "%d", &cfg.MetricsPort)
		case "history-dir":
			cfg.HistoryDir = f.Value.String()
		}
	})
}

// checks the settings that would otherwise fail later in confusing ways
func (c *Config) Validate() error {
	var errs []error

	if c.Host == "" {
		errs = append(errs, errors.New("host must not be empty"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	switch c.Network {
	case "tcp", "tcp4", "tcp6":
	default:
		errs = append(errs, fmt.Errorf("unsupported network %q", c.Network))
	}
	if _, err := protocol.ParseTerminator(c.Terminator); err != nil {
		errs = append(errs, err)
	}
	if c.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("buffer size must be positive, got %d", c.BufferSize))
	}
	if c.DialTimeout < 0 {
		errs = append(errs, fmt.Errorf("dial timeout must not be negative, got %s", c.DialTimeout))
	}
	if c.ExitKeyword == "" {
		errs = append(errs, errors.New("exit keyword must not be empty"))
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if err := logger.ValidFormat(c.LogFormat); err != nil {
		errs = append(errs, err)
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		errs = append(errs, fmt.Errorf("metrics port %d out of range", c.MetricsPort))
	}

	return errors.Join(errs...)
}

// helper function for the dial address
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// helper function for the parsed line terminator. call Validate first
func (c *Config) GetTerminator() protocol.Terminator {
	t, err := protocol.ParseTerminator(c.Terminator)
	if err != nil {
		return protocol.LF
	}
	return t
}
