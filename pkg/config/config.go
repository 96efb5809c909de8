// Package config loads the YAML configuration shared by the netlab
// binaries. Command-line flags that were set explicitly take precedence
// over the file, and the file over Default.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mubashir1osmani/netlab/pkg/transport"
	"github.com/mubashir1osmani/netlab/pkg/trust"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the root of the YAML document.
type Config struct {
	Server    Server    `yaml:"server"`
	Client    Client    `yaml:"client"`
	TLS       TLS       `yaml:"tls"`
	Logging   Logging   `yaml:"logging"`
	Discovery Discovery `yaml:"discovery"`
}

// Server configures netlab-server.
type Server struct {
	// Address is host:port. Empty picks 0.0.0.0 with the TCP or TLS
	// default port.
	Address          string        `yaml:"address"`
	Backlog          int           `yaml:"backlog"`
	ReuseAddr        bool          `yaml:"reuse_addr"`
	BufferSize       int           `yaml:"buffer_size"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

// Client configures netlab-client.
type Client struct {
	Address        string        `yaml:"address"`
	ServerName     string        `yaml:"server_name"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	Attempts       uint          `yaml:"attempts"`
}

// TLS holds trust material paths and protocol policy.
type TLS struct {
	Enabled      bool     `yaml:"enabled"`
	CAFile       string   `yaml:"ca"`
	CertFile     string   `yaml:"cert"`
	KeyFile      string   `yaml:"key"`
	MinVersion   string   `yaml:"min_version"`
	CipherSuites []string `yaml:"cipher_suites"`
}

// Logging selects the operational log level and the protocol capture file.
type Logging struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	Capture string `yaml:"capture"`
	Wire    bool   `yaml:"wire"`
}

// Discovery controls mDNS advertisement and browsing.
type Discovery struct {
	Advertise     bool          `yaml:"advertise"`
	Instance      string        `yaml:"instance"`
	BrowseTimeout time.Duration `yaml:"browse_timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: Server{
			Backlog:          transport.DefaultBacklog,
			ReuseAddr:        true,
			BufferSize:       transport.DefaultBufferSize,
			HandshakeTimeout: transport.DefaultHandshakeTimeout,
		},
		Client: Client{
			Address:        "localhost",
			ConnectTimeout: transport.DefaultConnectTimeout,
			Attempts:       1,
		},
		TLS: TLS{
			CAFile:     "certs/ca.crt",
			CertFile:   "certs/server.crt",
			KeyFile:    "certs/server.key",
			MinVersion: "1.2",
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
		Discovery: Discovery{
			BrowseTimeout: 3 * time.Second,
		},
	}
}

// Load reads path over Default. Unknown keys are an error.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document over Default.
func Parse(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings shared by both binaries.
func (c *Config) Validate() error {
	return joinInvalid(c.common())
}

func (c *Config) common() []error {
	var errs []error
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q: want text or json", c.Logging.Format))
	}
	if _, err := trust.ParseVersion(c.TLS.MinVersion); err != nil {
		errs = append(errs, fmt.Errorf("tls.min_version: %w", err))
	}
	if _, err := trust.ParseCipherSuites(c.TLS.CipherSuites); err != nil {
		errs = append(errs, fmt.Errorf("tls.cipher_suites: %w", err))
	}
	return errs
}

// ValidateServer checks the server section and, in TLS mode, that both the
// certificate and the key are named.
func (c *Config) ValidateServer() error {
	errs := c.common()
	if c.Server.Address != "" {
		if err := checkPort(c.Server.Address); err != nil {
			errs = append(errs, fmt.Errorf("server.address: %w", err))
		}
	}
	if c.Server.Backlog < 0 {
		errs = append(errs, fmt.Errorf("server.backlog %d: must not be negative", c.Server.Backlog))
	}
	if c.Server.BufferSize < 0 {
		errs = append(errs, fmt.Errorf("server.buffer_size %d: must not be negative", c.Server.BufferSize))
	}
	if c.Server.ReadTimeout < 0 || c.Server.HandshakeTimeout < 0 {
		errs = append(errs, errors.New("server timeouts must not be negative"))
	}
	if c.TLS.Enabled && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		errs = append(errs, errors.New("tls mode needs both tls.cert and tls.key"))
	}
	return joinInvalid(errs)
}

// ValidateClient checks the client section and, in TLS mode, that a CA is
// named. An address without a port is accepted; ClientAddress fills it in.
func (c *Config) ValidateClient() error {
	errs := c.common()
	if c.Client.Address == "" {
		errs = append(errs, errors.New("client.address is required"))
	}
	if c.Client.ConnectTimeout < 0 {
		errs = append(errs, errors.New("client.connect_timeout must not be negative"))
	}
	if c.TLS.Enabled && c.TLS.CAFile == "" {
		errs = append(errs, errors.New("tls mode needs tls.ca"))
	}
	return joinInvalid(errs)
}

// ListenAddress returns the server bind address with defaults applied.
func (c *Config) ListenAddress() string {
	if c.Server.Address != "" {
		return c.Server.Address
	}
	return net.JoinHostPort("0.0.0.0", strconv.Itoa(c.DefaultPort()))
}

// ClientAddress returns the dial address, adding the default port when
// Client.Address is a bare host.
func (c *Config) ClientAddress() string {
	addr := c.Client.Address
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(strings.Trim(addr, "[]"), strconv.Itoa(c.DefaultPort()))
}

// DefaultPort is 9443 in TLS mode and 9000 otherwise.
func (c *Config) DefaultPort() int {
	if c.TLS.Enabled {
		return transport.DefaultTLSPort
	}
	return transport.DefaultTCPPort
}

// ListenConfig converts the server section.
func (c *Config) ListenConfig() transport.ListenConfig {
	return transport.ListenConfig{
		Address:   c.ListenAddress(),
		Backlog:   c.Server.Backlog,
		ReuseAddr: c.Server.ReuseAddr,
	}
}

// TrustServer converts the TLS section for trust.LoadServer.
func (c *Config) TrustServer() (trust.ServerConfig, error) {
	minVersion, err := trust.ParseVersion(c.TLS.MinVersion)
	if err != nil {
		return trust.ServerConfig{}, err
	}
	suites, err := trust.ParseCipherSuites(c.TLS.CipherSuites)
	if err != nil {
		return trust.ServerConfig{}, err
	}
	return trust.ServerConfig{
		CertFile:     c.TLS.CertFile,
		KeyFile:      c.TLS.KeyFile,
		MinVersion:   minVersion,
		CipherSuites: suites,
	}, nil
}

// TrustClient converts the TLS section for trust.LoadClient.
func (c *Config) TrustClient() (trust.ClientConfig, error) {
	minVersion, err := trust.ParseVersion(c.TLS.MinVersion)
	if err != nil {
		return trust.ClientConfig{}, err
	}
	return trust.ClientConfig{CAFile: c.TLS.CAFile, MinVersion: minVersion}, nil
}

// SlogLevel parses Logging.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging.level %q: want debug, info, warn or error", c.Logging.Level)
	}
}

// NewSlogHandler builds the operational log handler for w.
func (c *Config) NewSlogHandler(w io.Writer) slog.Handler {
	level, _ := c.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if c.Logging.Format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func checkPort(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	p, err := strconv.Atoi(port)
	if err != nil || p < 0 || p > 65535 {
		return fmt.Errorf("port %q out of range", port)
	}
	return nil
}

func joinInvalid(errs []error) error {
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}
