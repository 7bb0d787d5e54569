package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultPort             = 4001
	DefaultPath             = "/realtime"
	DefaultJWTSecretEnv     = "REALTIME_JWT_SECRET"
	DefaultEmitSecretEnv    = "REALTIME_EMIT_SECRET"
	DefaultAudience         = "realtime"
	DefaultIssuer           = "taskhub-api"
	DefaultLeeway           = 5 * time.Second
	DefaultMaxBodyBytes     = 1 << 20
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultSendBuffer       = 64
	DefaultPingPeriod       = 25 * time.Second
	DefaultPongWait         = 60 * time.Second
)

// Config holds the server-side configuration parsed from the `server:`
// section of the config file.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// Port is the HTTP port serving sockets and the gateway (default 4001).
	Port int `yaml:"port"`

	// Path is the socket mount path (default "/realtime").
	Path string `yaml:"path"`

	// AllowedOrigins lists browser origins allowed to connect.
	// Any origin not listed is rejected.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// LogLevel is one of: debug | info | warn | error (default info).
	LogLevel string `yaml:"log_level"`

	// GRPCPort serves the gRPC health service when non-zero.
	GRPCPort int `yaml:"grpc_port"`

	Auth      AuthConfig      `yaml:"auth"`
	Handshake HandshakeConfig `yaml:"handshake"`
	Socket    SocketConfig    `yaml:"socket"`
}

// AuthConfig groups the two authentication gates.
type AuthConfig struct {
	JWT  JWTConfig  `yaml:"jwt"`
	Emit EmitConfig `yaml:"emit"`
}

// JWTConfig controls realtime token verification.
type JWTConfig struct {
	// SecretEnv names the environment variable holding the HS256 secret.
	SecretEnv string `yaml:"secret_env"`

	// Audience is the reserved realtime audience (default "realtime").
	Audience string `yaml:"audience"`

	// Issuer is the expected iss claim. Empty disables the check.
	Issuer string `yaml:"issuer"`

	// Leeway tolerates clock skew on exp (default 5s).
	Leeway time.Duration `yaml:"leeway"`
}

// Secret returns the signing secret resolved from the environment.
func (j JWTConfig) Secret() string {
	if j.SecretEnv == "" {
		return ""
	}
	return os.Getenv(j.SecretEnv)
}

// EmitConfig controls the Emit Gateway.
type EmitConfig struct {
	// SecretEnv names the environment variable holding the shared bearer secret.
	SecretEnv string `yaml:"secret_env"`

	// MaxBodyBytes bounds a request body (default 1 MiB).
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// Secret returns the shared gateway secret resolved from the environment.
func (e EmitConfig) Secret() string {
	if e.SecretEnv == "" {
		return ""
	}
	return os.Getenv(e.SecretEnv)
}

// HandshakeConfig bounds socket authentication.
type HandshakeConfig struct {
	// Timeout is how long a new socket may take to send its auth frame.
	Timeout time.Duration `yaml:"timeout"`
}

// SocketConfig tunes per-connection buffering and keepalive.
type SocketConfig struct {
	SendBuffer int           `yaml:"send_buffer"`
	PingPeriod time.Duration `yaml:"ping_period"`
	PongWait   time.Duration `yaml:"pong_wait"`
}

// SlogLevel maps LogLevel to a slog.Level; unknown values map to Info.
func (s ServerConfig) SlogLevel() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load builds the configuration from defaults, the YAML file at path
// (skipped when path is empty) and the environment.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("server config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("server config: parse yaml: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     DefaultPort,
			Path:     DefaultPath,
			LogLevel: "info",
			Auth: AuthConfig{
				JWT: JWTConfig{
					SecretEnv: DefaultJWTSecretEnv,
					Audience:  DefaultAudience,
					Issuer:    DefaultIssuer,
					Leeway:    DefaultLeeway,
				},
				Emit: EmitConfig{
					SecretEnv:    DefaultEmitSecretEnv,
					MaxBodyBytes: DefaultMaxBodyBytes,
				},
			},
			Handshake: HandshakeConfig{Timeout: DefaultHandshakeTimeout},
			Socket: SocketConfig{
				SendBuffer: DefaultSendBuffer,
				PingPeriod: DefaultPingPeriod,
				PongWait:   DefaultPongWait,
			},
		},
	}
}

// applyEnv overlays environment variables onto cfg.
func applyEnv(cfg *Config) error {
	s := &cfg.Server
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT %q is not a number", v)
		}
		s.Port = port
	}
	if v := os.Getenv("GRPC_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GRPC_PORT %q is not a number", v)
		}
		s.GRPCPort = port
	}
	if v := os.Getenv("REALTIME_PATH"); v != "" {
		s.Path = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		s.LogLevel = v
	}
	if v, ok := os.LookupEnv("ALLOWED_ORIGINS"); ok {
		s.AllowedOrigins = SplitList(v)
	}
	return nil
}

// SplitList splits a comma-separated list, trimming blanks.
func SplitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range [1, 65535]", s.Port)
	}
	if s.GRPCPort < 0 || s.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d is out of range [0, 65535]", s.GRPCPort)
	}
	if s.GRPCPort != 0 && s.GRPCPort == s.Port {
		return errors.New("server.grpc_port must differ from server.port")
	}
	if !strings.HasPrefix(s.Path, "/") {
		return fmt.Errorf("server.path %q must start with /", s.Path)
	}
	switch s.Path {
	case "/emit", "/health", "/stats", "/metrics":
		return fmt.Errorf("server.path %q collides with a gateway route", s.Path)
	}
	switch strings.ToLower(s.LogLevel) {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("server.log_level %q unknown: want debug|info|warn|error", s.LogLevel)
	}
	if s.Auth.JWT.Audience == "" {
		return errors.New("server.auth.jwt.audience must not be empty")
	}
	if s.Auth.JWT.Leeway < 0 {
		return errors.New("server.auth.jwt.leeway must not be negative")
	}
	if s.Auth.JWT.Secret() == "" {
		return fmt.Errorf("token signing secret is empty: set %s", envName(s.Auth.JWT.SecretEnv))
	}
	if s.Auth.Emit.Secret() == "" {
		return fmt.Errorf("emit gateway secret is empty: set %s", envName(s.Auth.Emit.SecretEnv))
	}
	if s.Auth.Emit.MaxBodyBytes <= 0 {
		return errors.New("server.auth.emit.max_body_bytes must be positive")
	}
	if s.Handshake.Timeout <= 0 {
		return errors.New("server.handshake.timeout must be positive")
	}
	if s.Socket.SendBuffer <= 0 {
		return errors.New("server.socket.send_buffer must be positive")
	}
	if s.Socket.PingPeriod <= 0 || s.Socket.PongWait <= s.Socket.PingPeriod {
		return errors.New("server.socket.ping_period must be positive and less than pong_wait")
	}
	return nil
}

func envName(name string) string {
	if name == "" {
		return "the secret_env variable"
	}
	return name
}
