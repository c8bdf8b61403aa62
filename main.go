package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cnic-capture/logging"
	"cnic-capture/models"
	redis "cnic-capture/redis"
)

type Config struct {
	ServerConfig ServerConfig `json:"server_config"`

	LogLevel  string `json:"log_level,omitempty"`
	LogFormat string `json:"log_format,omitempty"`

	UpdateEndpoint UpdateEndpointConfig `json:"update_endpoint"`

	StorageType         string                    `json:"storage_type"`
	RedisConfig         redis.RedisConfig         `json:"redis_config,omitempty"`
	RedisSentinelConfig redis.RedisSentinelConfig `json:"redis_sentinel_config,omitempty"`
}

// UpdateEndpointConfig describes the remote order service and the credential
// attached to update calls. The credential is always runtime-supplied: either
// a static token (directly or via the named environment variable) or a
// private key used to sign short-lived service tokens.
type UpdateEndpointConfig struct {
	BaseURL    string `json:"base_url"`
	AuthHeader string `json:"auth_header,omitempty"`

	AuthMode          string `json:"auth_mode"` // "static" or "jwt"
	StaticToken       string `json:"static_token,omitempty"`
	StaticTokenEnv    string `json:"static_token_env,omitempty"`
	JwtPrivateKeyPath string `json:"jwt_private_key_path,omitempty"`
	JwtIssuer         string `json:"jwt_issuer,omitempty"`
	JwtTtlSeconds     int    `json:"jwt_ttl_seconds,omitempty"`
}

func main() {
	configPath := flag.String("config", "", "Path for the config.json to use")
	flag.Parse()

	if *configPath == "" {
		slog.Error("please provide a config path using the --config flag")
		os.Exit(1)
	}

	config, err := readConfigFile(*configPath)
	if err != nil {
		slog.Error("failed to read config file", "path", *configPath, "error", err)
		os.Exit(1)
	}

	logging.InitLogger(config.LogLevel, config.LogFormat)
	slog.Info("using config", "path", *configPath)

	tokenProvider, err := createTokenProvider(&config.UpdateEndpoint)
	if err != nil {
		slog.Error("failed to instantiate token provider", "error", err)
		os.Exit(1)
	}

	sessionStorage, err := createSessionStorage(&config)
	if err != nil {
		slog.Error("failed to instantiate session storage", "error", err)
		os.Exit(1)
	}

	updateClient := NewRemoteOrderClient(config.UpdateEndpoint.BaseURL, config.UpdateEndpoint.AuthHeader, tokenProvider)
	if err := updateClient.HealthCheck(); err != nil {
		// The upstream being down is not fatal; submissions will surface it.
		slog.Warn("Upstream order service unreachable at startup", "error", err)
	}

	serverState := ServerState{
		sessionStorage: sessionStorage,
		updateClient:   updateClient,
		slots:          []string{models.SlotAcknowledgement},
	}

	server, err := NewServer(&serverState, config.ServerConfig)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	if err := server.ListenAndServe(); err != nil {
		slog.Error("failed to listen and serve", "error", err)
		os.Exit(1)
	}
}

func readConfigFile(path string) (Config, error) {
	configBytes, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var config Config
	if err := json.Unmarshal(configBytes, &config); err != nil {
		return Config{}, err
	}

	return config, nil
}

func createSessionStorage(config *Config) (SessionStorage, error) {
	if config.StorageType == "redis" {
		slog.Info("Using redis session storage")
		client, err := redis.NewRedisClient(&config.RedisConfig)
		if err != nil {
			return nil, err
		}
		return NewRedisSessionStorage(client, config.RedisConfig.Namespace), nil
	}
	if config.StorageType == "redis_sentinel" {
		slog.Info("Using redis sentinel session storage")
		client, err := redis.NewRedisSentinelClient(&config.RedisSentinelConfig)
		if err != nil {
			return nil, err
		}
		return NewRedisSessionStorage(client, config.RedisSentinelConfig.Namespace), nil
	}
	if config.StorageType == "memory" {
		slog.Info("Using in memory session storage")
		return NewInMemorySessionStorage(), nil
	}
	return nil, fmt.Errorf("%v is not a valid storage type", config.StorageType)
}

func createTokenProvider(config *UpdateEndpointConfig) (TokenProvider, error) {
	switch config.AuthMode {
	case "jwt":
		slog.Info("Using signed service tokens for the update endpoint")
		return NewJwtTokenProvider(
			config.JwtPrivateKeyPath,
			config.JwtIssuer,
			time.Duration(config.JwtTtlSeconds)*time.Second,
		)
	case "static", "":
		value := config.StaticToken
		if config.StaticTokenEnv != "" {
			value = os.Getenv(config.StaticTokenEnv)
		}
		return NewStaticTokenProvider(value)
	}
	return nil, fmt.Errorf("%v is not a valid auth mode", config.AuthMode)
}
