package config

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MessageKeySize is the required length of the decoded message encryption
// key. AES-256 takes exactly 32 bytes.
const MessageKeySize = 32

type Config struct {
	ServerAddr     string
	DatabaseDSN    string
	SigningKey     []byte
	MessageKey     []byte
	AllowedOrigins []string
	// AuthRateLimit is the per-client requests-per-second budget on the
	// login and registration endpoints. Zero disables limiting.
	AuthRateLimit float64
}

// fileConfig is the YAML representation. Values given on the command line
// take precedence over the file.
type fileConfig struct {
	ServerAddr     string   `yaml:"server_addr"`
	DatabaseDSN    string   `yaml:"database_dsn"`
	SigningKey     string   `yaml:"signing_key"`
	MessageKey     string   `yaml:"message_key"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AuthRateLimit  float64  `yaml:"auth_rate_limit"`
}

type Params struct {
	ConfigFile     string
	ServerAddr     string
	DatabaseDSN    string
	SigningKey     string
	MessageKey     string
	AllowedOrigins []string
	AuthRateLimit  float64
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

func decodeMessageKey(hexKey string) ([]byte, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("message key is not valid hex: %w", err)
	}
	if len(key) != MessageKeySize {
		return nil, fmt.Errorf("message key must be %d bytes, got %d", MessageKeySize, len(key))
	}
	return key, nil
}

func NewConfig(p Params) (*Config, error) {
	if p.ConfigFile != "" {
		fc, err := loadFile(p.ConfigFile)
		if err != nil {
			return nil, err
		}
		if p.ServerAddr == "" {
			p.ServerAddr = fc.ServerAddr
		}
		if p.DatabaseDSN == "" {
			p.DatabaseDSN = fc.DatabaseDSN
		}
		if p.SigningKey == "" {
			p.SigningKey = fc.SigningKey
		}
		if p.MessageKey == "" {
			p.MessageKey = fc.MessageKey
		}
		if len(p.AllowedOrigins) == 0 {
			p.AllowedOrigins = fc.AllowedOrigins
		}
		if p.AuthRateLimit == 0 {
			p.AuthRateLimit = fc.AuthRateLimit
		}
	}

	if p.ServerAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if p.DatabaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if p.SigningKey == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}
	if p.MessageKey == "" {
		return nil, fmt.Errorf("message encryption key cannot be empty")
	}
	if p.AuthRateLimit < 0 {
		return nil, fmt.Errorf("auth rate limit cannot be negative")
	}

	signingKey, err := decodeSigningSecret(p.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	messageKey, err := decodeMessageKey(p.MessageKey)
	if err != nil {
		return nil, fmt.Errorf("decode message key: %w", err)
	}

	return &Config{
		ServerAddr:     p.ServerAddr,
		DatabaseDSN:    p.DatabaseDSN,
		SigningKey:     signingKey,
		MessageKey:     messageKey,
		AllowedOrigins: p.AllowedOrigins,
		AuthRateLimit:  p.AuthRateLimit,
	}, nil
}

func loadFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return &fc, nil
}
