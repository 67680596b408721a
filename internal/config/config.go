package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-yaml/yaml"

	"github.com/cryptoguard/cryptoguard"
	"github.com/cryptoguard/cryptoguard/internal/domain"
)

const (
	RatingBackendRelational  = "relational"
	RatingBackendAttestation = "attestation"
)

type Config struct {
	NodeInfo NodeInfo `yaml:"nodeInfo"`
	Server   Server   `yaml:"server"`
}

type NodeInfo struct {
	FQDN       string `yaml:"fqdn"`
	PrivateKey string `yaml:"privatekey"`
	SessionTTL string `yaml:"sessionTTL"` // e.g. 24h

	// ---
	Attester string `yaml:"-"`
}

type Server struct {
	Listen            string  `yaml:"listen"`
	DatabaseDriver    string  `yaml:"databaseDriver"` // postgres, sqlite
	PostgresDsn       string  `yaml:"postgresDsn"`
	SqlitePath        string  `yaml:"sqlitePath"`
	RedisAddr         string  `yaml:"redisAddr"`
	RedisPassword     string  `yaml:"redisPassword"`
	RedisDB           int     `yaml:"redisDB"`
	MemcachedAddr     string  `yaml:"memcachedAddr"`
	EnableTrace       bool    `yaml:"enableTrace"`
	TraceEndpoint     string  `yaml:"traceEndpoint"`
	RatingBackend     string  `yaml:"ratingBackend"` // relational, attestation
	AttestationRemote string  `yaml:"attestationRemote"`
	VoteTally         string  `yaml:"voteTally"` // latest, all
	WriteRateLimit    float64 `yaml:"writeRateLimit"`
	WriteRateBurst    int     `yaml:"writeRateBurst"`
	PolicyPath        string  `yaml:"policyPath"` // json write policy, optional
}

func Load(path string) (Config, error) {
	config, err := Read(path)
	if err != nil {
		return Config{}, err
	}

	if err := config.Complete(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Read decodes the file without defaults or validation.
func Read(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, fmt.Errorf("failed to decode config %s: %w", path, err)
	}

	return config, nil
}

// Complete applies defaults, validates and derives the attester address.
func (c *Config) Complete() error {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8000"
	}
	if c.Server.DatabaseDriver == "" {
		c.Server.DatabaseDriver = "postgres"
	}
	if c.Server.RatingBackend == "" {
		c.Server.RatingBackend = RatingBackendRelational
	}
	if c.Server.VoteTally == "" {
		c.Server.VoteTally = string(domain.VoteTallyLatest)
	}
	if c.Server.WriteRateLimit <= 0 {
		c.Server.WriteRateLimit = 1
	}
	if c.Server.WriteRateBurst <= 0 {
		c.Server.WriteRateBurst = 5
	}
	if c.NodeInfo.SessionTTL == "" {
		c.NodeInfo.SessionTTL = "24h"
	}

	switch strings.ToLower(c.Server.DatabaseDriver) {
	case "postgres":
		if c.Server.PostgresDsn == "" {
			return fmt.Errorf("server.postgresDsn is required for the postgres driver")
		}
	case "sqlite":
	default:
		return fmt.Errorf("unknown server.databaseDriver: %s", c.Server.DatabaseDriver)
	}

	switch c.Server.RatingBackend {
	case RatingBackendRelational, RatingBackendAttestation:
	default:
		return fmt.Errorf("unknown server.ratingBackend: %s", c.Server.RatingBackend)
	}

	if !domain.VoteTally(c.Server.VoteTally).Valid() {
		return fmt.Errorf("unknown server.voteTally: %s", c.Server.VoteTally)
	}

	if _, err := time.ParseDuration(c.NodeInfo.SessionTTL); err != nil {
		return fmt.Errorf("invalid nodeInfo.sessionTTL: %w", err)
	}

	if c.NodeInfo.PrivateKey == "" {
		return fmt.Errorf("nodeInfo.privatekey is required")
	}
	attester, err := cryptoguard.PrivKeyToAddr(c.NodeInfo.PrivateKey)
	if err != nil {
		return fmt.Errorf("invalid nodeInfo.privatekey: %w", err)
	}
	c.NodeInfo.Attester = attester

	return nil
}

// Domain returns the settings the usecase and service layers consume.
func (c Config) Domain() domain.Config {
	ttl, _ := time.ParseDuration(c.NodeInfo.SessionTTL)
	return domain.Config{
		FQDN:       c.NodeInfo.FQDN,
		PrivateKey: c.NodeInfo.PrivateKey,
		Attester:   c.NodeInfo.Attester,
		SessionTTL: ttl,
		VoteTally:  domain.VoteTally(c.Server.VoteTally),
	}
}
