package main

import (
	"crypto/ed25519"
	"encoding/hex"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/go-go-golems/mangiafuoco/pkg/operations"
	"github.com/go-go-golems/mangiafuoco/pkg/playlist"
)

type modelConfig struct {
	Name        string  `mapstructure:"name"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

type outputConfig struct {
	Path string `mapstructure:"path"`
}

type appConfig struct {
	Devices     []operations.DeviceInfo `mapstructure:"devices"`
	FeedServers []playlist.FeedServer   `mapstructure:"feed_servers"`
	Defaults    playlist.Defaults       `mapstructure:"defaults"`
	Output      outputConfig            `mapstructure:"output"`
	Model       modelConfig             `mapstructure:"model"`
	// SigningKeySeed is a hex-encoded 32-byte ed25519 seed. Built playlists
	// are signed when present.
	SigningKeySeed string `mapstructure:"signing_key_seed"`
	OpenAIAPIKey   string `mapstructure:"openai_api_key"`
}

func loadConfig() (*appConfig, error) {
	cfg := &appConfig{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "parse configuration")
	}
	if cfg.Output.Path == "" {
		cfg.Output.Path = "playlist.json"
	}
	return cfg, nil
}

func (c *appConfig) signingKey() (ed25519.PrivateKey, error) {
	if c.SigningKeySeed == "" {
		return nil, nil
	}
	seed, err := hex.DecodeString(c.SigningKeySeed)
	if err != nil {
		return nil, errors.Wrap(err, "decode signing key seed")
	}
	if len(seed) != ed25519.SeedSize {
		return nil, errors.Errorf("signing key seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

func (c *appConfig) operationsConfig() (operations.Config, error) {
	key, err := c.signingKey()
	if err != nil {
		return operations.Config{}, err
	}
	return operations.Config{
		Devices:     c.Devices,
		FeedServers: c.FeedServers,
		OutputPath:  c.Output.Path,
		SigningKey:  key,
	}, nil
}
