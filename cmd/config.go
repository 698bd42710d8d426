package main

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/chdigius/activityhub/thirdparty"
	"github.com/chdigius/activityhub/types"
)

type Config struct {
	Server     Server            `yaml:"server"`
	Federation Federation        `yaml:"federation"`
	ThirdParty thirdparty.Config `yaml:"thirdparty"`
	Ingest     Ingest            `yaml:"ingest"`
	NodeInfo   types.NodeInfo    `yaml:"nodeInfo"`
}

type Server struct {
	Bind          string `yaml:"bind"`
	Dsn           string `yaml:"dsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisDB       int    `yaml:"redisDB"`
	MemcachedAddr string `yaml:"memcachedAddr"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
}

type Federation struct {
	BaseURL      string            `yaml:"baseUrl"`
	Actors       []ActorConfig     `yaml:"actors"`
	ScopeActors  map[string]string `yaml:"scopeActors"`
	DefaultActor string            `yaml:"defaultActor"`
}

type ActorConfig struct {
	Username       string `yaml:"username"`
	Name           string `yaml:"name"`
	PublicKeyPath  string `yaml:"publicKeyPath"`
	PrivateKeyPath string `yaml:"privateKeyPath"`
}

type Ingest struct {
	Sources         []string `yaml:"sources"`
	IntervalSeconds int      `yaml:"intervalSeconds"`
	JitterSeconds   int      `yaml:"jitterSeconds"`
}

func LoadConfig(path string) (Config, error) {
	var config Config

	body, err := os.ReadFile(path)
	if err != nil {
		return config, errors.Wrap(err, "failed to read config file")
	}
	if err := yaml.Unmarshal(body, &config); err != nil {
		return config, errors.Wrap(err, "failed to parse config file")
	}

	if config.Server.Bind == "" {
		config.Server.Bind = ":8000"
	}
	if config.Federation.BaseURL == "" {
		return config, errors.New("federation.baseUrl is required")
	}
	if len(config.Federation.Actors) == 0 {
		return config, errors.New("federation.actors must define at least one actor")
	}
	if config.Federation.DefaultActor == "" {
		config.Federation.DefaultActor = config.Federation.Actors[0].Username
	}

	return config, nil
}

// BuildRegistry loads each actor's keypair from disk and assembles the
// registry used by signing and the federation endpoints.
func BuildRegistry(config Federation) (*types.ActorRegistry, error) {
	registry := types.NewActorRegistry(config.BaseURL, config.ScopeActors, config.DefaultActor)

	for _, ac := range config.Actors {
		pubPem, err := os.ReadFile(ac.PublicKeyPath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read public key for %s", ac.Username)
		}
		privPem, err := os.ReadFile(ac.PrivateKeyPath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read private key for %s", ac.Username)
		}
		priv, err := types.ParsePrivateKey(privPem)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse private key for %s", ac.Username)
		}
		registry.Add(types.NewActor(config.BaseURL, ac.Username, ac.Name, string(pubPem), priv))
	}

	return registry, nil
}
