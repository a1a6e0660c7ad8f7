package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/m-mizutani/ermine/pkg/adapter"
	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/ermine/pkg/repository"
	"github.com/m-mizutani/ermine/pkg/usecase/memory"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// config merges the YAML config file with command line overrides.
type config struct {
	configPath string
	provider   string
	modelID    string
	noMemory   bool

	file fileConfig
}

type fileConfig struct {
	Providers []providerConfig `yaml:"providers"`
	Defaults  defaultsConfig   `yaml:"defaults"`
	Memory    memoryConfig     `yaml:"memory"`
}

type providerConfig struct {
	Name                string       `yaml:"name"`
	Type                string       `yaml:"type"`
	BaseURL             string       `yaml:"base_url"`
	APIKey              string       `yaml:"api_key"`
	ChatCompletionsPath string       `yaml:"chat_completions_path"`
	EmbeddingsPath      string       `yaml:"embeddings_path"`
	ModelsPath          string       `yaml:"models_path"`
	Proxy               *proxyConfig `yaml:"proxy"`
}

type proxyConfig struct {
	Address  string `yaml:"address"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type defaultsConfig struct {
	Provider    string   `yaml:"provider"`
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
	TopP        *float64 `yaml:"top_p"`
	MaxTokens   *int     `yaml:"max_tokens"`
}

type memoryConfig struct {
	Disabled  bool   `yaml:"disabled"`
	Store     string `yaml:"store"`
	Path      string `yaml:"path"`
	Firestore struct {
		Project  string `yaml:"project"`
		Database string `yaml:"database"`
	} `yaml:"firestore"`
	Embedding struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
	} `yaml:"embedding"`
	Classifier struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
	} `yaml:"classifier"`
}

// globalFlags returns flags shared by every command, bound to cfg.
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to config file",
			Sources:     cli.EnvVars("ERMINE_CONFIG"),
			Destination: &cfg.configPath,
		},
		&cli.StringFlag{
			Name:        "provider",
			Aliases:     []string{"p"},
			Usage:       "Provider name from config file",
			Sources:     cli.EnvVars("ERMINE_PROVIDER"),
			Destination: &cfg.provider,
		},
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "Model ID",
			Sources:     cli.EnvVars("ERMINE_MODEL"),
			Destination: &cfg.modelID,
		},
		&cli.BoolFlag{
			Name:        "no-memory",
			Usage:       "Disable the long-term memory pipeline",
			Sources:     cli.EnvVars("ERMINE_NO_MEMORY"),
			Destination: &cfg.noMemory,
		},
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "ermine.yml"
	}
	return filepath.Join(home, ".config", "ermine", "config.yml")
}

func (cfg *config) load() error {
	path := cfg.configPath
	if path == "" {
		path = defaultConfigPath()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && cfg.configPath == "" {
			return nil
		}
		return goerr.Wrap(err, "failed to read config file", goerr.V("path", path))
	}

	if err := yaml.Unmarshal(raw, &cfg.file); err != nil {
		return goerr.Wrap(err, "failed to parse config file", goerr.V("path", path))
	}
	return nil
}

func (c *proxyConfig) toModel() model.ProviderProxy {
	if c == nil {
		return model.ProxyNone{}
	}
	return model.ProxyHTTP{
		Address:  c.Address,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
	}
}

func (c *providerConfig) toSetting() (model.ProviderSetting, error) {
	switch c.Type {
	case "openai", "":
		return model.OpenAISetting{
			Name:                c.Name,
			BaseURL:             c.BaseURL,
			APIKey:              c.APIKey,
			ChatCompletionsPath: c.ChatCompletionsPath,
			EmbeddingsPath:      c.EmbeddingsPath,
			ModelsPath:          c.ModelsPath,
			Proxy:               c.Proxy.toModel(),
		}, nil
	case "google":
		return model.GoogleSetting{
			Name:    c.Name,
			BaseURL: c.BaseURL,
			APIKey:  c.APIKey,
			Proxy:   c.Proxy.toModel(),
		}, nil
	case "ollama":
		return model.OllamaSetting{
			Name:    c.Name,
			BaseURL: c.BaseURL,
			Proxy:   c.Proxy.toModel(),
		}, nil
	default:
		return nil, goerr.New("unknown provider type",
			goerr.V("name", c.Name), goerr.V("type", c.Type))
	}
}

// providerSetting resolves a named provider from the config file. An
// empty name falls back to the configured default, then to the first
// entry.
func (cfg *config) providerSetting(name string) (model.ProviderSetting, error) {
	if len(cfg.file.Providers) == 0 {
		return nil, goerr.New("no providers configured, create a config file first")
	}

	if name == "" {
		name = cfg.file.Defaults.Provider
	}
	if name == "" {
		return cfg.file.Providers[0].toSetting()
	}

	for i := range cfg.file.Providers {
		if cfg.file.Providers[i].Name == name {
			return cfg.file.Providers[i].toSetting()
		}
	}
	return nil, goerr.New("provider not found in config", goerr.V("name", name))
}

// chatSetting resolves the provider used for chat, honoring the
// --provider override.
func (cfg *config) chatSetting() (model.ProviderSetting, error) {
	return cfg.providerSetting(cfg.provider)
}

// chatParams builds generation parameters from defaults plus the
// --model override.
func (cfg *config) chatParams() (model.GenerationParams, error) {
	modelID := cfg.modelID
	if modelID == "" {
		modelID = cfg.file.Defaults.Model
	}
	if modelID == "" {
		return model.GenerationParams{}, goerr.New("model is required, set --model or defaults.model")
	}

	return model.GenerationParams{
		Model:       model.Model{ID: modelID},
		Temperature: cfg.file.Defaults.Temperature,
		TopP:        cfg.file.Defaults.TopP,
		MaxTokens:   cfg.file.Defaults.MaxTokens,
	}, nil
}

func (cfg *config) newRepository(ctx context.Context) (repository.Repository, error) {
	mc := cfg.file.Memory
	switch mc.Store {
	case "", "sqlite":
		path := mc.Path
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, goerr.Wrap(err, "failed to resolve home directory")
			}
			dir := filepath.Join(home, ".config", "ermine")
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, goerr.Wrap(err, "failed to create config directory")
			}
			path = filepath.Join(dir, "memory.db")
		}
		return repository.NewSQLite(path)

	case "firestore":
		if mc.Firestore.Project == "" {
			return nil, goerr.New("memory.firestore.project is required")
		}
		database := mc.Firestore.Database
		if database == "" {
			database = "(default)"
		}
		return repository.NewFirestore(ctx, mc.Firestore.Project, database)

	default:
		return nil, goerr.New("unknown memory store", goerr.V("store", mc.Store))
	}
}

func (cfg *config) newEmbedder(ctx context.Context) (adapter.Embedder, error) {
	ec := cfg.file.Memory.Embedding
	setting, err := cfg.providerSetting(ec.Provider)
	if err != nil {
		return nil, err
	}

	switch s := setting.(type) {
	case model.OpenAISetting:
		if ec.Model == "" {
			return nil, goerr.New("memory.embedding.model is required")
		}
		return adapter.NewOpenAIEmbedder(s, ec.Model), nil

	case model.GoogleSetting:
		opts := []adapter.GeminiOption{}
		if ec.Model != "" {
			opts = append(opts, adapter.WithEmbeddingModel(ec.Model))
		}
		return adapter.NewGeminiEmbedder(ctx, s.APIKey, opts...)

	default:
		return nil, goerr.New("provider type does not support embeddings",
			goerr.V("provider", setting.SettingName()))
	}
}

// newMemoryService wires the full memory pipeline, or returns nil when
// memory is disabled.
func (cfg *config) newMemoryService(ctx context.Context, generator memory.TextGenerator) (*memory.Service, repository.Repository, error) {
	if cfg.noMemory || cfg.file.Memory.Disabled {
		return nil, nil, nil
	}

	repo, err := cfg.newRepository(ctx)
	if err != nil {
		return nil, nil, err
	}

	embedder, err := cfg.newEmbedder(ctx)
	if err != nil {
		repo.Close()
		return nil, nil, err
	}

	cc := cfg.file.Memory.Classifier
	setting, err := cfg.providerSetting(cc.Provider)
	if err != nil {
		repo.Close()
		return nil, nil, err
	}
	classifierModel := cc.Model
	if classifierModel == "" {
		classifierModel = cfg.file.Defaults.Model
	}
	if classifierModel == "" {
		repo.Close()
		return nil, nil, goerr.New("memory.classifier.model is required")
	}

	filter := memory.NewFilterUseCase(generator, setting, classifierModel)
	return memory.NewService(ctx, filter, embedder, repo), repo, nil
}
