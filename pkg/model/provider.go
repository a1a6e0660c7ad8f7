package model

// ProviderProxy configures how provider requests leave the host.
type ProviderProxy interface {
	isProxy()
}

type ProxyNone struct{}

func (ProxyNone) isProxy() {}

type ProxyHTTP struct {
	Address  string `yaml:"address"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

func (ProxyHTTP) isProxy() {}

// ProviderSetting is the per-vendor connection configuration. The set of
// implementations is closed so dispatch stays exhaustive: OpenAISetting,
// GoogleSetting and OllamaSetting.
type ProviderSetting interface {
	isProviderSetting()

	// SettingName returns the user-facing name of the provider slot.
	SettingName() string
}

// OpenAISetting targets any OpenAI-compatible chat completions backend.
// APIKey may hold multiple keys separated by comma or newline.
type OpenAISetting struct {
	Name                string
	BaseURL             string
	APIKey              string
	ChatCompletionsPath string
	EmbeddingsPath      string
	ModelsPath          string
	Proxy               ProviderProxy
}

func (OpenAISetting) isProviderSetting() {}

func (s OpenAISetting) SettingName() string { return s.Name }

// GoogleSetting targets the Google AI Studio (Gemini) REST API.
type GoogleSetting struct {
	Name    string
	BaseURL string
	APIKey  string
	Proxy   ProviderProxy
}

func (GoogleSetting) isProviderSetting() {}

func (s GoogleSetting) SettingName() string { return s.Name }

// OllamaSetting targets a local or remote Ollama server. No API key.
type OllamaSetting struct {
	Name    string
	BaseURL string
	Proxy   ProviderProxy
}

func (OllamaSetting) isProviderSetting() {}

func (s OllamaSetting) SettingName() string { return s.Name }
