package domain

// APIType distinguishes remote-hosted backends from ones running on
// this machine (and therefore subject to VRAM admission).
type APIType string

const (
	APITypeHosted APIType = "hosted"
	APITypeLocal  APIType = "local"
)

// APIKind identifies the concrete backend protocol.
type APIKind string

const (
	APIKindGroq     APIKind = "groq"
	APIKindOllama   APIKind = "ollama"
	APIKindLlamaCpp APIKind = "llama_cpp"
	APIKindSDWebUI  APIKind = "sd_webui"
)

// ModelDescriptor maps a logical model name to the backend that serves it.
// For llama_cpp models ModelName is a GGUF file path; for the others it is
// the provider-side model identifier.
type ModelDescriptor struct {
	Name        string  `json:"-"`
	APIType     APIType `json:"api_type"`
	API         APIKind `json:"api"`
	ModelName   string  `json:"model_name"`
	BaseURL     string  `json:"base_url,omitempty"`
	VRAMUsageGB float64 `json:"vram_usage_gb,omitempty"`
	Emoji       string  `json:"emoji,omitempty"`
	Description string  `json:"description,omitempty"`
}

// IsLocal reports whether using this model consumes local resources.
func (d ModelDescriptor) IsLocal() bool {
	return d.APIType == APITypeLocal
}
