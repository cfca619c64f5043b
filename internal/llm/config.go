package llm

// TaskType identifies the kind of LLM task being performed.
type TaskType string

const (
	TaskNarrative TaskType = "narrative"
	TaskQueryPlan TaskType = "query_plan"
	TaskEmbed     TaskType = "embed"
)

const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// TaskConfig holds per-task LLM parameters.
type TaskConfig struct {
	Temperature float64
	MaxTokens   int
	TimeoutMs   int // overrides global if > 0
}

// LLMConfig holds all configuration for the LLM subsystem.
type LLMConfig struct {
	Provider   string
	APIKey     string
	Endpoint   string
	Model      string
	EmbedModel string
	TimeoutMs  int
	MaxRetries int
	Tasks      map[TaskType]TaskConfig
}

// DefaultConfig returns an LLMConfig for the Gemini API. External calls are
// bounded by a timeout and never retried.
func DefaultConfig() LLMConfig {
	return LLMConfig{
		Provider:   ProviderGemini,
		Endpoint:   "http://localhost:11434",
		Model:      "gemini-flash-latest",
		EmbedModel: "text-embedding-004",
		TimeoutMs:  10000,
		MaxRetries: 0,
		Tasks: map[TaskType]TaskConfig{
			TaskNarrative: {Temperature: 0.9, MaxTokens: 256, TimeoutMs: 10000},
			TaskQueryPlan: {Temperature: 0.4, MaxTokens: 1024, TimeoutMs: 10000},
			TaskEmbed:     {TimeoutMs: 5000},
		},
	}
}

// DefaultOllamaModels returns the generation and embedding models used when
// the provider is ollama and no model was configured.
func DefaultOllamaModels() (model, embedModel string) {
	return "llama3.2", "nomic-embed-text"
}

// TaskTimeout returns the effective timeout for a given task type.
// Uses the task-specific timeout if set, otherwise the global timeout.
func (c LLMConfig) TaskTimeout(task TaskType) int {
	if tc, ok := c.Tasks[task]; ok && tc.TimeoutMs > 0 {
		return tc.TimeoutMs
	}
	return c.TimeoutMs
}

// SetTaskTimeout overrides one task's timeout; non-positive values are ignored.
func (c *LLMConfig) SetTaskTimeout(task TaskType, ms int) {
	if ms <= 0 {
		return
	}
	if c.Tasks == nil {
		c.Tasks = map[TaskType]TaskConfig{}
	}
	tc := c.Tasks[task]
	tc.TimeoutMs = ms
	c.Tasks[task] = tc
}
