package config

const (
	defaultProvider         = ProviderMock
	defaultBackend          = BackendOpenAI
	defaultMaxTokens        = 900
	defaultTemperature      = 0.1
	defaultImageMaxEdge     = 1024
	defaultPerItemTimeout   = 45
	defaultMaxFailures      = 5
	defaultPrimaryExemplars = 2
	defaultRetryExemplars   = 1
	defaultBatchSize        = 20
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Provider:         defaultProvider,
		Backend:          defaultBackend,
		MaxTokens:        defaultMaxTokens,
		Temperature:      defaultTemperature,
		CompressImages:   true,
		ImageMaxEdge:     defaultImageMaxEdge,
		PerItemTimeout:   defaultPerItemTimeout,
		MaxFailures:      defaultMaxFailures,
		PrimaryExemplars: defaultPrimaryExemplars,
		RetryExemplars:   defaultRetryExemplars,
		BatchSize:        defaultBatchSize,
		Paths: Paths{
			Inbox:   "Scans_Inbox",
			Ready:   "Scans_Ready",
			Error:   "Scans_Error",
			Batches: "pipeline/output/batches",
			Output:  "pipeline/output",
			Tmp:     "pipeline/tmp",
			Prompts: "pipeline/prompts",
			LogDir:  "pipeline/logs",
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
