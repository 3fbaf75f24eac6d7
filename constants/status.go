package constants

// Strategy selects which artifacts preprocessing produces.
type Strategy string

const (
	StrategyText   Strategy = "text"
	StrategyVision Strategy = "vision"
	StrategyHybrid Strategy = "hybrid"
)

const (
	// LocalConfidenceGate is the minimum score at which a local result is accepted.
	LocalConfidenceGate = 0.8
	// DefaultDPI is the rasterization resolution for PDF pages.
	DefaultDPI = 200

	DefaultCurrency = "USD"
)

// Provider names recorded on extraction results.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)
