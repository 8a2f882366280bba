package model

// ================ Config ================
type SessionConfig struct {
	EntityTTL     string `envconfig:"SESSION_ENTITY_TTL" default:"5m"`
	IdleTTL       string `envconfig:"SESSION_IDLE_TTL" default:"30m"`
	SweepInterval string `envconfig:"SESSION_SWEEP_INTERVAL" default:"10m"`
	MaxTurns      int    `envconfig:"SESSION_MAX_TURNS" default:"5"`
}

type DecomposeModelConfig struct {
	Model       string  `envconfig:"DECOMPOSE_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"DECOMPOSE_MAX_TOKENS" default:"1500"`
	Temperature float32 `envconfig:"DECOMPOSE_TEMPERATURE" default:"0.1"`
	// Turns of history seeded into the decomposition prompt.
	HistoryTurns int `envconfig:"DECOMPOSE_HISTORY_TURNS" default:"3"`
}

type AnswerModelConfig struct {
	Model       string  `envconfig:"ANSWER_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"ANSWER_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"ANSWER_TEMPERATURE" default:"0.4"`
}

type AnswerPromptConfig struct {
	MunicipalityName string `envconfig:"PROMPT_MUNICIPALITY_NAME" default:"Maple Ridge"`
	Province         string `envconfig:"PROMPT_PROVINCE" default:"British Columbia"`
}

// HeuristicsConfig keeps the detector word lists configurable rather than
// hard-coded, since the ambiguous-term list is expected to be maintained.
type HeuristicsConfig struct {
	// Terms that name a service attribute of a business but also collide
	// with business-category vocabulary.
	ServiceAttributeTerms string `envconfig:"HEURISTICS_SERVICE_TERMS" default:"insurance, credit, financing, delivery, warranty, installation, repairs"`
	// Words that mark a fee/cost question.
	PriceWords string `envconfig:"HEURISTICS_PRICE_WORDS" default:"cost, price, fee, charge, rate"`
	// Interrogative openers that make a short query ambiguous on their own.
	VagueOpeners string `envconfig:"HEURISTICS_VAGUE_OPENERS" default:"what time, how much, how many, where, when, who, why, which"`
	// Maximum length for the vague-query guard to apply.
	VagueMaxLen int `envconfig:"HEURISTICS_VAGUE_MAX_LEN" default:"20"`
}

type AssemblyConfig struct {
	// Documents longer than this are chunked unless the query is a fee query.
	FullTextBudget int `envconfig:"ASSEMBLY_FULL_TEXT_BUDGET" default:"40000"`
	ChunkSize      int `envconfig:"ASSEMBLY_CHUNK_SIZE" default:"2000"`
	MaxChunks      int `envconfig:"ASSEMBLY_MAX_CHUNKS" default:"3"`
}

type RetrievalConfig struct {
	BusinessCollection string `envconfig:"RETRIEVAL_BUSINESS_COLLECTION" default:"businesses"`
	DocumentCollection string `envconfig:"RETRIEVAL_DOCUMENT_COLLECTION" default:"documents"`
	// Overfetch multiplier applied before deduplication.
	OverfetchFactor int    `envconfig:"RETRIEVAL_OVERFETCH_FACTOR" default:"3"`
	BusinessLimit   int    `envconfig:"RETRIEVAL_BUSINESS_LIMIT" default:"5"`
	DocumentLimit   int    `envconfig:"RETRIEVAL_DOCUMENT_LIMIT" default:"5"`
	MaxResults      int    `envconfig:"RETRIEVAL_MAX_RESULTS" default:"3"`
	EmbeddingModel  string `envconfig:"RETRIEVAL_EMBEDDING_MODEL" default:"gemini-embedding-001"`
}
