package config

// Config is loaded with envconfig. Fields are either required (the service
// refuses to start without them) or carry a default suited to local
// development.
type Config struct {
	Port         string `env:"PORT,default=8080"`
	DATABASE_URL string `env:"DATABASE_URL,required"`

	// Model providers. LLM_PROVIDER picks the single provider internal/app
	// builds and every agent shares; only the API key matching that choice
	// is used.
	LLM_PROVIDER     string `env:"LLM_PROVIDER,default=openai"`
	OPENAI_API_KEY   string `env:"OPENAI_API_KEY,required"`
	ANTHROPIC_API_KEY string `env:"ANTHROPIC_API_KEY"`
	GOOGLE_API_KEY   string `env:"GOOGLE_API_KEY"`
	GROQ_API_KEY     string `env:"GROQ_API_KEY"`

	COHERE_API_KEY      string `env:"COHERE_API_KEY,required"`
	PINECONE_API_KEY    string `env:"PINECONE_API_KEY"`
	PINECONE_INDEX_NAME string `env:"PINECONE_INDEX_NAME,default=procurement-knowledge"`
	VECTOR_DB_TYPE      string `env:"VECTOR_DB_TYPE,default=pgvector"`

	REDIS_ADDR     string `env:"REDIS_ADDR,default=127.0.0.1:6379"`
	REDIS_PASSWORD string `env:"REDIS_PASSWORD"`

	// Generation & phase-gate core settings.
	COORDINATOR_MAX_CONCURRENCY   int     `env:"COORDINATOR_MAX_CONCURRENCY,default=4"`
	COORDINATOR_ANCESTOR_CHAR_CAP int     `env:"COORDINATOR_ANCESTOR_CHAR_CAP,default=2000"`
	PHASEGATE_BLOCK_ON_UNAPPROVED bool    `env:"PHASEGATE_BLOCK_ON_UNAPPROVED,default=false"`
	RAG_RETRIEVE_TOP_K            int     `env:"RAG_RETRIEVE_TOP_K,default=5"`
	RAG_RETRIEVE_THRESHOLD        float64 `env:"RAG_RETRIEVE_THRESHOLD,default=0.7"`
}

// Vector DB Types
const (
	VectorDBPgVector = "pgvector"
	VectorDBPinecone = "pinecone"
)
