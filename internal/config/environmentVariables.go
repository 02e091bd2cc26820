package config

import (
	"log/slog"
	"os"
	"time"
)

const (
	IS_PROD                         = false
	LOG_LEVEL_PROD                  = slog.LevelInfo
	FALLBACK_REDIS_TO_INTERNALSTORE = true //if redis init fails, it falls back to an internal in-memory store
	TRACE_ID_KEY                    = "traceId"
	RATE_LIMIT_PER_SECOND           = 2
	BURST_RATE_LIMIT_PER_SECOND     = 5
	NoAuthBypass                    = false
	RateLimiterIdleTTL              = 10 * time.Minute

	MaxWorkerCount    int64 = 4
	MinWorkerCount    int64 = 1
	IdleWorkerTimeout       = 1 * time.Minute
	//conversion has no mid-flight cancellation, this only bounds the status bookkeeping
	JobTimeout = 30 * time.Minute

	//serverTimeouts
	ReadTimeout            = 5 * time.Second
	WriteTimeout           = 30 * time.Second
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second

	//server listening port
	ServerListenAddr = ":3000"

	//job requests buffer limit
	BufferLimit = 100

	MaxUploadSize = 100 << 20 //100mb

	//pipeline defaults
	DefaultQueueCapacity     = 20
	DefaultStageBatchSize    = 12
	DefaultPollInterval      = 100 * time.Millisecond
	DefaultMaxConcurrentDocs = 3
	DefaultMaxConcurrentOCR  = 4
	DefaultEngineWorkers     = 2
	DefaultEmbeddingModel    = "intfloat/multilingual-e5-base"
	DefaultMaxTokens         = 1024
	DefaultChunkOverlap      = 50
	DefaultDownloadTimeout   = 60 * time.Second
	DefaultTesseractPath     = "tesseract"
	PageExtractTimeout       = 10 * time.Second

	SectionTitleMaxLen = 100
	UnknownSection     = "Unknown Section"
	OutputSuffix       = "_chunks.json"
	KeywordTopN        = 15

	//vectorDB
	EmbeddingOutputDimensionality int32 = 1536
	EmbeddingDBName                     = "document-chunks"
	IndexBatchSize                      = 100

	QdrantConnectionTimeout = 30 * time.Second
	QdrantHost              = "localhost"
	QdrantGrpcPort          = 6334
	QdrantUseTLS            = false //set for https
	QdrantPoolSize          = 1     //2-5 is preferred for prod according to documentation

	//embeddings + keywords
	GeminiModelName      = "gemini-2.5-flash-lite-preview-09-2025"
	GoogleEmbeddingModel = "gemini-embedding-001"
	OpenAIEmbeddingModel = "text-embedding-3-small"

	MaxIdleConns        = 50
	MaxIdleConnsPerHost = 25
	IdleConnTimeout     = 60 * time.Second

	//redis
	redisHost = "127.0.0.1"
	redisPort = "6379"
	RedisAddr = redisHost + ":" + redisPort

	RedisJobStore = 0

	RedisJobStoreTTL = 24 * time.Hour
	RedisPingTimeout = 3 * time.Second
	RedisIOTimeout   = 30 * time.Second
)

var (
	AuthToken     = os.Getenv("AUTH_TOKEN")
	RedisPassword = os.Getenv("REDIS_PASSWORD")
)
