package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds every setting the service needs. It is built once at
// process start and handed to the storage adapters explicitly; nothing
// reads the environment after Load returns.
type Config struct {
	// Region is the object-store region used when UseLocal is false.
	Region string
	// RecordTable is the name of the metadata table.
	RecordTable string
	// Bucket is the object-store bucket holding image payloads.
	Bucket string
	// DBPath is the path to the SQLite metadata database.
	DBPath string
	// Endpoint is the local object-store endpoint (host:port).
	Endpoint string

	AccessKey string
	SecretKey string

	// UseLocal selects the local Endpoint without TLS instead of the
	// production S3 endpoint for Region.
	UseLocal bool
}

// Load reads configuration from the environment, applying defaults for
// anything unset. A .env file in the working directory is honored if
// present.
func Load() Config {
	// Missing .env is fine; real environments set variables directly.
	_ = godotenv.Load()

	return Config{
		Region:      getenv("IMAGEVAULT_REGION", "us-east-1"),
		RecordTable: getenv("IMAGEVAULT_TABLE", "images"),
		Bucket:      getenv("IMAGEVAULT_BUCKET", "imagevault-images"),
		DBPath:      getenv("IMAGEVAULT_DB", "imagevault.sqlite"),
		Endpoint:    getenv("MINIO_ENDPOINT", "localhost:9000"),
		AccessKey:   getenv("MINIO_ACCESS_KEY", "minioadmin"),
		SecretKey:   getenv("MINIO_SECRET_KEY", "minioadmin"),
		UseLocal:    getenvBool("IMAGEVAULT_USE_LOCAL", true),
	}
}

// getenv returns the value of the environment variable named by key or
// fallback if the variable is not present.
func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return strings.EqualFold(v, "true")
}
