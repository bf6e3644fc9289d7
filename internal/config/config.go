// Package config loads service configuration from environment
// variables, including the performance profile presets consumed by the
// fetcher, the transcoder and the pipeline.
package config

import (
	"os"
	"runtime"
	"strconv"
	"time"
)

// Storage backend selectors accepted in STORAGE_TYPE.
const (
	StorageMinIO    = "MINIO"
	StorageS3       = "S3"
	StorageLocalFS  = "LOCAL_FS"
	StorageInMemory = "IN_MEMORY"
)

// Config is the full service configuration.
type Config struct {
	Host string
	Port string

	StorageType    string
	StorageSubPath string
	LocalFSPath    string
	CDNBaseURL     string

	MinioEndpointURL     string
	MinioAccessKeyID     string
	MinioSecretAccessKey string
	MinioBucket          string
	MinioRegion          string

	CacheBackend string // "memory" or "redis"
	RedisAddr    string

	Perf Performance
}

// Performance holds the tunables behind the profile presets. Individual
// env knobs override whatever the profile selected.
type Performance struct {
	MaxConcurrentDownloads  int
	MaxConcurrentProcessing int
	HTTPTimeout             time.Duration
	MaxImageSize            int64
	CPUThreadPoolSize       int
	EnableHTTP2             bool
	ConnectionPoolSize      int
	KeepAliveTimeout        time.Duration
}

// Load reads the full configuration from the environment.
func Load() Config {
	return Config{
		Host: getenv("HOST", "0.0.0.0"),
		Port: getenv("PORT", "3000"),

		StorageType:    getenv("STORAGE_TYPE", StorageLocalFS),
		StorageSubPath: os.Getenv("STORAGE_SUB_PATH"),
		LocalFSPath:    getenv("LOCAL_FS_STORAGE_PATH", "./data/images"),
		CDNBaseURL:     getenv("CDN_BASE_URL", "http://localhost:3000/api/images/files"),

		MinioEndpointURL:     getenv("MINIO_ENDPOINT_URL", "http://localhost:9000"),
		MinioAccessKeyID:     getenv("MINIO_ACCESS_KEY_ID", "minioadmin"),
		MinioSecretAccessKey: getenv("MINIO_SECRET_ACCESS_KEY", "minioadmin"),
		MinioBucket:          getenv("MINIO_BUCKET", "image-cache"),
		MinioRegion:          getenv("MINIO_REGION", "us-east-1"),

		CacheBackend: getenv("CACHE_BACKEND", "memory"),
		RedisAddr:    getenv("REDIS_ADDR", "127.0.0.1:6379"),

		Perf: LoadPerformance(),
	}
}

// LoadPerformance resolves the performance configuration: a profile
// preset from PERFORMANCE_PROFILE (default profile otherwise), then
// per-knob env overrides on top.
func LoadPerformance() Performance {
	var p Performance
	switch getenv("PERFORMANCE_PROFILE", "") {
	case "high_throughput":
		p = highThroughput()
	case "low_latency":
		p = lowLatency()
	case "memory_efficient":
		p = memoryEfficient()
	default:
		p = defaultProfile()
	}
	p.applyOverrides()
	return p
}

func defaultProfile() Performance {
	return Performance{
		MaxConcurrentDownloads:  20,
		MaxConcurrentProcessing: runtime.NumCPU(),
		HTTPTimeout:             30 * time.Second,
		MaxImageSize:            50 << 20,
		CPUThreadPoolSize:       runtime.NumCPU(),
		EnableHTTP2:             true,
		ConnectionPoolSize:      50,
		KeepAliveTimeout:        60 * time.Second,
	}
}

func highThroughput() Performance {
	return Performance{
		MaxConcurrentDownloads:  50,
		MaxConcurrentProcessing: runtime.NumCPU() * 2,
		HTTPTimeout:             15 * time.Second,
		MaxImageSize:            100 << 20,
		CPUThreadPoolSize:       runtime.NumCPU(),
		EnableHTTP2:             true,
		ConnectionPoolSize:      100,
		KeepAliveTimeout:        120 * time.Second,
	}
}

func lowLatency() Performance {
	return Performance{
		MaxConcurrentDownloads:  10,
		MaxConcurrentProcessing: runtime.NumCPU(),
		HTTPTimeout:             10 * time.Second,
		MaxImageSize:            20 << 20,
		CPUThreadPoolSize:       runtime.NumCPU(),
		EnableHTTP2:             true,
		ConnectionPoolSize:      25,
		KeepAliveTimeout:        30 * time.Second,
	}
}

func memoryEfficient() Performance {
	return Performance{
		MaxConcurrentDownloads:  5,
		MaxConcurrentProcessing: max(1, runtime.NumCPU()/2),
		HTTPTimeout:             45 * time.Second,
		MaxImageSize:            10 << 20,
		CPUThreadPoolSize:       max(1, runtime.NumCPU()/2),
		EnableHTTP2:             false,
		ConnectionPoolSize:      10,
		KeepAliveTimeout:        30 * time.Second,
	}
}

func (p *Performance) applyOverrides() {
	if v, ok := getenvInt("MAX_CONCURRENT_DOWNLOADS"); ok {
		p.MaxConcurrentDownloads = v
	}
	if v, ok := getenvInt("MAX_CONCURRENT_PROCESSING"); ok {
		p.MaxConcurrentProcessing = v
	}
	if v, ok := getenvInt("HTTP_TIMEOUT_SECS"); ok {
		p.HTTPTimeout = time.Duration(v) * time.Second
	}
	if v, ok := getenvInt("MAX_IMAGE_SIZE_MB"); ok {
		p.MaxImageSize = int64(v) << 20
	}
	if v, ok := getenvInt("CPU_THREAD_POOL_SIZE"); ok {
		p.CPUThreadPoolSize = v
	}
	if v, ok := getenvBool("ENABLE_HTTP2"); ok {
		p.EnableHTTP2 = v
	}
	if v, ok := getenvInt("CONNECTION_POOL_SIZE"); ok {
		p.ConnectionPoolSize = v
	}
	if v, ok := getenvInt("KEEP_ALIVE_TIMEOUT_SECS"); ok {
		p.KeepAliveTimeout = time.Duration(v) * time.Second
	}
}

// getenv returns the value of the environment variable key or def if
// not set.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func getenvBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}
