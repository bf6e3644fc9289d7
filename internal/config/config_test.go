package config

import (
	"runtime"
	"testing"
	"time"
)

func TestDefaultProfile(t *testing.T) {
	p := LoadPerformance()

	if p.MaxConcurrentDownloads != 20 {
		t.Errorf("MaxConcurrentDownloads = %d, want 20", p.MaxConcurrentDownloads)
	}
	if p.MaxConcurrentProcessing != runtime.NumCPU() {
		t.Errorf("MaxConcurrentProcessing = %d, want %d", p.MaxConcurrentProcessing, runtime.NumCPU())
	}
	if p.HTTPTimeout != 30*time.Second {
		t.Errorf("HTTPTimeout = %v, want 30s", p.HTTPTimeout)
	}
	if p.MaxImageSize != 50<<20 {
		t.Errorf("MaxImageSize = %d, want 50MB", p.MaxImageSize)
	}
	if !p.EnableHTTP2 {
		t.Error("EnableHTTP2 should default to true")
	}
	if p.ConnectionPoolSize != 50 {
		t.Errorf("ConnectionPoolSize = %d, want 50", p.ConnectionPoolSize)
	}
	if p.KeepAliveTimeout != 60*time.Second {
		t.Errorf("KeepAliveTimeout = %v, want 60s", p.KeepAliveTimeout)
	}
}

func TestProfilePresets(t *testing.T) {
	t.Setenv("PERFORMANCE_PROFILE", "high_throughput")
	p := LoadPerformance()
	if p.MaxConcurrentDownloads != 50 {
		t.Errorf("high_throughput downloads = %d, want 50", p.MaxConcurrentDownloads)
	}
	if p.MaxConcurrentProcessing != runtime.NumCPU()*2 {
		t.Errorf("high_throughput processing = %d, want %d", p.MaxConcurrentProcessing, runtime.NumCPU()*2)
	}
	if p.MaxImageSize != 100<<20 {
		t.Errorf("high_throughput size = %d, want 100MB", p.MaxImageSize)
	}

	t.Setenv("PERFORMANCE_PROFILE", "low_latency")
	p = LoadPerformance()
	if p.HTTPTimeout != 10*time.Second {
		t.Errorf("low_latency timeout = %v, want 10s", p.HTTPTimeout)
	}
	if p.MaxImageSize != 20<<20 {
		t.Errorf("low_latency size = %d, want 20MB", p.MaxImageSize)
	}

	t.Setenv("PERFORMANCE_PROFILE", "memory_efficient")
	p = LoadPerformance()
	if p.EnableHTTP2 {
		t.Error("memory_efficient should disable HTTP/2")
	}
	if p.MaxConcurrentDownloads != 5 {
		t.Errorf("memory_efficient downloads = %d, want 5", p.MaxConcurrentDownloads)
	}
	if p.MaxConcurrentProcessing < 1 {
		t.Error("memory_efficient processing must stay >= 1")
	}
}

func TestKnobOverridesProfile(t *testing.T) {
	t.Setenv("PERFORMANCE_PROFILE", "high_throughput")
	t.Setenv("MAX_CONCURRENT_DOWNLOADS", "7")
	t.Setenv("HTTP_TIMEOUT_SECS", "5")
	t.Setenv("MAX_IMAGE_SIZE_MB", "3")
	t.Setenv("ENABLE_HTTP2", "false")

	p := LoadPerformance()
	if p.MaxConcurrentDownloads != 7 {
		t.Errorf("downloads override = %d, want 7", p.MaxConcurrentDownloads)
	}
	if p.HTTPTimeout != 5*time.Second {
		t.Errorf("timeout override = %v, want 5s", p.HTTPTimeout)
	}
	if p.MaxImageSize != 3<<20 {
		t.Errorf("size override = %d, want 3MB", p.MaxImageSize)
	}
	if p.EnableHTTP2 {
		t.Error("http2 override not applied")
	}
	// untouched knobs keep the profile value
	if p.ConnectionPoolSize != 100 {
		t.Errorf("ConnectionPoolSize = %d, want profile value 100", p.ConnectionPoolSize)
	}
}

func TestInvalidOverridesIgnored(t *testing.T) {
	t.Setenv("MAX_CONCURRENT_DOWNLOADS", "not-a-number")
	t.Setenv("ENABLE_HTTP2", "maybe")

	p := LoadPerformance()
	if p.MaxConcurrentDownloads != 20 {
		t.Errorf("downloads = %d, want default 20", p.MaxConcurrentDownloads)
	}
	if !p.EnableHTTP2 {
		t.Error("EnableHTTP2 should keep default on unparsable override")
	}
}

func TestLoadStorageDefaults(t *testing.T) {
	cfg := Load()
	if cfg.StorageType != StorageLocalFS {
		t.Errorf("StorageType = %q, want LOCAL_FS", cfg.StorageType)
	}
	if cfg.Port != "3000" {
		t.Errorf("Port = %q, want 3000", cfg.Port)
	}

	t.Setenv("STORAGE_TYPE", StorageInMemory)
	t.Setenv("STORAGE_SUB_PATH", "thumbs")
	cfg = Load()
	if cfg.StorageType != StorageInMemory {
		t.Errorf("StorageType = %q, want IN_MEMORY", cfg.StorageType)
	}
	if cfg.StorageSubPath != "thumbs" {
		t.Errorf("StorageSubPath = %q, want thumbs", cfg.StorageSubPath)
	}
}
