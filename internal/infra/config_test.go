package infra

import (
	"strings"
	"testing"
	"time"

	"photopipe/internal/enhance"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("STORAGE_BASE_URL", "")
	t.Setenv("RECORD_BACKEND", "")
	t.Setenv("ENHANCE_ALGORITHM", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StorageBaseURL != "http://localhost:8080/static" {
		t.Fatalf("StorageBaseURL mismatch: got %q", cfg.StorageBaseURL)
	}
	if cfg.OriginalBucket != "pictures-rekog-bucket" || cfg.EnhancedBucket != "enhanced-pictures-rekog-bucket" {
		t.Fatalf("bucket defaults mismatch: %q %q", cfg.OriginalBucket, cfg.EnhancedBucket)
	}
	if cfg.OriginalURLTTL != 24*time.Hour || cfg.EnhancedURLTTL != 12*time.Hour {
		t.Fatalf("ttl defaults mismatch: %s %s", cfg.OriginalURLTTL, cfg.EnhancedURLTTL)
	}
	if cfg.EnhanceAlgorithm != enhance.ContrastGamma {
		t.Fatalf("EnhanceAlgorithm = %q, want %q", cfg.EnhanceAlgorithm, enhance.ContrastGamma)
	}
	if cfg.LabelsMax != 10 || cfg.LabelsMinConfidence != 75 {
		t.Fatalf("label defaults mismatch: %d %v", cfg.LabelsMax, cfg.LabelsMinConfidence)
	}
	if cfg.RecordBackend != RecordMemory {
		t.Fatalf("RecordBackend = %q, want %q", cfg.RecordBackend, RecordMemory)
	}
	if cfg.DefaultUserID != "anonymous" {
		t.Fatalf("DefaultUserID = %q", cfg.DefaultUserID)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("CORSAllowedOrigins mismatch: %#v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadConfigInheritsPortInStorageBaseURL(t *testing.T) {
	t.Setenv("PORT", "1919")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := "http://localhost:1919/static"
	if cfg.StorageBaseURL != expected {
		t.Fatalf("StorageBaseURL mismatch: got %q want %q", cfg.StorageBaseURL, expected)
	}
}

func TestLoadConfigParsesAlgorithmAndLists(t *testing.T) {
	t.Setenv("ENHANCE_ALGORITHM", "TONEMAP_DRAGO")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com ,")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.EnhanceAlgorithm != enhance.ToneMapDrago {
		t.Fatalf("EnhanceAlgorithm = %q", cfg.EnhanceAlgorithm)
	}
	expected := []string{"https://a.example.com", "https://b.example.com"}
	if len(cfg.CORSAllowedOrigins) != len(expected) {
		t.Fatalf("CORSAllowedOrigins mismatch: got %#v want %#v", cfg.CORSAllowedOrigins, expected)
	}
	for i, origin := range expected {
		if cfg.CORSAllowedOrigins[i] != origin {
			t.Fatalf("CORSAllowedOrigins[%d] = %q, want %q", i, cfg.CORSAllowedOrigins[i], origin)
		}
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "algorithm", env: map[string]string{"ENHANCE_ALGORITHM": "sepia"}, want: "ENHANCE_ALGORITHM"},
		{name: "storage", env: map[string]string{"STORAGE_BACKEND": "ftp"}, want: "STORAGE_BACKEND"},
		{name: "vision", env: map[string]string{"VISION_PROVIDER": "magic"}, want: "VISION_PROVIDER"},
		{name: "caption", env: map[string]string{"CAPTION_PROVIDER": "magic"}, want: "CAPTION_PROVIDER"},
		{name: "record", env: map[string]string{"RECORD_BACKEND": "mongo"}, want: "RECORD_BACKEND"},
		{name: "postgres_without_url", env: map[string]string{"RECORD_BACKEND": "postgres", "DATABASE_URL": ""}, want: "DATABASE_URL"},
		{name: "labels_max", env: map[string]string{"LABELS_MAX": "0"}, want: "LABELS_MAX"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadConfigAcceptsPostgresWithURL(t *testing.T) {
	t.Setenv("RECORD_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "postgres://example")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.RecordBackend != RecordPostgres {
		t.Fatalf("RecordBackend = %q", cfg.RecordBackend)
	}
}
