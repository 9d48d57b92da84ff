package config

import "strings"

// BlobConfig contains MinIO audio blob storage configuration.
type BlobConfig struct {
	Endpoint  string `env:"ENDPOINT"   envDefault:"localhost:9000"`
	AccessKey string `env:"ACCESS_KEY" envDefault:"minioadmin"`
	SecretKey string `env:"SECRET_KEY" envDefault:"minioadmin"`
	Bucket    string `env:"BUCKET"     envDefault:"linguavox-audio"`
	UseSSL    bool   `env:"USE_SSL"    envDefault:"false"`
}

// Sanitize applies guardrails to blob storage configuration values.
func (b *BlobConfig) Sanitize() {
	b.Endpoint = strings.TrimSpace(b.Endpoint)
	b.Bucket = strings.TrimSpace(b.Bucket)
	if b.Bucket == "" {
		b.Bucket = "linguavox-audio"
	}
}
