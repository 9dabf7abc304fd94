package storage

import (
	"testing"

	"propscout/config"
)

func TestPublicURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.S3Config
		want string
	}{
		{
			name: "aws",
			cfg:  config.S3Config{Bucket: "homes", Region: "us-west-2", Key: "propscout/properties.json"},
			want: "https://homes.s3.us-west-2.amazonaws.com/propscout/properties.json",
		},
		{
			name: "spaces",
			cfg:  config.S3Config{Bucket: "homes", Endpoint: "https://nyc3.digitaloceanspaces.com", Key: "p.json"},
			want: "https://homes.nyc3.digitaloceanspaces.com/p.json",
		},
		{
			name: "path style",
			cfg:  config.S3Config{Bucket: "homes", Endpoint: "http://localhost:9000/", Key: "p.json"},
			want: "http://localhost:9000/homes/p.json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PublicURL(tt.cfg); got != tt.want {
				t.Errorf("PublicURL() = %q; want %q", got, tt.want)
			}
		})
	}
}
