package blob

import (
	"context"
	"testing"

	"github.com/pokhrel-dev/simplechat-sub001/internal/config"
	"github.com/pokhrel-dev/simplechat-sub001/internal/log"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.BlobConfig
		wantErr bool
	}{
		{
			name: "memory store",
			cfg:  config.BlobConfig{Provider: "memory"},
		},
		{
			name:    "minio without endpoint",
			cfg:     config.BlobConfig{Provider: "minio", Bucket: "files"},
			wantErr: true,
		},
		{
			name:    "minio without bucket",
			cfg:     config.BlobConfig{Provider: "minio", Endpoint: "localhost:9000"},
			wantErr: true,
		},
		{
			name:    "unknown provider",
			cfg:     config.BlobConfig{Provider: "s3"},
			wantErr: true,
		},
		{
			name:    "empty provider",
			cfg:     config.BlobConfig{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := New(context.Background(), tt.cfg, log.NewNop())
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && store == nil {
				t.Error("New() returned nil store without error")
			}
		})
	}
}
