package analysis

import "context"

// Runner port (process bridge ke collaborator)
type Runner interface {
	Run(ctx context.Context, req Request) (RawResult, error)
	// Check is the pre-flight used by health checks; no process is started.
	Check() error
}

// Repository port for analysis history.
type Repository interface {
	Save(ctx context.Context, r *Record) error
	Latest(ctx context.Context, limit int) ([]*Record, error)
	Paginate(ctx context.Context, page, pageSize int) (PaginatedRecords, error)
}

// ArtifactStore port for archiving session outputs.
type ArtifactStore interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
	UploadBytes(ctx context.Context, data []byte, key, contentType string) (string, error)
}
