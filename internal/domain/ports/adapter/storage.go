package adapter

import "context"

// ObjectStorage persists step artifacts (audio, images, video, archives)
// outside the database. Uploads overwrite: step side effects must be safely
// repeatable, so keys are deterministic per job and re-execution after a
// crash rewrites the same objects.
type ObjectStorage interface {
	Upload(ctx context.Context, key string, data []byte) error
	Download(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
}
