package blob

import (
	"context"

	infraS3 "calibtrack/internal/infra/blob/s3"
)

// S3Config re-exports the bucket configuration.
type S3Config = infraS3.Config

// NewS3 constructs an S3-backed Store.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	st, err := infraS3.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// NewMockS3 returns an S3 Store served by an in-memory bucket, for tests in
// other packages.
func NewMockS3() Store { return infraS3.NewMock() }
