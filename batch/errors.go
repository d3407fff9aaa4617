package batch

import "errors"

var (
	// ErrDiskTierRequired is returned when a disk tier is not provided.
	ErrDiskTierRequired = errors.New("disk tier required")

	// ErrStoreRequired is returned when a dedup store is not provided.
	ErrStoreRequired = errors.New("dedup store required")

	// ErrClientRequired is returned when a submission client is not provided.
	ErrClientRequired = errors.New("submission client required")

	// ErrDumpDirRequired is returned when a dump directory is not provided.
	ErrDumpDirRequired = errors.New("dump directory required")
)
