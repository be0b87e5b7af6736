package app

// AWSConfig configures the AWS SDK clients shared by every region's
// adapters: S3 (blob store), DynamoDB (status store), SQS (queue).
type AWSConfig struct {
	Region string
	// Endpoint overrides the SDK's default service endpoint resolution,
	// used to point every client at a local stack (e.g. LocalStack) in
	// development and integration tests. Empty means use the real AWS
	// endpoints.
	Endpoint string

	// PartSize and MultipartQueueSize configure the S3 upload manager's
	// chunking and concurrency.
	PartSize           int64
	MultipartQueueSize int
}
