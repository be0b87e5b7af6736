package flags

import (
	"github.com/spf13/pflag"
)

// SetupServerFlags binds the scalar fields of the server config section.
// The pool list, the queue policy and the AWS settings other than region
// and endpoint (see SetupAWSFlags) are, by contrast, only configured via
// the TOML config file.
func SetupServerFlags(fs *pflag.FlagSet) error {
	fs.String("host", "localhost", "Host to listen on")
	fs.Uint("port", 3000, "Port to listen on")
	fs.String("public-url", "", "URL the service is publicly reachable at")
	fs.Duration("max-wait-for-cached-copy", 0, "How long a redirect request polls for a cached copy before falling back to the origin URL (0 = immediate fallback)")
	fs.Int("redirect-limit", 5, "Maximum number of HEAD requests made while validating an origin URL's redirect chain (0 = every validation fails)")
	fs.Bool("ensure-ssl", false, "Require https when validating candidate origin URLs")
	fs.StringSlice("allowlist", nil, "Regex patterns an origin host must match at least one of")

	bindings := []FlagBinding{
		{"host", "server.host", "CLOUD_MIRROR_HOST"},
		{"port", "server.port", "CLOUD_MIRROR_PORT"},
		{"public-url", "server.public_url", "CLOUD_MIRROR_PUBLIC_URL"},
		{"max-wait-for-cached-copy", "server.max_wait_for_cached_copy", ""},
		{"redirect-limit", "server.redirect_limit", ""},
		{"ensure-ssl", "server.ensure_ssl", ""},
		{"allowlist", "server.allowlist", ""},
	}

	return AddAndBindFlags(fs, bindings)
}

// SetupAWSFlags binds the AWS client configuration shared by every pool.
func SetupAWSFlags(fs *pflag.FlagSet) error {
	fs.String("aws-region", "", "AWS region every adapter is constructed against")
	fs.String("aws-endpoint", "", "Override S3/DynamoDB/SQS endpoint, for use against localstack or another S3-compatible store")

	bindings := []FlagBinding{
		{"aws-region", "aws.region", "AWS_REGION"},
		{"aws-endpoint", "aws.endpoint", "CLOUD_MIRROR_AWS_ENDPOINT"},
	}

	return AddAndBindFlags(fs, bindings)
}
