package config

import (
	"time"
)

const envPrefix = "QMS_"

// parseEnv overlays QMS_* environment variables. lookup is os.LookupEnv
// outside tests. A malformed duration panics.
func parseEnv(config *Config, lookup func(string) (string, bool)) {
	strs := map[string]*string{
		"HTTP_ADDRESS":                 &config.EndpointAddrHTTP,
		"DATABASE_DSN":                 &config.DatabaseDSN,
		"SECRET_KEY":                   &config.SecretKey,
		"VERIFICATION_PUBLIC_KEY":      &config.VerificationPublicKeyPEM,
		"VERIFICATION_PUBLIC_KEY_FILE": &config.VerificationPublicKeyFile,
		"S3_ROOT_USER":                 &config.S3RootUser,
		"S3_ROOT_PASSWORD":             &config.S3RootPassword,
		"S3_BUCKET":                    &config.S3Bucket,
		"S3_REGION":                    &config.S3Region,
		"S3_BASE_ENDPOINT":             &config.S3BaseEndpoint,
		"LOG_LEVEL":                    &config.LogLevel,
	}
	for name, dst := range strs {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}

	durs := map[string]*time.Duration{
		"ACCESS_TOKEN_VALIDITY": &config.AccessTokenValidityDuration,
		"SHUTDOWN_TIMEOUT":      &config.ShutdownTimeout,
	}
	for name, dst := range durs {
		v, ok := lookup(envPrefix + name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			panic(err)
		}
		*dst = d
	}
}
