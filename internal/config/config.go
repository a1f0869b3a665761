// Package config provides functionality for managing configuration options
// for the application using command-line flags, a JSON config file,
// environment variables and an optional .env file.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Supported values for Options.DatabaseDriver and Options.Storage.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	StorageLocal = "local"
	StorageS3    = "s3"
)

// Options holds the configuration values for the application.
type Options struct {
	// Addr defines the server's listening address (ip:port).
	Addr string
	// DatabaseDriver is either "sqlite" or "postgres".
	DatabaseDriver string
	// DatabaseDSN holds the database connection string.
	DatabaseDSN string

	// Storage selects where audio payloads live: "local" or "s3".
	Storage string
	// UploadDir is the directory used by the local store.
	UploadDir string
	// MaxUploadBytes caps a single audio payload.
	MaxUploadBytes int64

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	// RedisAddr enables labeling claims when set.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// ClaimTTL is how long a labeler holds a sample.
	ClaimTTL time.Duration

	// SessionSecret signs session tokens. Empty means a random per-process key.
	SessionSecret string
	// SessionTTL is the session lifetime; zero disables expiry.
	SessionTTL time.Duration

	// SweepInterval is the orphan sweeper period; zero disables it.
	SweepInterval time.Duration
	// SweepGrace is the minimum age of an unreferenced object before removal.
	SweepGrace time.Duration

	TLSCert       string
	TLSKey        string
	TLSSelfSigned bool

	LogLevel string

	// Config is the path to the JSON config file.
	Config string
}

// envBindings maps flag names to the environment variables overriding them.
var envBindings = map[string]string{
	"a":               "SERVER_ADDRESS",
	"driver":          "DATABASE_DRIVER",
	"d":               "DATABASE_DSN",
	"storage":         "STORAGE_BACKEND",
	"upload-dir":      "UPLOAD_DIR",
	"max-upload":      "MAX_UPLOAD_BYTES",
	"s3-bucket":       "S3_BUCKET",
	"s3-region":       "S3_REGION",
	"s3-endpoint":     "S3_ENDPOINT",
	"s3-access-key":   "S3_ACCESS_KEY",
	"s3-secret-key":   "S3_SECRET_KEY",
	"redis":           "REDIS_ADDR",
	"redis-password":  "REDIS_PASSWORD",
	"redis-db":        "REDIS_DB",
	"claim-ttl":       "CLAIM_TTL",
	"session-secret":  "SESSION_SECRET",
	"session-ttl":     "SESSION_TTL",
	"sweep-interval":  "SWEEP_INTERVAL",
	"sweep-grace":     "SWEEP_GRACE",
	"tls-cert":        "TLS_CERT",
	"tls-key":         "TLS_KEY",
	"tls-self-signed": "TLS_SELF_SIGNED",
	"log-level":       "LOG_LEVEL",
}

func bindFlags(fs *flag.FlagSet, o *Options) {
	fs.StringVar(&o.Addr, "a", "localhost:8080", "run on ip:port server")
	fs.StringVar(&o.DatabaseDriver, "driver", DriverSQLite, "database driver: sqlite | postgres")
	fs.StringVar(&o.DatabaseDSN, "d", "asr_data.db", "database DSN")
	fs.StringVar(&o.Storage, "storage", StorageLocal, "audio storage backend: local | s3")
	fs.StringVar(&o.UploadDir, "upload-dir", "user_uploads", "directory for the local audio store")
	fs.Int64Var(&o.MaxUploadBytes, "max-upload", 25<<20, "maximum audio payload size in bytes")
	fs.StringVar(&o.S3Bucket, "s3-bucket", "", "S3 bucket for audio")
	fs.StringVar(&o.S3Region, "s3-region", "us-east-1", "S3 region")
	fs.StringVar(&o.S3Endpoint, "s3-endpoint", "", "S3 endpoint override (MinIO)")
	fs.StringVar(&o.S3AccessKey, "s3-access-key", "", "S3 access key")
	fs.StringVar(&o.S3SecretKey, "s3-secret-key", "", "S3 secret key")
	fs.StringVar(&o.RedisAddr, "redis", "", "redis address for labeling claims")
	fs.StringVar(&o.RedisPassword, "redis-password", "", "redis password")
	fs.IntVar(&o.RedisDB, "redis-db", 0, "redis database")
	fs.DurationVar(&o.ClaimTTL, "claim-ttl", 10*time.Minute, "how long a labeler holds a sample")
	fs.StringVar(&o.SessionSecret, "session-secret", "", "session signing secret")
	fs.DurationVar(&o.SessionTTL, "session-ttl", 72*time.Hour, "session lifetime, 0 for no expiry")
	fs.DurationVar(&o.SweepInterval, "sweep-interval", time.Hour, "orphaned audio sweep interval, 0 disables")
	fs.DurationVar(&o.SweepGrace, "sweep-grace", 24*time.Hour, "minimum age of orphaned audio before removal")
	fs.StringVar(&o.TLSCert, "tls-cert", "", "TLS certificate file")
	fs.StringVar(&o.TLSKey, "tls-key", "", "TLS key file")
	fs.BoolVar(&o.TLSSelfSigned, "tls-self-signed", false, "serve HTTPS with a generated self-signed certificate")
	fs.StringVar(&o.LogLevel, "log-level", "info", "log level")
	fs.StringVar(&o.Config, "config", "", "path to config file")
	fs.StringVar(&o.Config, "c", "", "path to config file (shorthand)")
}

// Parse builds Options for the program called name from args. Precedence,
// lowest first: defaults, JSON config file, flags, environment. extra may
// register additional program-specific flags on the same flag set.
func Parse(name string, args []string, extra ...func(*flag.FlagSet)) (*Options, error) {
	// A missing .env file is fine; the process environment still applies.
	_ = godotenv.Load()

	options := &Options{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	bindFlags(fs, options)
	for _, register := range extra {
		register(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	if configPath := os.Getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}
	if options.Config != "" {
		if err := applyFile(fs, options.Config, explicit); err != nil {
			return nil, err
		}
	}

	for name, env := range envBindings {
		if value, ok := os.LookupEnv(env); ok {
			if err := fs.Set(name, value); err != nil {
				return nil, fmt.Errorf("env %s: %w", env, err)
			}
		}
	}

	if err := options.Validate(); err != nil {
		return nil, err
	}
	return options, nil
}

// applyFile sets every flag named in the JSON file unless it was given on
// the command line.
func applyFile(fs *flag.FlagSet, path string, explicit map[string]bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error while reading config file: %w", err)
	}
	// Numbers stay json.Number so large integers keep their digits.
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		return fmt.Errorf("error while parsing config file: %w", err)
	}
	for name, value := range values {
		if explicit[name] {
			continue
		}
		if fs.Lookup(name) == nil {
			return fmt.Errorf("config file: unknown option %q", name)
		}
		if err := fs.Set(name, fmt.Sprint(value)); err != nil {
			return fmt.Errorf("config file option %q: %w", name, err)
		}
	}
	return nil
}

// Validate reports inconsistent option combinations.
func (o *Options) Validate() error {
	switch o.DatabaseDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported database driver %q", o.DatabaseDriver)
	}
	switch o.Storage {
	case StorageLocal:
	case StorageS3:
		if o.S3Bucket == "" {
			return errors.New("s3 storage requires -s3-bucket")
		}
	default:
		return fmt.Errorf("unsupported storage backend %q", o.Storage)
	}
	if (o.TLSCert == "") != (o.TLSKey == "") {
		return errors.New("-tls-cert and -tls-key must be given together")
	}
	if o.MaxUploadBytes <= 0 {
		return errors.New("-max-upload must be positive")
	}
	return nil
}
