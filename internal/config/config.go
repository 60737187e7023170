package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time durations for client timeouts
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. Required values are enforced by must(); optional
// values fall back to defaults that match the reference deployment.
type Config struct {
	Env            string        // application environment (e.g. "dev", "prod")
	Port           string        // HTTP port to listen on
	DBUser         string        // database username
	DBPass         string        // database password (optional)
	DBHost         string        // database host address
	DBPort         string        // database port number
	DBName         string        // database name
	JWTSecret      string        // secret used to sign JWTs
	TokenTTLMin    int           // access token time-to-live in minutes
	BcryptCost     int           // bcrypt cost for password hashing
	UploadDir      string        // directory where blobs are stored
	MaxUploadBytes int64         // maximum accepted payload size
	ShareDefault   bool          // whether new uploads are shared by default
	ScannerURL     string        // base URL of the malware detection service
	ScannerAPIKey  string        // API key for the detection service
	ScannerTimeout time.Duration // bound on a single scan call
	CaptchaSecret  string        // bot-check secret; empty disables verification
	CaptchaURL     string        // bot-check verification endpoint
}

// Load reads configuration values from environment variables and returns a
// Config. Missing required variables cause the program to exit with a fatal
// log message so a misconfigured process never starts serving.
func Load() Config {
	return Config{
		Env:            envStr("APP_ENV", "dev"),
		Port:           envStr("APP_PORT", "4000"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		TokenTTLMin:    envInt("TOKEN_TTL_MIN", 60),
		BcryptCost:     envInt("BCRYPT_COST", 10),
		UploadDir:      envStr("UPLOAD_DIR", "uploads"),
		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 10<<20),
		ShareDefault:   envBool("SHARE_DEFAULT", true),
		ScannerURL:     must("SCANNER_URL"),
		ScannerAPIKey:  os.Getenv("SCANNER_API_KEY"),
		ScannerTimeout: envDur("SCANNER_TIMEOUT", 15*time.Second),
		CaptchaSecret:  os.Getenv("CAPTCHA_SECRET"),
		CaptchaURL:     envStr("CAPTCHA_VERIFY_URL", "https://www.google.com/recaptcha/api/siteverify"),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// envInt64 reads an int64 with a default, used for byte sizes.
func envInt64(k string, d int64) int64 {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	return d
}
