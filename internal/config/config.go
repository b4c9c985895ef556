package config

import (
	"os"
	"strconv"
)

// Config carries the server's environment-driven settings
type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string

	FirebaseCredentialsBase64 string
	FirebaseCredentialsFile   string

	// Optimizer tuning
	DensityKgPerL   float64 // estimated waste density, kg per liter of bin volume
	ClusterRadiusM  float64 // proximity radius for cluster growth
	ClaimMaxRetries int
	OptimizeEveryS  int // periodic optimization pass, 0 disables
	DepotLatitude   float64
	DepotLongitude  float64

	// Location ingestion
	LocationMinIntervalS int
	LocationMaxIntervalS int
	LocationHistoryLimit int
}

// Load reads settings from the environment with development defaults.
// DATABASE_URL has no default and is checked at the call site.
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("APP_JWT_SECRET"),

		FirebaseCredentialsBase64: os.Getenv("FIREBASE_CREDENTIALS_BASE64"),
		FirebaseCredentialsFile:   os.Getenv("FIREBASE_CREDENTIALS_FILE"),

		DensityKgPerL:   getEnvFloat("WASTE_DENSITY_KG_PER_L", 0.25),
		ClusterRadiusM:  getEnvFloat("CLUSTER_RADIUS_M", 1500),
		ClaimMaxRetries: getEnvInt("CLAIM_MAX_RETRIES", 3),
		OptimizeEveryS:  getEnvInt("OPTIMIZE_INTERVAL_S", 0),
		DepotLatitude:   getEnvFloat("DEPOT_LATITUDE", 37.3352),
		DepotLongitude:  getEnvFloat("DEPOT_LONGITUDE", -121.8931),

		LocationMinIntervalS: getEnvInt("LOCATION_MIN_INTERVAL_S", 10),
		LocationMaxIntervalS: getEnvInt("LOCATION_MAX_INTERVAL_S", 300),
		LocationHistoryLimit: getEnvInt("LOCATION_HISTORY_LIMIT", 500),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
