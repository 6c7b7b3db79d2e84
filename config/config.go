// server/config/config.go
package config

import (
	"time"

	"github.com/spf13/viper"
)

// --- Các struct con, phản ánh cấu trúc của YAML ---

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	AllowedOrigins  []string      `mapstructure:"allowedOrigins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

type MongoConfig struct {
	URI     string        `mapstructure:"uri"`
	DBName  string        `mapstructure:"dbName"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StorageConfig chọn nơi lưu facility: "mongo" hoặc "memory".
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

type S3Config struct {
	Bucket           string `mapstructure:"bucket"`
	Region           string `mapstructure:"region"`
	AccessKeyID      string `mapstructure:"accessKeyID"`
	SecretAccessKey  string `mapstructure:"secretAccessKey"`
	CloudFrontDomain string `mapstructure:"cloudFrontDomain"`
}

type LedgerConfig struct {
	MaxRetries int `mapstructure:"maxRetries"`
}

type RateLimitConfig struct {
	PerMinute int `mapstructure:"perMinute"`
	Burst     int `mapstructure:"burst"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	AppName string `mapstructure:"appName"`
}

type TracingConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"serviceName"`
}

type SeedConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	AdminEmail    string `mapstructure:"adminEmail"`
	AdminPassword string `mapstructure:"adminPassword"`
}

// --- Struct Config chính, bao gồm tất cả các struct con ---

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Storage   StorageConfig   `mapstructure:"storage"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	S3        S3Config        `mapstructure:"s3"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Seed      SeedConfig      `mapstructure:"seed"`
}

// LoadConfig đọc cấu hình từ file và ghi đè bằng các biến môi trường.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetDefault("server.port", "5000")
	v.SetDefault("server.allowedOrigins", []string{"http://localhost:3000"})
	v.SetDefault("server.shutdownTimeout", 10*time.Second)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.dbName", "krishisetu")
	v.SetDefault("mongo.timeout", 10*time.Second)
	v.SetDefault("storage.driver", "mongo")
	v.SetDefault("jwt.expiration", 7*24*time.Hour)
	v.SetDefault("ledger.maxRetries", 3)
	v.SetDefault("rateLimit.perMinute", 30)
	v.SetDefault("rateLimit.burst", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.appName", "krishisetu-api")
	v.SetDefault("tracing.serviceName", "krishisetu-api")
	v.SetDefault("seed.adminEmail", "admin@krishisetu.local")

	v.AutomaticEnv()

	// key "mongo.uri" trong YAML được ánh xạ tới biến môi trường "MONGO_URI"
	v.BindEnv("server.port", "SERVER_PORT", "PORT")
	v.BindEnv("server.allowedOrigins", "ALLOWED_ORIGINS")
	v.BindEnv("server.shutdownTimeout", "SHUTDOWN_TIMEOUT")
	v.BindEnv("mongo.uri", "MONGO_URI", "MONGODB_URI")
	v.BindEnv("mongo.dbName", "MONGO_DBNAME")
	v.BindEnv("mongo.timeout", "MONGO_TIMEOUT")
	v.BindEnv("storage.driver", "STORAGE_DRIVER")
	v.BindEnv("jwt.secret", "JWT_SECRET")
	v.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	v.BindEnv("s3.bucket", "S3_BUCKET")
	v.BindEnv("s3.region", "S3_REGION")
	v.BindEnv("s3.accessKeyID", "S3_ACCESS_KEY_ID")
	v.BindEnv("s3.secretAccessKey", "S3_SECRET_ACCESS_KEY")
	v.BindEnv("s3.cloudFrontDomain", "S3_CLOUDFRONT_DOMAIN")
	v.BindEnv("ledger.maxRetries", "LEDGER_MAX_RETRIES")
	v.BindEnv("rateLimit.perMinute", "RATE_LIMIT_PER_MINUTE")
	v.BindEnv("rateLimit.burst", "RATE_LIMIT_BURST")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.appName", "APP_NAME")
	v.BindEnv("tracing.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("tracing.serviceName", "OTEL_SERVICE_NAME")
	v.BindEnv("seed.enabled", "SEED_ENABLED")
	v.BindEnv("seed.adminEmail", "SEED_ADMIN_EMAIL")
	v.BindEnv("seed.adminPassword", "SEED_ADMIN_PASSWORD")

	// Nếu file không tồn tại, Viper sẽ chỉ sử dụng các biến môi trường.
	err = v.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}
