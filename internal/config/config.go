package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds all runtime configuration loaded from the environment (and .env when present).
type Config struct {
	AppPort       string
	AppEnv        string
	PublicBaseURL string // used to build one-time sign-in links

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	S3BucketName      string
	AttachmentLinkTTL time.Duration

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration
	SignupLinkTTL     time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	SNSRegion   string
	SNSTopicARN string // optional outbound fan-out of created notifications

	AllowedOrigins []string

	ScholarEmailSuffix string
	StaffEmailSuffix   string

	Scholarships ScholarshipConfig
	Log          LogConfig
}

// DynamoTables holds the DynamoDB table name for each collection.
type DynamoTables struct {
	Accounts      string
	Scholarships  string
	Notifications string
	Verifications string
}

// ScholarshipConfig tunes lifecycle side effects that are product policy rather than core behaviour.
type ScholarshipConfig struct {
	// SubmissionNoticeRecipients receive a notice for every new application. Empty disables it.
	SubmissionNoticeRecipients []string
	ExpiryReminderWindow       time.Duration
	ExpiryReminderInterval     time.Duration
	ExpiryReminderRecipients   []string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads all configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		AppPort:       v.GetString("APP_PORT"),
		AppEnv:        v.GetString("APP_ENV"),
		PublicBaseURL: strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),

		AWSRegion:      v.GetString("AWS_REGION"),
		AWSEndpointURL: v.GetString("AWS_ENDPOINT_URL"),
		AWSAccessKeyID: v.GetString("AWS_ACCESS_KEY_ID"),
		AWSSecretKey:   v.GetString("AWS_SECRET_ACCESS_KEY"),
		DynamoTables: DynamoTables{
			Accounts:      v.GetString("DYNAMO_TABLE_ACCOUNTS"),
			Scholarships:  v.GetString("DYNAMO_TABLE_SCHOLARSHIPS"),
			Notifications: v.GetString("DYNAMO_TABLE_NOTIFICATIONS"),
			Verifications: v.GetString("DYNAMO_TABLE_VERIFICATIONS"),
		},

		S3BucketName:      v.GetString("S3_BUCKET_NAME"),
		AttachmentLinkTTL: parseDuration(v.GetString("ATTACHMENT_LINK_TTL"), 15*time.Minute),

		JWTPrivateKeyPath: v.GetString("JWT_PRIVATE_KEY_PATH"),
		JWTPublicKeyPath:  v.GetString("JWT_PUBLIC_KEY_PATH"),
		JWTExpiry:         parseDuration(v.GetString("JWT_EXPIRY"), 7*24*time.Hour),
		SignupLinkTTL:     parseDuration(v.GetString("SIGNUP_LINK_TTL"), 15*time.Minute),

		SMTPHost:     v.GetString("SMTP_HOST"),
		SMTPPort:     v.GetString("SMTP_PORT"),
		SMTPFrom:     v.GetString("SMTP_FROM"),
		SMTPUsername: v.GetString("SMTP_USERNAME"),
		SMTPPassword: v.GetString("SMTP_PASSWORD"),

		SNSRegion:   v.GetString("SNS_REGION"),
		SNSTopicARN: v.GetString("SNS_TOPIC_ARN"),

		AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS")),

		ScholarEmailSuffix: strings.ToLower(v.GetString("SCHOLAR_EMAIL_SUFFIX")),
		StaffEmailSuffix:   strings.ToLower(v.GetString("STAFF_EMAIL_SUFFIX")),

		Scholarships: ScholarshipConfig{
			SubmissionNoticeRecipients: splitAndTrim(v.GetString("SUBMISSION_NOTICE_RECIPIENTS")),
			ExpiryReminderWindow:       parseDuration(v.GetString("EXPIRY_REMINDER_WINDOW"), 30*24*time.Hour),
			ExpiryReminderInterval:     parseDuration(v.GetString("EXPIRY_REMINDER_INTERVAL"), 6*time.Hour),
			ExpiryReminderRecipients:   splitAndTrim(v.GetString("EXPIRY_REMINDER_RECIPIENTS")),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "3000")
	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:3000")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_ENDPOINT_URL", "")
	v.SetDefault("AWS_ACCESS_KEY_ID", "")
	v.SetDefault("AWS_SECRET_ACCESS_KEY", "")
	v.SetDefault("DYNAMO_TABLE_ACCOUNTS", "accounts")
	v.SetDefault("DYNAMO_TABLE_SCHOLARSHIPS", "scholarships")
	v.SetDefault("DYNAMO_TABLE_NOTIFICATIONS", "notifications")
	v.SetDefault("DYNAMO_TABLE_VERIFICATIONS", "verifications")
	v.SetDefault("S3_BUCKET_NAME", "scholarship-attachments")
	v.SetDefault("ATTACHMENT_LINK_TTL", "15m")
	v.SetDefault("JWT_PRIVATE_KEY_PATH", "./private_key.pem")
	v.SetDefault("JWT_PUBLIC_KEY_PATH", "./public_key.pem")
	v.SetDefault("JWT_EXPIRY", "168h")
	v.SetDefault("SIGNUP_LINK_TTL", "15m")
	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", "1025")
	v.SetDefault("SMTP_FROM", "noreply@example.com")
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SNS_REGION", "us-east-1")
	v.SetDefault("SNS_TOPIC_ARN", "")
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("SCHOLAR_EMAIL_SUFFIX", "@my.xu.edu.ph")
	v.SetDefault("STAFF_EMAIL_SUFFIX", "@xu.edu.ph")
	v.SetDefault("SUBMISSION_NOTICE_RECIPIENTS", "")
	v.SetDefault("EXPIRY_REMINDER_WINDOW", "720h")
	v.SetDefault("EXPIRY_REMINDER_INTERVAL", "6h")
	v.SetDefault("EXPIRY_REMINDER_RECIPIENTS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitAndTrim(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
