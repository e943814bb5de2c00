package config

import (
	"fmt"
	"strings"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`
	RabbitMQURL string `env:"RABBITMQ_URL,required=true"`

	MailLogPath    string `env:"MAIL_LOG_PATH,required=true"`
	MailArchiveDir string `env:"MAIL_ARCHIVE_DIR,required=true"`

	SMTPAddr     string `env:"SMTP_ADDR,required=true"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM,required=true"`

	IMAPHost            string `env:"IMAP_HOST"`
	IMAPPort            int    `env:"IMAP_PORT,default=993"`
	IMAPUsername        string `env:"IMAP_USERNAME"`
	IMAPPassword        string `env:"IMAP_PASSWORD"`
	IMAPFolder          string `env:"IMAP_FOLDER,default=INBOX"`
	BounceFilter        string `env:"BOUNCE_RECIPIENT_FILTER"`
	BounceDeleteHandled bool   `env:"BOUNCE_DELETE_PROCESSED,default=false"`

	ReportRecipients string `env:"REPORT_RECIPIENTS"`
	ReportAttachEML  bool   `env:"REPORT_ATTACH_EML,default=true"`
	ReportWebhookURL string `env:"REPORT_WEBHOOK_URL"`

	RetryScanIntervalMin  int `env:"RETRY_SCAN_INTERVAL_MIN,default=15"`
	BouncePollIntervalMin int `env:"BOUNCE_POLL_INTERVAL_MIN,default=30"`
	ReportIntervalMin     int `env:"REPORT_INTERVAL_MIN,default=1440"`

	ScanLimit      int    `env:"SCAN_LIMIT,default=1000"`
	SendRatePerSec int    `env:"SEND_RATE_PER_SEC,default=10"`
	APIPort        int    `env:"API_PORT,default=8080"`
	LogLevel       string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// BounceIngestionEnabled reports whether an IMAP mailbox is configured.
// Without one the bounce poller simply does not start.
func (c *Config) BounceIngestionEnabled() bool {
	return strings.TrimSpace(c.IMAPHost) != ""
}

// ReportingEnabled reports whether operator report recipients are
// configured.
func (c *Config) ReportingEnabled() bool {
	return len(c.ReportRecipientList()) > 0
}

// ReportRecipientList splits the comma-separated recipients setting.
func (c *Config) ReportRecipientList() []string {
	parts := strings.Split(c.ReportRecipients, ",")
	recipients := make([]string, 0, len(parts))
	for _, part := range parts {
		if addr := strings.TrimSpace(part); addr != "" {
			recipients = append(recipients, addr)
		}
	}
	return recipients
}
