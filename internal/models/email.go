package models

import "time"

// EmailConfig holds SMTP settings for new-paper notifications.
type EmailConfig struct {
	SMTPServer string   `json:"smtp_server" yaml:"smtp_server" validate:"required,hostname_rfc1123|ip"`
	SMTPPort   int      `json:"smtp_port" yaml:"smtp_port" validate:"required,min=1,max=65535"`
	Username   string   `json:"username" yaml:"username" validate:"required"`
	Password   string   `json:"password" yaml:"password" validate:"required"`
	FromEmail  string   `json:"from_email" yaml:"from_email" validate:"required,email"`
	ToEmails   []string `json:"to_emails" yaml:"to_emails" validate:"required,min=1,dive,email"`
	// UseSSL selects implicit TLS; nil means true.
	UseSSL *bool `json:"use_ssl,omitempty" yaml:"use_ssl,omitempty"`
}

// SSL returns whether implicit TLS is used; defaults to true when unset.
func (c *EmailConfig) SSL() bool {
	if c.UseSSL != nil {
		return *c.UseSSL
	}
	return true
}

// Redacted returns a copy safe to return from the API.
func (c EmailConfig) Redacted() EmailConfig {
	if c.Password != "" {
		c.Password = "********"
	}
	return c
}

// Summary is a cached Japanese translation of a paper's title and abstract.
type Summary struct {
	PaperID   string    `json:"paper_id"`
	TitleJA   string    `json:"title_ja"`
	SummaryJA string    `json:"summary_ja"`
	CreatedAt time.Time `json:"created_at"`
}
