package config

import "time"

// DefaultSearchLimit is the number of search results returned when none is requested.
const DefaultSearchLimit = 5

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/ronbun/data/ronbun.db"
	}
	if cfg.Arxiv.BaseURL == "" {
		cfg.Arxiv.BaseURL = "http://export.arxiv.org/api/query"
	}
	if cfg.Arxiv.MaxResultsPerKeyword == 0 {
		cfg.Arxiv.MaxResultsPerKeyword = 50
	}
	if cfg.Arxiv.MaxSearchResults == 0 {
		cfg.Arxiv.MaxSearchResults = 100
	}
	if cfg.Arxiv.Timeout == 0 {
		cfg.Arxiv.Timeout = 30 * time.Second
	}
	if cfg.Arxiv.RetryAttempts == 0 {
		cfg.Arxiv.RetryAttempts = 3
	}
	if cfg.Summarizer.Provider == "" {
		cfg.Summarizer.Provider = ProviderOpenAI
	}
	if cfg.Summarizer.Model == "" {
		cfg.Summarizer.Model = "gpt-3.5-turbo"
	}
	if cfg.Summarizer.BaseURL == "" {
		cfg.Summarizer.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Summarizer.RetryAttempts == 0 {
		cfg.Summarizer.RetryAttempts = 2
	}
	if cfg.Summarizer.Timeout == 0 {
		cfg.Summarizer.Timeout = 60 * time.Second
	}
	if cfg.Summarizer.MaxTokens == 0 {
		cfg.Summarizer.MaxTokens = 1000
	}
	if cfg.Summarizer.Temperature == 0 {
		cfg.Summarizer.Temperature = 0.3
	}
	if cfg.Summarizer.TopP == 0 {
		cfg.Summarizer.TopP = 0.9
	}
	if cfg.Schedule.Time == "" {
		cfg.Schedule.Time = "01:00"
	}
	if cfg.Notify.Timeout == 0 {
		cfg.Notify.Timeout = 30 * time.Second
	}
	if cfg.Aggregate.TitleLocale == "" {
		cfg.Aggregate.TitleLocale = "en"
	}
}
