package zoho

import "time"

// Config is read from ZOHO_* variables. The default hosts are the EU
// data centre.
type Config struct {
	ClientID     string        `split_words:"true" required:"true"`
	ClientSecret string        `split_words:"true" required:"true"`
	RefreshToken string        `split_words:"true" required:"true"`
	APIURL       string        `envconfig:"API_URL" default:"https://www.zohoapis.eu"`
	AccountsURL  string        `split_words:"true" default:"https://accounts.zoho.eu"`
	Timeout      time.Duration `split_words:"true" default:"10s"`
	LeadSource   string        `split_words:"true" default:"AI Assistant"`
	ResolveLimit int           `split_words:"true" default:"200"`
	SearchLimit  int           `split_words:"true" default:"100"`
}

func (c Config) withDefaults() Config {
	if c.APIURL == "" {
		c.APIURL = "https://www.zohoapis.eu"
	}
	if c.AccountsURL == "" {
		c.AccountsURL = "https://accounts.zoho.eu"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.LeadSource == "" {
		c.LeadSource = "AI Assistant"
	}
	if c.ResolveLimit <= 0 {
		c.ResolveLimit = 200
	}
	if c.SearchLimit <= 0 {
		c.SearchLimit = 100
	}
	return c
}
