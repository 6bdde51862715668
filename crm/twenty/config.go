package twenty

import "time"

// Config is read from TWENTY_* variables.
type Config struct {
	APIURL  string        `envconfig:"API_URL" required:"true"`
	APIKey  string        `envconfig:"API_KEY" required:"true"`
	Timeout time.Duration `split_words:"true" default:"10s"`

	ResolvePersonLimit  int `split_words:"true" default:"500"`
	ResolveCompanyLimit int `split_words:"true" default:"200"`
	SearchPersonLimit   int `split_words:"true" default:"100"`
	SearchCompanyLimit  int `split_words:"true" default:"50"`
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.ResolvePersonLimit <= 0 {
		c.ResolvePersonLimit = 500
	}
	if c.ResolveCompanyLimit <= 0 {
		c.ResolveCompanyLimit = 200
	}
	if c.SearchPersonLimit <= 0 {
		c.SearchPersonLimit = 100
	}
	if c.SearchCompanyLimit <= 0 {
		c.SearchCompanyLimit = 50
	}
	return c
}
