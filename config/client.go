package config

import (
	"github.com/pitt-crc/starfish-api-client/starfish"
)

// Credentials returns the server credentials for starfish.NewClient.
func (c *Config) Credentials() starfish.Credentials {
	return starfish.Credentials{
		APIKey:   c.Server.APIKey,
		Username: c.Server.Username,
		Password: c.Server.Password,
	}
}

// ClientOptions translates the client section into starfish options.
// Zero values fall back to the library defaults.
func (c *Config) ClientOptions() ([]starfish.Option, error) {
	mode, err := starfish.ParseMode(c.Client.Mode)
	if err != nil {
		return nil, err
	}

	opts := []starfish.Option{
		starfish.WithMode(mode),
		starfish.WithTimeout(c.Client.Timeout),
		starfish.WithMaxRetries(c.Client.MaxRetries),
		starfish.WithBackoff(c.Client.BackoffBase, c.Client.BackoffMax),
		starfish.WithJitter(c.Client.Jitter),
		starfish.WithPageSize(c.Client.PageSize),
	}
	if !c.Server.VerifyTLS {
		opts = append(opts, starfish.WithInsecureSkipVerify())
	}
	return opts, nil
}
