package auth

import (
	"errors"

	"golang.org/x/oauth2/clientcredentials"
)

// Conf holds the client credentials of an OAuth2 protected API.
type Conf struct {
	ClientID     string `json:"client_id" yaml:"client_id"`
	ClientSecret string `json:"client_secret" yaml:"client_secret"`
	AuthURL      string `json:"auth_url" yaml:"auth_url"`
}

func (c Conf) Validate() error {
	if c.ClientID == "" || c.ClientSecret == "" || c.AuthURL == "" {
		return errors.New("auth: client_id, client_secret and auth_url are required")
	}
	return nil
}

func (c *Conf) toOauth2Config() clientcredentials.Config {
	return clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.AuthURL,
	}
}
