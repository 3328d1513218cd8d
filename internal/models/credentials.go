package models

import (
	"encoding/json"
	"strings"
)

// CredentialValue is one entry of the credential store: either a bare API
// key string or a structured config carrying the extra fields Azure-style
// providers need. Bare reports which JSON shape it was parsed from.
type CredentialValue struct {
	APIKey       string `json:"apiKey"`
	Endpoint     string `json:"endpoint,omitempty"`
	APIVersion   string `json:"apiVersion,omitempty"`
	Organization string `json:"organization,omitempty"`
	BaseURL      string `json:"baseURL,omitempty"`

	Bare bool `json:"-"`
}

// Key builds a bare string credential.
func Key(apiKey string) CredentialValue {
	return CredentialValue{APIKey: apiKey, Bare: true}
}

// Empty reports whether no usable credential is present.
func (c CredentialValue) Empty() bool {
	return c.APIKey == "" && c.Endpoint == "" && c.BaseURL == ""
}

func (c CredentialValue) MarshalJSON() ([]byte, error) {
	if c.Bare {
		return json.Marshal(c.APIKey)
	}
	type alias CredentialValue
	return json.Marshal(alias(c))
}

func (c *CredentialValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "\"") {
		c.Bare = true
		return json.Unmarshal(data, &c.APIKey)
	}
	type alias CredentialValue
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*c = CredentialValue(a)
	c.Bare = false
	return nil
}
