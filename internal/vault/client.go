package vault

import (
	"context"
	"fmt"

	"github.com/hashicorp/vault/api"

	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/config"
)

// Credentials are the Delta Exchange API credentials stored in Vault.
type Credentials struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

// Client wraps the HashiCorp Vault client for reading exchange credentials
// from a KV v2 mount.
type Client struct {
	client *api.Client
	cfg    config.VaultConfig
}

// NewClient creates a new Vault client. A disabled config returns a client
// whose reads fail, so callers fall back to environment credentials.
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{cfg: cfg}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CACert,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{client: client, cfg: cfg}, nil
}

// Enabled reports whether Vault reads are configured.
func (c *Client) Enabled() bool {
	return c.cfg.Enabled && c.client != nil
}

// GetCredentials reads the exchange API credentials from the configured
// KV v2 path.
func (c *Client) GetCredentials(ctx context.Context) (*Credentials, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("vault is disabled")
	}

	path := fmt.Sprintf("%s/data/%s", c.cfg.MountPath, c.cfg.SecretPath)
	secret, err := c.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("no credentials at vault path %s", path)
	}

	// KV v2 nests the payload under "data".
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected secret format at vault path %s", path)
	}

	creds := &Credentials{}
	if v, ok := data["api_key"].(string); ok {
		creds.APIKey = v
	}
	if v, ok := data["api_secret"].(string); ok {
		creds.APISecret = v
	}
	if creds.APIKey == "" || creds.APISecret == "" {
		return nil, fmt.Errorf("incomplete credentials at vault path %s", path)
	}

	return creds, nil
}
