package wire

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"

	"github.com/plotfarm/go-farmer/common/types"
)

// TLSConfig points at the certificates of a link. Relative paths are resolved below
// Root. With a CA configured, servers require client certificates signed by it and
// clients verify the server against it.
type TLSConfig struct {
	Root string `mapstructure:"ssl-root"`
	CA   string `mapstructure:"ca"`
	Cert string `mapstructure:"cert"`
	Key  string `mapstructure:"key"`
	// ServerName overrides the name checked against the server certificate.
	ServerName string `mapstructure:"server-name"`
}

// Enabled reports whether any certificate is configured.
func (c TLSConfig) Enabled() bool {
	return c.CA != "" || c.Cert != ""
}

func (c TLSConfig) path(name string) string {
	if name == "" || filepath.IsAbs(name) || c.Root == "" {
		return name
	}
	return filepath.Join(c.Root, name)
}

func (c TLSConfig) pool() (*x509.CertPool, error) {
	if c.CA == "" {
		return nil, nil
	}
	pem, err := os.ReadFile(c.path(c.CA))
	if err != nil {
		return nil, fmt.Errorf("%w: read ca: %w", types.ErrConfiguration, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("%w: no certificate in %s", types.ErrConfiguration, c.path(c.CA))
	}
	return pool, nil
}

func (c TLSConfig) certificates() ([]tls.Certificate, error) {
	if c.Cert == "" {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(c.path(c.Cert), c.path(c.Key))
	if err != nil {
		return nil, fmt.Errorf("%w: load key pair: %w", types.ErrConfiguration, err)
	}
	return []tls.Certificate{cert}, nil
}

// ClientConfig returns the dialer side configuration, or nil when TLS is disabled.
func (c TLSConfig) ClientConfig() (*tls.Config, error) {
	if !c.Enabled() {
		return nil, nil
	}
	pool, err := c.pool()
	if err != nil {
		return nil, err
	}
	certs, err := c.certificates()
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		RootCAs:      pool,
		Certificates: certs,
		ServerName:   c.ServerName,
	}, nil
}

// ServerConfig returns the listener side configuration, or nil when TLS is disabled.
func (c TLSConfig) ServerConfig() (*tls.Config, error) {
	if !c.Enabled() {
		return nil, nil
	}
	certs, err := c.certificates()
	if err != nil {
		return nil, err
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("%w: server requires a certificate", types.ErrConfiguration)
	}
	pool, err := c.pool()
	if err != nil {
		return nil, err
	}
	cfg := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: certs,
	}
	if pool != nil {
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return cfg, nil
}
