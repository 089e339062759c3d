package wire

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/plotfarm/go-farmer/common/types"
)

type issued struct {
	cert *x509.Certificate
	key  *ecdsa.PrivateKey
}

func issue(tb testing.TB, dir, name string, parent *issued, serial int64) *issued {
	tb.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(tb, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: name},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}
	signer, signerKey := tmpl, key
	if parent == nil {
		tmpl.IsCA = true
		tmpl.BasicConstraintsValid = true
	} else {
		signer, signerKey = parent.cert, parent.key
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, signer, &key.PublicKey, signerKey)
	require.NoError(tb, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(tb, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(tb, err)
	require.NoError(tb, os.WriteFile(filepath.Join(dir, name+".crt"),
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(tb, os.WriteFile(filepath.Join(dir, name+".key"),
		pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	return &issued{cert: cert, key: key}
}

func TestTLSDisabled(t *testing.T) {
	var cfg TLSConfig
	require.False(t, cfg.Enabled())
	client, err := cfg.ClientConfig()
	require.NoError(t, err)
	require.Nil(t, client)
	server, err := cfg.ServerConfig()
	require.NoError(t, err)
	require.Nil(t, server)
}

func TestTLSErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := TLSConfig{Root: dir, CA: "missing.crt"}.ClientConfig()
	require.ErrorIs(t, err, types.ErrConfiguration)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.crt"), []byte("nothing"), 0o600))
	_, err = TLSConfig{Root: dir, CA: "empty.crt"}.ClientConfig()
	require.ErrorIs(t, err, types.ErrConfiguration)

	_, err = TLSConfig{Root: dir, CA: "empty.crt"}.ServerConfig()
	require.ErrorIs(t, err, types.ErrConfiguration)
}

func TestMutualTLS(t *testing.T) {
	dir := t.TempDir()
	ca := issue(t, dir, "ca", nil, 1)
	issue(t, dir, "harvester", ca, 2)
	issue(t, dir, "farmer", ca, 3)

	serverCfg, err := TLSConfig{Root: dir, CA: "ca.crt", Cert: "harvester.crt", Key: "harvester.key"}.ServerConfig()
	require.NoError(t, err)
	require.Equal(t, tls.RequireAndVerifyClientCert, serverCfg.ClientAuth)

	ln, err := tls.Listen("tcp", "127.0.0.1:0", serverCfg)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	accepted := make(chan error, 2)
	go func() {
		for range 2 {
			conn, err := ln.Accept()
			if err != nil {
				accepted <- err
				return
			}
			accepted <- conn.(*tls.Conn).Handshake()
			conn.Close()
		}
	}()

	clientCfg, err := TLSConfig{
		Root: dir,
		CA:   filepath.Join(dir, "ca.crt"),
		Cert: "farmer.crt",
		Key:  "farmer.key",
	}.ClientConfig()
	require.NoError(t, err)
	conn, err := tls.Dial("tcp", ln.Addr().String(), clientCfg)
	require.NoError(t, err)
	require.NoError(t, conn.Handshake())
	conn.Close()
	require.NoError(t, <-accepted)

	// without a client certificate the server rejects the handshake
	anonymous, err := TLSConfig{Root: dir, CA: "ca.crt"}.ClientConfig()
	require.NoError(t, err)
	conn, err = tls.Dial("tcp", ln.Addr().String(), anonymous)
	if err == nil {
		// TLS 1.3 reports the rejection on the first read
		_, err = conn.Read(make([]byte, 1))
		conn.Close()
	}
	require.Error(t, err)
	require.Error(t, <-accepted)
}
