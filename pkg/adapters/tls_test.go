// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-mantavfs.
//
// go-mantavfs is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package adapters

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSelfSigned(t *testing.T, dir string) (certFile, keyFile string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "localhost"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey: %v", err)
	}

	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")
	if err := os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0600); err != nil {
		t.Fatal(err)
	}
	return certFile, keyFile
}

func TestTLSConfigDisabled(t *testing.T) {
	config, err := TLSConfig{}.Build()
	if err != nil || config != nil {
		t.Errorf("Build() = %v, %v; want nil, nil", config, err)
	}
}

func TestTLSConfigServer(t *testing.T) {
	certFile, keyFile := writeSelfSigned(t, t.TempDir())

	config, err := TLSConfig{CertFile: certFile, KeyFile: keyFile}.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if config.MinVersion != tls.VersionTLS12 || len(config.Certificates) != 1 {
		t.Errorf("unexpected config: min=%x certs=%d", config.MinVersion, len(config.Certificates))
	}
	if config.ClientAuth != tls.NoClientCert {
		t.Errorf("ClientAuth = %v, want none", config.ClientAuth)
	}
}

func TestTLSConfigMutual(t *testing.T) {
	certFile, keyFile := writeSelfSigned(t, t.TempDir())

	config, err := TLSConfig{CertFile: certFile, KeyFile: keyFile, ClientCAFile: certFile}.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if config.ClientAuth != tls.RequireAndVerifyClientCert || config.ClientCAs == nil {
		t.Errorf("mutual TLS not configured")
	}
}

func TestTLSConfigErrors(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeSelfSigned(t, dir)

	if _, err := (TLSConfig{CertFile: certFile}).Build(); !errors.Is(err, ErrInvalidCertificate) {
		t.Errorf("missing key error = %v", err)
	}
	if _, err := (TLSConfig{CertFile: keyFile, KeyFile: keyFile}).Build(); !errors.Is(err, ErrInvalidCertificate) {
		t.Errorf("bad cert error = %v", err)
	}
	if _, err := (TLSConfig{CertFile: certFile, KeyFile: keyFile, ClientCAFile: filepath.Join(dir, "none")}).Build(); !errors.Is(err, ErrInvalidCAPool) {
		t.Errorf("missing CA error = %v", err)
	}
	if _, err := (TLSConfig{CertFile: certFile, KeyFile: keyFile, ClientCAFile: keyFile}).Build(); !errors.Is(err, ErrInvalidCAPool) {
		t.Errorf("bad CA error = %v", err)
	}
}
