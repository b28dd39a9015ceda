package tlsutil

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSelfSigned(t *testing.T, certPath, keyPath, commonName string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	tmpl := x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}

	certOut := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}
	keyOut := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	if err := os.WriteFile(certPath, certOut, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyPath, keyOut, 0o600); err != nil {
		t.Fatal(err)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestCertLoader_LoadsInitialCertificate(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "tls.crt")
	keyPath := filepath.Join(dir, "tls.key")
	writeSelfSigned(t, certPath, keyPath, "tripwatch-test")

	cl, err := New(certPath, keyPath, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer cl.Stop()

	cert, err := cl.GetCertificate(&tls.ClientHelloInfo{})
	if err != nil {
		t.Fatal(err)
	}
	if cert == nil || len(cert.Certificate) == 0 {
		t.Fatal("expected a loaded certificate")
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		t.Fatal(err)
	}
	if leaf.Subject.CommonName != "tripwatch-test" {
		t.Errorf("unexpected common name %s", leaf.Subject.CommonName)
	}
}

func TestCertLoader_FailsOnMissingFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := New(filepath.Join(dir, "missing.crt"), filepath.Join(dir, "missing.key"), discardLogger())
	if err == nil {
		t.Fatal("expected error for missing cert files")
	}
}

func TestCertLoader_ReloadPicksUpRotation(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "tls.crt")
	keyPath := filepath.Join(dir, "tls.key")
	writeSelfSigned(t, certPath, keyPath, "before-rotation")

	cl, err := New(certPath, keyPath, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer cl.Stop()

	before, _ := cl.GetCertificate(nil)

	writeSelfSigned(t, certPath, keyPath, "after-rotation")
	if err := cl.Reload(); err != nil {
		t.Fatal(err)
	}

	after, _ := cl.GetCertificate(nil)
	if bytes.Equal(before.Certificate[0], after.Certificate[0]) {
		t.Error("expected certificate to change after reload")
	}

	leaf, err := x509.ParseCertificate(after.Certificate[0])
	if err != nil {
		t.Fatal(err)
	}
	if leaf.Subject.CommonName != "after-rotation" {
		t.Errorf("expected rotated cert, got %s", leaf.Subject.CommonName)
	}
}

func TestCertLoader_ReloadKeepsCurrentOnBadFiles(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "tls.crt")
	keyPath := filepath.Join(dir, "tls.key")
	writeSelfSigned(t, certPath, keyPath, "good-cert")

	cl, err := New(certPath, keyPath, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer cl.Stop()

	if err := os.WriteFile(certPath, []byte("not a certificate"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := cl.Reload(); err == nil {
		t.Fatal("expected reload error for corrupt cert")
	}

	cert, _ := cl.GetCertificate(nil)
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		t.Fatal(err)
	}
	if leaf.Subject.CommonName != "good-cert" {
		t.Errorf("expected previous cert retained, got %s", leaf.Subject.CommonName)
	}
}

func TestMinVersion(t *testing.T) {
	if got := MinVersion("1.3"); got != tls.VersionTLS13 {
		t.Errorf("expected TLS 1.3, got %x", got)
	}
	if got := MinVersion("1.2"); got != tls.VersionTLS12 {
		t.Errorf("expected TLS 1.2, got %x", got)
	}
	if got := MinVersion(""); got != tls.VersionTLS12 {
		t.Errorf("expected default TLS 1.2, got %x", got)
	}
}
