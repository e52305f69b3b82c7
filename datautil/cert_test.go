package datautil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	stdx509 "crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"reflect"
	"testing"
	"time"
)

func selfSignedDER(t *testing.T, commonName string, sans []string) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %s", err)
	}
	tmpl := stdx509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: commonName},
		DNSNames:     sans,
		NotBefore:    time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:     time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	der, err := stdx509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("failed to create certificate: %s", err)
	}
	return der
}

func TestGetCertificateMeta(t *testing.T) {
	sans := []string{"example.com", "www.example.com"}
	der := selfSignedDER(t, "example.com", sans)

	meta, err := GetCertificateMeta(der)
	if err != nil {
		t.Fatalf("failed to decode certificate: %s", err)
	}

	expectedFingerprint := fmt.Sprintf("%x", sha256.Sum256(der))
	if meta.Fingerprint != expectedFingerprint {
		t.Fatalf("expected fingerprint %s, but got %s", expectedFingerprint, meta.Fingerprint)
	}
	if !reflect.DeepEqual(meta.SANList, sans) {
		t.Fatalf("expected SAN list %v, but got %v", sans, meta.SANList)
	}
	if meta.SubjectCommonName != "example.com" {
		t.Fatalf("expected subject common name example.com, but got %s", meta.SubjectCommonName)
	}
	// self signed, so issuer mirrors the subject
	if meta.IssuerCommonName != "example.com" {
		t.Fatalf("expected issuer common name example.com, but got %s", meta.IssuerCommonName)
	}
	if !meta.NotValidBefore.Equal(time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected not-valid-before: %s", meta.NotValidBefore)
	}
	if !meta.NotValidAfter.Equal(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected not-valid-after: %s", meta.NotValidAfter)
	}
}

func TestGetCertificateMetaGarbage(t *testing.T) {
	if _, err := GetCertificateMeta([]byte("not a certificate")); err == nil {
		t.Fatalf("expected decode error for garbage input")
	}
}
