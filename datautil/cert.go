package datautil

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/google/certificate-transparency-go/x509"
	"github.com/google/certificate-transparency-go/x509/pkix"
	"github.com/pkg/errors"
)

// CertificateMeta carries the decoded metadata of a single end-entity
// certificate. It is folded into TLS observations and never persisted on its
// own.
type CertificateMeta struct {
	Issuer            string
	IssuerCommonName  string
	Subject           string
	SubjectCommonName string
	SANList           []string
	NotValidBefore    time.Time
	NotValidAfter     time.Time
	// Fingerprint is the lowercase hex SHA-256 digest of the raw DER bytes.
	Fingerprint string
}

func commonName(name pkix.Name) string {
	return name.CommonName
}

// GetCertificateMeta decodes the DER bytes of a leaf certificate. Probes
// regularly hand us garbage generated by middleboxes, so parse errors that
// still yield a certificate are tolerated.
func GetCertificateMeta(der []byte) (*CertificateMeta, error) {
	cert, err := x509.ParseCertificate(der)
	if cert == nil {
		return nil, errors.Wrap(err, "parse certificate")
	}
	if err != nil && !x509.IsFatal(err) {
		err = nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "parse certificate")
	}

	return &CertificateMeta{
		Issuer:            cert.Issuer.String(),
		IssuerCommonName:  commonName(cert.Issuer),
		Subject:           cert.Subject.String(),
		SubjectCommonName: commonName(cert.Subject),
		SANList:           cert.DNSNames,
		NotValidBefore:    cert.NotBefore,
		NotValidAfter:     cert.NotAfter,
		Fingerprint:       fmt.Sprintf("%x", sha256.Sum256(der)),
	}, nil
}
