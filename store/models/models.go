package models

import (
	"time"
)

// ObservationBase carries the measurement and probe metadata shared by all
// observation tables.
type ObservationBase struct {
	MeasurementUID string `gorm:"index"`
	ObservationID  string `gorm:"index"`
	ReportID       string `gorm:"index"`
	Timestamp      time.Time
	Target         string

	ProbeAsn       int `gorm:"index"`
	ProbeCc        string
	ProbeAsOrgName string
	ProbeAsCc      string

	ResolverIp        string
	ResolverAsn       int
	ResolverCc        string
	ResolverAsOrgName string
	ResolverAsCc      string

	SoftwareName    string
	SoftwareVersion string
	NetworkType     string
	Platform        string
	Origin          string
}

type ObsNettest struct {
	ID uint `gorm:"primary_key" pg:",pk"`
	ObservationBase

	TestName    string
	TestVersion string
	Input       string
}

func (ObsNettest) TableName() string {
	return "obs_nettest"
}

type ObsDNS struct {
	ID uint `gorm:"primary_key" pg:",pk"`
	ObservationBase

	DomainName string `gorm:"index"`
	DomainApex string
	QueryType  string
	AnswerType string
	Answer     string

	AnswerAsn       int
	AnswerAsOrgName string
	AnswerAsCc      string
	AnswerCc        string
	AnswerIsBogon   bool

	FingerprintId                string
	FingerprintCountryConsistent *bool
	IsTlsConsistent              *bool
	Failure                      string
}

func (ObsDNS) TableName() string {
	return "obs_dns"
}

type ObsTCP struct {
	ID uint `gorm:"primary_key" pg:",pk"`
	ObservationBase

	DomainName  string `gorm:"index"`
	DomainApex  string
	Ip          string
	Port        int
	IpAsn       int
	IpAsOrgName string
	IpAsCc      string
	IpCc        string
	Failure     string
}

func (ObsTCP) TableName() string {
	return "obs_tcp"
}

type ObsTLS struct {
	ID uint `gorm:"primary_key" pg:",pk"`
	ObservationBase

	DomainName  string `gorm:"index"`
	DomainApex  string
	ServerName  string
	Ip          string
	Port        int
	IpAsn       int
	IpAsOrgName string
	IpAsCc      string
	IpCc        string

	TlsVersion         string
	CipherSuite        string
	IsCertificateValid *bool

	EndEntityCertificateFingerprint       string
	EndEntityCertificateSubject           string
	EndEntityCertificateSubjectCommonName string
	EndEntityCertificateIssuer            string
	EndEntityCertificateIssuerCommonName  string
	EndEntityCertificateSanList           string
	EndEntityCertificateNotValidBefore    string
	EndEntityCertificateNotValidAfter     string
	CertificateChainLength                int

	TlsHandshakeReadCount     int
	TlsHandshakeWriteCount    int
	TlsHandshakeReadBytes     float64
	TlsHandshakeWriteBytes    float64
	TlsHandshakeLastOperation string
	TlsHandshakeTime          float64

	Failure string
}

func (ObsTLS) TableName() string {
	return "obs_tls"
}

type ObsHTTP struct {
	ID uint `gorm:"primary_key" pg:",pk"`
	ObservationBase

	DomainName string `gorm:"index"`
	DomainApex string

	RequestUrl             string
	RequestIsEncrypted     bool
	RequestRedirectFrom    string
	RequestBodyLength      int
	RequestBodyIsTruncated bool
	RequestMethod          string
	XTransport             string

	ResponseStatusCode      int
	ResponseBodyLength      int
	ResponseBodyIsTruncated bool
	ResponseBodySha1        string
	ResponseBodyTitle       string
	ResponseBodyMetaTitle   string

	ResponseHeaderLocation string
	ResponseHeaderServer   string

	ResponseFingerprints         string
	FingerprintCountryConsistent *bool
	ResponseMatchesBlockpage     bool
	ResponseMatchesFalsePositive bool

	Failure string
}

func (ObsHTTP) TableName() string {
	return "obs_http"
}

type Verdict struct {
	ID uint `gorm:"primary_key" pg:",pk"`

	MeasurementUID string `gorm:"index"`
	VerdictID      string `gorm:"index"`
	ReportID       string `gorm:"index"`
	Timestamp      time.Time

	ProbeAsn       int `gorm:"index"`
	ProbeCc        string
	ProbeAsOrgName string
	ProbeAsCc      string

	NetworkType string

	ResolverIp        string
	ResolverAsn       int
	ResolverCc        string
	ResolverAsOrgName string
	ResolverAsCc      string

	Confidence float64

	Subject         string
	SubjectCategory string
	SubjectDetail   string

	Outcome       string
	OutcomeDetail string
}

func (Verdict) TableName() string {
	return "verdict"
}

// DNSConsistencyTLSBaseline records addresses confirmed, via a successful
// TLS handshake, to legitimately serve a domain.
type DNSConsistencyTLSBaseline struct {
	ID uint `gorm:"primary_key" pg:",pk"`

	Ip         string `gorm:"index"`
	DomainName string `gorm:"index"`
	Timestamp  time.Time
}

func (DNSConsistencyTLSBaseline) TableName() string {
	return "dns_consistency_tls_baseline"
}
