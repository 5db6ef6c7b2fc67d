package probes

import (
	"context"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/siteprobe/siteprobe/pkg/duration"
	"github.com/siteprobe/siteprobe/pkg/finding"
	"github.com/siteprobe/siteprobe/pkg/target"
)

// CertResult holds the certificate and protocol facts for one target.
type CertResult struct {
	finding.ScanResult

	// Skipped is true for plaintext targets. Nothing else is filled in.
	Skipped bool `json:"skipped,omitempty"`

	Grade       string `json:"grade,omitempty"`
	TLSVersion  string `json:"tlsVersion,omitempty"`
	CipherSuite string `json:"cipherSuite,omitempty"`

	SubjectCN       string    `json:"subjectCn,omitempty"`
	Issuer          string    `json:"issuer,omitempty"`
	NotBefore       time.Time `json:"notBefore,omitzero"`
	NotAfter        time.Time `json:"notAfter,omitzero"`
	DaysUntilExpiry int       `json:"daysUntilExpiry,omitempty"`

	Expired       bool `json:"expired,omitempty"`
	NotYetValid   bool `json:"notYetValid,omitempty"`
	SelfSigned    bool `json:"selfSigned,omitempty"`
	Mismatched    bool `json:"mismatched,omitempty"`
	ExpiringSoon  bool `json:"expiringSoon,omitempty"`
	WeakSignature bool `json:"weakSignature,omitempty"`
	ShortRSAKey   bool `json:"shortRsaKey,omitempty"`

	SupportedVersions []string `json:"supportedVersions,omitempty"`

	Findings []finding.Finding `json:"findings,omitempty"`
}

// CertProber grades the TLS deployment of a target: certificate facts,
// negotiated parameters, and which protocol versions the server accepts.
type CertProber struct {
	// DialTimeout is the per-connection timeout.
	DialTimeout time.Duration

	// ExpiryWarn is how close to NotAfter a certificate counts as
	// expiring soon.
	ExpiryWarn time.Duration

	// SkipVersionProbe disables the per-version handshake sweep.
	SkipVersionProbe bool
}

// NewCertProber creates a prober with default timeouts.
func NewCertProber() *CertProber {
	return &CertProber{
		DialTimeout: duration.TLSHandshake,
		ExpiryWarn:  30 * 24 * time.Hour,
	}
}

// GradeCertificate inspects the certificate presented on the target's
// port. Plaintext targets are skipped: there is no certificate to grade,
// and the unencrypted transport is reported separately.
func (p *CertProber) GradeCertificate(ctx context.Context, tgt *target.Target) (*CertResult, error) {
	start := time.Now()
	if tgt.Plaintext {
		return &CertResult{
			ScanResult: finding.ScanResult{Target: tgt.HostPort(), StartTime: start},
			Skipped:    true,
		}, nil
	}

	dialTimeout := p.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = duration.TLSHandshake
	}
	expiryWarn := p.ExpiryWarn
	if expiryWarn <= 0 {
		expiryWarn = 30 * 24 * time.Hour
	}

	state, err := p.handshake(ctx, tgt.HostPort(), tgt.Hostname, dialTimeout, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("tls handshake with %s: %w", tgt.HostPort(), err)
	}

	result := &CertResult{
		ScanResult:  finding.ScanResult{Target: tgt.HostPort(), StartTime: start},
		TLSVersion:  tlsVersionName(state.Version),
		CipherSuite: tls.CipherSuiteName(state.CipherSuite),
	}

	if len(state.PeerCertificates) > 0 {
		inspectLeaf(result, state.PeerCertificates[0], tgt.Hostname, expiryWarn)
	}

	if !p.SkipVersionProbe {
		result.SupportedVersions = p.probeVersions(ctx, tgt.HostPort(), tgt.Hostname, dialTimeout)
	}

	result.Findings = certFindings(result)
	result.Grade = certGrade(result)
	result.Duration = time.Since(start)
	return result, nil
}

// handshake dials the address and completes a TLS handshake. minVer and
// maxVer of zero use the client defaults. Verification is disabled; the
// broken certificates are exactly what this probe is after.
func (p *CertProber) handshake(ctx context.Context, addr, serverName string, timeout time.Duration, minVer, maxVer uint16) (tls.ConnectionState, error) {
	dialer := &net.Dialer{Timeout: timeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return tls.ConnectionState{}, fmt.Errorf("%w: %v", finding.ErrTargetUnreachable, err)
	}

	cfg := &tls.Config{
		ServerName:         serverName,
		InsecureSkipVerify: true,
		NextProtos:         []string{"h2", "http/1.1"},
	}
	if minVer != 0 {
		cfg.MinVersion = minVer
	} else {
		cfg.MinVersion = tls.VersionTLS10
	}
	if maxVer != 0 {
		cfg.MaxVersion = maxVer
	}

	hsCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tlsConn := tls.Client(netConn, cfg)
	if err := tlsConn.HandshakeContext(hsCtx); err != nil {
		netConn.Close()
		return tls.ConnectionState{}, err
	}
	state := tlsConn.ConnectionState()
	tlsConn.Close()
	return state, nil
}

// probeVersions tries one handshake per protocol version and returns the
// names of the versions the server accepted. Handshake failures just mean
// the version is not offered.
func (p *CertProber) probeVersions(ctx context.Context, addr, serverName string, timeout time.Duration) []string {
	var supported []string
	for _, ver := range []uint16{tls.VersionTLS10, tls.VersionTLS11, tls.VersionTLS12, tls.VersionTLS13} {
		if ctx.Err() != nil {
			return supported
		}
		if _, err := p.handshake(ctx, addr, serverName, timeout, ver, ver); err == nil {
			supported = append(supported, tlsVersionName(ver))
		}
	}
	return supported
}

// inspectLeaf fills the certificate facts from the leaf certificate.
func inspectLeaf(result *CertResult, cert *x509.Certificate, hostname string, expiryWarn time.Duration) {
	result.SubjectCN = cert.Subject.CommonName
	result.Issuer = cert.Issuer.String()
	result.NotBefore = cert.NotBefore
	result.NotAfter = cert.NotAfter

	now := time.Now()
	result.DaysUntilExpiry = int(cert.NotAfter.Sub(now).Hours() / 24)

	if now.After(cert.NotAfter) {
		result.Expired = true
	}
	if now.Before(cert.NotBefore) {
		result.NotYetValid = true
	}
	if !result.Expired && now.Add(expiryWarn).After(cert.NotAfter) {
		result.ExpiringSoon = true
	}
	if cert.Subject.String() == cert.Issuer.String() {
		result.SelfSigned = true
	}
	if err := cert.VerifyHostname(hostname); err != nil {
		result.Mismatched = true
	}

	switch cert.SignatureAlgorithm {
	case x509.MD2WithRSA, x509.MD5WithRSA, x509.SHA1WithRSA, x509.DSAWithSHA1, x509.ECDSAWithSHA1:
		result.WeakSignature = true
	}

	if pub, ok := cert.PublicKey.(*rsa.PublicKey); ok && pub.N.BitLen() < 2048 {
		result.ShortRSAKey = true
	}
}

// certFindings derives findings from the collected facts.
func certFindings(r *CertResult) []finding.Finding {
	var fs []finding.Finding
	add := func(f finding.Finding) {
		f.Probe = "certificate"
		fs = append(fs, f)
	}

	if r.Expired {
		add(finding.Finding{
			Title:          "Expired TLS Certificate",
			Description:    fmt.Sprintf("The certificate expired on %s. Browsers refuse the connection and clients that proceed anyway are open to interception.", r.NotAfter.Format("2006-01-02")),
			Severity:       finding.Critical,
			Recommendation: "Renew the certificate and automate renewal.",
			CWE:            "CWE-295",
			OWASP:          "A02:2021",
		})
	}
	if r.NotYetValid {
		add(finding.Finding{
			Title:          "Certificate Not Yet Valid",
			Description:    fmt.Sprintf("The certificate only becomes valid on %s. Clients reject it until then.", r.NotBefore.Format("2006-01-02")),
			Severity:       finding.High,
			Recommendation: "Deploy a certificate whose validity period covers the present.",
			CWE:            "CWE-295",
			OWASP:          "A02:2021",
		})
	}
	if r.SelfSigned {
		add(finding.Finding{
			Title:          "Self-Signed TLS Certificate",
			Description:    "The certificate is self-signed, so clients cannot establish trust in the server identity.",
			Severity:       finding.High,
			Recommendation: "Install a certificate issued by a trusted certificate authority.",
			CWE:            "CWE-295",
			OWASP:          "A02:2021",
		})
	}
	if r.Mismatched {
		add(finding.Finding{
			Title:          "Certificate Hostname Mismatch",
			Description:    fmt.Sprintf("The certificate does not cover the scanned hostname (subject CN %q).", r.SubjectCN),
			Severity:       finding.High,
			Recommendation: "Issue a certificate that includes the hostname in its subject alternative names.",
			CWE:            "CWE-295",
			OWASP:          "A02:2021",
		})
	}
	if r.ExpiringSoon {
		add(finding.Finding{
			Title:          "TLS Certificate Expiring Soon",
			Description:    fmt.Sprintf("The certificate expires in %d days.", r.DaysUntilExpiry),
			Severity:       finding.Medium,
			Recommendation: "Renew the certificate before it expires and automate renewal.",
			CWE:            "CWE-295",
			OWASP:          "A02:2021",
		})
	}
	if r.WeakSignature {
		add(finding.Finding{
			Title:          "Weak Certificate Signature Algorithm",
			Description:    "The certificate is signed with a broken hash algorithm (MD5 or SHA-1), which allows forgery of a colliding certificate.",
			Severity:       finding.High,
			Recommendation: "Reissue the certificate with a SHA-256 or stronger signature.",
			CWE:            "CWE-327",
			OWASP:          "A02:2021",
		})
	}
	if r.ShortRSAKey {
		add(finding.Finding{
			Title:          "Weak RSA Key Size",
			Description:    "The certificate public key is an RSA key shorter than 2048 bits.",
			Severity:       finding.Medium,
			Recommendation: "Reissue the certificate with at least a 2048-bit RSA key or an ECDSA key.",
			CWE:            "CWE-326",
			OWASP:          "A02:2021",
		})
	}

	if supportsOutdatedTLS(r.SupportedVersions) {
		add(finding.Finding{
			Title:          "Outdated TLS Version",
			Description:    "The server still accepts TLS 1.0 or TLS 1.1 handshakes. Both versions are deprecated and vulnerable to downgrade attacks.",
			Severity:       finding.Critical,
			Recommendation: "Disable TLS 1.0 and 1.1; require TLS 1.2 or later.",
			CWE:            "CWE-326",
			OWASP:          "A02:2021",
		})
	}
	if len(r.SupportedVersions) > 0 && !supportsVersion(r.SupportedVersions, "TLS1.3") {
		add(finding.Finding{
			Title:          "TLS 1.3 Not Supported",
			Description:    "The server does not offer TLS 1.3, forgoing its handshake privacy and forward-secrecy improvements.",
			Severity:       finding.Info,
			Recommendation: "Enable TLS 1.3 alongside TLS 1.2.",
		})
	}

	return fs
}

// certGrade applies the deduction-style grade used in the report UI.
func certGrade(r *CertResult) string {
	score := 100

	if r.Expired {
		score -= 50
	}
	if r.SelfSigned {
		score -= 20
	}
	if r.Mismatched {
		score -= 30
	}

	switch r.TLSVersion {
	case "TLS1.0":
		score -= 30
	case "TLS1.1":
		score -= 20
	case "TLS1.3":
		score += 10
	}

	upper := strings.ToUpper(r.CipherSuite)
	if strings.Contains(upper, "NULL") || strings.Contains(upper, "EXPORT") || strings.Contains(upper, "RC4") {
		score -= 40
	}

	if supportsOutdatedTLS(r.SupportedVersions) {
		score -= 20
	}

	switch {
	case score >= 95:
		return "A+"
	case score >= 85:
		return "A"
	case score >= 75:
		return "B"
	case score >= 60:
		return "C"
	case score >= 40:
		return "D"
	default:
		return "F"
	}
}

func supportsOutdatedTLS(versions []string) bool {
	return supportsVersion(versions, "TLS1.0") || supportsVersion(versions, "TLS1.1")
}

func supportsVersion(versions []string, name string) bool {
	for _, v := range versions {
		if v == name {
			return true
		}
	}
	return false
}

// tlsVersionName converts a TLS version constant to its display name.
func tlsVersionName(ver uint16) string {
	switch ver {
	case tls.VersionSSL30:
		return "SSLv3"
	case tls.VersionTLS10:
		return "TLS1.0"
	case tls.VersionTLS11:
		return "TLS1.1"
	case tls.VersionTLS12:
		return "TLS1.2"
	case tls.VersionTLS13:
		return "TLS1.3"
	default:
		return fmt.Sprintf("Unknown(0x%04x)", ver)
	}
}
