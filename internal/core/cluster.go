package core

import "os"

// TrustAnchor carries the server-verification material for a cluster.
// A nil CABundle with InsecureSkipVerify unset means the system trust
// store is used.
type TrustAnchor struct {
	CABundle           []byte
	InsecureSkipVerify bool
}

// Credential is a sealed sum type over the supported authentication
// mechanisms. The API client handles every variant exhaustively; a
// user entry that yields no variant is rejected at resolution time
// with an ErrAuthentication.
type Credential interface {
	credential()
}

// ClientCertificateCredential authenticates via mTLS. Both fields hold
// literal PEM bytes; file references are resolved before construction.
type ClientCertificateCredential struct {
	CertPEM []byte
	KeyPEM  []byte
}

func (ClientCertificateCredential) credential() {}

// BearerTokenCredential authenticates via an Authorization header.
// When TokenFile is set the file is re-read on every use so that
// rotated tokens are picked up without a restart.
type BearerTokenCredential struct {
	User      string
	Token     string
	TokenFile string
}

func (BearerTokenCredential) credential() {}

// Resolve returns the current token value.
func (c BearerTokenCredential) Resolve() (string, error) {
	if c.TokenFile == "" {
		return c.Token, nil
	}
	data, err := os.ReadFile(c.TokenFile)
	if err != nil {
		return "", &ErrCredential{User: c.User, Reason: "token file unreadable", Err: err}
	}
	return string(data), nil
}

// ClusterContext is a fully resolved kubeconfig context: endpoint,
// trust anchor, and exactly one credential variant. No file I/O is
// needed downstream except bearer-token re-reads.
type ClusterContext struct {
	Name        string
	Server      string
	TrustAnchor TrustAnchor
	Credential  Credential
}
