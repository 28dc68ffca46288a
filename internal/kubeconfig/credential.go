package kubeconfig

import (
	"crypto/tls"
	"fmt"
	"os"

	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"

	"github.com/k8schema/k8schema/internal/core"
)

// resolveCredential selects the credential variant for a user entry.
// Client-certificate material takes precedence over a bearer token —
// mTLS is the stronger mechanism. A user with neither is rejected
// rather than proceeding unauthenticated.
func resolveCredential(name string, user *clientcmdapi.AuthInfo) (core.Credential, error) {
	hasCert := len(user.ClientCertificateData) > 0 || user.ClientCertificate != ""
	hasKey := len(user.ClientKeyData) > 0 || user.ClientKey != ""

	if hasCert || hasKey {
		return resolveClientCertificate(name, user)
	}

	if user.Token != "" || user.TokenFile != "" {
		cred := core.BearerTokenCredential{
			User:      name,
			Token:     user.Token,
			TokenFile: user.TokenFile,
		}
		// Fail at startup if the token file is already missing; it is
		// still re-read on every request to pick up rotation.
		if _, err := cred.Resolve(); err != nil {
			return nil, err
		}
		return cred, nil
	}

	return nil, &core.ErrAuthentication{User: name}
}

func resolveClientCertificate(name string, user *clientcmdapi.AuthInfo) (core.Credential, error) {
	certPEM, err := inlineOrFile(user.ClientCertificateData, user.ClientCertificate)
	if err != nil {
		return nil, &core.ErrCredential{
			User:   name,
			Reason: fmt.Sprintf("client-certificate file %q unreadable", user.ClientCertificate),
			Err:    err,
		}
	}
	keyPEM, err := inlineOrFile(user.ClientKeyData, user.ClientKey)
	if err != nil {
		return nil, &core.ErrCredential{
			User:   name,
			Reason: fmt.Sprintf("client-key file %q unreadable", user.ClientKey),
			Err:    err,
		}
	}
	if len(certPEM) == 0 || len(keyPEM) == 0 {
		return nil, &core.ErrCredential{
			User:   name,
			Reason: "client certificate and key must both be provided",
		}
	}

	// Validate the pair now so a malformed credential fails startup
	// instead of the first TLS handshake.
	if _, err := tls.X509KeyPair(certPEM, keyPEM); err != nil {
		return nil, &core.ErrCredential{
			User:   name,
			Reason: "malformed client certificate/key pair",
			Err:    err,
		}
	}

	return core.ClientCertificateCredential{CertPEM: certPEM, KeyPEM: keyPEM}, nil
}

func inlineOrFile(inline []byte, path string) ([]byte, error) {
	if len(inline) > 0 {
		return inline, nil
	}
	if path == "" {
		return nil, nil
	}
	return os.ReadFile(path)
}
