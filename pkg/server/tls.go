package server

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"github.com/nimburion/taskmanager/pkg/security"
)

// ErrTLSMaterial is returned when certificate files cannot be used.
var ErrTLSMaterial = errors.New("invalid tls material")

// LoadTLSConfig builds a server config that requires client certificates
// signed by the CA bundle in caFile.
func LoadTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	for _, p := range []string{certFile, keyFile, caFile} {
		if err := security.ValidateFilePath(p, ""); err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrTLSMaterial, p, err)
		}
	}

	pair, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: key pair: %v", ErrTLSMaterial, err)
	}
	bundle, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("%w: client ca: %v", ErrTLSMaterial, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(bundle) {
		return nil, fmt.Errorf("%w: client ca %s holds no PEM certificates", ErrTLSMaterial, caFile)
	}

	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{pair},
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
	}, nil
}
