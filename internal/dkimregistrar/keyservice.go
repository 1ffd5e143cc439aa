// Package dkimregistrar implements KeyService (per-domain RSA keypair
// generation) and Registrar/TableSync (opendkim's key and signing table
// maintenance, plus the milter reload signal).
package dkimregistrar

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ignite/sparkpost-monitor/internal/pkg/logger"
)

var selectorRe = regexp.MustCompile(`^[A-Za-z0-9-]{1,63}$`)

// KeyService generates and persists per-(domain, selector) DKIM signing
// keys under a configurable key directory.
type KeyService struct {
	keyDir    string
	opendkimGID int
	haveGID     bool
}

// NewKeyService creates a KeyService rooted at keyDir. When gid >= 0 the
// generated private key files are chowned to that group after write.
func NewKeyService(keyDir string, gid int) *KeyService {
	return &KeyService{keyDir: keyDir, opendkimGID: gid, haveGID: gid >= 0}
}

// GeneratedKey is the result of a successful (or reused) key generation.
type GeneratedKey struct {
	PrivateKeyPath string
	PublicPEM      string
	TXTValue       string
	Reused         bool
}

// Generate produces (or reuses) a 2048-bit RSA keypair for (domain,
// selector). The private key is written atomically (temp file + rename)
// with mode 0600, then best-effort regrouped to 0640/opendkim. Idempotent:
// if the key file already exists it is read and reused rather than
// regenerated.
func (s *KeyService) Generate(ctx context.Context, apex, selector string) (*GeneratedKey, error) {
	apex = strings.ToLower(strings.TrimSpace(apex))
	selector = strings.ToLower(strings.TrimSpace(selector))
	if !selectorRe.MatchString(selector) {
		return nil, fmt.Errorf("dkimregistrar: invalid selector %q", selector)
	}

	path := s.keyPath(apex, selector)
	if data, err := os.ReadFile(path); err == nil {
		block, _ := pem.Decode(data)
		if block == nil {
			return nil, fmt.Errorf("dkimregistrar: existing key file %s is not PEM", path)
		}
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("dkimregistrar: parse existing key: %w", err)
		}
		pub, txt := publicRecord(&key.PublicKey)
		return &GeneratedKey{PrivateKeyPath: path, PublicPEM: pub, TXTValue: txt, Reused: true}, nil
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("dkimregistrar: generate key: %w", err)
	}

	if err := s.writeKeyFile(path, key); err != nil {
		return nil, err
	}

	pub, txt := publicRecord(&key.PublicKey)
	return &GeneratedKey{PrivateKeyPath: path, PublicPEM: pub, TXTValue: txt}, nil
}

func (s *KeyService) keyPath(apex, selector string) string {
	return filepath.Join(s.keyDir, apex, selector+".private")
}

func (s *KeyService) writeKeyFile(path string, key *rsa.PrivateKey) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("dkimregistrar: mkdir key dir: %w", err)
	}

	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".dkim-*.tmp")
	if err != nil {
		return fmt.Errorf("dkimregistrar: create temp key file: %w", err)
	}
	tmpPath := tmp.Name()
	if err := pem.Encode(tmp, block); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("dkimregistrar: write temp key file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("dkimregistrar: close temp key file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("dkimregistrar: chmod temp key file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("dkimregistrar: rename temp key file: %w", err)
	}

	if err := os.Chmod(path, 0640); err != nil {
		logger.Warn("dkim key regroup chmod failed", "path", path, "error", err.Error())
	}
	if s.haveGID {
		if err := os.Chown(path, -1, s.opendkimGID); err != nil {
			logger.Warn("dkim key chown failed", "path", path, "error", err.Error())
		}
	}
	return nil
}

// publicRecord encodes pub as the single-line base64 p= value and the full
// DKIM1 TXT record value.
func publicRecord(pub *rsa.PublicKey) (pemPublic, txtValue string) {
	der, _ := x509.MarshalPKIXPublicKey(pub)
	p := base64.StdEncoding.EncodeToString(der)
	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}
	return string(pem.EncodeToMemory(block)), fmt.Sprintf("v=DKIM1; k=rsa; p=%s", p)
}

// TXTName returns the DNS TXT record name for (apex, selector).
func TXTName(apex, selector string) string {
	return fmt.Sprintf("%s._domainkey.%s", strings.ToLower(selector), strings.ToLower(apex))
}
