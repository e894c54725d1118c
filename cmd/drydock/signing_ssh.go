package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/odvcencio/drydock/pkg/appdiff"
)

const artifactSignaturePrefix = "sshsig-v1"

// artifactSigningPayload is the byte string actually signed: a
// domain-separated digest of the artifact rather than the artifact itself.
func artifactSigningPayload(artifact []byte) []byte {
	return []byte("drydock-artifact-v1:" + string(appdiff.HashBytes(artifact)))
}

// signArtifact signs the artifact at artifactPath with the SSH key at
// keyPath and writes the detached signature next to it. It returns the
// signature file path.
func signArtifact(keyPath, artifactPath string) (string, error) {
	resolvedKey, err := resolveSigningKeyPath(keyPath)
	if err != nil {
		return "", err
	}

	raw, err := os.ReadFile(resolvedKey)
	if err != nil {
		return "", fmt.Errorf("read signing key %q: %w", resolvedKey, err)
	}
	signer, err := ssh.ParsePrivateKey(raw)
	if err != nil {
		return "", fmt.Errorf("parse signing key %q: %w", resolvedKey, err)
	}

	artifact, err := os.ReadFile(artifactPath)
	if err != nil {
		return "", fmt.Errorf("read artifact: %w", err)
	}
	sig, err := signer.Sign(rand.Reader, artifactSigningPayload(artifact))
	if err != nil {
		return "", fmt.Errorf("sign artifact: %w", err)
	}

	pubB64 := base64.StdEncoding.EncodeToString(signer.PublicKey().Marshal())
	sigB64 := base64.StdEncoding.EncodeToString(sig.Blob)
	line := fmt.Sprintf("%s:%s:%s:%s\n", artifactSignaturePrefix, sig.Format, pubB64, sigB64)

	sigPath := artifactPath + ".sig"
	if err := os.WriteFile(sigPath, []byte(line), 0o644); err != nil {
		return "", fmt.Errorf("write signature: %w", err)
	}
	return sigPath, nil
}

// verifyArtifact checks the detached signature at sigPath against the
// artifact at artifactPath. It returns the signing key's type on success.
func verifyArtifact(artifactPath, sigPath string) (string, error) {
	artifact, err := os.ReadFile(artifactPath)
	if err != nil {
		return "", fmt.Errorf("read artifact: %w", err)
	}
	raw, err := os.ReadFile(sigPath)
	if err != nil {
		return "", fmt.Errorf("read signature: %w", err)
	}

	parts := strings.Split(strings.TrimSpace(string(raw)), ":")
	if len(parts) != 4 || parts[0] != artifactSignaturePrefix {
		return "", fmt.Errorf("malformed signature in %s", sigPath)
	}

	pubBytes, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("malformed signature in %s: public key: %w", sigPath, err)
	}
	pub, err := ssh.ParsePublicKey(pubBytes)
	if err != nil {
		return "", fmt.Errorf("parse public key: %w", err)
	}
	blob, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return "", fmt.Errorf("malformed signature in %s: blob: %w", sigPath, err)
	}

	sig := &ssh.Signature{Format: parts[1], Blob: blob}
	if err := pub.Verify(artifactSigningPayload(artifact), sig); err != nil {
		return "", fmt.Errorf("signature does not match %s: %w", artifactPath, err)
	}
	return pub.Type(), nil
}

func resolveSigningKeyPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path != "" {
		expanded, err := expandUserPath(path)
		if err != nil {
			return "", err
		}
		return expanded, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	candidates := []string{
		filepath.Join(home, ".ssh", "id_ed25519"),
		filepath.Join(home, ".ssh", "id_ecdsa"),
		filepath.Join(home, ".ssh", "id_rsa"),
	}
	for _, candidate := range candidates {
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no default SSH private key found in ~/.ssh (id_ed25519, id_ecdsa, id_rsa)")
}

func expandUserPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(path)
}
