package main

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"
)

func writeTestSSHKey(t *testing.T, dir string) string {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatalf("MarshalPrivateKey: %v", err)
	}

	keyPath := filepath.Join(dir, "id_ed25519")
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return keyPath
}

func TestSignAndVerifyArtifact(t *testing.T) {
	dir := t.TempDir()
	keyPath := writeTestSSHKey(t, dir)

	artifactPath := filepath.Join(dir, "app.vmcode")
	if err := os.WriteFile(artifactPath, []byte("patch bytes"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	sigPath, err := signArtifact(keyPath, artifactPath)
	if err != nil {
		t.Fatalf("signArtifact: %v", err)
	}
	if sigPath != artifactPath+".sig" {
		t.Fatalf("sigPath = %q", sigPath)
	}

	raw, err := os.ReadFile(sigPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.HasPrefix(string(raw), "sshsig-v1:ssh-ed25519:") {
		t.Fatalf("signature line = %q", raw)
	}

	keyType, err := verifyArtifact(artifactPath, sigPath)
	if err != nil {
		t.Fatalf("verifyArtifact: %v", err)
	}
	if keyType != "ssh-ed25519" {
		t.Fatalf("keyType = %q, want ssh-ed25519", keyType)
	}
}

func TestVerifyArtifact_TamperedArtifact(t *testing.T) {
	dir := t.TempDir()
	keyPath := writeTestSSHKey(t, dir)

	artifactPath := filepath.Join(dir, "app.vmcode")
	if err := os.WriteFile(artifactPath, []byte("original"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	sigPath, err := signArtifact(keyPath, artifactPath)
	if err != nil {
		t.Fatalf("signArtifact: %v", err)
	}

	if err := os.WriteFile(artifactPath, []byte("tampered"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := verifyArtifact(artifactPath, sigPath); err == nil {
		t.Fatalf("expected verification failure for tampered artifact")
	}
}

func TestVerifyArtifact_MalformedSignature(t *testing.T) {
	dir := t.TempDir()

	artifactPath := filepath.Join(dir, "app.vmcode")
	if err := os.WriteFile(artifactPath, []byte("data"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	sigPath := filepath.Join(dir, "app.vmcode.sig")
	if err := os.WriteFile(sigPath, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := verifyArtifact(artifactPath, sigPath)
	if err == nil || !strings.Contains(err.Error(), "malformed signature") {
		t.Fatalf("err = %v, want malformed-signature error", err)
	}
}

func TestVerifyCmd(t *testing.T) {
	dir := t.TempDir()
	keyPath := writeTestSSHKey(t, dir)

	artifactPath := filepath.Join(dir, "app.vmcode")
	if err := os.WriteFile(artifactPath, []byte("patch bytes"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := signArtifact(keyPath, artifactPath); err != nil {
		t.Fatalf("signArtifact: %v", err)
	}

	cmd := newVerifyCmd()
	cmd.SetArgs([]string{artifactPath})

	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetErr(&output)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("verify command failed: %v\noutput:\n%s", err, output.String())
	}
	if !strings.Contains(output.String(), "ok: app.vmcode signed by ssh-ed25519 key") {
		t.Fatalf("output = %q", output.String())
	}
}
