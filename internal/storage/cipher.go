package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNoCipher is returned when an encrypted note is read without a cipher.
var ErrNoCipher = errors.New("storage: no cipher configured for encrypted notes")

// Cipher encrypts and decrypts the body of .md.gpg notes.
type Cipher interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// GPG shells out to the gpg binary. Key is the recipient used for
// encryption; decryption relies on the caller's keyring and agent.
type GPG struct {
	Binary string
	Key    string
}

func (g GPG) binary() string {
	if g.Binary == "" {
		return "gpg"
	}
	return g.Binary
}

// Encrypt implements Cipher.
func (g GPG) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if g.Key == "" {
		return nil, errors.New("storage: gpg: no recipient key configured")
	}
	out, err := g.run(ctx, plaintext, "--batch", "--yes", "--quiet", "--encrypt", "--recipient", g.Key)
	if err != nil {
		return nil, fmt.Errorf("storage: gpg encrypt: %w", err)
	}
	return out, nil
}

// Decrypt implements Cipher.
func (g GPG) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	out, err := g.run(ctx, ciphertext, "--batch", "--yes", "--quiet", "--decrypt")
	if err != nil {
		return nil, fmt.Errorf("storage: gpg decrypt: %w", err)
	}
	return out, nil
}

func (g GPG) run(ctx context.Context, input []byte, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, g.binary(), args...)
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
