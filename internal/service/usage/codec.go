package usage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// maxTokenLength bounds decoding work; browsers cap cookies near 4KB anyway.
const maxTokenLength = 4096

// ErrMissingSigningSecret is returned by NewCodec when no secret is configured.
var ErrMissingSigningSecret = errors.New("usage signing secret is not configured")

// Codec serializes ledgers into opaque tokens authenticated with HMAC-SHA256.
type Codec struct {
	secret []byte
}

// NewCodec returns a codec keyed by secret.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, ErrMissingSigningSecret
	}
	return &Codec{secret: []byte(secret)}, nil
}

// signedFields is the canonical signing input. encoding/json emits map keys sorted.
type signedFields struct {
	Day      string         `json:"day"`
	Sessions map[string]int `json:"sessions"`
}

func (c *Codec) sign(l Ledger) (string, error) {
	sessions := l.Sessions
	if sessions == nil {
		sessions = map[string]int{}
	}
	payload, err := json.Marshal(signedFields{Day: l.Day, Sessions: sessions})
	if err != nil {
		return "", fmt.Errorf("marshal ledger: %w", err)
	}

	mac := hmac.New(sha256.New, c.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Seal returns a copy of l carrying a freshly computed signature.
func (c *Codec) Seal(l Ledger) (Ledger, error) {
	sealed := l.clone()
	sig, err := c.sign(sealed)
	if err != nil {
		return Ledger{}, err
	}
	sealed.Signature = sig
	return sealed, nil
}

// Encode signs l and serializes it. Any signature already on l is ignored.
func (c *Codec) Encode(l Ledger) (string, error) {
	sealed, err := c.Seal(l)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(sealed)
	if err != nil {
		return "", fmt.Errorf("marshal usage token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Decode parses and verifies a token. It reports false for an absent, malformed,
// incomplete or forged token; no part of a rejected token is trusted.
func (c *Codec) Decode(token string) (*Ledger, bool) {
	if token == "" || len(token) > maxTokenLength {
		return nil, false
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, false
	}

	var l Ledger
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, false
	}
	if l.Sessions == nil || l.Signature == "" {
		return nil, false
	}
	if _, err := time.Parse(DayLayout, l.Day); err != nil {
		return nil, false
	}
	for _, n := range l.Sessions {
		if n < 0 {
			return nil, false
		}
	}

	expected, err := c.sign(l)
	if err != nil {
		return nil, false
	}
	if !hmac.Equal([]byte(l.Signature), []byte(expected)) {
		return nil, false
	}
	return &l, true
}
