package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DownloadGrant is the content of a verified download token.
type DownloadGrant struct {
	Subject   string
	Key       string
	Filename  string
	ExpiresAt time.Time
}

// SignedURLSigner creates and validates signed download tokens.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate returns a token granting read access to key on behalf of subject.
func (s *SignedURLSigner) Generate(subject, key, filename string) (string, time.Time, error) {
	if subject == "" || key == "" {
		return "", time.Time{}, fmt.Errorf("subject and key required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	parts := []string{
		encodeSegment(subject),
		strconv.FormatInt(expiresAt.Unix(), 10),
		encodeSegment(key),
		encodeSegment(filename),
	}
	parts = append(parts, s.sign(parts))
	return strings.Join(parts, "."), expiresAt, nil
}

// Parse validates a token and returns the embedded grant.
func (s *SignedURLSigner) Parse(token string) (DownloadGrant, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 5 {
		return DownloadGrant{}, fmt.Errorf("invalid token format")
	}
	if !hmac.Equal([]byte(s.sign(parts[:4])), []byte(parts[4])) {
		return DownloadGrant{}, fmt.Errorf("invalid token signature")
	}
	expUnix, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return DownloadGrant{}, fmt.Errorf("invalid timestamp")
	}
	grant := DownloadGrant{ExpiresAt: time.Unix(expUnix, 0)}
	if s.now().After(grant.ExpiresAt) {
		return DownloadGrant{}, fmt.Errorf("token expired")
	}
	for i, dst := range []*string{&grant.Subject, nil, &grant.Key, &grant.Filename} {
		if dst == nil {
			continue
		}
		raw, err := base64.RawURLEncoding.DecodeString(parts[i])
		if err != nil {
			return DownloadGrant{}, fmt.Errorf("decode segment: %w", err)
		}
		*dst = string(raw)
	}
	return grant, nil
}

func (s *SignedURLSigner) sign(parts []string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(mac.Sum(nil))
}

func encodeSegment(value string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(value))
}
