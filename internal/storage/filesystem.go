package storage

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"photopipe/internal/domain"
)

// Signature errors reported by FileStore.Verify.
var (
	ErrSignatureExpired = errors.New("storage: signature expired")
	ErrSignatureInvalid = errors.New("storage: signature invalid")
)

// FileStore persists objects onto the local filesystem as basePath/bucket/key.
// It is intended for development and test environments where an object
// storage service is not available. Read URLs point at baseURL and carry an
// HMAC signature that the static handler checks.
type FileStore struct {
	basePath   string
	baseURL    string
	signingKey []byte
	now        func() time.Time
}

// NewFileStore initializes a FileStore rooted at basePath. When signingKey is
// empty a random key is generated, so URLs do not survive a restart.
func NewFileStore(basePath, baseURL string, signingKey []byte) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	if len(signingKey) == 0 {
		signingKey = make([]byte, 32)
		if _, err := rand.Read(signingKey); err != nil {
			return nil, fmt.Errorf("storage: generate signing key: %w", err)
		}
	}
	return &FileStore{
		basePath:   basePath,
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		signingKey: signingKey,
		now:        time.Now,
	}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Put writes data at bucket/key and returns the canonicalized key. Keys are
// cleaned to prevent directory traversal. The content type is implied by the
// key's extension when the object is served.
func (s *FileStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fullPath, cleanKey, err := s.resolve(bucket, key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return cleanKey, nil
}

// Sign returns a URL under baseURL that stays valid for ttl.
func (s *FileStore) Sign(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if ttl <= 0 {
		return "", errors.New("storage: ttl must be positive")
	}
	if _, err := sanitizeBucket(bucket); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	expires := s.now().Add(ttl).Unix()
	segments := strings.Split(cleanKey, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("signature", s.signature(bucket, cleanKey, expires))
	return fmt.Sprintf("%s/%s/%s?%s", s.baseURL, url.PathEscape(bucket), strings.Join(segments, "/"), q.Encode()), nil
}

// Verify checks a signature produced by Sign for bucket/key.
func (s *FileStore) Verify(bucket, key, expires, signature string) error {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return err
	}
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrSignatureInvalid
	}
	expected := s.signature(bucket, cleanKey, exp)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureInvalid
	}
	if s.now().Unix() > exp {
		return ErrSignatureExpired
	}
	return nil
}

// Open returns the file stored at bucket/key. Missing objects report
// domain.ErrNotFound.
func (s *FileStore) Open(bucket, key string) (*os.File, error) {
	fullPath, _, err := s.resolve(bucket, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("storage: %s/%s: %w", bucket, key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: open file: %w", err)
	}
	return f, nil
}

func (s *FileStore) resolve(bucket, key string) (string, string, error) {
	cleanBucket, err := sanitizeBucket(bucket)
	if err != nil {
		return "", "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", "", err
	}
	return filepath.Join(s.basePath, cleanBucket, filepath.FromSlash(cleanKey)), cleanKey, nil
}

func (s *FileStore) signature(bucket, key string, expires int64) string {
	mac := hmac.New(sha256.New, s.signingKey)
	fmt.Fprintf(mac, "%s\n%s\n%d", bucket, key, expires)
	return hex.EncodeToString(mac.Sum(nil))
}

// sanitizeBucket accepts a single path segment.
func sanitizeBucket(bucket string) (string, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" || bucket == "." || bucket == ".." || strings.ContainsAny(bucket, `/\`) {
		return "", fmt.Errorf("storage: invalid bucket %q: %w", bucket, domain.ErrInvalidRequest)
	}
	return bucket, nil
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("storage: key is required: %w", domain.ErrInvalidRequest)
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.ToSlash(filepath.Clean(key))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("storage: invalid key %q: %w", key, domain.ErrInvalidRequest)
	}
	return cleaned, nil
}

// ValidateKey reports whether key is acceptable as an object key.
func ValidateKey(key string) error {
	_, err := sanitizeKey(key)
	return err
}

var _ domain.ObjectStore = (*FileStore)(nil)
