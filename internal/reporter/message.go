package reporter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/BarkinBalci/conversion-reporting-service/internal/domain"
)

// ErrMalformedMessage marks queue messages or objects whose shape cannot be processed
var ErrMalformedMessage = errors.New("malformed message")

// ObjectRef locates one uploaded conversions object
type ObjectRef struct {
	Bucket string
	Key    string
}

// ParseMessage extracts the objects referenced by an S3 event notification body.
// Records without a bucket name fall back to defaultBucket.
func ParseMessage(body []byte, defaultBucket string) ([]ObjectRef, error) {
	var notification domain.S3EventNotification
	if err := json.Unmarshal(body, &notification); err != nil {
		return nil, fmt.Errorf("%w: invalid notification json: %v", ErrMalformedMessage, err)
	}

	if len(notification.Records) == 0 {
		return nil, fmt.Errorf("%w: notification has no records", ErrMalformedMessage)
	}

	refs := make([]ObjectRef, 0, len(notification.Records))
	for i, record := range notification.Records {
		key, err := DecodeObjectKey(record.S3.Object.Key)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrMalformedMessage, i, err)
		}

		bucket := record.S3.Bucket.Name
		if bucket == "" {
			bucket = defaultBucket
		}

		refs = append(refs, ObjectRef{Bucket: bucket, Key: key})
	}

	return refs, nil
}

// DecodeObjectKey reverses the form encoding S3 applies to keys in notifications
func DecodeObjectKey(encoded string) (string, error) {
	if encoded == "" {
		return "", errors.New("empty object key")
	}

	key, err := url.QueryUnescape(encoded)
	if err != nil {
		return "", fmt.Errorf("invalid object key %q: %w", encoded, err)
	}
	return key, nil
}

// SourceKey is the decoded layout of an uploaded object key:
// <module>/<network>/<job>/<account>/<date>/<hour>/<file>
type SourceKey struct {
	Module     string
	Network    domain.Network
	Job        string
	Account    string
	Date       string
	Hour       string
	Filename   string
	ReceivedAt string
}

// ParseSourceKey splits key into its layout segments. Missing segments are left empty.
func ParseSourceKey(key string) SourceKey {
	parts := strings.Split(key, "/")
	segment := func(i int) string {
		if i < len(parts) {
			return parts[i]
		}
		return ""
	}

	sk := SourceKey{
		Module:   segment(0),
		Network:  domain.ParseNetwork(segment(1)),
		Job:      segment(2),
		Account:  segment(3),
		Date:     segment(4),
		Hour:     segment(5),
		Filename: segment(6),
	}
	sk.ReceivedAt, _, _ = strings.Cut(sk.Filename, ".")
	return sk
}

// Folder returns the "<module>/<network>/<job>/<account>" prefix of the key
func (k SourceKey) Folder() string {
	return strings.Join([]string{k.Module, string(k.Network), k.Job, k.Account}, "/")
}
