package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go/aws/credentials"
	v4 "github.com/aws/aws-sdk-go/aws/signer/v4"
	"github.com/rs/zerolog"

	"github.com/cuemby/haumaru/internal/domain"
	"github.com/cuemby/haumaru/internal/log"
)

// RemoteStore is the S3-compatible object store backend. Requests are
// built by hand over net/http so the exact wire shape required
// (list-probe before PUT, Content-MD5, storage class header,
// one-redirect-follow) is preserved, while signing is delegated to the
// maintained AWS SigV4 implementation rather than a hand-rolled HMAC
// chain.
type RemoteStore struct {
	bucket string
	prefix string
	region string
	signer *v4.Signer
	client *http.Client
	logger zerolog.Logger
}

// NewRemoteStore builds a RemoteStore for the given bucket/prefix. Region
// defaults to us-east-1 if empty. Credentials are read from
// AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY.
func NewRemoteStore(bucket, prefix, region string) (*RemoteStore, error) {
	if region == "" {
		region = "us-east-1"
	}
	creds := credentials.NewEnvCredentials()
	if _, err := creds.Get(); err != nil {
		return nil, fmt.Errorf("remote store: %w", err)
	}

	return &RemoteStore{
		bucket: bucket,
		prefix: prefix,
		region: region,
		signer: v4.NewSigner(creds),
		client: &http.Client{
			Timeout:       0,
			CheckRedirect: allowOneRedirect,
		},
		logger: log.WithComponent("store.remote"),
	}, nil
}

// allowOneRedirect allows the bucket-probe request to follow at most one
// temporary redirect.
func allowOneRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 2 {
		return http.ErrUseLastResponse
	}
	return nil
}

func (s *RemoteStore) host() string {
	return fmt.Sprintf("%s.s3.amazonaws.com", s.bucket)
}

func (s *RemoteStore) key(hash [32]byte) string {
	h := hex.EncodeToString(hash[:])
	return fmt.Sprintf("%s/%s/%s/%s", s.prefix, h[0:1], h[1:2], h)
}

// Clone returns an independent handle; the *http.Client and *v4.Signer are
// safe to share, so this is effectively a cheap copy with its own struct
// identity.
func (s *RemoteStore) Clone() Store {
	clone := *s
	return &clone
}

type listBucketResult struct {
	XMLName  xml.Name `xml:"ListBucketResult"`
	KeyCount int      `xml:"KeyCount"`
}

// probe issues a bucket list with prefix=key and reports whether exactly
// one object already exists at that key.
func (s *RemoteStore) probe(ctx context.Context, key string) (bool, error) {
	u := fmt.Sprintf("https://%s/?list-type=2&prefix=%s", s.host(), url.QueryEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}

	emptyPayloadHash := sha256.Sum256(nil)
	if _, err := s.signer.Sign(req, nil, "s3", s.region, time.Now()); err != nil {
		return false, err
	}
	req.Header.Set("x-amz-content-sha256", hex.EncodeToString(emptyPayloadHash[:]))

	resp, err := s.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("remote store: list probe: %s: %s", resp.Status, string(body))
	}

	var result listBucketResult
	if err := xml.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, err
	}
	return result.KeyCount == 1, nil
}

// Send probes for existing content before uploading.
func (s *RemoteStore) Send(ctx context.Context, req *SendRequest) (bool, error) {
	key := s.key(req.SHA256)

	exists, err := s.probe(ctx, key)
	if err != nil {
		return false, err
	}
	if exists {
		s.logger.Debug().Str("path", req.Node.Path).Msg("blob already present; dedup skip")
		return true, nil
	}

	if _, err := req.Reader.Seek(0, io.SeekStart); err != nil {
		return false, err
	}
	body, err := io.ReadAll(req.Reader)
	if err != nil {
		return false, err
	}

	u := fmt.Sprintf("https://%s/%s", s.host(), key)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	httpReq.ContentLength = int64(len(body))
	httpReq.Header.Set("x-amz-storage-class", "STANDARD_IA")
	httpReq.Header.Set("Content-MD5", base64.StdEncoding.EncodeToString(req.MD5[:]))
	httpReq.Header.Set("x-amz-content-sha256", hex.EncodeToString(req.SHA256[:]))

	if _, err := s.signer.Sign(httpReq, bytes.NewReader(body), "s3", s.region, time.Now()); err != nil {
		return false, err
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("remote store: put %s: %s: %s", key, resp.Status, string(b))
	}
	return false, nil
}

// Retrieve downloads the blob for the given sha256.
func (s *RemoteStore) Retrieve(ctx context.Context, sha256sum [32]byte) (io.ReadCloser, bool, error) {
	key := s.key(sha256sum)
	u := fmt.Sprintf("https://%s/%s", s.host(), key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, err
	}
	emptyPayloadHash := sha256.Sum256(nil)
	if _, err := s.signer.Sign(req, nil, "s3", s.region, time.Now()); err != nil {
		return nil, false, err
	}
	req.Header.Set("x-amz-content-sha256", hex.EncodeToString(emptyPayloadHash[:]))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, false, err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, false, fmt.Errorf("remote store: get %s: %s: %s", key, resp.Status, string(body))
	}
	return resp.Body, true, nil
}

// Verify re-probes for the blob's key via list; absent means failure.
func (s *RemoteStore) Verify(ctx context.Context, node domain.Node) (domain.Node, bool, error) {
	var want [32]byte
	copy(want[:], node.Hash)
	key := s.key(want)
	exists, err := s.probe(ctx, key)
	if err != nil {
		return node, false, err
	}
	return node, exists, nil
}
