package store

import (
	"crypto/sha256"
	"encoding/xml"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRemoteStoreKeyShape(t *testing.T) {
	s := &RemoteStore{bucket: "b", prefix: "p"}
	h := sha256.Sum256([]byte("abc"))
	key := s.key(h)

	require.Contains(t, key, "p/")
	require.Equal(t, byte('/'), key[len("p")])
}

func TestListBucketResultDecoding(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>bucket</Name>
  <Prefix>test/a/b/abc</Prefix>
  <KeyCount>1</KeyCount>
</ListBucketResult>`

	var result listBucketResult
	require.NoError(t, xml.Unmarshal([]byte(body), &result))
	require.Equal(t, 1, result.KeyCount)
}

func TestAllowOneRedirect(t *testing.T) {
	req := &http.Request{}
	require.NoError(t, allowOneRedirect(req, nil))
	require.NoError(t, allowOneRedirect(req, []*http.Request{{}}))
	require.Equal(t, http.ErrUseLastResponse, allowOneRedirect(req, []*http.Request{{}, {}}))
}
