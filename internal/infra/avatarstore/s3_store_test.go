package avatarstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeEndpoint(t *testing.T) {
	require.Equal(t, "minio.local:9000", sanitizeEndpoint(" http://minio.local:9000/ "))
	require.Equal(t, "acct.r2.cloudflarestorage.com", sanitizeEndpoint("https://acct.r2.cloudflarestorage.com/bucket"))
	require.Equal(t, "", sanitizeEndpoint(""))
}

func TestObjectKey(t *testing.T) {
	require.Equal(t, "avatars/42.png", objectKey(42))
}

func TestNewS3Store(t *testing.T) {
	store, err := NewS3Store("http://localhost:9000", "key", "secret", "avatars", "us-east-1", nil)
	require.NoError(t, err)
	require.Equal(t, "avatars", store.bucket)
	require.False(t, store.client.EndpointURL().Scheme == "https")
}
