package s3

import (
	"testing"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
)

func newKeyTestStore(prefix string) *Store {
	return New(awss3.New(awss3.Options{Region: "us-east-1"}), "bucket", prefix, types.StorageClassStandard)
}

func TestFullKey(t *testing.T) {
	tests := []struct {
		prefix string
		rel    string
		want   string
	}{
		{"", "a/b.txt", "a/b.txt"},
		{"mirror", "a/b.txt", "mirror/a/b.txt"},
		{"mirror/", "a/b.txt", "mirror/a/b.txt"},
		{"/mirror/", "a/b.txt", "mirror/a/b.txt"},
		{"mirror", "/a/b.txt", "mirror/a/b.txt"},
	}
	for _, tt := range tests {
		s := newKeyTestStore(tt.prefix)
		assert.Equal(t, tt.want, s.fullKey(tt.rel), "prefix=%q rel=%q", tt.prefix, tt.rel)
	}
}

func TestFolderKey(t *testing.T) {
	tests := []struct {
		prefix string
		rel    string
		want   string
	}{
		{"", "a", "a/"},
		{"", "a/b", "a/b/"},
		{"mirror", "a", "mirror/a/"},
		{"", "", ""},
		{"mirror", "", "mirror/"},
	}
	for _, tt := range tests {
		s := newKeyTestStore(tt.prefix)
		assert.Equal(t, tt.want, s.folderKey(tt.rel), "prefix=%q rel=%q", tt.prefix, tt.rel)
	}
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "b.txt", baseName("a/b.txt"))
	assert.Equal(t, "b.txt", baseName("b.txt"))
	assert.Equal(t, "c", baseName("a/b/c"))
}
