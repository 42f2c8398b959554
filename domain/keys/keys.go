package keys

import (
	"crypto/md5"
	"fmt"
	"strings"
)

const (
	// PfxHealthCheck is used for prefixing health check redis key
	PfxHealthCheck = "healthcheck"
	// PfxRoyalty is used for prefixing cached royalty payouts
	PfxRoyalty = "royalty"
	// PfxNonce is used for prefixing nonce redis key
	PfxNonce = "nonce"
)

// MD5 hashes the data with md5
func MD5(data string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(data)))
}

// CustomKey is used to join the customized key by componets with specified delimiter
func CustomKey(delimiter string, components ...string) string {
	return strings.Join(components, delimiter)
}

// RedisKey is used to join the redis key by componets
func RedisKey(components ...string) string {
	return CustomKey(":", components...)
}

// GetPrefix extracts the prefix of a key.
// will take more than one prefix. And if prefix start with capital
// letter, which means it's a table, a `Table:` prefix will be added.
func GetPrefix(key string) string {
	s := strings.Split(key, ":")
	if len(s) > 2 {
		return strings.Join([]string{s[0], s[1]}, ":")
	} else if len(s) > 3 {
		return strings.Join([]string{s[0], s[1], s[2]}, ":")
	} else if len(s) > 1 {
		return s[0]
	}
	return ""
}
