package history

import (
	"crypto/md5"
	"encoding/base64"
)

// Fingerprint calculates the checksum used to detect changed migrations. It is
// the base64 encoded MD5 digest of content, always 24 characters long. Any
// byte change, including whitespace, line endings and case, changes it.
func Fingerprint(content []byte) string {
	sum := md5.Sum(content)
	return base64.StdEncoding.EncodeToString(sum[:])
}
