package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	content := []byte("CREATE TABLE users (id SERIAL PRIMARY KEY);")
	checksum := Fingerprint(content)

	assert.Len(t, checksum, 24)
	assert.Equal(t, checksum, Fingerprint(content))
	assert.Equal(t, "1B2M2Y8AsgTpgAmY7PhCfg==", Fingerprint(nil))
}

func TestFingerprintDetectsChanges(t *testing.T) {
	pairs := [][2]string{
		{"Q\n", "Q\r\n"},
		{"SELECT 1", "SELECT  1"},
		{"SELECT 1", "select 1"},
		{"SELECT 1", "SELECT 1\n"},
		{"SELECT 1\tFROM t", "SELECT 1 FROM t"},
	}

	for _, p := range pairs {
		assert.NotEqual(t, Fingerprint([]byte(p[0])), Fingerprint([]byte(p[1])), "%q vs %q", p[0], p[1])
	}
}
