package blobstore

import (
	"crypto/md5" //nolint:gosec // ids, not security
	"encoding/hex"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/zsiec/gre2g/internal/errors"
)

// MaxIDLength bounds the base part of ids derived without hashing.
const MaxIDLength = 32

// DeriveID returns the file-system id of a name. With hashing the id is
// the md5 hex digest of the base name; otherwise the base name cut to
// MaxIDLength characters. The extension is kept either way.
func DeriveID(name string, useHash bool) string {
	base, ext := splitExt(name)
	if useHash {
		sum := md5.Sum([]byte(base)) //nolint:gosec
		return hex.EncodeToString(sum[:]) + ext
	}
	if utf8.RuneCountInString(base) > MaxIDLength {
		base = string([]rune(base)[:MaxIDLength])
	}
	return base + ext
}

// splitExt splits off the extension; dot files have none.
func splitExt(name string) (string, string) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if strings.Trim(base, ".") == "" {
		return name, ""
	}
	return base, ext
}

func validateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return errors.NewValidationErrorf("invalid name %q", name)
	case strings.ContainsAny(name, `/\`), strings.ContainsRune(name, 0):
		return errors.NewValidationErrorf("name %q contains a path separator", name)
	}
	return nil
}
