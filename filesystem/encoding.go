package filesystem

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// DefaultEncoding is the filesystem encoding used for child names unless a
// directory is given another one with [WithEncoding].
const DefaultEncoding = "utf-8"

// encodeName converts name into the byte form used on disk for encoding enc.
// UTF-8 names pass through untouched.
func encodeName(name, enc string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty name not allowed in directories", ErrInvalidArgument)
	}
	switch strings.ToLower(enc) {
	case "", "utf-8", "utf8":
		return name, nil
	}
	e, err := htmlindex.Get(enc)
	if err != nil {
		return "", fmt.Errorf("%w: unknown filesystem encoding %q", ErrInvalidArgument, enc)
	}
	encoded, err := e.NewEncoder().String(name)
	if err != nil {
		return "", fmt.Errorf("%w: name %q not representable in %s: %v", ErrInvalidArgument, name, enc, err)
	}
	return encoded, nil
}
