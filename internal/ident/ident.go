// Package ident derives numeric surrogate keys from Google Reader item ids.
//
// Long-form item ids look like "tag:google.com,2005:reader/item/000000000000001a";
// the final path segment is the item number in hexadecimal. The stream/items/ids
// endpoint reports the same number in decimal ("26"). Both forms map to the
// same uint64 so a local article and a remote item ref can be compared by
// number alone.
package ident

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedIdentifier is returned when an id has no parseable trailing segment.
var ErrMalformedIdentifier = errors.New("malformed identifier")

// ItemPrefix is the canonical prefix of a long-form item id.
const ItemPrefix = "tag:google.com,2005:reader/item/"

// ShortID interprets the final "/"-delimited segment of id as a base-16 integer.
func ShortID(id string) (uint64, error) {
	seg := id
	if i := strings.LastIndexByte(id, '/'); i >= 0 {
		seg = id[i+1:]
	}
	if seg == "" {
		return 0, fmt.Errorf("%w: %q has no trailing segment", ErrMalformedIdentifier, id)
	}
	n, err := strconv.ParseUint(seg, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrMalformedIdentifier, id, err)
	}
	return n, nil
}

// LongID formats n as a canonical long-form item id.
func LongID(n uint64) string {
	return fmt.Sprintf("%s%016x", ItemPrefix, n)
}

// CanonicalItemID normalizes an item ref as returned by stream/items/ids.
// Decimal short ids (which Google Reader emits as signed 64-bit values) are
// converted to long form; ids that already contain a "/" pass through after
// validation.
func CanonicalItemID(ref string) (string, error) {
	if strings.Contains(ref, "/") {
		if _, err := ShortID(ref); err != nil {
			return "", err
		}
		return ref, nil
	}
	if n, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return LongID(uint64(n)), nil
	}
	n, err := strconv.ParseUint(ref, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: item ref %q: %v", ErrMalformedIdentifier, ref, err)
	}
	return LongID(n), nil
}
