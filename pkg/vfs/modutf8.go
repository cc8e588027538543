// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-mantavfs.
//
// go-mantavfs is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package vfs

import (
	"errors"
	"fmt"
	"unicode/utf16"
)

// ErrMalformedUTF is returned for byte sequences that are not valid
// modified UTF-8.
var ErrMalformedUTF = errors.New("malformed modified UTF-8 input")

// maxUTFLength is the largest encoded length a 2-byte prefix can describe.
const maxUTFLength = 0xFFFF

// DecodeModifiedUTF8 decodes the modified UTF-8 used by Java's DataInput:
// NUL is encoded as 0xC0 0x80, characters outside the BMP are encoded as two
// 3-byte surrogates and 4-byte forms are not allowed. A surrogate that is not
// half of a pair is rejected with ErrMalformedUTF.
func DecodeModifiedUTF8(b []byte) (string, error) {
	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch c >> 4 {
		case 0, 1, 2, 3, 4, 5, 6, 7:
			units = append(units, uint16(c))
			i++
		case 12, 13:
			if i+1 >= len(b) || b[i+1]&0xC0 != 0x80 {
				return "", fmt.Errorf("%w: bad continuation at byte %d", ErrMalformedUTF, i+1)
			}
			units = append(units, uint16(c&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case 14:
			if i+2 >= len(b) || b[i+1]&0xC0 != 0x80 || b[i+2]&0xC0 != 0x80 {
				return "", fmt.Errorf("%w: bad continuation at byte %d", ErrMalformedUTF, i+1)
			}
			units = append(units, uint16(c&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			return "", fmt.Errorf("%w: invalid lead byte 0x%02x at byte %d", ErrMalformedUTF, c, i)
		}
	}
	if i := unpairedSurrogate(units); i >= 0 {
		return "", fmt.Errorf("%w: unpaired surrogate 0x%04x", ErrMalformedUTF, units[i])
	}
	return string(utf16.Decode(units)), nil
}

// unpairedSurrogate returns the index of the first surrogate that is not
// part of a high/low pair, or -1. Go strings cannot carry lone surrogates.
func unpairedSurrogate(units []uint16) int {
	for i := 0; i < len(units); i++ {
		u := units[i]
		if !utf16.IsSurrogate(rune(u)) {
			continue
		}
		if u >= 0xDC00 || i+1 >= len(units) || units[i+1] < 0xDC00 || units[i+1] > 0xDFFF {
			return i
		}
		i++
	}
	return -1
}

// EncodeModifiedUTF8 is the inverse of DecodeModifiedUTF8. It does not add a
// length prefix.
func EncodeModifiedUTF8(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, 0, len(units))
	for _, u := range units {
		switch {
		case u >= 0x0001 && u <= 0x007F:
			out = append(out, byte(u))
		case u <= 0x07FF:
			out = append(out, byte(0xC0|(u>>6)&0x1F), byte(0x80|u&0x3F))
		default:
			out = append(out, byte(0xE0|(u>>12)&0x0F), byte(0x80|(u>>6)&0x3F), byte(0x80|u&0x3F))
		}
	}
	return out
}

// AppendUTF appends s to dst in the DataOutput.writeUTF format: a big-endian
// 2-byte length followed by the modified UTF-8 bytes.
func AppendUTF(dst []byte, s string) ([]byte, error) {
	encoded := EncodeModifiedUTF8(s)
	if len(encoded) > maxUTFLength {
		return dst, fmt.Errorf("%w: encoded string is %d bytes", ErrInvalidArgument, len(encoded))
	}
	dst = append(dst, byte(len(encoded)>>8), byte(len(encoded)))
	return append(dst, encoded...), nil
}
