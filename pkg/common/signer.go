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

package common

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrSignatureInvalid is returned when a signed URL does not verify.
	ErrSignatureInvalid = errors.New("invalid signature")

	// ErrSignatureExpired is returned when a signed URL is past its expiry.
	ErrSignatureExpired = errors.New("signature expired")
)

// URLSigner produces and checks HMAC-signed URLs for stores that have no
// presigning of their own (memory, local). The gateway verifies them.
type URLSigner struct {
	key []byte
	now func() time.Time
}

// NewURLSigner returns a signer keyed with key. An empty key gets a random one,
// which makes URLs valid only for the life of the process.
func NewURLSigner(key string) *URLSigner {
	k := []byte(key)
	if len(k) == 0 {
		k = make([]byte, 32)
		_, _ = rand.Read(k)
	}
	return &URLSigner{key: k, now: time.Now}
}

// Sign returns baseURL+path with expires, method and signature query
// parameters attached.
func (s *URLSigner) Sign(baseURL, path, method string, ttl time.Duration) string {
	expires := s.now().Add(ttl).Unix()
	method = strings.ToUpper(method)
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("method", method)
	q.Set("signature", s.mac(path, method, expires))
	return strings.TrimSuffix(baseURL, "/") + path + "?" + q.Encode()
}

// Verify checks the query parameters of a signed request for path.
func (s *URLSigner) Verify(path, method string, query url.Values) error {
	expires, err := strconv.ParseInt(query.Get("expires"), 10, 64)
	if err != nil {
		return ErrSignatureInvalid
	}
	method = strings.ToUpper(method)
	if query.Get("method") != method {
		return ErrSignatureInvalid
	}
	want := s.mac(path, method, expires)
	if !hmac.Equal([]byte(want), []byte(query.Get("signature"))) {
		return ErrSignatureInvalid
	}
	if s.now().Unix() > expires {
		return ErrSignatureExpired
	}
	return nil
}

func (s *URLSigner) mac(path, method string, expires int64) string {
	h := hmac.New(sha256.New, s.key)
	h.Write([]byte(method))
	h.Write([]byte{'\n'})
	h.Write([]byte(path))
	h.Write([]byte{'\n'})
	h.Write([]byte(strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(h.Sum(nil))
}
