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

package remote

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/jeremyhahn/go-mantavfs/pkg/common"
)

// errorResponse is the gateway's error body.
type errorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// conflicts are told apart by the wrapped error text the gateway returns.
var conflicts = []error{
	common.ErrDirectoryNotEmpty,
	common.ErrNotDirectory,
	common.ErrIsDirectory,
}

// statusError turns a failed response into a StatusError wrapping the
// matching store sentinel where one applies.
func statusError(op, p string, resp *http.Response) error {
	message := http.StatusText(resp.StatusCode)
	if resp.Request == nil || resp.Request.Method != http.MethodHead {
		var body errorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if json.Unmarshal(data, &body) == nil && body.Message != "" {
			message = body.Message
		}
	}

	var cause error
	switch resp.StatusCode {
	case http.StatusNotFound:
		cause = common.ErrNotFound
	case http.StatusRequestedRangeNotSatisfiable:
		cause = common.ErrInvalidOffset
	case http.StatusConflict:
		for _, sentinel := range conflicts {
			if strings.Contains(message, sentinel.Error()) {
				cause = sentinel
				break
			}
		}
	case http.StatusNotImplemented:
		if strings.Contains(message, common.ErrSigningUnsupported.Error()) {
			cause = common.ErrSigningUnsupported
		}
	}
	if cause == nil {
		cause = errors.New(message)
	}
	return common.NewStatusError(op, p, resp.StatusCode, cause)
}
