// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ModFed Contributors

package errutil

import "github.com/samber/oops"

// Error codes shared across the loading engine.
//
// CodeFetchFailed covers registry and manifest retrieval: network failures,
// non-2xx responses, and malformed documents. CodeLoadFailed covers everything
// after a module load is requested: bundle retrieval, container resolution,
// init, and factory invocation.
const (
	CodeFetchFailed = "FETCH_FAILED"
	CodeLoadFailed  = "LOAD_FAILED"
)

// HasCode reports whether err is an oops error carrying the given code.
func HasCode(err error, code string) bool {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return false
	}
	return oopsErr.Code() == code
}
