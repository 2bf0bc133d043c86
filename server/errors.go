/*
Copyright 2025 The Antfly Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/antflydb/specaf/render"
	"github.com/antflydb/specaf/search"
	"github.com/antflydb/specaf/store"
)

// JSON-RPC error codes. Domain errors share one code and are
// distinguished by a subcode in the data payload.
const (
	CodeInvalidParams  = -32602
	CodeMethodNotFound = -32601
	CodeDomainError    = -32000
)

// Domain error subcodes.
const (
	SubcodeNotFound         = 1
	SubcodeStoreUnavailable = 2
	SubcodeCancelled        = 3
	SubcodeTimeout          = 4
)

// RPCError is the protocol error envelope: a numeric code, a message,
// and an optional structured payload. Never a stack trace.
type RPCError struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func invalidParams(message string, data map[string]any) *RPCError {
	return &RPCError{Code: CodeInvalidParams, Message: message, Data: data}
}

func domainError(subcode int, message string) *RPCError {
	return &RPCError{
		Code:    CodeDomainError,
		Message: message,
		Data:    map[string]any{"subcode": subcode},
	}
}

// toRPCError maps a core error onto the protocol envelope.
func toRPCError(err error) *RPCError {
	var inv *search.InvalidArgumentError
	if errors.As(err, &inv) {
		return invalidParams(inv.Error(), map[string]any{"field": inv.Field})
	}
	var unk *render.UnknownLanguageError
	if errors.As(err, &unk) {
		return invalidParams(unk.Error(), map[string]any{"supported": unk.Supported})
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domainError(SubcodeNotFound, err.Error())
	case errors.Is(err, store.ErrUnavailable), errors.Is(err, search.ErrShortCircuit):
		return domainError(SubcodeStoreUnavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return domainError(SubcodeCancelled, "operation cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		return domainError(SubcodeTimeout, "operation timed out")
	}
	return &RPCError{Code: CodeDomainError, Message: err.Error()}
}
