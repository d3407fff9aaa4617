// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package client

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	ErrAddressEmpty = errors.New("api address is required")
	ErrOwnerEmpty   = errors.New("owner is required")
	ErrJobIDEmpty   = errors.New("batch job id is required")
)

var (
	errNewRequestFailure     = errors.New("failed creating an HTTP request")
	errDoRequestFailure      = errors.New("http client failed while sending request")
	errReadingBodyFailure    = errors.New("failed while reading http response body")
	errJSONUnmarshal         = errors.New("failed unmarshaling JSON response payload")
	errJSONMarshal           = errors.New("failed marshaling JSON payload")
	errNonSuccessResponse    = errors.New("api responded with a non-success status code")
	errUnexpectedContentType = errors.New("api responded with an unexpected content type")
)

// Internal error codes carried on RequestError.
const (
	CodeSubmitFailed     = 10500
	CodeStatusFailed     = 10505
	CodeErrorsFailed     = 10510
	CodePollTimeout      = 10515
	CodeCriticalFailure  = 10520
	CodeFileUploadFailed = 10525
)

// RequestError is a fatal batch condition carrying the internal code,
// the HTTP status when one applies, and the response text.
type RequestError struct {
	Code    int
	Status  int
	Message string
	Body    string
	Err     error
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("batch error %d: %s", e.Code, e.Message)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (http status %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	return msg
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// IsAlwaysFatal reports whether err must be raised regardless of the
// halt-on-error setting: poll timeouts and critical batch failures
// leave the whole job's result unreliable.
func IsAlwaysFatal(err error) bool {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Code == CodePollTimeout || re.Code == CodeCriticalFailure
	}
	return false
}

// HandleError is the single halt/continue decision point for transport
// and job-level errors. With halt enabled (or an always-fatal error)
// the error is returned for propagation; otherwise it is logged and
// swallowed so the caller can continue with a partial result.
func HandleError(logger *slog.Logger, err error, halt bool) error {
	if err == nil {
		return nil
	}
	if halt || IsAlwaysFatal(err) {
		return err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("continuing past batch error", "err", err)
	return nil
}

// criticalFailures are server error-message fragments that indicate
// the entire batch result is unusable rather than a per-entity
// validation problem.
var criticalFailures = []string{
	"Encountered an unexpected Exception while processing batch job",
	"would exceed the number of allowed indicators",
}

// CriticalFailurePolicy decides whether a server error message is a
// critical batch failure. The default matches known catastrophic
// fragments by substring; the matching is fragile by nature, so it is
// isolated here where deployments can replace it.
type CriticalFailurePolicy func(message string) bool

// DefaultCriticalFailurePolicy matches the known catastrophic error
// fragments.
func DefaultCriticalFailurePolicy(message string) bool {
	for _, fragment := range criticalFailures {
		if strings.Contains(message, fragment) {
			return true
		}
	}
	return false
}
