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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	batchAPIPath   = "/batch"
	errWrappedFmt  = "%w: %s"
	statusComplete = "Completed"
)

// Config contains config data for the submission client.
type Config struct {
	// Address is the API base URL (i.e. https://intel.example.com/api/v2).
	Address string

	// Owner is the owner files are uploaded under.
	Owner string

	// HTTPClient refers to the client that will be used to send requests.
	// (Optional) Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Header holds static headers (auth, accept) added to every request.
	// (Optional).
	Header http.Header

	// PollTimeout is the cumulative poll-time ceiling per job.
	// (Optional) Defaults to one hour.
	PollTimeout time.Duration

	// CriticalFailure decides whether a server error message poisons the
	// whole batch. (Optional) Defaults to the known-fragment matcher.
	CriticalFailure CriticalFailurePolicy

	// Logger to be used by the client.
	// (Optional) Defaults to slog.Default().
	Logger *slog.Logger
}

func (c *Config) validate() error {
	if c.Address == "" {
		return ErrAddressEmpty
	}
	if c.Owner == "" {
		return ErrOwnerEmpty
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = defaultPollTimeout
	}
	if c.CriticalFailure == nil {
		c.CriticalFailure = DefaultCriticalFailurePolicy
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// Client talks to the bulk-import endpoints.
type Client struct {
	client          *http.Client
	address         string
	owner           string
	header          http.Header
	timer           *pollTimer
	criticalFailure CriticalFailurePolicy
	logger          *slog.Logger
}

// BatchStatus is the job status shape returned by the batch endpoints.
type BatchStatus struct {
	ID                      int    `json:"id"`
	Status                  string `json:"status"`
	ErrorCount              int    `json:"errorCount"`
	SuccessCount            int    `json:"successCount"`
	UnprocessCount          int    `json:"unprocessCount"`
	ErrorGroupCount         int    `json:"errorGroupCount"`
	ErrorIndicatorCount     int    `json:"errorIndicatorCount"`
	ErrorAssociationCount   int    `json:"errorAssociationCount"`
	SuccessGroupCount       int    `json:"successGroupCount"`
	SuccessIndicatorCount   int    `json:"successIndicatorCount"`
	SuccessAssociationCount int    `json:"successAssociationCount"`
}

// Completed reports whether the job reached a terminal state.
func (s *BatchStatus) Completed() bool {
	return s.Status == statusComplete
}

// BatchError is one entry of a completed job's structured error list.
type BatchError struct {
	ErrorReason string `json:"errorReason"`
	ErrorSource string `json:"errorSource"`
}

type apiResponse struct {
	Status string `json:"status"`
	Data   struct {
		BatchID     int          `json:"batchId"`
		BatchStatus *BatchStatus `json:"batchStatus"`
	} `json:"data"`
}

type response struct {
	Code        int
	ContentType string
	Body        []byte
}

// New creates a submission client.
func New(config Config) (*Client, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &Client{
		client:          config.HTTPClient,
		address:         strings.TrimRight(config.Address, "/"),
		owner:           config.Owner,
		header:          config.Header,
		timer:           newPollTimerWithTimeout(config.PollTimeout),
		criticalFailure: config.CriticalFailure,
		logger:          config.Logger,
	}, nil
}

func newPollTimerWithTimeout(timeout time.Duration) *pollTimer {
	t := newPollTimer()
	t.timeout = timeout
	return t
}

// Owner returns the configured owner.
func (c *Client) Owner() string {
	return c.owner
}

// SubmitJob POSTs the job settings and the first chunk's entity
// payload to the combined create-and-upload endpoint. The platform may
// complete small jobs synchronously; callers should poll only when the
// returned status is not terminal.
func (c *Client) SubmitJob(ctx context.Context, settings Settings, content map[string]any) (*BatchStatus, error) {
	configData, err := json.Marshal(settings.Wire())
	if err != nil {
		return nil, fmt.Errorf(errWrappedFmt, errJSONMarshal, err.Error())
	}
	contentData, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf(errWrappedFmt, errJSONMarshal, err.Error())
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	configPart, err := form.CreateFormFile("config", "config")
	if err != nil {
		return nil, fmt.Errorf(errWrappedFmt, errNewRequestFailure, err.Error())
	}
	configPart.Write(configData)
	contentPart, err := form.CreateFormFile("content", "content")
	if err != nil {
		return nil, fmt.Errorf(errWrappedFmt, errNewRequestFailure, err.Error())
	}
	contentPart.Write(contentData)
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf(errWrappedFmt, errNewRequestFailure, err.Error())
	}

	resp, err := c.send(ctx, http.MethodPost, batchAPIPath+"/createAndUpload", form.FormDataContentType(), &body)
	if err != nil {
		return nil, &RequestError{Code: CodeSubmitFailed, Message: "batch submit failed", Err: err}
	}
	parsed, err := c.parseJobResponse(resp, CodeSubmitFailed, "batch submit")
	if err != nil {
		return nil, err
	}
	if parsed.Data.BatchStatus == nil {
		return nil, &RequestError{
			Code:    CodeSubmitFailed,
			Status:  resp.Code,
			Message: "batch submit response carried no batch status",
			Body:    string(resp.Body),
		}
	}
	return parsed.Data.BatchStatus, nil
}

// CreateJob POSTs the job settings alone and returns the job id, for
// the two-step async submission path.
func (c *Client) CreateJob(ctx context.Context, settings Settings) (int, error) {
	data, err := json.Marshal(settings.Wire())
	if err != nil {
		return 0, fmt.Errorf(errWrappedFmt, errJSONMarshal, err.Error())
	}
	resp, err := c.send(ctx, http.MethodPost, batchAPIPath, "application/json", bytes.NewReader(data))
	if err != nil {
		return 0, &RequestError{Code: CodeSubmitFailed, Message: "batch job create failed", Err: err}
	}
	parsed, err := c.parseJobResponse(resp, CodeSubmitFailed, "batch job create")
	if err != nil {
		return 0, err
	}
	return parsed.Data.BatchID, nil
}

// SubmitData POSTs a chunk's entity payload to an existing job.
func (c *Client) SubmitData(ctx context.Context, jobID int, content map[string]any) error {
	if jobID == 0 {
		return ErrJobIDEmpty
	}
	data, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf(errWrappedFmt, errJSONMarshal, err.Error())
	}
	resp, err := c.send(ctx, http.MethodPost, fmt.Sprintf("%s/%d", batchAPIPath, jobID),
		"application/octet-stream", bytes.NewReader(data))
	if err != nil {
		return &RequestError{Code: CodeSubmitFailed, Message: "batch data submit failed", Err: err}
	}
	if resp.Code < 200 || resp.Code >= 300 {
		return &RequestError{
			Code:    CodeSubmitFailed,
			Status:  resp.Code,
			Message: "batch data submit rejected",
			Body:    string(resp.Body),
		}
	}
	return nil
}

// PollStatus polls a job until it completes or the cumulative poll
// time exceeds the configured ceiling. The timeout is always fatal,
// regardless of the halt-on-error setting. entityCount seeds the
// initial interval estimate; pass 0 when unknown.
func (c *Client) PollStatus(ctx context.Context, jobID int, entityCount int) (*BatchStatus, error) {
	if jobID == 0 {
		return nil, ErrJobIDEmpty
	}

	interval := c.timer.initialInterval(entityCount)
	start := time.Now()
	pollCount := 0

	for {
		if err := sleepContext(ctx, interval); err != nil {
			return nil, err
		}
		pollCount++

		status, err := c.JobStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}
		c.logger.Debug("batch status check",
			"jobID", jobID, "status", status.Status, "poll", pollCount)

		if status.Completed() {
			c.timer.recordCompletion(time.Since(start), pollCount == 1)
			return status, nil
		}

		if time.Since(start) > c.timer.timeout {
			return nil, &RequestError{
				Code:    CodePollTimeout,
				Message: fmt.Sprintf("batch job %d did not complete within %s", jobID, c.timer.timeout),
			}
		}
		interval = c.timer.retryInterval(pollCount)
	}
}

// JobStatus fetches the current status of a job once.
func (c *Client) JobStatus(ctx context.Context, jobID int) (*BatchStatus, error) {
	path := fmt.Sprintf("%s/%d?includeAdditional=true", batchAPIPath, jobID)
	resp, err := c.send(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, &RequestError{Code: CodeStatusFailed, Message: "batch status check failed", Err: err}
	}
	parsed, err := c.parseJobResponse(resp, CodeStatusFailed, "batch status check")
	if err != nil {
		return nil, err
	}
	if parsed.Data.BatchStatus == nil {
		return nil, &RequestError{
			Code:    CodeStatusFailed,
			Status:  resp.Code,
			Message: "batch status response carried no batch status",
			Body:    string(resp.Body),
		}
	}
	return parsed.Data.BatchStatus, nil
}

// BatchErrors retrieves a completed job's structured error list and
// escalates messages matching the critical-failure policy to a fatal
// condition: those indicate the entire batch is unusable, so they
// override halt-on-error=false.
func (c *Client) BatchErrors(ctx context.Context, jobID int) ([]BatchError, error) {
	resp, err := c.send(ctx, http.MethodGet, fmt.Sprintf("%s/%d/errors", batchAPIPath, jobID), "", nil)
	if err != nil {
		return nil, &RequestError{Code: CodeErrorsFailed, Message: "batch errors download failed", Err: err}
	}
	if resp.Code < 200 || resp.Code >= 300 {
		return nil, &RequestError{
			Code:    CodeErrorsFailed,
			Status:  resp.Code,
			Message: "batch errors download rejected",
			Body:    string(resp.Body),
		}
	}

	var batchErrors []BatchError
	if err := json.Unmarshal(resp.Body, &batchErrors); err != nil {
		return nil, fmt.Errorf("BatchErrors: %w: %s", errJSONUnmarshal, err.Error())
	}

	for _, be := range batchErrors {
		if c.criticalFailure(be.ErrorReason) {
			return batchErrors, &RequestError{
				Code:    CodeCriticalFailure,
				Message: fmt.Sprintf("critical failure in batch job %d", jobID),
				Body:    be.ErrorReason,
			}
		}
	}
	return batchErrors, nil
}

func (c *Client) parseJobResponse(resp response, code int, context string) (*apiResponse, error) {
	if !strings.Contains(resp.ContentType, "application/json") {
		return nil, &RequestError{
			Code:    code,
			Status:  resp.Code,
			Message: context + " returned an unexpected content type",
			Body:    resp.ContentType,
			Err:     errUnexpectedContentType,
		}
	}
	if resp.Code < 200 || resp.Code >= 300 {
		return nil, &RequestError{
			Code:    code,
			Status:  resp.Code,
			Message: context + " rejected",
			Body:    string(resp.Body),
			Err:     errNonSuccessResponse,
		}
	}
	var parsed apiResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", context, errJSONUnmarshal, err.Error())
	}
	return &parsed, nil
}

func (c *Client) send(ctx context.Context, method, path, contentType string, body io.Reader) (response, error) {
	r, err := http.NewRequestWithContext(ctx, method, c.address+path, body)
	if err != nil {
		return response{}, fmt.Errorf(errWrappedFmt, errNewRequestFailure, err.Error())
	}
	for key, values := range c.header {
		for _, value := range values {
			r.Header.Add(key, value)
		}
	}
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	resp, err := c.client.Do(r)
	if err != nil {
		return response{}, fmt.Errorf(errWrappedFmt, errDoRequestFailure, err.Error())
	}
	defer resp.Body.Close()
	out := response{
		Code:        resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, fmt.Errorf(errWrappedFmt, errReadingBodyFailure, err.Error())
	}
	out.Body = bodyBytes
	return out, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
