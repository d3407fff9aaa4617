package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(Config{Address: server.URL, Owner: "TestOrg"})
	require.NoError(t, err)
	return c, server
}

func writeJobResponse(w http.ResponseWriter, status BatchStatus) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status": "Success",
		"data":   map[string]any{"batchStatus": status},
	})
}

func TestConfigValidation(t *testing.T) {
	_, err := New(Config{Owner: "TestOrg"})
	assert.ErrorIs(t, err, ErrAddressEmpty)

	_, err = New(Config{Address: "https://intel.example.com"})
	assert.ErrorIs(t, err, ErrOwnerEmpty)
}

func TestSubmitJobSyncCompletion(t *testing.T) {
	var gotConfig, gotContent []byte
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/batch/createAndUpload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1 << 20))

		configFile, _, err := r.FormFile("config")
		require.NoError(t, err)
		gotConfig, _ = io.ReadAll(configFile)

		contentFile, _, err := r.FormFile("content")
		require.NoError(t, err)
		gotContent, _ = io.ReadAll(contentFile)

		writeJobResponse(w, BatchStatus{ID: 7, Status: "Completed", SuccessCount: 2})
	}))

	settings := DefaultSettings("TestOrg")
	status, err := c.SubmitJob(context.Background(), settings, map[string]any{
		"group":     []map[string]any{{"type": "Campaign", "name": "c1", "xid": "g1"}},
		"indicator": []map[string]any{},
	})
	require.NoError(t, err)
	assert.True(t, status.Completed())
	assert.Equal(t, 2, status.SuccessCount)

	var config map[string]any
	require.NoError(t, json.Unmarshal(gotConfig, &config))
	assert.Equal(t, "Create", config["action"])
	assert.Equal(t, "true", config["haltOnError"])
	assert.Equal(t, "V2", config["version"])
	assert.Equal(t, "TestOrg", config["owner"])

	var content map[string]any
	require.NoError(t, json.Unmarshal(gotContent, &content))
	assert.Contains(t, content, "group")
}

func TestSubmitJobUnexpectedContentType(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html>gateway error</html>")
	}))

	_, err := c.SubmitJob(context.Background(), DefaultSettings("TestOrg"), map[string]any{})
	require.Error(t, err)
	var re *RequestError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, CodeSubmitFailed, re.Code)
	assert.ErrorIs(t, err, errUnexpectedContentType)
}

func TestSubmitJobNonSuccessStatus(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"status":"Failure"}`)
	}))

	_, err := c.SubmitJob(context.Background(), DefaultSettings("TestOrg"), map[string]any{})
	var re *RequestError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusBadRequest, re.Status)
}

func TestCreateJobAndSubmitData(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/batch":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"status":"Success","data":{"batchId":42}}`)
		case "/batch/42":
			body, _ := io.ReadAll(r.Body)
			assert.Contains(t, string(body), `"indicator"`)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"status":"Success"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	id, err := c.CreateJob(context.Background(), DefaultSettings("TestOrg"))
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	err = c.SubmitData(context.Background(), id, map[string]any{
		"indicator": []map[string]any{{"type": "Host", "summary": "bad.example.com"}},
	})
	require.NoError(t, err)
}

func TestPollStatusCompletes(t *testing.T) {
	checks := 0
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/batch/9", r.URL.Path)
		require.Equal(t, "true", r.URL.Query().Get("includeAdditional"))
		checks++
		status := "Running"
		if checks >= 2 {
			status = "Completed"
		}
		writeJobResponse(w, BatchStatus{ID: 9, Status: status})
	}))

	// Shrink the timing for test speed.
	c.timer.retrySeconds = 0.01
	c.timer.backoffFactor = 0.001
	c.timer.nextInitial = 0.01

	status, err := c.PollStatus(context.Background(), 9, 10)
	require.NoError(t, err)
	assert.True(t, status.Completed())
	assert.Equal(t, 2, checks)
	assert.Len(t, c.timer.samples, 1, "completion recorded into the window")
}

func TestPollStatusTimeoutAlwaysFatal(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJobResponse(w, BatchStatus{ID: 9, Status: "Running"})
	}))
	c.timer.retrySeconds = 0.01
	c.timer.backoffFactor = 0
	c.timer.nextInitial = 0.01
	c.timer.timeout = 30 * time.Millisecond

	_, err := c.PollStatus(context.Background(), 9, 10)
	var re *RequestError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, CodePollTimeout, re.Code)
	assert.True(t, IsAlwaysFatal(err))
	assert.Error(t, HandleError(nil, err, false), "timeout must override halt-on-error=false")
}

func TestPollStatusContextCancel(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJobResponse(w, BatchStatus{ID: 9, Status: "Running"})
	}))
	c.timer.nextInitial = 10

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.PollStatus(ctx, 9, 10)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBatchErrors(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/batch/9/errors", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"errorReason":"Invalid indicator summary","errorSource":"ind-1"}]`)
	}))

	batchErrors, err := c.BatchErrors(context.Background(), 9)
	require.NoError(t, err)
	require.Len(t, batchErrors, 1)
	assert.Equal(t, "Invalid indicator summary", batchErrors[0].ErrorReason)
}

func TestBatchErrorsCriticalEscalation(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"errorReason":"Encountered an unexpected Exception while processing batch job","errorSource":""}]`)
	}))

	batchErrors, err := c.BatchErrors(context.Background(), 9)
	require.Error(t, err)
	assert.Len(t, batchErrors, 1, "error list is still returned alongside the escalation")

	var re *RequestError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, CodeCriticalFailure, re.Code)
	assert.True(t, IsAlwaysFatal(err))
	assert.Error(t, HandleError(nil, err, false), "critical failures override halt-on-error=false")
}
