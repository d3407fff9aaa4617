package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/intelbatch/client"
	"github.com/poiesic/intelbatch/core"
)

// batchServer fakes the bulk-import endpoints, recording every
// submitted content payload and file upload.
type batchServer struct {
	t        *testing.T
	payloads []map[string]any
	uploads  map[string][]byte
	status   map[string]any // batchStatus returned on submit
	errors   []map[string]any
}

func newBatchServer(t *testing.T) *batchServer {
	return &batchServer{
		t:       t,
		uploads: map[string][]byte{},
		status:  map[string]any{"id": 42, "status": "Completed"},
	}
}

func (s *batchServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/batch/createAndUpload":
		require.NoError(s.t, r.ParseMultipartForm(1<<20))
		file, _, err := r.FormFile("content")
		require.NoError(s.t, err)
		defer file.Close()
		var payload map[string]any
		require.NoError(s.t, json.NewDecoder(file).Decode(&payload))
		s.payloads = append(s.payloads, payload)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status": "Success",
			"data":   map[string]any{"batchStatus": s.status},
		})

	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/errors"):
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.errors)

	case strings.HasSuffix(r.URL.Path, "/upload"):
		body, err := io.ReadAll(r.Body)
		require.NoError(s.t, err)
		s.uploads[r.URL.Path] = body
		w.WriteHeader(http.StatusOK)

	default:
		s.t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestEngine(t *testing.T, server *batchServer, opts ...EngineOption) *Engine {
	t.Helper()
	ts := httptest.NewServer(server)
	t.Cleanup(ts.Close)

	cl, err := client.New(client.Config{Address: ts.URL, Owner: "TestOrg"})
	require.NoError(t, err)

	store := newTestStore(t)
	engine, err := NewEngine(store, cl, opts...)
	require.NoError(t, err)
	return engine
}

func payloadArray(t *testing.T, payload map[string]any, key string) []any {
	t.Helper()
	arr, ok := payload[key].([]any)
	require.True(t, ok, "payload missing %q array", key)
	return arr
}

func TestNewEngineRequiresStoreAndClient(t *testing.T) {
	cl, err := client.New(client.Config{Address: "http://localhost", Owner: "TestOrg"})
	require.NoError(t, err)

	_, err = NewEngine(nil, cl)
	assert.ErrorIs(t, err, ErrStoreRequired)

	store := newTestStore(t)
	_, err = NewEngine(store, nil)
	assert.ErrorIs(t, err, ErrClientRequired)
}

func TestEngineSubmitEndToEnd(t *testing.T) {
	server := newBatchServer(t)
	server.status = map[string]any{
		"id": 42, "status": "Completed",
		"successGroupCount": 2, "successIndicatorCount": 1,
		"successAssociationCount": 1, "errorAssociationCount": 0,
	}
	engine := newTestEngine(t, server)

	camp, err := engine.Group("Campaign", "wave-1", core.WithXid("camp-1"))
	require.NoError(t, err)
	camp.Tag("apt")
	_, err = engine.Group("Incident", "breach", core.WithXid("inc-1"))
	require.NoError(t, err)
	_, err = engine.Indicator("Host", "evil.example", core.WithIndicatorXid("host-1"))
	require.NoError(t, err)

	engine.Associate("Linked",
		core.AssociationTarget{Ref: "camp-1"},
		core.AssociationTarget{Ref: "inc-1"})
	// Equivalent pair in reverse order is deduplicated.
	engine.Associate("Linked",
		core.AssociationTarget{Ref: "inc-1"},
		core.AssociationTarget{Ref: "camp-1"})
	require.Equal(t, 1, engine.AssociationCount())

	require.NoError(t, engine.Submit(context.Background()))

	require.Len(t, server.payloads, 1)
	payload := server.payloads[0]
	assert.Len(t, payloadArray(t, payload, "group"), 2)
	assert.Len(t, payloadArray(t, payload, "indicator"), 1)
	assert.Len(t, payloadArray(t, payload, "association"), 1)

	statuses := engine.Statuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, 1, statuses[0].SuccessAssociationCount)
	assert.Zero(t, statuses[0].ErrorAssociationCount)

	// Everything drained.
	groups, err := engine.store.GroupCount()
	require.NoError(t, err)
	assert.Zero(t, groups)
	assert.Zero(t, engine.AssociationCount())
}

func TestEngineSubmitSplitsIntoChunks(t *testing.T) {
	server := newBatchServer(t)
	engine := newTestEngine(t, server, WithChunkSize(1))

	for _, name := range []string{"one", "two", "three"} {
		_, err := engine.Group("Campaign", name, core.WithXid("chunk-"+name))
		require.NoError(t, err)
	}
	engine.Associate("Linked",
		core.AssociationTarget{Ref: "chunk-one"},
		core.AssociationTarget{Ref: "chunk-two"})

	require.NoError(t, engine.Submit(context.Background()))

	require.Len(t, server.payloads, 3)
	// Associations travel once, with the first chunk.
	assert.Contains(t, server.payloads[0], "association")
	assert.NotContains(t, server.payloads[1], "association")
	assert.NotContains(t, server.payloads[2], "association")
}

func TestEngineSubmitAssociationOnly(t *testing.T) {
	server := newBatchServer(t)
	engine := newTestEngine(t, server)

	// Associations may reference entities submitted in earlier runs.
	engine.Associate("Linked",
		core.AssociationTarget{Ref: "prior-a"},
		core.AssociationTarget{Ref: "prior-b"})

	require.NoError(t, engine.Submit(context.Background()))

	require.Len(t, server.payloads, 1)
	assert.Empty(t, payloadArray(t, server.payloads[0], "group"))
	assert.Len(t, payloadArray(t, server.payloads[0], "association"), 1)
}

func TestEngineSubmitEmptyStoreIsNoop(t *testing.T) {
	server := newBatchServer(t)
	engine := newTestEngine(t, server)

	require.NoError(t, engine.Submit(context.Background()))
	assert.Empty(t, server.payloads)
}

func TestEngineUploadsFileContent(t *testing.T) {
	server := newBatchServer(t)
	engine := newTestEngine(t, server)

	_, err := engine.Group("Document", "evidence.zip",
		core.WithXid("doc-1"),
		core.WithField("fileName", "evidence.zip"),
		core.WithFileContent(core.Bytes([]byte("zip bytes"))))
	require.NoError(t, err)

	resolved := ""
	_, err = engine.Group("Report", "weekly",
		core.WithXid("rep-1"),
		core.WithFileContent(core.Deferred(func(xid string) []byte {
			resolved = xid
			return []byte("report bytes")
		})))
	require.NoError(t, err)

	require.NoError(t, engine.Submit(context.Background()))

	assert.Equal(t, []byte("zip bytes"), server.uploads["/documents/doc-1/upload"])
	assert.Equal(t, []byte("report bytes"), server.uploads["/reports/rep-1/upload"])
	assert.Equal(t, "rep-1", resolved, "deferred content resolves with the entity xid")
}

func TestEngineSpillSubmitsImmediately(t *testing.T) {
	server := newBatchServer(t)

	ts := httptest.NewServer(server)
	t.Cleanup(ts.Close)
	cl, err := client.New(client.Config{Address: ts.URL, Owner: "TestOrg"})
	require.NoError(t, err)

	store := newTestStore(t, WithSizeBudget(1))
	_, err = NewEngine(store, cl)
	require.NoError(t, err)

	// Exceeding the size budget mid-staging submits right away.
	_, err = store.UpsertGroup(core.NewGroup("Campaign", "big", core.WithXid("spill-1")))
	require.NoError(t, err)

	require.Len(t, server.payloads, 1)
	assert.Len(t, payloadArray(t, server.payloads[0], "group"), 1)
}

func TestEngineFetchesBatchErrors(t *testing.T) {
	server := newBatchServer(t)
	server.status = map[string]any{"id": 42, "status": "Completed", "errorCount": 2}
	server.errors = []map[string]any{
		{"errorReason": "tag too long", "errorSource": "camp-1"},
		{"errorReason": "invalid attribute", "errorSource": "camp-1"},
	}
	engine := newTestEngine(t, server,
		WithSettings(func() client.Settings {
			s := client.DefaultSettings("TestOrg")
			s.HaltOnError = false
			return s
		}()))

	_, err := engine.Group("Campaign", "wave-1", core.WithXid("camp-1"))
	require.NoError(t, err)

	require.NoError(t, engine.Submit(context.Background()))
	require.Len(t, server.payloads, 1)
}

func TestEngineCriticalFailureHaltsDespiteContinueMode(t *testing.T) {
	server := newBatchServer(t)
	server.status = map[string]any{"id": 42, "status": "Completed", "errorCount": 1}
	server.errors = []map[string]any{
		{"errorReason": "Encountered an unexpected Exception while processing batch job 42"},
	}
	engine := newTestEngine(t, server,
		WithSettings(func() client.Settings {
			s := client.DefaultSettings("TestOrg")
			s.HaltOnError = false
			return s
		}()))

	_, err := engine.Group("Campaign", "wave-1", core.WithXid("camp-1"))
	require.NoError(t, err)

	err = engine.Submit(context.Background())
	require.Error(t, err)
	var reqErr *client.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, client.CodeCriticalFailure, reqErr.Code)
}

func TestEngineSubmitReportsProgress(t *testing.T) {
	server := newBatchServer(t)
	var buf bytes.Buffer
	engine := newTestEngine(t, server, WithProgress(NewProgressTracker(&buf, 0)))

	_, err := engine.Group("Adversary", "first", core.WithXid("g-1"))
	require.NoError(t, err)
	_, err = engine.Group("Adversary", "second", core.WithXid("g-2"))
	require.NoError(t, err)

	require.NoError(t, engine.Submit(context.Background()))

	output := buf.String()
	assert.Contains(t, output, "2/2", "tracker should learn the staged total")
	assert.Contains(t, output, "entities/s")
	assert.Contains(t, output, "\n", "finish should terminate the progress line")
}

func TestSpillChunkUsesSubmitContext(t *testing.T) {
	server := newBatchServer(t)
	engine := newTestEngine(t, server)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine.baseCtx = ctx

	chunk := NewChunk()
	chunk.Groups = append(chunk.Groups, map[string]any{"type": "Adversary", "name": "g", "xid": "g-1"})
	err := engine.SpillChunk(chunk)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context canceled")

	// Staging-time spills have no caller deadline to inherit.
	engine.baseCtx = nil
	require.NoError(t, engine.SpillChunk(chunk))

	// Submit installs its context for the duration of the drain only.
	require.NoError(t, engine.Submit(context.Background()))
	assert.Nil(t, engine.baseCtx)
}
