package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"literary-rag/internal/config"
	"literary-rag/internal/models"
	"literary-rag/internal/prompt"
	"literary-rag/internal/rag"
	"literary-rag/internal/retrieval"
)

type fakeRetriever struct {
	err error
	got []string
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, collections []string) ([]models.Passage, error) {
	if f.err != nil {
		return nil, f.err
	}
	if strings.TrimSpace(query) == "" {
		return nil, retrieval.ErrEmptyQuery
	}
	f.got = collections
	var out []models.Passage
	for i, c := range collections {
		out = append(out, models.Passage{Title: "Τίτλος " + c, Text: "κείμενο", Collection: c, Rank: i + 1})
	}
	return out, nil
}

type echoGenerator struct{}

func (echoGenerator) Generate(ctx context.Context, messages []llms.MessageContent, temperature float64) (string, error) {
	return fmt.Sprintf("%d messages", len(messages)), nil
}

func newTestServer(ret *fakeRetriever) *Server {
	r := rag.NewRAG(ret, echoGenerator{}, prompt.DefaultTemplate())
	sessions := NewSessionStore(time.Minute, func(id string) *rag.Session {
		return rag.NewSession(id, models.DefaultCollections, 10, 0.7)
	})
	return NewServer(config.ServerConfig{Addr: ":0"}, r, sessions, models.DefaultCollections)
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	w := do(t, newTestServer(&fakeRetriever{}), "GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestRetrieveEndpoint(t *testing.T) {
	ret := &fakeRetriever{}
	srv := newTestServer(ret)

	w := do(t, srv, "POST", "/api/v1/retrieve", `{"query":"η θάλασσα","selection":"Poems"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body retrieveResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, []string{models.CollectionPoems}, ret.got)
	require.Len(t, body.Passages, 1)
	assert.Equal(t, "Τίτλος: Τίτλος poems\nκείμενο", body.Context)

	w = do(t, srv, "POST", "/api/v1/retrieve", `{"query":"η θάλασσα"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.DefaultCollections, ret.got)
}

func TestRetrieveEndpoint_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		body string
		want int
	}{
		{"bad json", nil, `{`, http.StatusBadRequest},
		{"empty query", nil, `{"query":"  "}`, http.StatusBadRequest},
		{"unknown collection", &retrieval.UnknownCollectionError{Names: []string{"letters"}}, `{"query":"q"}`, http.StatusBadRequest},
		{"index down", &retrieval.CollectionUnavailableError{Collection: "novels", Err: errors.New("refused")}, `{"query":"q"}`, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, newTestServer(&fakeRetriever{err: tt.err}), "POST", "/api/v1/retrieve", tt.body)
			assert.Equal(t, tt.want, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(&fakeRetriever{})

	w := do(t, srv, "GET", "/api/v1/sessions/s1/history", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	srv.sessions.Create("s1")
	w = do(t, srv, "POST", "/api/v1/sessions/s1/messages", `{"question":"Ποιος έγραψε τη Φόνισσα;","selection":"Novels"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.PromptResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "WITH_CONTEXT", resp.State)
	assert.Equal(t, "3 messages", resp.Content)

	w = do(t, srv, "POST", "/api/v1/sessions/s1/messages", `{"question":"Και πότε;","use_context":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "WITHOUT_CONTEXT", resp.State)
	assert.Equal(t, "4 messages", resp.Content)

	w = do(t, srv, "GET", "/api/v1/sessions/s1/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	var hist struct {
		ID      string        `json:"id"`
		History []models.Turn `json:"history"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&hist))
	assert.Equal(t, "s1", hist.ID)
	require.Len(t, hist.History, 4)
	assert.Equal(t, []string{models.CollectionNovels}, hist.History[1].Settings.Collections)

	w = do(t, srv, "DELETE", "/api/v1/sessions/s1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, srv, "GET", "/api/v1/sessions/s1/history", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostMessage_EmptyQuestion(t *testing.T) {
	srv := newTestServer(&fakeRetriever{})
	w := do(t, srv, "POST", "/api/v1/sessions/s1/messages", `{"question":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, srv.sessions.Len())
}

func TestPostMessage_UnknownSession(t *testing.T) {
	srv := newTestServer(&fakeRetriever{})
	w := do(t, srv, "POST", "/api/v1/sessions/typo/messages", `{"question":"Πού γεννήθηκε;"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Zero(t, srv.sessions.Len())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(fmt.Errorf("wrapped: %w", retrieval.ErrEmptyQuery)))
	assert.Equal(t, http.StatusBadGateway, StatusFor(&retrieval.RerankError{Collection: "poems", Err: errors.New("429")}))
	assert.Equal(t, http.StatusBadGateway, StatusFor(errors.New("boom")))
}

func TestSessionStore(t *testing.T) {
	created := 0
	store := NewSessionStore(time.Minute, func(id string) *rag.Session {
		created++
		return rag.NewSession(id, nil, 2, 0.7)
	})

	_, _, ok := store.Acquire("a")
	assert.False(t, ok)

	s1 := store.Create("a")
	s2, release, ok := store.Acquire("a")
	require.True(t, ok)
	release()
	assert.Same(t, s1, s2)
	assert.Equal(t, 1, created)

	got, ok := store.Get("a")
	require.True(t, ok)
	assert.Same(t, s1, got)

	store.Delete("a")
	_, ok = store.Get("a")
	assert.False(t, ok)
}

func TestCreateSession(t *testing.T) {
	srv := newTestServer(&fakeRetriever{})

	w := do(t, srv, "POST", "/api/v1/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code)
	var body struct {
		ID          string   `json:"id"`
		Collections []string `json:"collections"`
		UseContext  bool     `json:"use_context"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.NotEmpty(t, body.ID)
	assert.Equal(t, models.DefaultCollections, body.Collections)
	assert.True(t, body.UseContext)

	w = do(t, srv, "GET", "/api/v1/sessions/"+body.ID+"/history", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
