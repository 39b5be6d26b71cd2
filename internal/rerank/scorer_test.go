package rerank

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	cohere "github.com/cohere-ai/cohere-go/v2"
)

func TestHTTPScorer_TEI(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		var req teiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Query != "galaxy" || len(req.Texts) != 3 {
			t.Errorf("request = %+v", req)
		}
		// TEI returns entries sorted by score, not by input index
		_, _ = io.WriteString(w, `[{"index":2,"score":0.9},{"index":0,"score":0.4},{"index":1,"score":0.1}]`)
	}))
	defer srv.Close()

	s, err := NewHTTPScorer(&HTTPConfig{Endpoint: srv.URL, APIKey: "secret"})
	if err != nil {
		t.Fatalf("NewHTTPScorer: %v", err)
	}
	got, err := s.Score(context.Background(), "galaxy", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if want := []float64{0.4, 0.1, 0.9}; !reflect.DeepEqual(got, want) {
		t.Errorf("scores = %v, want %v", got, want)
	}
}

func TestHTTPScorer_ResultsEnvelope(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req jinaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "jina-reranker-v2" || req.TopN != 2 {
			t.Errorf("request = %+v", req)
		}
		_, _ = io.WriteString(w, `{"results":[{"index":1,"relevance_score":0.8},{"index":0,"relevance_score":0.2}]}`)
	}))
	defer srv.Close()

	s, err := NewHTTPScorer(&HTTPConfig{Endpoint: srv.URL, Model: "jina-reranker-v2", Format: FormatJina})
	if err != nil {
		t.Fatalf("NewHTTPScorer: %v", err)
	}
	got, err := s.Score(context.Background(), "q", []string{"a", "b"})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if want := []float64{0.2, 0.8}; !reflect.DeepEqual(got, want) {
		t.Errorf("scores = %v, want %v", got, want)
	}
}

func TestHTTPScorer_Errors(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name      string
		status    int
		body      string
		wantErr   string
		wantCount bool
	}{
		{name: "http 500", status: 500, body: `{"error":"model overloaded"}`, wantErr: "model overloaded"},
		{name: "http 404 no body", status: 404, body: ``, wantErr: "HTTP 404"},
		{name: "malformed json", status: 200, body: `{"results":`, wantErr: "decode response"},
		{name: "short", status: 200, body: `[{"index":0,"score":0.5}]`, wantCount: true},
		{name: "duplicate index", status: 200, body: `[{"index":0,"score":0.5},{"index":0,"score":0.4}]`, wantCount: true},
		{name: "out of range", status: 200, body: `[{"index":0,"score":0.5},{"index":7,"score":0.4}]`, wantCount: true},
		{name: "missing score", status: 200, body: `[{"index":0,"score":0.5},{"index":1}]`, wantErr: "has no score"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			s, err := NewHTTPScorer(&HTTPConfig{Endpoint: srv.URL})
			if err != nil {
				t.Fatalf("NewHTTPScorer: %v", err)
			}
			_, err = s.Score(context.Background(), "q", []string{"a", "b"})
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.wantCount && !errors.Is(err, ErrScoreCountMismatch) {
				t.Errorf("err = %v, want ErrScoreCountMismatch", err)
			}
			if tc.wantErr != "" && !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("err = %q, want substring %q", err, tc.wantErr)
			}
		})
	}
}

func TestNewHTTPScorer_Validation(t *testing.T) {
	t.Parallel()
	if _, err := NewHTTPScorer(&HTTPConfig{}); err == nil || !strings.Contains(err.Error(), "SCORER_ENDPOINT") {
		t.Errorf("missing endpoint err = %v", err)
	}
	if _, err := NewHTTPScorer(&HTTPConfig{Endpoint: "http://x", Format: "grpc"}); err == nil {
		t.Error("unknown format should fail")
	}
}

func TestCohereScorer_PlacesByIndex(t *testing.T) {
	t.Parallel()
	var resp cohere.V2RerankResponse
	body := `{"id":"r1","results":[{"index":1,"relevance_score":0.97},{"index":0,"relevance_score":0.12}],"meta":{}}`
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}

	var gotReq *cohere.V2RerankRequest
	s := newCohereScorer(&CohereConfig{}, func(_ context.Context, req *cohere.V2RerankRequest) (*cohere.V2RerankResponse, error) {
		gotReq = req
		return &resp, nil
	})
	got, err := s.Score(context.Background(), "galaxy", []string{"ocean", "galaxy"})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if want := []float64{0.12, 0.97}; !reflect.DeepEqual(got, want) {
		t.Errorf("scores = %v, want %v", got, want)
	}
	if gotReq.Model != DefaultCohereModel {
		t.Errorf("model = %q, want %q", gotReq.Model, DefaultCohereModel)
	}
	if gotReq.TopN == nil || *gotReq.TopN != 2 {
		t.Errorf("TopN = %v, want 2", gotReq.TopN)
	}
}

func TestCohereScorer_Error(t *testing.T) {
	t.Parallel()
	s := newCohereScorer(&CohereConfig{Model: "rerank-english-v3.0"}, func(context.Context, *cohere.V2RerankRequest) (*cohere.V2RerankResponse, error) {
		return nil, errors.New("401 unauthorized")
	})
	if _, err := s.Score(context.Background(), "q", []string{"a"}); err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("err = %v, want wrapped 401", err)
	}
}

func TestNewCohereScorer_RequiresKey(t *testing.T) {
	t.Parallel()
	if _, err := NewCohereScorer(&CohereConfig{}); err == nil {
		t.Error("expected error without COHERE_API_KEY")
	}
}

// fakeChat is a model.BaseChatModel returning a canned reply.
type fakeChat struct {
	reply string
	err   error
	got   []*schema.Message
}

func (f *fakeChat) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChat) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func TestLLMScorer_ParsesFencedReply(t *testing.T) {
	t.Parallel()
	chat := &fakeChat{reply: "```json\n{\"scores\":[{\"doc_index\":1,\"score\":1.4},{\"doc_index\":0,\"score\":-0.2}]}\n```"}
	s := NewLLMScorer(chat, &LLMConfig{MaxDocTokens: 4})

	long := strings.Repeat("nebula ", 20)
	got, err := s.Score(context.Background(), "galaxy", []string{long, "galaxy"})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	// clamped into [0, 1]
	if want := []float64{0, 1}; !reflect.DeepEqual(got, want) {
		t.Errorf("scores = %v, want %v", got, want)
	}
	if len(chat.got) != 2 {
		t.Fatalf("messages = %d, want 2", len(chat.got))
	}
	prompt := chat.got[1].Content
	if strings.Contains(prompt, long) {
		t.Error("document text was not truncated to the token budget")
	}
	if !strings.Contains(prompt, "Query: galaxy") || !strings.Contains(prompt, "[Doc 1]: galaxy") {
		t.Errorf("prompt missing query or documents:\n%s", prompt)
	}
}

func TestLLMScorer_MissingDocument(t *testing.T) {
	t.Parallel()
	chat := &fakeChat{reply: `{"scores":[{"doc_index":0,"score":0.5}]}`}
	_, err := NewLLMScorer(chat, &LLMConfig{}).Score(context.Background(), "q", []string{"a", "b"})
	if !errors.Is(err, ErrScoreCountMismatch) {
		t.Errorf("err = %v, want ErrScoreCountMismatch", err)
	}
}

func TestLLMScorer_Unparseable(t *testing.T) {
	t.Parallel()
	chat := &fakeChat{reply: "Document 0 looks relevant."}
	if _, err := NewLLMScorer(chat, &LLMConfig{}).Score(context.Background(), "q", []string{"a"}); err == nil {
		t.Error("expected parse error")
	}
}

func TestLLMScorer_GenerateError(t *testing.T) {
	t.Parallel()
	chat := &fakeChat{err: errors.New("quota exceeded")}
	r := NewExternalScoring("llm", NewLLMScorer(chat, &LLMConfig{}))
	_, err := r.Rerank(context.Background(), "q", testDocs())
	if !errors.Is(err, ErrRerankFailure) {
		t.Errorf("err = %v, want ErrRerankFailure", err)
	}
}

func TestLLMScorer_PromptBudget(t *testing.T) {
	t.Parallel()
	texts := []string{strings.Repeat("nebula ", 200), strings.Repeat("quasar ", 200)}
	reply := `{"scores":[{"doc_index":0,"score":0.2},{"doc_index":1,"score":0.8}]}`

	tests := []struct {
		name      string
		maxPrompt int
		wantErr   bool
	}{
		{"disabled", 0, false},
		{"fits", 4096, false},
		{"too large", 64, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			chat := &fakeChat{reply: reply}
			s := NewLLMScorer(chat, &LLMConfig{MaxPromptTokens: tt.maxPrompt})
			_, err := s.Score(context.Background(), "galaxy", texts)
			if tt.wantErr {
				if !errors.Is(err, ErrPromptTooLarge) {
					t.Fatalf("err = %v, want ErrPromptTooLarge", err)
				}
				if chat.got != nil {
					t.Error("model was called for an oversized prompt")
				}
				return
			}
			if err != nil {
				t.Fatalf("Score: %v", err)
			}
			if chat.got == nil {
				t.Error("model was not called")
			}
		})
	}
}

func TestLLMScorer_PromptBudgetFailsRerank(t *testing.T) {
	t.Parallel()
	r := NewExternalScoring("llm", NewLLMScorer(&fakeChat{}, &LLMConfig{MaxPromptTokens: 1}))
	_, err := r.Rerank(context.Background(), "q", testDocs())
	if !errors.Is(err, ErrRerankFailure) || !errors.Is(err, ErrPromptTooLarge) {
		t.Errorf("err = %v, want ErrRerankFailure wrapping ErrPromptTooLarge", err)
	}
}

func TestHTTPScorer_OversizedResponse(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[{"index":0,"score":0.5}]`)
		_, _ = io.WriteString(w, strings.Repeat(" ", maxScorerResponseBytes))
	}))
	defer srv.Close()

	s, err := NewHTTPScorer(&HTTPConfig{Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("NewHTTPScorer: %v", err)
	}
	_, err = s.Score(context.Background(), "galaxy", []string{"a"})
	if err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Errorf("err = %v, want size limit error", err)
	}
}
