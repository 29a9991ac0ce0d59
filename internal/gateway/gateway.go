// Package gateway runs the per-request transform pipeline: retrieve
// grounding passages, mask PII, forward upstream, unmask, sanitize, audit.
// The upstream model only ever sees pseudonyms; the caller only ever sees
// restored, sanitized text.
package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"llm-privacy-gateway/internal/apperr"
	"llm-privacy-gateway/internal/llm"
	"llm-privacy-gateway/internal/logger"
	"llm-privacy-gateway/internal/logstore"
	"llm-privacy-gateway/internal/masker"
	"llm-privacy-gateway/internal/metrics"
	"llm-privacy-gateway/internal/sanitizer"
)

const retrieveTopK = 3

// Retriever finds grounding passages for a query. A nil Retriever in the
// Pipeline means retrieval is disabled and every request runs with an empty
// context.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) (string, error)
}

// Upstream is the completion backend.
type Upstream interface {
	ChatCompletion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)
}

// AuditLogger records completed requests. Nil disables auditing.
type AuditLogger interface {
	LogRequest(ctx context.Context, entry logstore.Entry) error
}

// Pipeline wires the transform stages together.
type Pipeline struct {
	masker    *masker.Masker
	retriever Retriever
	upstream  Upstream
	audit     AuditLogger
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// New creates a Pipeline. retriever and audit may be nil; metrics may be nil.
func New(m *masker.Masker, retriever Retriever, upstream Upstream, audit AuditLogger, mx *metrics.Metrics) *Pipeline {
	return &Pipeline{
		masker:    m,
		retriever: retriever,
		upstream:  upstream,
		audit:     audit,
		metrics:   mx,
		log:       logger.Component("gateway"),
	}
}

// ChatCompletion runs one request through the pipeline and returns the
// response with the first choice unmasked and sanitized. Failed requests
// leave no audit row.
func (p *Pipeline) ChatCompletion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	requestID := uuid.New()

	lastUser := -1
	for i, m := range req.Messages {
		if m.Role == "user" {
			lastUser = i
		}
	}
	if lastUser < 0 {
		return nil, apperr.New(apperr.BadRequest, "No user message found")
	}
	originalContent := req.Messages[lastUser].Content

	// Retrieval runs on the raw user text so passages indexed under real
	// names still match. The retrieved context is masked together with the
	// prompt below, before anything leaves the process.
	ragContext := ""
	if p.retriever != nil {
		var err error
		ragContext, err = p.retriever.Retrieve(ctx, originalContent, retrieveTopK)
		if err != nil {
			p.log.Error().Err(err).Stringer("request_id", requestID).Msg("retrieval failed")
			return nil, apperr.Wrap(apperr.Internal, "RAG retrieval failed", err)
		}
	}

	maskedText, mappings := p.masker.Mask(ragContext + originalContent)
	p.log.Info().Stringer("request_id", requestID).Int("entities", len(mappings)).
		Msg("masked PII entities")
	if p.metrics != nil {
		p.metrics.MaskedEntities.Add(float64(len(mappings)))
	}

	req.Messages[lastUser].Content = maskedText

	resp, err := p.upstream.ChatCompletion(ctx, req)
	if err != nil {
		if p.metrics != nil {
			p.metrics.UpstreamFailures.Inc()
		}
		p.log.Error().Err(err).Stringer("request_id", requestID).Msg("upstream call failed")
		return nil, err
	}

	llmOutput := ""
	finalOutput := ""
	if len(resp.Choices) > 0 {
		llmOutput = resp.Choices[0].Message.Content

		restored := masker.Unmask(llmOutput, mappings)
		sanitized, removed := sanitizer.Sanitize(restored)
		if len(removed) > 0 {
			p.log.Warn().Stringer("request_id", requestID).Strs("removed", removed).
				Msg("dangerous content removed from response")
			if p.metrics != nil {
				p.metrics.SanitizerRedactions.Add(float64(len(removed)))
			}
		}
		resp.Choices[0].Message.Content = sanitized
		finalOutput = sanitized
	}

	if p.audit != nil {
		entry := logstore.Entry{
			ID:            requestID,
			Timestamp:     time.Now().UTC(),
			OriginalInput: originalContent,
			MaskedInput:   maskedText,
			LLMOutput:     llmOutput,
			FinalOutput:   finalOutput,
			PIIMappings:   marshalMappings(mappings),
		}
		if ragContext != "" {
			entry.RAGContext = &ragContext
		}
		if err := p.audit.LogRequest(ctx, entry); err != nil {
			p.log.Error().Err(err).Stringer("request_id", requestID).Msg("audit logging failed")
			return nil, apperr.Wrap(apperr.Internal, "Logging error", err)
		}
	}

	return resp, nil
}

// marshalMappings renders the pseudonym map as JSON. An empty map still
// serializes to {} so zero-PII rows carry an object, not null.
func marshalMappings(m map[string]string) json.RawMessage {
	if m == nil {
		m = map[string]string{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return json.RawMessage("{}")
	}
	return b
}
