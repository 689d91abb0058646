// Package narration implements the per-request narration pipeline: a
// streaming LLM producer feeding a sentence chunker feeding a pool of TTS
// consumers, joined by in-memory channels closed as an explicit
// end-of-stream sentinel. It also hosts the four tool-style operations
// (configure, narrate_text, list_characters, get_config_status) that
// internal/mcpserver exposes over MCP.
package narration

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/lokutor-ai/vibebridge/internal/character"
	"github.com/lokutor-ai/vibebridge/internal/chunker"
	"github.com/lokutor-ai/vibebridge/internal/llmclient"
	"github.com/lokutor-ai/vibebridge/internal/logging"
	"github.com/lokutor-ai/vibebridge/internal/session"
	"github.com/lokutor-ai/vibebridge/internal/ttsclient"
)

// maxContinuations bounds the sentence-boundary continuation loop.
const maxContinuations = 2

// continuationMaxTokens is the small output cap used for each continuation
// request.
const continuationMaxTokens = 10

// ttsConcurrency bounds how many TTS requests for a single narration
// request may be in flight at once. Chunks complete out of order; the
// result-emitter goroutine below is what restores chunk-index order.
const ttsConcurrency = 4

// Chunk is one emitted (text, audio) pair of a narration request.
type Chunk struct {
	Index        int
	TextFragment string
	AudioBytes   []byte
	MimeType     string
}

// Result is the full concatenated text and audio of a completed request.
type Result struct {
	Text  string
	Audio []byte
}

// Pipeline wires an LLM client and a TTS client into the per-request
// producer/consumer flow. The zero value is not usable; construct with
// NewPipeline.
type Pipeline struct {
	LLM    *llmclient.Client
	TTS    *ttsclient.Client
	Logger logging.Logger
}

// NewPipeline returns a Pipeline, defaulting to a no-op logger when logger
// is nil.
func NewPipeline(llm *llmclient.Client, tts *ttsclient.Client, logger logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NoOp()
	}
	return &Pipeline{LLM: llm, TTS: tts, Logger: logger}
}

// fragment is one sentence-sized span of assistant text handed from the LLM
// producer to the TTS worker pool, tagged with its production-order index.
type fragment struct {
	index int
	text  string
}

// ttsOutcome is a completed (or failed) synthesis of one fragment, tagged
// with the same index so the result emitter can restore production order
// regardless of which TTS call finishes first.
type ttsOutcome struct {
	index int
	chunk Chunk
}

// Run executes one narration request: it streams prompt through the LLM
// under char's role-play modifier, chunks the output into sentence-sized
// fragments, and hands each fragment to a pool of concurrent TTS workers.
// The LLM stream and the TTS synthesis calls run concurrently (the LLM
// read loop never blocks on a TTS round trip) and a single result-emitter
// goroutine reads completed chunks off an internal completion map so
// onChunk is always invoked in production order, independent of the order
// the underlying TTS calls happen to complete in.
//
// If either the LLM stream or a TTS call fails, the sibling side is
// canceled via ctx, no further chunks are emitted, and the error is
// returned.
func (p *Pipeline) Run(ctx context.Context, snap session.Snapshot, char character.Character, prompt string, onChunk func(Chunk)) (Result, error) {
	systemPrompt := characterModifiedSystemPrompt(basePrompt(Mode(snap.Mode)), char.LLMSystemPromptModifier)
	messages := []llmclient.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fragments := make(chan fragment, ttsConcurrency*2)
	outcomes := make(chan ttsOutcome, ttsConcurrency*2)

	var failOnce sync.Once
	var firstErr error
	fail := func(err error) {
		failOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	var workers sync.WaitGroup
	for i := 0; i < ttsConcurrency; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			p.synthesizeFragments(ctx, snap, char, fragments, outcomes, fail)
		}()
	}
	go func() {
		workers.Wait()
		close(outcomes)
	}()

	emitted := make(chan Result, 1)
	go func() {
		emitted <- collectInOrder(outcomes, onChunk)
	}()

	index := 0
	send := func(raw string) {
		text := stripForTTS(raw)
		if text == "" {
			return
		}
		i := index
		index++
		select {
		case fragments <- fragment{index: i, text: text}:
		case <-ctx.Done():
		}
	}

	var rawText strings.Builder
	c := chunker.New()
	feed := func(text string) {
		rawText.WriteString(text)
		if done, ok := c.AddToken(text); ok {
			send(done)
		}
	}

	finishReason, err := p.LLM.Stream(ctx, llmclient.StreamRequest{
		APIKey:    snap.LLMAPIKey,
		BaseURL:   snap.BaseURL,
		Headers:   snap.DefaultHeaders,
		Model:     pickModel(snap.LLMModel),
		Messages:  messages,
		MaxTokens: maxOutputTokens(Mode(snap.Mode)),
	}, feed)
	if err != nil {
		fail(wrapUpstreamErr(ErrUpstreamAPI, "llm", err))
	}

	fullText := rawText.String()
	continuationFellShort := false
	if ctx.Err() == nil && finishReason == "length" && !endsInSentenceRE.MatchString(fullText) {
		fullText = p.continueForSentenceBoundary(ctx, snap, systemPrompt, prompt, fullText, c, send, fail)
		continuationFellShort = !endsInSentenceRE.MatchString(fullText)
	}

	if ctx.Err() == nil {
		if remainder, ok := c.Flush(); ok {
			// When the continuation loop never reached a boundary, the
			// trailing fragment is dropped if a complete sentence already
			// precedes it in the full response; otherwise the remainder is
			// kept whole.
			if !continuationFellShort || TruncateToLastCompleteSentence(fullText) == fullText {
				send(remainder)
			} else {
				p.Logger.Debug("narration: trimmed trailing fragment", "fragment_len", len(remainder))
			}
		}
	}

	close(fragments)
	result := <-emitted

	if firstErr != nil {
		return Result{}, firstErr
	}

	if result.Text == "" {
		p.Logger.Warn("narration: empty result", "prompt_len", len(prompt))
	}

	return result, nil
}

// synthesizeFragments is one TTS worker: it synthesizes fragments until the
// channel is closed or ctx is canceled, reporting the first failure through
// fail and then stopping.
func (p *Pipeline) synthesizeFragments(ctx context.Context, snap session.Snapshot, char character.Character, fragments <-chan fragment, outcomes chan<- ttsOutcome, fail func(error)) {
	for {
		select {
		case f, ok := <-fragments:
			if !ok {
				return
			}
			audio, err := p.TTS.Synthesize(ctx, ttsclient.Request{
				Provider:          snap.TTSProvider,
				APIKey:            snap.TTSAPIKey,
				Voice:             snap.Voice,
				Text:              f.text,
				StyleInstructions: char.TTSStyleInstructions,
			})
			if err != nil {
				fail(wrapUpstreamErr(ErrUpstreamAPI, "tts", err))
				return
			}
			out := ttsOutcome{
				index: f.index,
				chunk: Chunk{Index: f.index, TextFragment: f.text, AudioBytes: audio, MimeType: ttsclient.MimeTypeMP3},
			}
			select {
			case outcomes <- out:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// collectInOrder is the single-consumer result emitter: it holds completed
// chunks in a completion map keyed by index and releases them to onChunk,
// in order, as soon as the next expected index arrives, never relying on
// the TTS calls themselves completing in arrival order.
func collectInOrder(outcomes <-chan ttsOutcome, onChunk func(Chunk)) Result {
	pending := make(map[int]ttsOutcome)
	next := 0
	var result Result

	for oc := range outcomes {
		pending[oc.index] = oc
		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++

			result.Text += ready.chunk.TextFragment
			result.Audio = append(result.Audio, ready.chunk.AudioBytes...)
			if onChunk != nil {
				onChunk(ready.chunk)
			}
		}
	}
	return result
}

// continueForSentenceBoundary issues up to maxContinuations short follow-up
// requests when the LLM stopped at its token cap mid-sentence. Each
// continuation's messages replay the conversation with the
// accumulated-so-far assistant text; if the continuation's own output
// replays that text verbatim (a known model behavior), only the new suffix
// is fed onward. A continuation-call failure is reported through fail and
// ends the loop early. It returns the accumulated assistant text including
// every continuation suffix.
func (p *Pipeline) continueForSentenceBoundary(ctx context.Context, snap session.Snapshot, systemPrompt, userPrompt, soFar string, c *chunker.Chunker, send func(string), fail func(error)) string {
	accumulated := soFar
	for i := 0; i < maxContinuations; i++ {
		if ctx.Err() != nil {
			return accumulated
		}

		var continuation strings.Builder
		_, err := p.LLM.Stream(ctx, llmclient.StreamRequest{
			APIKey:  snap.LLMAPIKey,
			BaseURL: snap.BaseURL,
			Headers: snap.DefaultHeaders,
			Model:   pickModel(snap.LLMModel),
			Messages: []llmclient.Message{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: userPrompt},
				{Role: "assistant", Content: accumulated},
			},
			MaxTokens: continuationMaxTokens,
		}, func(tok string) { continuation.WriteString(tok) })
		if err != nil {
			fail(wrapUpstreamErr(ErrUpstreamAPI, "llm", err))
			return accumulated
		}

		cumulative := continuation.String()
		var suffix string
		if strings.HasPrefix(cumulative, accumulated) {
			suffix = cumulative[len(accumulated):]
		} else {
			suffix = cumulative
		}
		if suffix == "" {
			continue
		}

		accumulated += suffix
		if done, ok := c.AddToken(suffix); ok {
			send(done)
		}
		if endsInSentenceRE.MatchString(accumulated) {
			return accumulated
		}
	}
	return accumulated
}

// pickModel returns model, defaulting to DefaultModel when unset.
func pickModel(model string) string {
	if model == "" {
		return DefaultModel
	}
	return model
}

func wrapUpstreamErr(kind error, provider string, cause error) error {
	status := 0
	url := ""
	msg := cause.Error()
	switch e := cause.(type) {
	case *llmclient.APIError:
		status = e.Status
		msg = e.Message
	case *ttsclient.APIError:
		status = e.Status
		msg = e.Message
		url = e.URL
	}
	if status == 429 {
		kind = ErrUpstreamRateLimit
	}
	return &UpstreamError{Kind: kind, Provider: provider, Status: status, Message: fmt.Sprintf("%v", msg), URL: url}
}
