package generation

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/hyperjump/bayan/internal/retry"
	"github.com/hyperjump/bayan/internal/textnorm"
	"go.uber.org/zap"
)

const maxSSELine = 1 << 20

type phase int

const (
	phaseStreaming phase = iota
	phaseFallback
	phaseDone
)

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

// streamState is shared by the attempts of one StreamGenerate call.
type streamState struct {
	phase     phase
	fragments int
	stopped   bool
}

var errConsumerStopped = errors.New("stream consumer stopped")

// StreamGenerate streams the completion for prompt as normalized fragments.
// The sequence is single use. Opening the stream is retried on rate limiting
// and timeouts until the first fragment arrives; after that any failure ends
// the sequence with an error. A stream that ends (with or without [DONE])
// before any fragment falls back once to Generate and yields its result as
// the only fragment. Breaking out of the loop closes the connection and stops
// all retries.
func (c *Client) StreamGenerate(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		body, err := c.requestBody(prompt, true)
		if err != nil {
			yield("", err)
			return
		}
		s := &streamState{phase: phaseStreaming}
		for s.phase != phaseDone {
			switch s.phase {
			case phaseStreaming:
				err := c.cfg.Retry.Do(ctx, func(ctx context.Context) error {
					return c.streamOnce(ctx, body, s, yield)
				}, c.notify("stream"))
				switch {
				case s.stopped:
					return
				case err != nil:
					yield("", err)
					return
				case s.fragments == 0:
					s.phase = phaseFallback
				default:
					s.phase = phaseDone
				}
			case phaseFallback:
				c.logger.Warn("stream produced no content, falling back to a blocking call")
				text, err := c.Generate(ctx, prompt)
				if err != nil {
					yield("", fmt.Errorf("fallback generation: %w", err))
					return
				}
				yield(text, nil)
				s.phase = phaseDone
			}
		}
	}
}

// streamOnce runs one streaming request, yielding fragments as they arrive.
// It returns nil at [DONE] or when the server closes the stream.
func (c *Client) streamOnce(ctx context.Context, body []byte, s *streamState, yield func(string, error) bool) error {
	resp, err := c.do(ctx, c.stream, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	fail := func(err error) error {
		if s.fragments > 0 {
			return retry.Permanent(err)
		}
		return classify(err)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), maxSSELine)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			return nil
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			c.logger.Debug("skipping malformed stream event", zap.Error(err))
			continue
		}
		if chunk.Error != nil {
			return retry.Permanent(fmt.Errorf("generation stream error: %s", chunk.Error.Message))
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			s.fragments++
			if !yield(textnorm.Fragment(choice.Delta.Content), nil) {
				s.stopped = true
				return retry.Permanent(errConsumerStopped)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return fail(fmt.Errorf("read stream: %w", err))
	}
	return nil
}

// StreamAnswerQuestion is the streaming form of AnswerQuestion.
func (c *Client) StreamAnswerQuestion(ctx context.Context, question, retrieved, template string) iter.Seq2[string, error] {
	return c.StreamGenerate(ctx, FillTemplate(template, retrieved, question))
}
