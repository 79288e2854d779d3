// Package anthropic provides an agent.LessonWriter backed by the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/coachmesh/agent"
	"github.com/hupe1980/coachmesh/model"
)

// Options configures the Anthropic lesson writer (temperature, model id,
// max tokens, API key).
type Options struct {
	Model          anthropic.Model
	Temperature    float64
	MaxTokens      int64
	APIKey         string
	RequestOptions []option.RequestOption
}

// LessonWriter writes micro-lessons with a single Messages call.
type LessonWriter struct {
	client *anthropic.Client
	opts   Options
}

var _ agent.LessonWriter = (*LessonWriter)(nil)

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   256,
	}
}

// NewLessonWriter creates a writer using the official client.
func NewLessonWriter(optFns ...func(o *Options)) *LessonWriter {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	clientOpts := append([]option.RequestOption(nil), opts.RequestOptions...)
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &LessonWriter{client: &client, opts: opts}
}

// NewLessonWriterFromClient creates a writer from an existing client.
func NewLessonWriterFromClient(client *anthropic.Client, optFns ...func(o *Options)) *LessonWriter {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &LessonWriter{client: client, opts: opts}
}

// Info describes the writer.
func (w *LessonWriter) Info() model.Info {
	return model.Info{Name: string(w.opts.Model), Provider: "anthropic"}
}

// WriteLesson implements agent.LessonWriter.
func (w *LessonWriter) WriteLesson(ctx context.Context, req agent.LessonRequest) (string, error) {
	resp, err := w.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       w.opts.Model,
		MaxTokens:   w.opts.MaxTokens,
		Temperature: anthropic.Float(w.opts.Temperature),
		System:      []anthropic.TextBlockParam{{Text: model.SystemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(model.LessonPrompt(req))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.AsText().Text)
		}
	}
	return model.CleanLesson(b.String())
}
