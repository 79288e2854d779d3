// Package openai provides an agent.LessonWriter backed by the OpenAI Chat
// Completions API.
package openai

import (
	"context"
	"fmt"

	"github.com/hupe1980/coachmesh/agent"
	"github.com/hupe1980/coachmesh/model"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Options configure the OpenAI lesson writer.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
	// RequestOptions are passed to the client (base URL, retries, ...).
	RequestOptions []option.RequestOption
}

// LessonWriter writes micro-lessons with a chat completion.
type LessonWriter struct {
	client *openai.Client
	opts   Options
}

var _ agent.LessonWriter = (*LessonWriter)(nil)

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 256,
	}
}

// NewLessonWriter creates a writer using the official client. Without an
// explicit APIKey the client reads OPENAI_API_KEY.
func NewLessonWriter(optFns ...func(o *Options)) *LessonWriter {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	clientOpts := append([]option.RequestOption(nil), opts.RequestOptions...)
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := openai.NewClient(clientOpts...)
	return &LessonWriter{client: &client, opts: opts}
}

// NewLessonWriterFromClient creates a writer from an existing client.
func NewLessonWriterFromClient(client *openai.Client, optFns ...func(o *Options)) *LessonWriter {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &LessonWriter{client: client, opts: opts}
}

// Info describes the writer.
func (w *LessonWriter) Info() model.Info {
	return model.Info{Name: w.opts.Model, Provider: "openai"}
}

// WriteLesson implements agent.LessonWriter.
func (w *LessonWriter) WriteLesson(ctx context.Context, req agent.LessonRequest) (string, error) {
	resp, err := w.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(model.SystemPrompt),
			openai.UserMessage(model.LessonPrompt(req)),
		},
		Model:               w.opts.Model,
		Temperature:         openai.Float(w.opts.Temperature),
		MaxCompletionTokens: openai.Int(w.opts.MaxCompletionTokens),
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", model.ErrEmptyCompletion
	}
	return model.CleanLesson(resp.Choices[0].Message.Content)
}
