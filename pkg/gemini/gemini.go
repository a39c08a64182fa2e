package gemini

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	defaultModelName   = "gemini-2.5-flash-preview-05-20"
	defaultCallTimeout = 30 * time.Second
	defaultRetryBase   = 900 * time.Millisecond
	maxRetries         = 4
)

type ImagePart struct {
	MIME string
	Data []byte
}

type CallOptions struct {
	Temperature     float32
	MaxOutputTokens int32
}

type IGemini interface {
	GenerateVision(ctx context.Context, img ImagePart, prompt string, opts CallOptions) (string, error)
}

type geminiClient struct {
	modelName   string
	client      *genai.Client
	callTimeout time.Duration
	retryBase   time.Duration

	// generate is swapped out by tests; production wiring points it at
	// generateOnce.
	generate func(ctx context.Context, img ImagePart, prompt string, opts CallOptions) (string, error)
}

func NewGeminiClient() (IGemini, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	modelName := os.Getenv("GEMINI_MODEL_NAME")
	if modelName == "" {
		modelName = defaultModelName
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	g := &geminiClient{
		modelName:   modelName,
		client:      client,
		callTimeout: defaultCallTimeout,
		retryBase:   defaultRetryBase,
	}
	g.generate = g.generateOnce

	return g, nil
}

// GenerateVision performs a single-turn detection call. Transient failures
// are retried up to four additional times with exponential backoff and
// jitter; fatal failures and exhausted retries surface the last ModelError.
// The client never logs; that is the caller's job.
func (g *geminiClient) GenerateVision(ctx context.Context, img ImagePart, prompt string, opts CallOptions) (string, error) {
	var out string

	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
		defer cancel()

		text, err := g.generate(callCtx, img, prompt, opts)
		if err != nil {
			mErr := classify(err)
			if !mErr.Retryable() {
				return backoff.Permanent(mErr)
			}
			return mErr
		}
		out = text
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = g.retryBase
	bo.Multiplier = 2
	bo.RandomizationFactor = 0.2
	bo.MaxInterval = time.Minute
	bo.MaxElapsedTime = 0

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, maxRetries), ctx)); err != nil {
		return "", err
	}

	return out, nil
}

func (g *geminiClient) generateOnce(ctx context.Context, img ImagePart, prompt string, opts CallOptions) (string, error) {
	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(opts.Temperature)
	if opts.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(opts.MaxOutputTokens)
	}
	model.SafetySettings = []*genai.SafetySetting{
		{
			Category:  genai.HarmCategoryDangerousContent,
			Threshold: genai.HarmBlockOnlyHigh,
		},
	}

	mime := img.MIME
	if mime == "" {
		mime = "image/jpeg"
	}

	res, err := model.GenerateContent(ctx, genai.Text(prompt), genai.Blob{MIMEType: mime, Data: img.Data})
	if err != nil {
		return "", err
	}

	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil || len(res.Candidates[0].Content.Parts) == 0 {
		return "", &ModelError{Kind: Fatal, Message: "empty response from model"}
	}

	text, ok := res.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", &ModelError{Kind: Fatal, Message: "unexpected response part from model"}
	}

	return string(text), nil
}

func (g *geminiClient) Close() {
	if g.client != nil {
		g.client.Close()
	}
}
