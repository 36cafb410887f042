package embedding

import (
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrMissingAPIKey is returned when no OpenAI API key is configured.
var ErrMissingAPIKey = errors.New("openai api key not configured")

// Client wraps the OpenAI client used for embedding generation.
type Client struct {
	client *openai.Client
}

// NewClient creates an OpenAI client with the given API key. The key is
// injected rather than read from the environment so configuration stays in
// one place.
func NewClient(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Client{client: &client}, nil
}
