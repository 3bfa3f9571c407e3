package generator

import (
	"context"
	"errors"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// generatedEntry mirrors the queue entry without the bookkeeping fields,
// so every property is required in the strict schema.
type generatedEntry struct {
	TargetWord                string `json:"targetWord" jsonschema_description:"The English word being taught, lower case"`
	ErrorMessage              string `json:"errorMessage" jsonschema_description:"A realistic English error message containing the word"`
	MessageTranslation        string `json:"messageTranslation"`
	GeneralMeaning            string `json:"generalMeaning"`
	GeneralExample            string `json:"generalExample"`
	TechMeaning               string `json:"techMeaning"`
	Explanation               string `json:"explanation"`
	UsageContext              string `json:"usageContext"`
	UsageExample              string `json:"usageExample"`
	UsageExampleTranslation   string `json:"usageExampleTranslation"`
	UsagePunchline            string `json:"usagePunchline"`
	UsagePunchlineTranslation string `json:"usagePunchlineTranslation"`
}

type entryBatch struct {
	Errors []generatedEntry `json:"errors" jsonschema_description:"New vocabulary entries"`
}

// GenerateSchema reflects T into an inline JSON schema for structured outputs.
func GenerateSchema[T any]() interface{} {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

var entryBatchSchema = GenerateSchema[entryBatch]()

// OpenAICompleter talks to any OpenAI-compatible chat endpoint. The default
// base URL is Gemini's compatibility layer.
type OpenAICompleter struct {
	client openai.Client
	model  string
}

func NewOpenAICompleter(apiKey, baseURL, model string, opts ...option.RequestOption) (*OpenAICompleter, error) {
	if apiKey == "" {
		return nil, errors.New("llm api key is not configured (GEMINI_API_KEY)")
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	reqOpts = append(reqOpts, opts...)
	return &OpenAICompleter{
		client: openai.NewClient(reqOpts...),
		model:  model,
	}, nil
}

func (c *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "error_entries",
		Description: openai.String("New vocabulary entries built around error messages"),
		Schema:      entryBatchSchema,
		Strict:      openai.Bool(true),
	}

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModel(c.model),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: schemaParam,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm api error: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("no response from llm")
	}
	content := completion.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("llm returned empty response, finish reason: %s", completion.Choices[0].FinishReason)
	}
	return content, nil
}
