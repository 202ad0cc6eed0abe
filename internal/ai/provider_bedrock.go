package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const (
	defaultBedrockModel  = "anthropic.claude-3-haiku-20240307-v1:0"
	bedrockAnthropicVers = "bedrock-2023-05-31"
)

// BedrockInvoker is the subset of the Bedrock runtime client used by BedrockProvider.
type BedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockProvider implements Provider for Anthropic models hosted on Amazon Bedrock.
type BedrockProvider struct {
	client  BedrockInvoker
	modelID string
}

// NewBedrockProvider loads the default AWS configuration for region and
// returns a provider for modelID (empty selects Claude 3 Haiku).
func NewBedrockProvider(ctx context.Context, region, modelID string) (*BedrockProvider, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewBedrockProviderWithClient(bedrockruntime.NewFromConfig(cfg), modelID), nil
}

// NewBedrockProviderWithClient wraps an existing Bedrock runtime client.
func NewBedrockProviderWithClient(client BedrockInvoker, modelID string) *BedrockProvider {
	if modelID == "" {
		modelID = defaultBedrockModel
	}
	return &BedrockProvider{client: client, modelID: modelID}
}

func (p *BedrockProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	body := buildAnthropicMessages(req)
	body.AnthropicVersion = bedrockAnthropicVers

	payload, err := json.Marshal(body)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	modelID := req.Model
	if modelID == "" {
		modelID = p.modelID
	}

	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		Body:        payload,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("bedrock invoke model: %w", err)
	}

	resp, err := parseAnthropicReply(out.Body, req.JSON)
	if err != nil {
		return CompletionResponse{}, err
	}
	if resp.Model == "" {
		resp.Model = modelID
	}
	return resp, nil
}

func (p *BedrockProvider) Models() []ModelInfo {
	return []ModelInfo{
		{ID: p.modelID, Name: "Bedrock " + p.modelID, MaxTokens: 200000, Description: "Anthropic on Amazon Bedrock"},
	}
}

func (p *BedrockProvider) HealthCheck(ctx context.Context) error {
	_, err := p.Complete(ctx, CompletionRequest{
		Messages:  []Message{{Role: "user", Content: "ping"}},
		MaxTokens: 1,
		Task:      TaskHealth,
	})
	return err
}
