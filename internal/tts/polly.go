package tts

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
)

// DefaultVoice is used when a character has no voice configured.
const DefaultVoice = "Joanna"

// PollyAPI is the subset of the Polly client used by Polly.
type PollyAPI interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// Polly synthesizes speech with Amazon Polly's neural engine.
type Polly struct {
	client PollyAPI
	engine types.Engine
}

// NewPolly loads the default AWS configuration for region.
func NewPolly(ctx context.Context, region string) (*Polly, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewPollyWithClient(polly.NewFromConfig(cfg)), nil
}

// NewPollyWithClient wraps an existing Polly client.
func NewPollyWithClient(client PollyAPI) *Polly {
	return &Polly{client: client, engine: types.EngineNeural}
}

func (p *Polly) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	if voice == "" {
		voice = DefaultVoice
	}

	out, err := p.client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Text:         aws.String(text),
		VoiceId:      types.VoiceId(voice),
		OutputFormat: types.OutputFormatMp3,
		Engine:       p.engine,
		TextType:     types.TextTypeText,
	})
	if err != nil {
		return nil, fmt.Errorf("polly synthesize speech: %w", err)
	}
	defer out.AudioStream.Close()

	audio, err := io.ReadAll(out.AudioStream)
	if err != nil {
		return nil, fmt.Errorf("read polly audio: %w", err)
	}
	return audio, nil
}
