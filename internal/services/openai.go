package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"promptday-backend/internal/config"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ImageGenerator produces an image reference for a prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// SimilarityScorer rates how close a generated image is to the target,
// 0 to 100.
type SimilarityScorer interface {
	ScoreCloseness(ctx context.Context, targetURL, generatedURL string) (int, error)
}

const scoringInstruction = "Compare these two images and provide a closeness score between 0 and 100, " +
	"where 100 is a perfect match and 0 is no similarity. Consider content(30%), color palette(20%), " +
	"texture(15%), structural similarity(15%), semantic similarity(10%), and edge matching(10%). " +
	"Return only the numeric score without any additional text or explanation."

// OpenAIService backs both external collaborators: DALL-E 3 for generation
// and a GPT-4o vision completion for the closeness score.
type OpenAIService struct {
	client *openai.Client
}

func NewOpenAIService(cfg *config.Config) *OpenAIService {
	client := openai.NewClient(
		option.WithAPIKey(cfg.OpenAIKey),
	)
	return &OpenAIService{client: client}
}

func (s *OpenAIService) GenerateImage(ctx context.Context, prompt string) (string, error) {
	resp, err := s.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Model:  openai.F(openai.ImageModelDallE3),
		Prompt: openai.F(prompt),
		N:      openai.F(int64(1)),
		Size:   openai.F(openai.ImageGenerateParamsSize1024x1024),
	})
	if err != nil {
		return "", fmt.Errorf("image generation request failed: %v", err)
	}

	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", fmt.Errorf("image generation returned no image")
	}

	return resp.Data[0].URL, nil
}

func (s *OpenAIService) ScoreCloseness(ctx context.Context, targetURL, generatedURL string) (int, error) {
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.F(openai.ChatModelGPT4o),
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You are an AI trained to compare images and provide a closeness score between 0 and 100."),
			openai.UserMessageParts(
				openai.TextPart(scoringInstruction),
				openai.ImagePart(targetURL),
				openai.ImagePart(generatedURL),
			),
		}),
		MaxTokens: openai.F(int64(300)),
	})
	if err != nil {
		return 0, fmt.Errorf("scoring request failed: %v", err)
	}

	if len(resp.Choices) == 0 {
		return 0, fmt.Errorf("scoring returned no choices")
	}

	score, err := strconv.Atoi(strings.TrimSpace(resp.Choices[0].Message.Content))
	if err != nil {
		return 0, fmt.Errorf("scoring returned non-numeric content %q: %v", resp.Choices[0].Message.Content, err)
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return score, nil
}
