package gemini

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"

	"omnisum/internal/models"
)

func TestMissingKeySurfacesAtFirstUse(t *testing.T) {
	c := New(Settings{VideoModel: "m", AudioModel: "m"}, nil)
	if _, err := c.Generate(context.Background(), "prompt"); !errors.Is(err, models.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential from Generate, got %v", err)
	}
	if _, err := c.SummarizeFile(context.Background(), "/nonexistent.wav", "audio/wav", AudioPrompt); !errors.Is(err, models.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential from SummarizeFile, got %v", err)
	}
}

func TestResponseTextJoinsParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "- one\n"}, {Text: "- two"}}},
		}},
	}
	got, err := responseText(resp)
	if err != nil {
		t.Fatalf("responseText: %v", err)
	}
	if got != "- one\n- two" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestResponseTextEmpty(t *testing.T) {
	if _, err := responseText(&genai.GenerateContentResponse{}); !errors.Is(err, models.ErrExternalService) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if _, err := responseText(nil); err == nil {
		t.Fatalf("expected error for nil response")
	}
}
