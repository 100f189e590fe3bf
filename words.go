package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// WordPair is one round's worth of secret words.
type WordPair struct {
	Common   string `json:"common"`
	Impostor string `json:"impostor"`
}

// fallbackWordPair keeps a round playable when the collaborator fails.
var fallbackWordPair = WordPair{
	Common:   "Error (AI Failed)",
	Impostor: "Failure (Try Again)",
}

// WordSource produces a word pair for a round. Implementations may fail;
// callers substitute fallbackWordPair so the round can still proceed.
type WordSource interface {
	Generate(ctx context.Context, language string, similarity WordSimilarity, usedWords []string) (WordPair, error)
}

// geminiSource asks a Gemini-style generateContent endpoint for a pair,
// constrained to a JSON response schema.
type geminiSource struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func newWordSource(cfg *Config) WordSource {
	return &geminiSource{
		baseURL: strings.TrimSuffix(cfg.wordAPIURL, "/"),
		apiKey:  cfg.wordAPIKey,
		model:   cfg.wordModel,
		client:  &http.Client{},
	}
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMimeType string          `json:"responseMimeType,omitempty"`
	ResponseSchema   json.RawMessage `json:"responseSchema,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

var wordPairSchema = json.RawMessage(`{
	"type": "OBJECT",
	"properties": {
		"common": {"type": "STRING", "description": "The word for the majority of players"},
		"impostor": {"type": "STRING", "description": "The word for the impostor(s)"}
	},
	"required": ["common", "impostor"]
}`)

func (g *geminiSource) Generate(ctx context.Context, language string, similarity WordSimilarity, usedWords []string) (WordPair, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: wordPairPrompt(language, similarity, usedWords)}}}},
		GenerationConfig: &generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   wordPairSchema,
		},
	})
	if err != nil {
		return WordPair{}, err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return WordPair{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("x-goog-api-key", g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return WordPair{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return WordPair{}, fmt.Errorf("word generation: unexpected status %s", resp.Status)
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return WordPair{}, fmt.Errorf("word generation: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return WordPair{}, errors.New("word generation: empty response")
	}

	var pair WordPair
	if err := json.Unmarshal([]byte(parsed.Candidates[0].Content.Parts[0].Text), &pair); err != nil {
		return WordPair{}, fmt.Errorf("word generation: %w", err)
	}
	if pair.Common == "" || pair.Impostor == "" {
		return WordPair{}, errors.New("word generation: incomplete pair")
	}

	return pair, nil
}

func wordPairPrompt(language string, similarity WordSimilarity, usedWords []string) string {
	var condition string
	if similarity == SimilarityRandom {
		condition = `The words must be nouns or verbs but completely unrelated to each other. For example "Apple" and "Car", or "Running" and "Swimming". They should have no obvious semantic connection.`
	} else {
		condition = `The words must be semantically very similar but distinct enough to cause confusion during description (e.g., "Apple" vs "Pear", "School" vs "University", "Running" vs "Walking").`
	}

	var b strings.Builder
	fmt.Fprintf(&b, `Generate a pair of nouns or verbs for the social deduction game "Undercover" (or Spyfall) in %s.
The "common" word is for the majority, and the "impostor" word is for the spy.
%s
`, language, condition)
	if len(usedWords) > 0 {
		fmt.Fprintf(&b, "Avoid words already used in this session: %s.\n", strings.Join(usedWords, ", "))
	}
	b.WriteString("Return ONLY valid JSON.")
	return b.String()
}
