package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"plan-tracker/internal/logger"
	"plan-tracker/internal/model"
)

// NutritionClassifier estimates macros from a free-text meal description.
type NutritionClassifier interface {
	Classify(ctx context.Context, text string) (model.Nutrition, error)
}

// NutritionClient calls an external classifier over HTTP.
type NutritionClient struct {
	baseURL string
	http    *http.Client
}

func NewNutritionClient(baseURL string, timeout time.Duration) *NutritionClient {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &NutritionClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type nutritionResponse struct {
	Calories *int     `json:"calories"`
	Protein  *float64 `json:"protein"`
	Carbs    *float64 `json:"carbs"`
	Fats     *float64 `json:"fats"`
}

func (c *NutritionClient) Classify(ctx context.Context, text string) (model.Nutrition, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return model.Nutrition{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return model.Nutrition{}, fmt.Errorf("build nutrition request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return model.Nutrition{}, fmt.Errorf("nutrition request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return model.Nutrition{}, fmt.Errorf("nutrition classifier returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out nutritionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.Nutrition{}, fmt.Errorf("decode nutrition response: %w", err)
	}
	return model.Nutrition{
		Calories: out.Calories,
		Protein:  out.Protein,
		Carbs:    out.Carbs,
		Fats:     out.Fats,
	}, nil
}

// enrich asks the classifier for macros and returns empty nutrition on any
// failure. Task creation never waits on or fails because of the classifier.
func enrich(ctx context.Context, classifier NutritionClassifier, text string) model.Nutrition {
	text = strings.TrimSpace(text)
	if classifier == nil || text == "" {
		return model.Nutrition{}
	}
	n, err := classifier.Classify(ctx, text)
	if err != nil {
		logger.Warn("nutrition enrichment skipped", "err", err)
		return model.Nutrition{}
	}
	return n
}
