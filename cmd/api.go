package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// buildAPIURL joins the configured server origin with an API endpoint path.
func buildAPIURL(ctx *SessionContext, endpoint string) (string, error) {
	base := strings.TrimSuffix(ctx.ServerURL, "/")
	if base == "" {
		return "", fmt.Errorf("server URL is required to build API URL")
	}
	return base + "/api/" + strings.TrimPrefix(endpoint, "/"), nil
}

// ChatRequest is the JSON payload for the chat endpoint.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Language  string `json:"language"`
}

// ChatResponse is the server's answer to a chat request.
type ChatResponse struct {
	Success   bool   `json:"success"`
	Response  string `json:"response"`
	SessionID string `json:"session_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// sendChatRequest posts one message to the chat endpoint and returns the
// assistant's reply. Blank input is rejected before any network call.
func sendChatRequest(message string, ctx *SessionContext) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", fmt.Errorf("message must not be empty")
	}
	if ctx == nil {
		ctx = newDefaultContextFromGlobals()
	}

	apiURL, err := buildAPIURL(ctx, "chat")
	if err != nil {
		return "", fmt.Errorf("failed to build chat API URL: %w", err)
	}

	payload := ChatRequest{
		Message:   message,
		SessionID: ctx.SessionID,
		Language:  ctx.Language,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest("POST", apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ctx.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("server returned error %d: %s", resp.StatusCode, prettyServerError(resp, body))
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if !chatResp.Success {
		if chatResp.Error != "" {
			return "", fmt.Errorf("chat failed: %s", chatResp.Error)
		}
		return "", fmt.Errorf("chat failed")
	}

	if err := writeSessionRecord(ctx.SessionID); err != nil {
		logDebug(fmt.Sprintf("failed to write session record: %v", err))
	}
	return chatResp.Response, nil
}

// AnalysisPayload holds the analysis text, which the server sends either as
// a plain string or wrapped in {"analysis": "..."}.
type AnalysisPayload struct {
	Text string
}

func (a *AnalysisPayload) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		a.Text = s
		return nil
	}
	var wrapped struct {
		Analysis string `json:"analysis"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	a.Text = wrapped.Analysis
	return nil
}

// WeatherInfo is the optional weather context returned with crop analyses.
type WeatherInfo struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Description string  `json:"description"`
	WindSpeed   float64 `json:"wind_speed"`
	Note        string  `json:"note,omitempty"`
}

// AnalyzeResponse is the server's answer to a crop analysis upload.
type AnalyzeResponse struct {
	Success  bool            `json:"success"`
	Analysis AnalysisPayload `json:"analysis"`
	Weather  *WeatherInfo    `json:"weather,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// CropAnalysis is the flow-level result handed to rendering.
type CropAnalysis struct {
	Text    string
	Weather *WeatherInfo
}

const defaultLocation = "Kenya"

// analyzeCrop uploads an image to the analysis endpoint as multipart form
// data with the location and language fields. Non-image files are rejected
// before any bytes leave the machine.
func analyzeCrop(imagePath, loc string, ctx *SessionContext) (*CropAnalysis, error) {
	if ctx == nil {
		ctx = newDefaultContextFromGlobals()
	}
	if _, ok := detectImageType(imagePath); !ok {
		return nil, fmt.Errorf("'%s' does not look like an image file", filepath.Base(imagePath))
	}

	loc = strings.TrimSpace(loc)
	if loc == "" {
		loc = ctx.Location
	}
	if loc == "" {
		loc = defaultLocation
	}

	file, err := os.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", filepath.Base(imagePath))
	if err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if err := writer.WriteField("location", loc); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if err := writer.WriteField("language", ctx.Language); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize upload: %w", err)
	}

	apiURL, err := buildAPIURL(ctx, "analyze-crop")
	if err != nil {
		return nil, fmt.Errorf("failed to build analysis API URL: %w", err)
	}

	req, err := http.NewRequest("POST", apiURL, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := ctx.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned error %d: %s", resp.StatusCode, prettyServerError(resp, body))
	}

	var analyzeResp AnalyzeResponse
	if err := json.Unmarshal(body, &analyzeResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if !analyzeResp.Success {
		if analyzeResp.Error != "" {
			return nil, fmt.Errorf("analysis failed: %s", analyzeResp.Error)
		}
		return nil, fmt.Errorf("analysis failed")
	}

	return &CropAnalysis{Text: analyzeResp.Analysis.Text, Weather: analyzeResp.Weather}, nil
}

// TipsPayload holds farming tips, which the server sends either as a single
// text blob or as a mapping of section name to tip text or tip list.
type TipsPayload struct {
	Text     string
	Sections map[string][]string
}

func (t *TipsPayload) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		t.Text = s
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.Sections = make(map[string][]string, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case string:
			t.Sections[key] = []string{v}
		case []any:
			items := make([]string, 0, len(v))
			for _, item := range v {
				if s, ok := item.(string); ok {
					items = append(items, s)
				} else {
					items = append(items, fmt.Sprintf("%v", item))
				}
			}
			t.Sections[key] = items
		default:
			t.Sections[key] = []string{fmt.Sprintf("%v", v)}
		}
	}
	return nil
}

// TipsResponse is the server's answer to a farming tips query.
type TipsResponse struct {
	Success bool        `json:"success"`
	Tips    TipsPayload `json:"tips"`
	Crop    string      `json:"crop,omitempty"`
	Season  string      `json:"season,omitempty"`
	Error   string      `json:"error,omitempty"`
}

const (
	defaultCrop   = "maize"
	defaultSeason = "current"
)

// fetchFarmingTips queries the tips endpoint with crop, season and language
// as query parameters.
func fetchFarmingTips(crop, season string, ctx *SessionContext) (*TipsPayload, error) {
	if ctx == nil {
		ctx = newDefaultContextFromGlobals()
	}
	if strings.TrimSpace(crop) == "" {
		crop = defaultCrop
	}
	if strings.TrimSpace(season) == "" {
		season = defaultSeason
	}

	apiURL, err := buildAPIURL(ctx, "farming-tips")
	if err != nil {
		return nil, fmt.Errorf("failed to build tips API URL: %w", err)
	}
	query := url.Values{}
	query.Set("crop", crop)
	query.Set("season", season)
	query.Set("language", ctx.Language)

	req, err := http.NewRequest("GET", apiURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := ctx.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned error %d: %s", resp.StatusCode, prettyServerError(resp, body))
	}

	var tipsResp TipsResponse
	if err := json.Unmarshal(body, &tipsResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if !tipsResp.Success {
		if tipsResp.Error != "" {
			return nil, fmt.Errorf("tips request failed: %s", tipsResp.Error)
		}
		return nil, fmt.Errorf("tips request failed")
	}

	return &tipsResp.Tips, nil
}

// MarketPrice is one crop's current market quote.
type MarketPrice struct {
	Price float64 `json:"price"`
	Unit  string  `json:"unit"`
	Trend string  `json:"trend"`
}

// MarketPricesResponse is the server's answer to a market prices query.
type MarketPricesResponse struct {
	Success     bool                   `json:"success"`
	Prices      map[string]MarketPrice `json:"prices"`
	LastUpdated string                 `json:"last_updated"`
	Error       string                 `json:"error,omitempty"`
}

// fetchMarketPrices queries current market prices for the known crops.
func fetchMarketPrices(ctx *SessionContext) (*MarketPricesResponse, error) {
	if ctx == nil {
		ctx = newDefaultContextFromGlobals()
	}

	apiURL, err := buildAPIURL(ctx, "market-prices")
	if err != nil {
		return nil, fmt.Errorf("failed to build prices API URL: %w", err)
	}

	req, err := http.NewRequest("GET", apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := ctx.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned error %d: %s", resp.StatusCode, prettyServerError(resp, body))
	}

	var pricesResp MarketPricesResponse
	if err := json.Unmarshal(body, &pricesResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if !pricesResp.Success {
		if pricesResp.Error != "" {
			return nil, fmt.Errorf("prices request failed: %s", pricesResp.Error)
		}
		return nil, fmt.Errorf("prices request failed")
	}
	return &pricesResp, nil
}

// HealthPayload is the server health probe response.
type HealthPayload struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// checkServerHealth probes the health endpoint.
func checkServerHealth(ctx *SessionContext) (*HealthPayload, error) {
	if ctx == nil {
		ctx = newDefaultContextFromGlobals()
	}

	apiURL, err := buildAPIURL(ctx, "health")
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest("GET", apiURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := ctx.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned error %d: %s", resp.StatusCode, prettyServerError(resp, body))
	}

	var health HealthPayload
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, fmt.Errorf("failed to parse health response: %w", err)
	}
	return &health, nil
}
