package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type Config struct {
	URL       string `mapstructure:"url"`
	Model     string `mapstructure:"model"`
	Prompt    string `mapstructure:"prompt"`
	Pull      bool   `mapstructure:"pull"`
	KeepAlive string `mapstructure:"keepAlive"`
}

func DefaultConfig() Config {
	return Config{
		URL:       "http://localhost:11434",
		Model:     "moondream",
		Prompt:    "Describe this image in one sentence.",
		Pull:      true,
		KeepAlive: "10m",
	}
}

// Client talks to a local Ollama daemon.
type Client struct {
	url        string
	httpClient *http.Client
}

func NewClient(url string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{url: strings.TrimRight(url, "/"), httpClient: httpClient}
}

type GenerateRequest struct {
	Model     string
	Prompt    string
	Images    [][]byte
	KeepAlive string
	Options   map[string]interface{}
}

// PullProgress is one line of the streamed pull response.
type PullProgress struct {
	Status    string `json:"status"`
	Digest    string `json:"digest"`
	Total     int64  `json:"total"`
	Completed int64  `json:"completed"`
	Error     string `json:"error"`
}

func (c *Client) post(ctx context.Context, path string, body map[string]interface{}) (*http.Response, error) {
	requestBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url+path, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(body))
	}
	return resp, nil
}

// Generate runs a non-streamed completion. An empty prompt only loads the model.
func (c *Client) Generate(ctx context.Context, request GenerateRequest) (string, error) {
	body := map[string]interface{}{
		"model":  request.Model,
		"prompt": request.Prompt,
		"stream": false,
	}
	if len(request.Images) > 0 {
		images := make([]string, 0, len(request.Images))
		for _, image := range request.Images {
			images = append(images, base64.StdEncoding.EncodeToString(image))
		}
		body["images"] = images
	}
	if request.KeepAlive != "" {
		body["keep_alive"] = request.KeepAlive
	}
	if len(request.Options) > 0 {
		body["options"] = request.Options
	}

	resp, err := c.post(ctx, "/api/generate", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var response struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	return response.Response, nil
}

// Pull downloads model, calling progress for every streamed status line.
func (c *Client) Pull(ctx context.Context, model string, progress func(PullProgress)) error {
	resp, err := c.post(ctx, "/api/pull", map[string]interface{}{
		"model":  model,
		"stream": true,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var p PullProgress
		if err := json.Unmarshal(line, &p); err != nil {
			return fmt.Errorf("failed to decode pull progress: %w", err)
		}
		if p.Error != "" {
			return fmt.Errorf("pull %s: %s", model, p.Error)
		}
		if progress != nil {
			progress(p)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read pull progress: %w", err)
	}
	return nil
}

// Unload asks the daemon to release model right away.
func (c *Client) Unload(ctx context.Context, model string) error {
	resp, err := c.post(ctx, "/api/generate", map[string]interface{}{
		"model":      model,
		"keep_alive": 0,
	})
	if err != nil {
		return err
	}
	return resp.Body.Close()
}
