package ollama

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lukaszchomatek/aji-vision-demo/internal/backend"
	"github.com/lukaszchomatek/aji-vision-demo/internal/logger"
	"github.com/lukaszchomatek/aji-vision-demo/internal/model"
	"github.com/lukaszchomatek/aji-vision-demo/internal/pipeline"
)

const unloadTimeout = 10 * time.Second

// Loader builds pipelines backed by a model served by Ollama.
type Loader struct {
	client *Client
	config Config
}

func NewLoader(client *Client, config Config) *Loader {
	return &Loader{client: client, config: config}
}

// numGPU maps a backend to the number of layers offloaded to the GPU. -1 offloads all of them.
func numGPU(b backend.Backend) int {
	if b == backend.GPU {
		return -1
	}
	return 0
}

func (l *Loader) Load(ctx context.Context, b backend.Backend, progress func(pipeline.Progress)) (pipeline.Pipeline, error) {
	if progress == nil {
		progress = func(pipeline.Progress) {}
	}
	if l.config.Pull {
		err := l.client.Pull(ctx, l.config.Model, func(p PullProgress) {
			if p.Total > 0 {
				progress(pipeline.Progress{
					Status:   pipeline.ProgressStatusProgress,
					Fraction: float64(p.Completed) / float64(p.Total),
				})
			}
		})
		if err != nil {
			return nil, fmt.Errorf("failed to pull model %s: %w", l.config.Model, err)
		}
	}

	_, err := l.client.Generate(ctx, GenerateRequest{
		Model:     l.config.Model,
		KeepAlive: l.config.KeepAlive,
		Options:   map[string]interface{}{"num_gpu": numGPU(b)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s on %s: %w", l.config.Model, b, err)
	}
	progress(pipeline.Progress{Status: pipeline.ProgressStatusDone, Fraction: 1})
	logger.Infof("model %s loaded on %s", l.config.Model, b)

	return &captioner{client: l.client, config: l.config, backend: b}, nil
}

type captioner struct {
	client  *Client
	config  Config
	backend backend.Backend
}

func (c *captioner) Caption(ctx context.Context, image []byte, options model.Options) (string, error) {
	response, err := c.client.Generate(ctx, GenerateRequest{
		Model:     c.config.Model,
		Prompt:    c.config.Prompt,
		Images:    [][]byte{image},
		KeepAlive: c.config.KeepAlive,
		Options: map[string]interface{}{
			"num_predict": options.MaxNewTokens,
			"temperature": options.Temperature,
			"num_gpu":     numGPU(c.backend),
		},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response), nil
}

func (c *captioner) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), unloadTimeout)
	defer cancel()
	if err := c.client.Unload(ctx, c.config.Model); err != nil {
		return fmt.Errorf("failed to unload model %s: %w", c.config.Model, err)
	}
	return nil
}
