package model

import "github.com/lukaszchomatek/aji-vision-demo/internal/backend"

type GenerationRequest struct {
	Options Options `json:"options"`

	BackendPreference backend.Preference `json:"backendPreference"`

	TwoPass bool `json:"twoPass"`

	StoreThumbnail bool `json:"storeThumbnail"`
}

type GenerationResponse struct {
	Status string `json:"status"` // completed, failed

	Caption string `json:"caption"`

	TimeLabel string `json:"timeLabel,omitempty"`

	Backend backend.Backend `json:"backend,omitempty"`

	History []HistoryItem `json:"history,omitempty"`
}

type HistoryItem struct {
	ID string `json:"id" yaml:"id"`

	Caption string `json:"caption" yaml:"caption"`

	TimeLabel string `json:"timeLabel" yaml:"timeLabel"`

	Timestamp string `json:"timestamp" yaml:"timestamp"`

	Thumbnail string `json:"thumbnail,omitempty" yaml:"thumbnail,omitempty"`
}

type ImagePreview struct {
	Name string `json:"name"`

	Width int `json:"width"`

	Height int `json:"height"`

	ResizedWidth int `json:"resizedWidth"`

	ResizedHeight int `json:"resizedHeight"`

	Resized bool `json:"resized"`

	SizeKB int `json:"sizeKB"`
}

type StateResponse struct {
	HasImage bool `json:"hasImage"`

	Busy bool `json:"busy"`

	Caption string `json:"caption"`

	TimeLabel string `json:"timeLabel"`

	Status string `json:"status"`

	Progress float64 `json:"progress"`

	BackendHint string `json:"backendHint"`

	BackendUsed backend.Backend `json:"backendUsed,omitempty"`
}

type FailedHTTPResponse struct {
	Status string `json:"status"`

	Message string `json:"message"`

	Caption string `json:"caption,omitempty"`
}
