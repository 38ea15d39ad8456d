package httpclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/noah-isme/syllabus-portal/internal/models"
)

// springPage is the list shape returned by the backends.
type springPage[T any] struct {
	Content       []T `json:"content"`
	Number        int `json:"number"`
	Size          int `json:"size"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
}

// DecodePage normalizes a backend list payload. Besides the page shape it
// accepts a bare JSON array and an already normalized page.
func DecodePage[T any](raw json.RawMessage) (*models.Page[T], error) {
	if len(raw) == 0 {
		return &models.Page[T]{Items: []T{}}, nil
	}
	if raw[0] == '[' {
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		return &models.Page[T]{Items: nonNil(items), Size: len(items), TotalItems: len(items), TotalPages: 1}, nil
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	if _, ok := keys["items"]; ok {
		var page models.Page[T]
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, fmt.Errorf("decode page: %w", err)
		}
		page.Items = nonNil(page.Items)
		return &page, nil
	}

	var sp springPage[T]
	if err := json.Unmarshal(raw, &sp); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	return &models.Page[T]{
		Items:      nonNil(sp.Content),
		Page:       sp.Number,
		Size:       sp.Size,
		TotalItems: sp.TotalElements,
		TotalPages: sp.TotalPages,
	}, nil
}

// GetPage performs the request and normalizes the list response.
func GetPage[T any](ctx context.Context, c *Client, req Request) (*models.Page[T], error) {
	var raw json.RawMessage
	if err := c.Do(ctx, req, &raw); err != nil {
		return nil, err
	}
	return DecodePage[T](raw)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
