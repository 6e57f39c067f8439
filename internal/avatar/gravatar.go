// Package avatar resolves a default avatar for an email address.
package avatar

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const gravatarBaseURL = "https://www.gravatar.com/avatar/"

// Resolver returns an avatar URL for an email, or an error when none is available.
type Resolver interface {
	Lookup(ctx context.Context, email string) (string, error)
}

// Gravatar resolves avatars through the Gravatar service.
type Gravatar struct {
	client  *http.Client
	baseURL string
}

// NewGravatar creates a Gravatar resolver. A nil client gets a 5 second timeout.
func NewGravatar(client *http.Client) *Gravatar {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Gravatar{client: client, baseURL: gravatarBaseURL}
}

// ImageURL builds the Gravatar image URL for email without contacting the service.
func (g *Gravatar) ImageURL(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return g.baseURL + hex.EncodeToString(sum[:])
}

// Lookup checks that a Gravatar exists for email and returns its URL.
func (g *Gravatar) Lookup(ctx context.Context, email string) (string, error) {
	imageURL := g.ImageURL(email)

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, imageURL+"?d=404", nil)
	if err != nil {
		return "", err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gravatar lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gravatar lookup: unexpected status %d", resp.StatusCode)
	}
	return imageURL, nil
}
