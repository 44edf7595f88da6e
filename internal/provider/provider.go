// Package provider implements the model-call collaborator against the
// Gemini generateContent REST API, including search grounding and
// citation extraction.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/tkoide/kwprobe/internal/analysis"
	"github.com/tkoide/kwprobe/internal/config"
	"github.com/tkoide/kwprobe/internal/errors"
)

// Client calls the Gemini generateContent endpoint. It implements
// analysis.Caller and is safe for concurrent use.
type Client struct {
	endpoint    string
	model       string
	apiKey      string
	temperature float64
	httpClient  *http.Client
	log         zerolog.Logger
}

// New builds a client from config. The API key is read from the
// environment variable named by cfg.APIKeyEnv.
func New(cfg *config.Config, log zerolog.Logger) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("environment variable %s is not set", cfg.APIKeyEnv))
	}
	return &Client{
		endpoint:    cfg.Endpoint,
		model:       cfg.Model,
		apiKey:      key,
		temperature: cfg.Temperature,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeoutSecs) * time.Second,
		},
		log: log,
	}, nil
}

// Request/response shapes, reduced to the fields kwprobe reads.

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	Tools             []tool            `json:"tools,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type tool struct {
	GoogleSearch *struct{} `json:"google_search,omitempty"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Candidates []struct {
		Content           content            `json:"content"`
		GroundingMetadata *groundingMetadata `json:"groundingMetadata"`
	} `json:"candidates"`
	Error *apiError `json:"error"`
}

type groundingMetadata struct {
	GroundingChunks []struct {
		Web *struct {
			URI   string `json:"uri"`
			Title string `json:"title"`
		} `json:"web"`
	} `json:"groundingChunks"`
	GroundingSupports []groundingSupport `json:"groundingSupports"`
}

type groundingSupport struct {
	Segment struct {
		EndIndex int `json:"endIndex"`
	} `json:"segment"`
	GroundingChunkIndices []int `json:"groundingChunkIndices"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Call sends one generateContent request. contextText, when non-empty,
// rides as the system instruction; useSearch attaches the google_search
// grounding tool.
func (c *Client) Call(ctx context.Context, prompt, contextText string, useSearch bool) (*analysis.ModelResult, error) {
	reqBody := generateRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{Temperature: c.temperature},
	}
	if contextText != "" {
		reqBody.SystemInstruction = &content{Parts: []part{{Text: contextText}}}
	}
	if useSearch {
		reqBody.Tools = []tool{{GoogleSearch: &struct{}{}}}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.endpoint, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.NewProvider(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewProvider(err)
	}

	var decoded generateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, errors.NewProvider(fmt.Errorf("status %d", resp.StatusCode))
		}
		return nil, errors.NewProvider(err)
	}
	if resp.StatusCode != http.StatusOK {
		if decoded.Error != nil && decoded.Error.Message != "" {
			return nil, errors.NewProvider(fmt.Errorf("status %d: %s", resp.StatusCode, decoded.Error.Message))
		}
		return nil, errors.NewProvider(fmt.Errorf("status %d", resp.StatusCode))
	}
	if len(decoded.Candidates) == 0 {
		return nil, errors.NewProvider(fmt.Errorf("empty response from model"))
	}

	cand := decoded.Candidates[0]
	text := ""
	for _, p := range cand.Content.Parts {
		text += p.Text
	}

	var citations []analysis.Citation
	if useSearch && cand.GroundingMetadata != nil {
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if chunk.Web == nil || chunk.Web.URI == "" {
				continue
			}
			title := chunk.Web.Title
			if title == "" {
				title = chunk.Web.URI
			}
			citations = append(citations, analysis.Citation{
				URI:   chunk.Web.URI,
				Title: title,
			})
		}
		text = injectCitationLinks(text, cand.GroundingMetadata)
	}

	c.log.Debug().
		Dur("elapsed", time.Since(start)).
		Int("citations", len(citations)).
		Bool("search", useSearch).
		Msg("model call complete")

	return &analysis.ModelResult{Text: text, Citations: citations}, nil
}

// injectCitationLinks appends numbered source markers to the grounded
// segments of the response text. Supports are applied in descending end
// index order so earlier insertions do not shift later offsets.
func injectCitationLinks(text string, meta *groundingMetadata) string {
	if len(meta.GroundingSupports) == 0 || len(meta.GroundingChunks) == 0 {
		return text
	}

	supports := make([]groundingSupport, len(meta.GroundingSupports))
	copy(supports, meta.GroundingSupports)
	sort.Slice(supports, func(i, j int) bool {
		return supports[i].Segment.EndIndex > supports[j].Segment.EndIndex
	})

	out := []byte(text)
	for _, sup := range supports {
		end := sup.Segment.EndIndex
		if end <= 0 || end > len(out) {
			continue
		}
		var marker []byte
		for _, idx := range sup.GroundingChunkIndices {
			if idx < 0 || idx >= len(meta.GroundingChunks) {
				continue
			}
			chunk := meta.GroundingChunks[idx]
			if chunk.Web == nil || chunk.Web.URI == "" {
				continue
			}
			marker = append(marker, fmt.Sprintf("[%d](%s)", idx+1, chunk.Web.URI)...)
		}
		if len(marker) == 0 {
			continue
		}
		buf := make([]byte, 0, len(out)+len(marker))
		buf = append(buf, out[:end]...)
		buf = append(buf, marker...)
		buf = append(buf, out[end:]...)
		out = buf
	}
	return string(out)
}
