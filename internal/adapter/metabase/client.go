// Package metabase is a minimal client for the Metabase HTTP API, covering
// the two calls the fetch tool needs: listing saved questions and exporting
// a question's result set.
package metabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Client talks to one Metabase instance. Authenticate with either Login or
// UseAPIKey before issuing queries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	apiKey       string
	sessionToken string
}

// NewClient creates an unauthenticated client for the given base URL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// UseAPIKey switches the client to API key authentication.
func (c *Client) UseAPIKey(key string) {
	c.apiKey = key
	c.sessionToken = ""
}

// Login opens a session with username and password credentials.
func (c *Client) Login(ctx context.Context, username, password string) error {
	payload, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/session", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login: unexpected status %d", resp.StatusCode)
	}

	var session struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return fmt.Errorf("decode session: %w", err)
	}
	if session.ID == "" {
		return fmt.Errorf("login: empty session id")
	}

	c.sessionToken = session.ID
	c.logger.Info("metabase session opened")
	return nil
}

// Logout closes the session, if one is open. API key auth has nothing to
// close.
func (c *Client) Logout(ctx context.Context) error {
	if c.sessionToken == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/session", nil)
	if err != nil {
		return fmt.Errorf("build logout request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	defer resp.Body.Close()

	c.sessionToken = ""
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-API-KEY", c.apiKey)
		return
	}
	if c.sessionToken != "" {
		req.Header.Set("X-Metabase-Session", c.sessionToken)
	}
}

// Question is one saved card's listing entry.
type Question struct {
	ID         int
	Name       string
	Collection string
}

// ListQuestions returns up to limit saved questions, most recent first as
// the API orders them.
func (c *Client) ListQuestions(ctx context.Context, limit int) ([]Question, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/card", nil)
	if err != nil {
		return nil, fmt.Errorf("build card list request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list questions: unexpected status %d", resp.StatusCode)
	}

	var cards []struct {
		ID         int    `json:"id"`
		Name       string `json:"name"`
		Collection *struct {
			Name string `json:"name"`
		} `json:"collection"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&cards); err != nil {
		return nil, fmt.Errorf("decode card list: %w", err)
	}

	if limit > 0 && len(cards) > limit {
		cards = cards[:limit]
	}

	questions := make([]Question, 0, len(cards))
	for _, card := range cards {
		q := Question{ID: card.ID, Name: card.Name}
		if card.Collection != nil {
			q.Collection = card.Collection.Name
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// FetchQuestionRows executes a saved question and returns its rows as maps
// keyed by column name. Metabase versions differ in export shape: newer ones
// return a flat list of objects, older ones nest rows and cols under "data".
// Both are handled.
func (c *Client) FetchQuestionRows(ctx context.Context, questionID int) ([]map[string]any, error) {
	url := fmt.Sprintf("%s/api/card/%d/query/json", c.baseURL, questionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build query request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query question %d: %w", questionID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("query question %d: unexpected status %d", questionID, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read question %d result: %w", questionID, err)
	}

	rows, err := decodeRows(body)
	if err != nil {
		return nil, fmt.Errorf("decode question %d result: %w", questionID, err)
	}

	c.logger.Info("fetched question rows", "question_id", questionID, "rows", len(rows))
	return rows, nil
}

func decodeRows(body []byte) ([]map[string]any, error) {
	var flat []map[string]any
	if err := json.Unmarshal(body, &flat); err == nil {
		return flat, nil
	}

	var nested struct {
		Data struct {
			Rows [][]any `json:"rows"`
			Cols []struct {
				Name string `json:"name"`
			} `json:"cols"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &nested); err != nil {
		return nil, fmt.Errorf("unrecognized result shape: %w", err)
	}

	rows := make([]map[string]any, 0, len(nested.Data.Rows))
	for _, raw := range nested.Data.Rows {
		row := make(map[string]any, len(nested.Data.Cols))
		for i, col := range nested.Data.Cols {
			if i < len(raw) {
				row[col.Name] = raw[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
