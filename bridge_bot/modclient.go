package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"chatbridge/timeparse"
	"chatbridge/types"
)

// ModClient drives the relay's moderation API with the shared bridge key.
type ModClient struct {
	baseURL string
	key     string
	http    *http.Client

	durations *timeparse.Converter
}

func NewModClient(baseURL, key string) *ModClient {
	return &ModClient{
		baseURL:   baseURL,
		key:       key,
		http:      &http.Client{Timeout: 10 * time.Second},
		durations: timeparse.NewConverter().Min("1s").Max("1y"),
	}
}

func (m *ModClient) postJSON(endpoint string, payload interface{}, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	req, err := http.NewRequest("POST", m.baseURL+endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Bridge-Key", m.key)

	resp, err := m.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	return json.NewDecoder(resp.Body).Decode(out)
}

func (m *ModClient) checkResponse(resp types.ModResponse) error {
	if !resp.Success {
		reason := resp.Reason
		if reason == "" {
			reason = "request rejected"
		}
		return fmt.Errorf("moderation request failed: %s", reason)
	}
	return nil
}

func (m *ModClient) Ban(id int, reason string) error {
	var resp types.ModResponse
	if err := m.postJSON("/api/ban", types.ModRequest{ID: id, Reason: reason}, &resp); err != nil {
		return err
	}
	return m.checkResponse(resp)
}

func (m *ModClient) Unban(id int) error {
	var resp types.ModResponse
	if err := m.postJSON("/api/unban", types.ModRequest{ID: id}, &resp); err != nil {
		return err
	}
	return m.checkResponse(resp)
}

// Mute parses the human-entered duration locally so the caller gets grammar
// errors before anything hits the wire, then posts the absolute expiry.
func (m *ModClient) Mute(id int, duration, reason string) (time.Time, error) {
	now := time.Now().UTC()
	d, err := m.durations.FromString(duration, now)
	if err != nil {
		return time.Time{}, err
	}
	until := now.Add(d)

	var resp types.ModResponse
	payload := types.MuteRequest{ID: id, Until: until.Format(time.RFC3339), Reason: reason}
	if err := m.postJSON("/api/mute", payload, &resp); err != nil {
		return time.Time{}, err
	}
	return until, m.checkResponse(resp)
}

func (m *ModClient) Unmute(id int) error {
	var resp types.ModResponse
	if err := m.postJSON("/api/mute", types.MuteRequest{ID: id}, &resp); err != nil {
		return err
	}
	return m.checkResponse(resp)
}

func (m *ModClient) SetAccepting(enabled bool) error {
	var resp types.ModResponse
	if err := m.postJSON("/api/accepting", types.AcceptingRequest{Enabled: enabled}, &resp); err != nil {
		return err
	}
	return m.checkResponse(resp)
}

func (m *ModClient) Link(id int, name string) error {
	var resp types.ModResponse
	if err := m.postJSON("/api/link", types.LinkRequest{ID: id, Name: name}, &resp); err != nil {
		return err
	}
	return m.checkResponse(resp)
}

// CreateKey mints or rotates the connection key for an account.
func (m *ModClient) CreateKey(id int) (string, error) {
	var resp struct {
		Success bool   `json:"success"`
		Reason  string `json:"reason"`
		Key     string `json:"key"`
	}
	if err := m.postJSON("/api/keys", types.ModRequest{ID: id}, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("moderation request failed: %s", resp.Reason)
	}
	return resp.Key, nil
}

// Online returns the user label to account id map of connected sessions.
func (m *ModClient) Online() (map[string]int, error) {
	req, err := http.NewRequest("GET", m.baseURL+"/api/online", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Bridge-Key", m.key)

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var online map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&online); err != nil {
		return nil, fmt.Errorf("failed to decode online list: %w", err)
	}
	return online, nil
}
