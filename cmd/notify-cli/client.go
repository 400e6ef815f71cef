package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/corvusHold/changenotify/internal/version"
)

// Client talks to the notification API.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// NotifyConfig mirrors GET/PUT /v1/admin/notify/config.
type NotifyConfig struct {
	AdminTo         string `json:"admin_to" yaml:"admin_to"`
	AdminSubject    string `json:"admin_subject" yaml:"admin_subject"`
	CustomerSubject string `json:"customer_subject" yaml:"customer_subject"`
	EmailProvider   string `json:"email_provider,omitempty" yaml:"email_provider,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status" yaml:"status"`
	Version string `json:"version" yaml:"version"`
	Time    string `json:"time" yaml:"time"`
	DB      string `json:"db" yaml:"db"`
	Cache   string `json:"cache" yaml:"cache"`
}

type ErrorResponse struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields,omitempty"`
}

func (c *Client) makeRequest(method, path string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	url := c.BaseURL + path
	logVerbose("Making %s request to %s", method, url)

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	req.Header.Set("User-Agent", version.UserAgent("notify-cli"))

	hc := c.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	logVerbose("Response status: %s", resp.Status)
	return resp, nil
}

func (c *Client) handleResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			if len(errResp.Fields) > 0 {
				return fmt.Errorf("API error (%d): %s %v", resp.StatusCode, errResp.Error, errResp.Fields)
			}
			return fmt.Errorf("API error (%d): %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}
	if target != nil && len(body) > 0 {
		if err := json.Unmarshal(body, target); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}

func (c *Client) do(method, path string, body, target any) error {
	resp, err := c.makeRequest(method, path, body)
	if err != nil {
		return err
	}
	return c.handleResponse(resp, target)
}

func (c *Client) GetNotifyConfig() (NotifyConfig, error) {
	var cfg NotifyConfig
	err := c.do(http.MethodGet, "/v1/admin/notify/config", nil, &cfg)
	return cfg, err
}

// SetNotifyConfig reads the current config, overlays the non-empty values of
// patch and writes it back.
func (c *Client) SetNotifyConfig(patch NotifyConfig) error {
	cfg, err := c.GetNotifyConfig()
	if err != nil {
		return err
	}
	if patch.AdminTo != "" {
		cfg.AdminTo = patch.AdminTo
	}
	if patch.AdminSubject != "" {
		cfg.AdminSubject = patch.AdminSubject
	}
	if patch.CustomerSubject != "" {
		cfg.CustomerSubject = patch.CustomerSubject
	}
	if patch.EmailProvider != "" {
		cfg.EmailProvider = patch.EmailProvider
	}
	return c.do(http.MethodPut, "/v1/admin/notify/config", cfg, nil)
}

func (c *Client) GetCustomer(id int64) (map[string]any, error) {
	var out map[string]any
	err := c.do(http.MethodGet, fmt.Sprintf("/v1/customers/%d", id), nil, &out)
	return out, err
}

func (c *Client) CreateCustomer(fields map[string]string) (map[string]any, error) {
	var out map[string]any
	err := c.do(http.MethodPost, "/v1/customers", fields, &out)
	return out, err
}

func (c *Client) UpdateCustomer(id int64, fields map[string]string) (map[string]any, error) {
	var out map[string]any
	err := c.do(http.MethodPut, fmt.Sprintf("/v1/customers/%d", id), fields, &out)
	return out, err
}

func (c *Client) CheckHealth() (HealthResponse, error) {
	var h HealthResponse
	err := c.do(http.MethodGet, "/healthz", nil, &h)
	return h, err
}

// formatOutput writes data as json, yaml or a key/value table.
func formatOutput(w io.Writer, format string, data any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(data)
	default:
		return formatTable(w, data)
	}
}

func formatTable(w io.Writer, data any) error {
	var m map[string]any
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		// not an object
		_, err = fmt.Fprintf(w, "%v\n", data)
		return err
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%-20s: %v\n", k, m[k])
	}
	return nil
}
