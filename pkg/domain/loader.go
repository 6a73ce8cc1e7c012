package domain

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

const defaultHTTPTimeout = 20 * time.Second

// LoadList reads a domain list from a local file, a URL, or stdin ("-") and parses it.
func LoadList(ctx context.Context, source Source, log *slog.Logger, errorLimit int) ([]string, ParseStats, error) {
	if log == nil {
		log = slog.Default()
	}
	data, err := readSource(ctx, source)
	if err != nil {
		return nil, ParseStats{}, err
	}
	return ParseList(bytes.NewReader(data), ParseOptions{
		ListID:     source.ID,
		Logger:     log,
		ErrorLimit: errorLimit,
	})
}

func readSource(ctx context.Context, source Source) ([]byte, error) {
	if isURL(source.Location) {
		return download(ctx, source)
	}
	if source.Location == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(source.Location)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

func download(ctx context.Context, source Source) ([]byte, error) {
	client := &http.Client{Timeout: defaultHTTPTimeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.Location, nil)
	if err != nil {
		return nil, err
	}
	applyAuth(req, source.Auth)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Default().Warn("failed to close domain list response body", "error", err)
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func applyAuth(req *http.Request, auth AuthConfig) {
	if auth.Username != "" || auth.Password != "" {
		req.SetBasicAuth(auth.Username, auth.Password)
	}
	if auth.Token != "" {
		header := auth.Header
		if header == "" {
			header = "Authorization"
		}
		scheme := auth.Scheme
		if scheme == "" {
			scheme = "Bearer"
		}
		req.Header.Set(header, strings.TrimSpace(scheme+" "+auth.Token))
	}
}

func isURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}
