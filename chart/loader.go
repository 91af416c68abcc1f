package hypnoscope

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	Mp "github.com/oneirix/hypnoscope/plugin"
	Mt "github.com/oneirix/hypnoscope/types"
)

const (
	webTimeout = 10 * time.Second
)

type HTTPClient interface {
	Get(string) (*http.Response, error)
}

// Shared HTTP Client
var sharedHTTPClient = &http.Client{
	Timeout: webTimeout,
	Transport: &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
	},
}

// SingleFetchWithClient handles the messy business of the HTTP connection
// and is testable with dependency injection, called by SingleFetch
func SingleFetchWithClient(url string, c HTTPClient) (int, []byte, error) {
	resp, err := c.Get(url)
	if err != nil {
		slog.Error("Fetch Error", slog.Any("Error", err))
		return 0, nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("Could not read body", slog.Any("Error", err))
		return 0, nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("Close Error", slog.Any("Error", err))
			return
		}
	}()

	return resp.StatusCode, body, err
}

// SingleFetch returns the Response Code, raw byte stream body, and error
// This uses a Shared HTTP Client:
// - to reuse existing endpoint connections
// - to avoid stale connections that eat up OS FDs
func SingleFetch(url string) (int, []byte, error) {
	return SingleFetchWithClient(url, sharedHTTPClient)
}

// ParseStage maps a classifier stage token onto the Stage enum.
// The token table lives with the decoder plugins.
func ParseStage(token string) (Mt.Stage, error) {
	return Mp.ParseStageToken(token)
}

// DecodeHypnogram picks a decoder plugin by sniffing the payload:
// a JSON document goes to the epoch decoder, everything else is
// read as stage-per-line text.
func DecodeHypnogram(data []byte) ([]Mt.Stage, error) {
	name := "stage_lines"
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		name = "json_epochs"
	}

	dec, err := Mp.DecoderLookup(name)
	if err != nil {
		return nil, err
	}

	stages, err := dec.Decode(data)
	if err != nil {
		slog.Error("Could not decode hypnogram",
			slog.String("decoder", dec.Type()), slog.Any("Error", err))
		return nil, fmt.Errorf("hypnogram decode error: %w", err)
	}
	return stages, nil
}

// ParseHypnogram reads a classified night off a stream and hands
// the payload to DecodeHypnogram
func ParseHypnogram(reader io.Reader) ([]Mt.Stage, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		slog.Error("Problem reading input", slog.Any("Error", err))
		return nil, fmt.Errorf("read error: %w", err)
	}
	return DecodeHypnogram(data)
}

// FetchHypnogram retrieves an already classified night over HTTP
func FetchHypnogram(url string) ([]Mt.Stage, error) {
	_, body, err := SingleFetch(url)
	if err != nil {
		return nil, err
	}
	return DecodeHypnogram(body)
}

// LoadHypnogram reads a classified night, from disk or over HTTP
// depending on the source string
func LoadHypnogram(source string) ([]Mt.Stage, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return FetchHypnogram(source)
	}

	f, err := os.Open(source)
	if err != nil {
		slog.Error("Could not open hypnogram", slog.Any("Error", err))
		return nil, err
	}
	defer f.Close()

	return ParseHypnogram(f)
}
