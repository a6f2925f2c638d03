package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"agendacal/internal/agenda"
	appLog "agendacal/internal/log"
)

// Loader reads iCalendar documents from local files or http(s) URLs.
type Loader struct {
	client *http.Client
}

func NewLoader() *Loader {
	return &Loader{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Load returns the raw document at source.
func (l *Loader) Load(ctx context.Context, source string) ([]byte, error) {
	if source == "" {
		return nil, errors.New("agenda source is empty")
	}
	if !IsURL(source) {
		return os.ReadFile(source)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/calendar")

	appLog.Info("ics fetch start", "url", redactURL(source))
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ics fetch %s: %s", redactURL(source), resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	appLog.Info("ics fetch success", "url", redactURL(source), "bytes", len(body))
	return body, nil
}

// LoadAgenda loads and decodes the agenda at source.
func (l *Loader) LoadAgenda(ctx context.Context, source string, opts DecodeOptions) (*agenda.Agenda, error) {
	body, err := l.Load(ctx, source)
	if err != nil {
		return nil, err
	}
	return Decode(body, opts)
}

// IsURL reports whether source is fetched over http(s) rather than read
// from disk.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// redactURL keeps only scheme and host; calendar URLs often carry secret
// tokens in their path or query.
func redactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "ics://...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}
