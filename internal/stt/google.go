package stt

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/storage"
)

const (
	defaultGoogleURL = "https://speech.googleapis.com/v1/speech:recognize"
	googleScope      = "https://www.googleapis.com/auth/cloud-platform"
	googleTimeout    = 90 * time.Second
)

// GoogleProvider calls the managed recognition REST API synchronously.
// There is no retry: a failed call surfaces with the remote status.
type GoogleProvider struct {
	endpoint   string
	projectID  string
	apiKey     string
	language   string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewGoogleProvider resolves credentials. KeyData can be:
//   - an API key (39 characters, starts with "AIzaSy")
//   - a path to a service account JSON key file
//   - the service account JSON itself
//
// When KeyData is empty, application default credentials are used.
func NewGoogleProvider(cfg config.GoogleConfig) (*GoogleProvider, error) {
	p := &GoogleProvider{
		endpoint:  cfg.URL,
		projectID: cfg.ProjectID,
		language:  cfg.Language,
		log:       logging.Component("stt.google"),
	}
	if p.endpoint == "" {
		p.endpoint = defaultGoogleURL
	}
	if p.language == "" {
		p.language = "en-US"
	}

	keyData := strings.TrimSpace(cfg.KeyData)
	if isGoogleAPIKey(keyData) {
		p.apiKey = keyData
		p.httpClient = &http.Client{Timeout: googleTimeout}
		p.log.Info().Msg("using API key authentication")
		return p, nil
	}

	ctx := context.Background()
	var creds *google.Credentials
	if keyData == "" {
		found, err := google.FindDefaultCredentials(ctx, googleScope)
		if err != nil {
			return nil, fmt.Errorf("failed to find default credentials: %w. Please set GOOGLE_STT_KEY_FILE", err)
		}
		creds = found
	} else {
		jsonData := []byte(keyData)
		if !strings.HasPrefix(keyData, "{") {
			data, err := os.ReadFile(keyData)
			if err != nil {
				return nil, fmt.Errorf("failed to read key file '%s': %w", keyData, err)
			}
			jsonData = data
		}
		parsed, err := google.CredentialsFromJSON(ctx, jsonData, googleScope)
		if err != nil {
			return nil, fmt.Errorf("failed to create credentials from JSON: %w", err)
		}
		creds = parsed
	}
	if p.projectID == "" {
		p.projectID = creds.ProjectID
	}

	client := oauth2.NewClient(ctx, creds.TokenSource)
	client.Timeout = googleTimeout
	p.httpClient = client
	p.log.Info().Str("project", p.projectID).Msg("using service account authentication")
	return p, nil
}

func isGoogleAPIKey(s string) bool {
	return len(s) == 39 && strings.HasPrefix(s, "AIzaSy")
}

func (p *GoogleProvider) Name() string { return ProviderGoogle }

type googleRequest struct {
	Config googleConfig `json:"config"`
	Audio  googleAudio  `json:"audio"`
}

type googleConfig struct {
	Encoding                   string `json:"encoding"`
	SampleRateHertz            int    `json:"sampleRateHertz,omitempty"`
	LanguageCode               string `json:"languageCode"`
	EnableAutomaticPunctuation bool   `json:"enableAutomaticPunctuation"`
}

type googleAudio struct {
	Content string `json:"content"`
}

type googleResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
		LanguageCode string `json:"languageCode"`
	} `json:"results"`
	Error *googleError `json:"error,omitempty"`
}

type googleError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Transcribe reads the whole file, base64-encodes it and recognizes it.
func (p *GoogleProvider) Transcribe(ctx context.Context, audio *storage.Staged) (*Result, error) {
	return Invoke(ctx, NoRetry, p.log, func(ctx context.Context) (*Result, error) {
		return p.recognize(ctx, audio)
	})
}

func (p *GoogleProvider) recognize(ctx context.Context, audio *storage.Staged) (*Result, error) {
	audioBytes, err := os.ReadFile(audio.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio file: %w", err)
	}

	encoding, sampleRate := googleAudioConfig(filepath.Ext(audio.StoredName))
	body, err := json.Marshal(googleRequest{
		Config: googleConfig{
			Encoding:                   encoding,
			SampleRateHertz:            sampleRate,
			LanguageCode:               p.language,
			EnableAutomaticPunctuation: true,
		},
		Audio: googleAudio{Content: base64.StdEncoding.EncodeToString(audioBytes)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := p.endpoint
	if p.apiKey != "" {
		endpoint = endpoint + "?key=" + url.QueryEscape(p.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey == "" && p.projectID != "" {
		req.Header.Set("X-Goog-User-Project", p.projectID)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &InvocationError{Provider: ProviderGoogle, Message: "Google Speech-to-Text request failed", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var parsed googleResponse
	decodeErr := json.Unmarshal(raw, &parsed)

	if !isSuccess(resp.StatusCode) {
		msg := ""
		if decodeErr == nil && parsed.Error != nil {
			msg = "Google Speech-to-Text API error: " + parsed.Error.Message
		}
		p.log.Error().Int("status", resp.StatusCode).Str("body", preview(raw)).Msg("API error")
		return nil, remoteFailure(ProviderGoogle, resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to parse Google Speech-to-Text response: %w", decodeErr)
	}

	parts := make([]string, 0, len(parsed.Results))
	language := ""
	for _, r := range parsed.Results {
		if len(r.Alternatives) > 0 {
			parts = append(parts, r.Alternatives[0].Transcript)
		}
		if language == "" {
			language = r.LanguageCode
		}
	}
	text := strings.TrimSpace(strings.Join(parts, " "))

	p.log.Info().Str("stored_name", audio.StoredName).Int("results", len(parsed.Results)).Int("length", len(text)).Msg("transcription successful")
	return &Result{Text: text, Language: language}, nil
}

// googleAudioConfig maps a file extension to a recognition encoding. WAV
// and FLAC carry their own headers, so the service detects them.
func googleAudioConfig(ext string) (string, int) {
	switch strings.ToLower(ext) {
	case ".webm":
		return "WEBM_OPUS", 48000
	case ".ogg":
		return "OGG_OPUS", 48000
	default:
		return "ENCODING_UNSPECIFIED", 0
	}
}

// preview trims a response body for logging.
func preview(body []byte) string {
	s := string(body)
	if len(s) > 500 {
		s = s[:500] + "..."
	}
	return s
}
