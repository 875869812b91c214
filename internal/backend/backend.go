// Package backend is the HTTP client for the hospital booking server.
//
// Every call is a POST that returns JSON. The server answers rejected
// requests with a JSON body and a 4xx/5xx status, so bodies are decoded
// regardless of status; only transport failures and undecodable bodies
// are returned as errors. Calls run through a circuit breaker so a dead
// server fails fast instead of stalling each step of the voice flow.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/petems/voicebook/internal/config"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// ErrRejected is returned when the server answered with success=false.
var ErrRejected = errors.New("request rejected")

// RejectedError carries the server's message for a rejected request.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return ErrRejected.Error()
	}
	return e.Message
}

func (e *RejectedError) Unwrap() error { return ErrRejected }

type Client struct {
	cfg     config.BackendConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// New builds a client. A zero TimeoutSecs leaves requests unbounded.
func New(cfg config.BackendConfig, log zerolog.Logger) *Client {
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: time.Duration(cfg.TimeoutSecs) * time.Second},
		log:  log,
	}

	if cfg.Breaker.Enabled {
		threshold := uint32(cfg.Breaker.ConsecutiveFailures)
		if threshold == 0 {
			threshold = 5
		}
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "backend",
			MaxRequests: 1,
			Timeout:     time.Duration(cfg.Breaker.OpenSeconds) * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				log.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("Circuit breaker state changed")
			},
		})
	}

	return c
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

// Endpoint resolves path against the configured base URL.
func (c *Client) Endpoint(path string) string {
	return c.cfg.Endpoint(path)
}

// TranscribeResult is the speech-to-text reply. Exactly one field is set by
// a well-behaved server.
type TranscribeResult struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

// Transcribe uploads a WAV clip as multipart field "audio". An empty
// endpoint uses the configured speech-to-text path.
func (c *Client) Transcribe(ctx context.Context, endpoint string, wavData []byte) (TranscribeResult, error) {
	if endpoint == "" {
		endpoint = c.cfg.STTPath
	}

	body, contentType, err := multipartBody(nil, filePart{
		field:    "audio",
		filename: "recording.wav",
		data:     bytes.NewReader(wavData),
	})
	if err != nil {
		return TranscribeResult{}, err
	}

	var res TranscribeResult
	if err := c.post(ctx, c.Endpoint(endpoint), contentType, body, &res); err != nil {
		return TranscribeResult{}, fmt.Errorf("transcribe: %w", err)
	}
	return res, nil
}

// Speak asks the server to synthesize text and returns an absolute URL of
// the audio clip, or "" when the server produced none.
func (c *Client) Speak(ctx context.Context, text string) (string, error) {
	var res struct {
		AudioURL string `json:"audio_url"`
		Error    string `json:"error"`
	}
	if err := c.postJSON(ctx, c.cfg.TTSPath, map[string]string{"text": text}, &res); err != nil {
		return "", fmt.Errorf("tts: %w", err)
	}
	if res.AudioURL == "" {
		return "", nil
	}
	return c.resolve(res.AudioURL)
}

// FetchAudio downloads a synthesized clip.
func (c *Client) FetchAudio(ctx context.Context, audioURL string) ([]byte, error) {
	var data []byte
	err := c.execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
		if err != nil {
			return err
		}
		c.decorate(req)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("HTTP %d", resp.StatusCode)
		}

		data, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch audio: %w", err)
	}
	return data, nil
}

// Assist sends an instruction to the text-generation endpoint and returns
// the raw reply.
func (c *Client) Assist(ctx context.Context, message string) (string, error) {
	var res struct {
		Reply string `json:"reply"`
	}
	if err := c.postJSON(ctx, c.cfg.AssistantPath, map[string]string{"message": message}, &res); err != nil {
		return "", fmt.Errorf("assistant: %w", err)
	}
	return res.Reply, nil
}

type ParsedTime struct {
	OK  bool   `json:"ok"`
	ISO string `json:"iso"`
}

func (c *Client) ParseBookingTime(ctx context.Context, spoken string) (ParsedTime, error) {
	var res ParsedTime
	if err := c.postJSON(ctx, c.cfg.ParseTimePath, map[string]string{"spoken": spoken}, &res); err != nil {
		return ParsedTime{}, fmt.Errorf("parse booking time: %w", err)
	}
	res.ISO = strings.TrimSpace(res.ISO)
	return res, nil
}

type SlotStatus struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason"`
}

func (c *Client) CheckSlot(ctx context.Context, doctorID, bookingTime string) (SlotStatus, error) {
	req := map[string]string{
		"doctor_id":    doctorID,
		"booking_time": bookingTime,
	}
	var res SlotStatus
	if err := c.postJSON(ctx, c.cfg.CheckSlotPath, req, &res); err != nil {
		return SlotStatus{}, fmt.Errorf("check slot: %w", err)
	}
	return res, nil
}

type BookingRequest struct {
	DoctorID         string `json:"doctor_id"`
	BookingTime      string `json:"booking_time"`
	IssueDescription string `json:"issue_description"`
	SessionType      string `json:"session_type"`
}

type outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CreateBooking returns the server's confirmation message. A refusal is a
// *RejectedError matching ErrRejected.
func (c *Client) CreateBooking(ctx context.Context, b BookingRequest) (string, error) {
	var res outcome
	if err := c.postJSON(ctx, c.cfg.BookPath, b, &res); err != nil {
		return "", fmt.Errorf("create booking: %w", err)
	}
	if !res.Success {
		return "", &RejectedError{Message: res.Message}
	}
	return res.Message, nil
}

func (c *Client) CancelBooking(ctx context.Context, bookingID, reason string) error {
	path := strings.ReplaceAll(c.cfg.CancelPath, "{id}", url.PathEscape(bookingID))

	var res outcome
	if err := c.postJSON(ctx, path, map[string]string{"reason": reason}, &res); err != nil {
		return fmt.Errorf("cancel booking: %w", err)
	}
	if !res.Success {
		return &RejectedError{Message: res.Message}
	}
	return nil
}

// UploadPrescription posts an image with its booking ID and returns the
// server's analysis of it.
func (c *Client) UploadPrescription(ctx context.Context, bookingID, filename string, image io.Reader) (string, error) {
	body, contentType, err := multipartBody(
		map[string]string{"booking_id": bookingID},
		filePart{field: "prescription", filename: filename, data: image},
	)
	if err != nil {
		return "", err
	}

	var res struct {
		outcome
		Analysis string `json:"analysis"`
	}
	if err := c.post(ctx, c.Endpoint(c.cfg.ScanPath), contentType, body, &res); err != nil {
		return "", fmt.Errorf("scan prescription: %w", err)
	}
	if !res.Success {
		return "", &RejectedError{Message: res.Message}
	}
	return res.Analysis, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return c.post(ctx, c.Endpoint(path), "application/json", payload, out)
}

func (c *Client) post(ctx context.Context, endpoint, contentType string, body []byte, out any) error {
	return c.execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")
		c.decorate(req)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("HTTP %d: invalid JSON: %w", resp.StatusCode, err)
		}

		c.log.Debug().
			Str("url", endpoint).
			Int("status", resp.StatusCode).
			Msg("Backend call")
		return nil
	})
}

func (c *Client) execute(fn func() error) error {
	if c.breaker == nil {
		return fn()
	}
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.log.Warn().Err(err).Msg("Backend unavailable, request blocked")
	}
	return err
}

func (c *Client) decorate(req *http.Request) {
	if c.cfg.Cookie != "" {
		req.Header.Set("Cookie", c.cfg.Cookie)
	}
}

func (c *Client) resolve(ref string) (string, error) {
	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("bad base url: %w", err)
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("bad audio url %q: %w", ref, err)
	}
	return base.ResolveReference(u).String(), nil
}

type filePart struct {
	field    string
	filename string
	data     io.Reader
}

func multipartBody(fields map[string]string, file filePart) ([]byte, string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	fw, err := w.CreateFormFile(file.field, file.filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(fw, file.data); err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", file.field, err)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return body.Bytes(), w.FormDataContentType(), nil
}
