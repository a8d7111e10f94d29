package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/semaphore"

	"github.com/starford/voxnotes/internal/apperr"
)

const (
	taskTranscribe = "transcribe"
	taskTranslate  = "translate"

	fileField = "audio_file"
)

// Options configures Client.
type Options struct {
	URL           string
	Model         string
	Timeout       time.Duration
	Retries       int
	MaxConcurrent int
}

// Client calls a Whisper ASR webservice (POST /asr).
type Client struct {
	httpclient *http.Client
	asrURL     string
	model      string
	timeout    time.Duration
	sem        *semaphore.Weighted
	backoff    func() backoff.BackOff
}

var _ Gateway = (*Client)(nil)

// NewClient creates a transcriber client.
func NewClient(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("no transcriber url")
	}
	asrURL, err := url.JoinPath(opts.URL, "asr")
	if err != nil {
		return nil, fmt.Errorf("transcriber url: %w", err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	retries := uint64(max(opts.Retries, 0))
	return &Client{
		httpclient: &http.Client{Transport: newTransport()},
		asrURL:     asrURL,
		model:      opts.Model,
		timeout:    opts.Timeout,
		sem:        semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		backoff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), retries)
		},
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Transcribe runs the transcribe task.
func (c *Client) Transcribe(ctx context.Context, audio []byte) (*Result, error) {
	return c.call(ctx, taskTranscribe, audio)
}

// Translate runs the translate task; the engine always translates into English.
func (c *Client) Translate(ctx context.Context, audio []byte) (*Result, error) {
	return c.call(ctx, taskTranslate, audio)
}

type asrResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

func (c *Client) call(ctx context.Context, task string, audio []byte) (*Result, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, apperr.Wrap(apperr.KindTranscription, "transcription cancelled", err)
	}
	defer c.sem.Release(1)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(fileField, "audio.webm")
	if err != nil {
		return nil, fmt.Errorf("can't add file to request: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("can't add file content to request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("can't close multipart body: %w", err)
	}
	payload := body.Bytes()

	q := url.Values{}
	q.Set("task", task)
	q.Set("output", "json")
	q.Set("encode", "true")
	target := c.asrURL + "?" + q.Encode()

	res, err := backoff.RetryWithData(func() (*Result, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, target, bytes.NewReader(payload))
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())
		resp, err := c.httpclient.Do(req)
		if err != nil {
			if ctx.Err() != nil || !isRetryableErr(err) {
				return nil, backoff.Permanent(fmt.Errorf("can't call: %w", err))
			}
			return nil, fmt.Errorf("can't call: %w", err)
		}
		defer func() {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 10000))
			_ = resp.Body.Close()
		}()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 100))
			err := fmt.Errorf("can't invoke %s task: status %d: %s", task, resp.StatusCode, bytes.TrimSpace(b))
			if isRetryableCode(resp.StatusCode) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		var data asrResponse
		if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("can't decode response: %w", err))
		}
		return &Result{Text: data.Text, Language: data.Language}, nil
	}, backoff.WithContext(c.backoff(), ctx))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTranscription, "transcription engine failed", err)
	}
	return res, nil
}

func isRetryableErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func isRetryableCode(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func newTransport() http.RoundTripper {
	res := http.DefaultTransport.(*http.Transport).Clone()
	res.MaxIdleConnsPerHost = 10
	res.IdleConnTimeout = 90 * time.Second
	return res
}
