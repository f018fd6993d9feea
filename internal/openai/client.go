// Package openai implements a minimal client for OpenAI compatible chat
// completion APIs.
package openai

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/shop-api/internal/domain/expert"
)

// Defaults applied by NewClient.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o"
	DefaultTimeout = 30 * time.Second
)

// maxErrorBody bounds how much of an error response is kept in the error text.
const maxErrorBody = 512

// Options configures a Client.
type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

func (o *Options) setDefaults() {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.Model == "" {
		o.Model = DefaultModel
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return "openai: status " + http.StatusText(e.StatusCode) + ": " + e.Message
}

// Client calls the chat completions endpoint.
type Client struct {
	http   *http.Client
	url    string
	apiKey string
	model  string
}

var _ expert.Client = (*Client)(nil)

// NewClient creates a Client. Requests are traced through otelhttp.
func NewClient(opts Options) *Client {
	opts.setDefaults()

	var transportOpts []otelhttp.Option
	if opts.TracerProvider != nil {
		transportOpts = append(transportOpts, otelhttp.WithTracerProvider(opts.TracerProvider))
	}
	if opts.MeterProvider != nil {
		transportOpts = append(transportOpts, otelhttp.WithMeterProvider(opts.MeterProvider))
	}

	return &Client{
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport, transportOpts...),
		},
		url:    strings.TrimRight(opts.BaseURL, "/") + "/chat/completions",
		apiKey: opts.APIKey,
		model:  opts.Model,
	}
}

// Complete sends messages and returns the first choice of the response.
func (c *Client) Complete(ctx context.Context, messages []expert.Message) (expert.Message, error) {
	body := encodeRequest(c.model, messages)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return expert.Message{}, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return expert.Message{}, errors.Wrap(err, "send request")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return expert.Message{}, errors.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return expert.Message{}, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	msg, err := decodeResponse(data)
	if err != nil {
		return expert.Message{}, errors.Wrap(err, "decode response")
	}
	return msg, nil
}

func encodeRequest(model string, messages []expert.Message) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("model", func(e *jx.Encoder) { e.Str(model) })
		e.Field("messages", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, m := range messages {
					e.Obj(func(e *jx.Encoder) {
						e.Field("role", func(e *jx.Encoder) { e.Str(m.Role) })
						e.Field("content", func(e *jx.Encoder) { e.Str(m.Content) })
					})
				}
			})
		})
	})
	return e.Bytes()
}

// decodeResponse extracts choices[0].message from a chat completion.
func decodeResponse(data []byte) (expert.Message, error) {
	var (
		msg   expert.Message
		found bool
	)
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "choices" {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			if found {
				return d.Skip()
			}
			found = true
			return d.Obj(func(d *jx.Decoder, key string) error {
				if key != "message" {
					return d.Skip()
				}
				return decodeMessage(d, &msg)
			})
		})
	})
	if err != nil {
		return expert.Message{}, err
	}
	if !found {
		return expert.Message{}, errors.New("no choices in response")
	}
	if msg.Role == "" {
		msg.Role = expert.RoleAssistant
	}
	return msg, nil
}

func decodeMessage(d *jx.Decoder, msg *expert.Message) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "role":
			s, err := d.Str()
			if err != nil {
				return err
			}
			msg.Role = s
		case "content":
			if d.Next() == jx.Null {
				return d.Null()
			}
			s, err := d.Str()
			if err != nil {
				return err
			}
			msg.Content = s
		default:
			return d.Skip()
		}
		return nil
	})
}

// errorMessage returns error.message from an API error body, or the raw body.
func errorMessage(data []byte) string {
	var msg string
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "error" {
			return d.Skip()
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "message" {
				return d.Skip()
			}
			s, err := d.Str()
			msg = s
			return err
		})
	})
	if err == nil && msg != "" {
		return msg
	}
	if len(data) > maxErrorBody {
		data = data[:maxErrorBody]
	}
	return string(data)
}
