// Package roomapi fetches authoritative room state from the chat REST API.
package roomapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/roomsync/internal/platform/errors"
	platformotel "github.com/louisbranch/roomsync/internal/platform/otel"
	"github.com/louisbranch/roomsync/internal/platform/timeouts"
	"github.com/louisbranch/roomsync/internal/services/roomsession/domain"
	"github.com/louisbranch/roomsync/internal/services/roomsession/wire"
)

const maxResponseBytes = 4 << 20

// Client calls the room endpoints:
//
//	GET {base}/chatrooms/{id}/messages
//	GET {base}/chatrooms/{id}
type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// NewClient creates a client for baseURL. A nil httpClient gets the default
// request timeout. token is sent as a bearer credential when set.
func NewClient(baseURL, token string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("api url must use http or https: %q", baseURL)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("api url host is required: %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeouts.HTTPRequest}
	}
	return &Client{
		baseURL:    parsed,
		token:      token,
		httpClient: httpClient,
		tracer:     platformotel.Tracer("roomapi"),
		propagator: platformotel.Propagator(),
	}, nil
}

// FetchHistory returns the room's confirmed messages.
func (c *Client) FetchHistory(ctx context.Context, roomID string) ([]domain.Message, error) {
	var records []wire.MessageRecord
	if err := c.get(ctx, "roomapi.FetchHistory", roomID, &records, "chatrooms", roomID, "messages"); err != nil {
		return nil, err
	}
	messages := make([]domain.Message, 0, len(records))
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInvalidFrame, "decode history", err)
		}
		msg := record.Domain()
		if msg.RoomID == "" {
			msg.RoomID = roomID
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// FetchRoom returns the room detail including its roster.
func (c *Client) FetchRoom(ctx context.Context, roomID string) (domain.Room, error) {
	var record wire.RoomRecord
	if err := c.get(ctx, "roomapi.FetchRoom", roomID, &record, "chatrooms", roomID); err != nil {
		return domain.Room{}, err
	}
	participants, err := wire.Participants(record.Participants)
	if err != nil {
		return domain.Room{}, apperrors.Wrap(apperrors.CodeInvalidFrame, "decode room", err)
	}
	id := record.ID
	if id == "" {
		id = roomID
	}
	return domain.Room{ID: id, Name: record.Name, Participants: participants}, nil
}

func (c *Client) get(ctx context.Context, spanName, roomID string, target any, segments ...string) (err error) {
	if strings.TrimSpace(roomID) == "" {
		return apperrors.New(apperrors.CodeInvalidArgument, "room id is required")
	}
	endpoint := c.baseURL.JoinPath(escapeSegments(segments)...)

	ctx, span := c.tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("roomsync.room_id", roomID),
			attribute.String("http.request.method", http.MethodGet),
			attribute.String("url.path", endpoint.Path),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.propagator.Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeBackendDown, "request "+endpoint.Path, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if err := statusError(resp); err != nil {
		return err
	}
	body := io.LimitReader(resp.Body, maxResponseBytes)
	if err := json.NewDecoder(body).Decode(target); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidFrame, "decode "+endpoint.Path, err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	cause := errors.New(resp.Status)
	metadata := map[string]string{"status": resp.Status, "path": resp.Request.URL.Path}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.WrapWithMetadata(apperrors.CodeNotFound, "room not found", metadata, cause)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apperrors.WrapWithMetadata(apperrors.CodeAuthRejected, "room access rejected", metadata, cause)
	case resp.StatusCode >= 500:
		return apperrors.WrapWithMetadata(apperrors.CodeBackendDown, "room api unavailable", metadata, cause)
	default:
		return apperrors.WrapWithMetadata(apperrors.CodeUnknown, "unexpected room api status", metadata, cause)
	}
}

func escapeSegments(segments []string) []string {
	out := make([]string, len(segments))
	for i, segment := range segments {
		out[i] = url.PathEscape(segment)
	}
	return out
}
