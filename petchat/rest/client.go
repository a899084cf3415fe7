package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	chatsPath = "/api/v1/chats"

	defaultPage  = 1
	defaultLimit = 50
)

// HeaderProvider returns the headers to attach to one request.
// It is called once per outgoing request.
type HeaderProvider func() http.Header

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

// Client provides REST API access to the chat backend.
type Client struct {
	baseURL    string
	headers    HeaderProvider
	httpClient *http.Client
}

// NewClient creates a new REST API client.
// baseURL is the API origin, e.g. "http://localhost:5000"; paths are appended to it.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetHTTPClient allows setting a custom HTTP client.
func (c *Client) SetHTTPClient(client *http.Client) {
	if client != nil {
		c.httpClient = client
	}
}

// SetHeaderProvider sets the per-request header source.
func (c *Client) SetHeaderProvider(p HeaderProvider) {
	c.headers = p
}

// SetToken is a shortcut for a provider returning a fixed bearer token.
func (c *Client) SetToken(token string) {
	c.headers = func() http.Header {
		h := http.Header{}
		if token != "" {
			h.Set("Authorization", "Bearer "+token)
		}
		return h
	}
}

// Conversations

// ListConversations returns all conversations of the authenticated user.
func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	var resp envelope[[]Conversation]
	if err := c.doJSON(ctx, http.MethodGet, chatsPath, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return []Conversation{}, nil
	}
	return resp.Data, nil
}

// GetConversation returns a single conversation.
func (c *Client) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	var resp envelope[*Conversation]
	if err := c.doJSON(ctx, http.MethodGet, conversationPath(conversationID), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("unmarshal response: missing conversation")
	}
	return resp.Data, nil
}

// CreateConversation opens a new conversation with a rescue.
func (c *Client) CreateConversation(ctx context.Context, req CreateConversationRequest) (*Conversation, error) {
	var resp envelope[*Conversation]
	if err := c.doJSON(ctx, http.MethodPost, chatsPath, req, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("unmarshal response: missing conversation")
	}
	return resp.Data, nil
}

// ArchiveConversation marks a conversation as archived.
func (c *Client) ArchiveConversation(ctx context.Context, conversationID string) error {
	body := map[string]string{"status": "archived"}
	return c.doJSON(ctx, http.MethodPatch, conversationPath(conversationID), body, nil)
}

// Messages

// GetMessages retrieves one page of a conversation's history.
// Non-positive page and limit fall back to 1 and 50.
func (c *Client) GetMessages(ctx context.Context, conversationID string, page, limit int) (*MessagesPage, error) {
	if page <= 0 {
		page = defaultPage
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	path := conversationPath(conversationID) + "/messages?" + q.Encode()

	var resp envelope[*MessagesPage]
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	out := resp.Data
	if out == nil {
		out = &MessagesPage{}
	}
	if out.Messages == nil {
		out.Messages = []Message{}
	}
	if out.Pagination.Page == 0 {
		out.Pagination = Pagination{Page: page, Limit: limit, Total: len(out.Messages), TotalPages: 1}
	}
	return out, nil
}

// SendMessage posts a message as multipart form data.
func (c *Client) SendMessage(ctx context.Context, conversationID, content string, attachments []Attachment) (*Message, error) {
	body, contentType, err := encodeMultipart(func(w *multipart.Writer) error {
		if err := w.WriteField("content", content); err != nil {
			return err
		}
		for i, a := range attachments {
			if err := writeFile(w, fmt.Sprintf("attachment_%d", i), a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var resp envelope[*Message]
	if err := c.do(ctx, http.MethodPost, conversationPath(conversationID)+"/messages", body, contentType, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("unmarshal response: missing message")
	}
	return resp.Data, nil
}

// EditMessage replaces a message's content.
func (c *Client) EditMessage(ctx context.Context, messageID, content string) (*Message, error) {
	var resp envelope[*Message]
	body := map[string]string{"content": content}
	if err := c.doJSON(ctx, http.MethodPatch, chatsPath+"/messages/"+url.PathEscape(messageID), body, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("unmarshal response: missing message")
	}
	return resp.Data, nil
}

// DeleteMessage deletes a message.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	return c.doJSON(ctx, http.MethodDelete, chatsPath+"/messages/"+url.PathEscape(messageID), nil, nil)
}

// MarkAsRead marks a conversation read, optionally up to messageID.
func (c *Client) MarkAsRead(ctx context.Context, conversationID, messageID string) error {
	var body any
	if messageID != "" {
		body = map[string]string{"messageId": messageID}
	}
	return c.doJSON(ctx, http.MethodPost, conversationPath(conversationID)+"/read", body, nil)
}

// AddReaction adds an emoji reaction to a message.
func (c *Client) AddReaction(ctx context.Context, conversationID, messageID, emoji string) error {
	return c.doJSON(ctx, http.MethodPost, reactionsPath(conversationID, messageID), map[string]string{"emoji": emoji}, nil)
}

// RemoveReaction removes an emoji reaction from a message.
func (c *Client) RemoveReaction(ctx context.Context, conversationID, messageID, emoji string) error {
	return c.doJSON(ctx, http.MethodDelete, reactionsPath(conversationID, messageID), map[string]string{"emoji": emoji}, nil)
}

// UploadAttachment uploads a file to a conversation and returns its stored descriptor.
func (c *Client) UploadAttachment(ctx context.Context, conversationID string, file Attachment) (*AttachmentInfo, error) {
	body, contentType, err := encodeMultipart(func(w *multipart.Writer) error {
		return writeFile(w, "file", file)
	})
	if err != nil {
		return nil, err
	}

	var resp envelope[*AttachmentInfo]
	if err := c.do(ctx, http.MethodPost, conversationPath(conversationID)+"/attachments", body, contentType, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		msg := resp.Error
		if msg == "" {
			msg = "upload failed"
		}
		return nil, fmt.Errorf("upload attachment: %s", msg)
	}
	return resp.Data, nil
}

// SearchMessages runs a full-text search, optionally scoped to one conversation.
func (c *Client) SearchMessages(ctx context.Context, query, conversationID string) (*SearchResult, error) {
	q := url.Values{}
	q.Set("query", query)
	if conversationID != "" {
		q.Set("conversationId", conversationID)
	}

	var resp envelope[*SearchResult]
	if err := c.doJSON(ctx, http.MethodGet, chatsPath+"/search?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return &SearchResult{Messages: []Message{}}, nil
	}
	return resp.Data, nil
}

// Helper methods

func conversationPath(id string) string {
	return chatsPath + "/" + url.PathEscape(id)
}

func reactionsPath(conversationID, messageID string) string {
	return conversationPath(conversationID) + "/messages/" + url.PathEscape(messageID) + "/reactions"
}

func encodeMultipart(fill func(w *multipart.Writer) error) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := fill(w); err != nil {
		return nil, "", fmt.Errorf("encode multipart: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("encode multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func writeFile(w *multipart.Writer, field string, a Attachment) error {
	part, err := w.CreateFormFile(field, a.Filename)
	if err != nil {
		return err
	}
	if a.Body == nil {
		return nil
	}
	_, err = io.Copy(part, a.Body)
	return err
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	var bodyReader io.Reader
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, bodyReader, contentType, dest)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, dest any) error {
	if body == nil {
		body = http.NoBody
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if c.headers != nil {
		for k, vals := range c.headers() {
			for _, v := range vals {
				req.Header.Add(k, v)
			}
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if err := json.Unmarshal(data, &errResp); err == nil {
			if msg := firstNonEmpty(errResp.Error, errResp.Message); msg != "" {
				return &APIError{StatusCode: resp.StatusCode, Message: msg}
			}
		}
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if dest != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, dest); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}
