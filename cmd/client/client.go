package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// Client talks to the WeddingHub HTTP API on behalf of one signed-in user.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

type apiError struct {
	Status int
	Body   map[string]any
}

func (e *apiError) Error() string {
	if msg, ok := e.Body["error"].(string); ok {
		if field, ok := e.Body["field"].(string); ok && field != "" {
			return fmt.Sprintf("%d: %s (field %s)", e.Status, msg, field)
		}
		return fmt.Sprintf("%d: %s", e.Status, msg)
	}
	return fmt.Sprintf("unexpected status %d", e.Status)
}

type session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type draft struct {
	ID   string `json:"id"`
	Step string `json:"step"`
}

type advanceResult struct {
	Submitted bool   `json:"submitted"`
	RecordID  string `json:"record_id"`
	Draft     *draft `json:"draft"`
}

type progress struct {
	Busy    bool   `json:"busy"`
	Stage   string `json:"stage"`
	Percent int    `json:"percent"`
}

type video struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Category     string   `json:"category"`
	CoupleNames  string   `json:"couple_names"`
	Tags         []string `json:"tags"`
	Views        int64    `json:"views"`
	VideoURL     string   `json:"video_url"`
	ThumbnailURL string   `json:"thumbnail_url"`
}

type videoPage struct {
	Videos        []video `json:"videos"`
	NextPageToken string  `json:"next_page_token"`
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*session, error) {
	var sess session
	err := c.do(ctx, http.MethodPost, "/api/auth/signin",
		map[string]string{"email": email, "password": password}, &sess)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	c.token = sess.Token
	return &sess, nil
}

func (c *Client) CreateDraft(ctx context.Context) (*draft, error) {
	var d draft
	if err := c.do(ctx, http.MethodPost, "/api/drafts", nil, &d); err != nil {
		return nil, fmt.Errorf("create draft: %w", err)
	}
	return &d, nil
}

func (c *Client) UpdateDraft(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	if err := c.do(ctx, http.MethodPatch, "/api/drafts/"+id, fields, nil); err != nil {
		return fmt.Errorf("update draft: %w", err)
	}
	return nil
}

func (c *Client) AddTag(ctx context.Context, id, tag string) error {
	if err := c.do(ctx, http.MethodPost, "/api/drafts/"+id+"/tags", map[string]string{"tag": tag}, nil); err != nil {
		return fmt.Errorf("add tag %q: %w", tag, err)
	}
	return nil
}

func (c *Client) Advance(ctx context.Context, id string) (*advanceResult, error) {
	var out advanceResult
	if err := c.do(ctx, http.MethodPost, "/api/drafts/"+id+"/advance", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Progress(ctx context.Context, id string) (*progress, error) {
	var p progress
	if err := c.do(ctx, http.MethodGet, "/api/drafts/"+id+"/progress", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) ListVideos(ctx context.Context, mine bool, pageSize int, pageToken string) (*videoPage, error) {
	q := url.Values{}
	q.Set("page_size", fmt.Sprint(pageSize))
	if pageToken != "" {
		q.Set("page_token", pageToken)
	}
	if mine {
		q.Set("mine", "true")
	}
	var page videoPage
	if err := c.do(ctx, http.MethodGet, "/api/videos?"+q.Encode(), nil, &page); err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	return &page, nil
}

// UploadFile streams a local file into a draft slot ("video" or "thumbnail"),
// printing upload progress as it goes.
func (c *Client) UploadFile(ctx context.Context, draftID, slot, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectFile(filePath); err == nil {
		contentType = mt.String()
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(filePath)))
		header.Set("Content-Type", contentType)

		part, err := mw.CreatePart(header)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		src := &progressReader{r: file, total: fileInfo.Size(), label: "Uploading " + slot}
		if _, err := io.Copy(part, src); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/drafts/"+draftID+"/"+slot, pr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.authorize(req)

	err = c.send(req, nil)
	fmt.Println()
	if err != nil {
		return fmt.Errorf("upload %s: %w", slot, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)
	return c.send(req, out)
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &apiError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr.Body)
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type progressReader struct {
	r     io.Reader
	total int64
	sent  int64
	label string
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.sent += int64(n)
	if p.total > 0 {
		fmt.Printf("\r%s: %.2f%%", p.label, float64(p.sent)/float64(p.total)*100)
	}
	return n, err
}
