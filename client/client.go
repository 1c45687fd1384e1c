// Package client is the retrieval side of the system: a thin HTTP client for
// the study API plus a viewer that takes a fetched instance through
// pre-flight validation and renderer handoff.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/anakena-lab/study-viewer/internal/core/domain"
)

const acceptDICOM = "application/dicom"

// Client talks to the study API. All methods return ErrTransport-wrapped
// errors for network failures so callers can distinguish "the server said
// no" from "the server was unreachable".
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ListFindingNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.getJSON(ctx, "/findings", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

func (c *Client) ListStudies(ctx context.Context, filter domain.StudyFilter, page, pageSize int) ([]domain.Study, error) {
	query := url.Values{}
	if filter.FindingName != "" {
		query.Set("hallazgo", filter.FindingName)
	}
	if filter.FindingValue != "" {
		query.Set("value", filter.FindingValue)
	}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		query.Set("page_size", strconv.Itoa(pageSize))
	}

	var studies []domain.Study
	if err := c.getJSON(ctx, "/studies", query, &studies); err != nil {
		return nil, err
	}
	return studies, nil
}

func (c *Client) CountStudies(ctx context.Context, filter domain.StudyFilter) (int, error) {
	query := url.Values{}
	if filter.FindingName != "" {
		query.Set("hallazgo", filter.FindingName)
	}
	if filter.FindingValue != "" {
		query.Set("value", filter.FindingValue)
	}

	var body struct {
		Count int `json:"count"`
	}
	if err := c.getJSON(ctx, "/studies/count", query, &body); err != nil {
		return 0, err
	}
	return body.Count, nil
}

func (c *Client) ListStudyInstances(ctx context.Context, studyUID string) ([]domain.Instance, error) {
	var body struct {
		Items []domain.Instance `json:"items"`
	}
	path := "/studies/" + url.PathEscape(studyUID) + "/dicoms"
	if err := c.getJSON(ctx, path, nil, &body); err != nil {
		return nil, err
	}
	return body.Items, nil
}

// FetchInstance downloads the raw object bytes for one SOP instance. The
// payload is returned exactly as served; validation happens in the viewer.
func (c *Client) FetchInstance(ctx context.Context, sopUID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/dicoms/"+url.PathEscape(sopUID), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", acceptDICOM)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTransport, "fetch instance", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, domain.WrapError(domain.ErrInstanceNotFound, "fetch instance",
			fmt.Errorf("sop instance %s", sopUID))
	default:
		return nil, domain.WrapError(domain.ErrTransport, "fetch instance",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTransport, "read instance body", err)
	}
	return data, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrTransport, "call api", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.WrapError(domain.ErrTransport, "call api",
			fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}
