// Package marketplace is a typed client for the charter marketplace REST API.
package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/charter"
	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/fetch"
)

// Endpoint labels used for logs and metrics.
const (
	EndpointSearch     = "search"
	EndpointEntity     = "entity"
	EndpointRegister   = "register"
	EndpointVesselList = "vessel_list"
)

const (
	defaultVesselLimit = 300
	searchPath         = "/website/search"
	entityPathPrefix   = "/website/entity/"
	registerPathPrefix = "/website/register/"
	vesselListPath     = "/entity/vessel/list"
)

// SearchResponse is one page of search results.
type SearchResponse struct {
	EstHits int               `json:"estHits"`
	Hits    []charter.Listing `json:"hits"`
}

// Client is safe for concurrent use.
type Client struct {
	http    *fetch.Client
	baseURL string
}

func New(httpClient *fetch.Client, baseURL string) *Client {
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

// Search runs a listing search with the given downstream parameters.
func (c *Client) Search(ctx context.Context, token string, params url.Values) (SearchResponse, error) {
	var out SearchResponse
	u := c.baseURL + searchPath
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	if err := c.get(ctx, token, u, EndpointSearch, &out); err != nil {
		return SearchResponse{}, err
	}
	return out, nil
}

// Entity fetches the full record of one listing.
func (c *Client) Entity(ctx context.Context, token, uri string) (charter.Entity, error) {
	var out charter.Entity
	if err := c.get(ctx, token, c.baseURL+entityPathPrefix+url.PathEscape(uri), EndpointEntity, &out); err != nil {
		return charter.Entity{}, err
	}
	if out.URI == "" {
		out.URI = uri
	}
	return out, nil
}

// Register announces that uri is displayed at link.
func (c *Client) Register(ctx context.Context, token, uri, link string) error {
	req, err := fetch.NewJSONRequest(http.MethodPost, c.baseURL+registerPathPrefix+url.PathEscape(uri), map[string]string{"link": link})
	if err != nil {
		return err
	}
	req.Endpoint = EndpointRegister
	setAuth(req.Header, token)
	if err := c.http.DoJSON(ctx, req, nil); err != nil {
		return wrap(EndpointRegister, err)
	}
	return nil
}

// ListVessels lists the vessels a company manages. A limit of zero means 300.
func (c *Client) ListVessels(ctx context.Context, token, company string, limit int) ([]charter.Listing, error) {
	if limit <= 0 {
		limit = defaultVesselLimit
	}
	params := url.Values{}
	params.Set("company", company)
	params.Set("limit", strconv.Itoa(limit))

	var out struct {
		Hits []charter.Listing `json:"hits"`
	}
	if err := c.get(ctx, token, c.baseURL+vesselListPath+"?"+params.Encode(), EndpointVesselList, &out); err != nil {
		return nil, err
	}
	return out.Hits, nil
}

func (c *Client) get(ctx context.Context, token, u, endpoint string, out any) error {
	header := make(http.Header)
	setAuth(header, token)
	err := c.http.DoJSON(ctx, fetch.Request{
		Method:   http.MethodGet,
		URL:      u,
		Header:   header,
		Endpoint: endpoint,
	}, out)
	if err != nil {
		return wrap(endpoint, err)
	}
	return nil
}

func setAuth(header http.Header, token string) {
	header.Set("Accept", "application/json")
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
}

// Error is a failed marketplace call. Message is the marketplace's own
// explanation when the response body carried one.
type Error struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("marketplace %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("marketplace %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes a 404 match charter.ErrNotFound.
func (e *Error) Is(target error) bool {
	return target == charter.ErrNotFound && e.StatusCode == http.StatusNotFound
}

func wrap(op string, err error) error {
	e := &Error{Op: op, Err: err}
	var fe *fetch.Error
	if errors.As(err, &fe) {
		e.StatusCode = fe.StatusCode
		e.Message = bodyMessage(fe.Body)
	}
	return e
}

// bodyMessage pulls "message" or "error" out of a JSON error body, or
// returns short plain text bodies as they are.
func bodyMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal([]byte(trimmed), &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		return payload.Error
	}
	if len(trimmed) > 200 || strings.HasPrefix(trimmed, "<") {
		return ""
	}
	return trimmed
}
