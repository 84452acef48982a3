package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"campsite/pkg/model"

	"cloud.google.com/go/civil"
)

const (
	reservationsPath     = "/api/v1/reservations"
	IdempotencyKeyHeader = "Idempotency-Key"
)

// ReservationClient talks to the reservations service over HTTP.
type ReservationClient struct {
	http *HttpClient
}

func NewReservationClient(baseURL string) *ReservationClient {
	return &ReservationClient{http: NewHttpClient(baseURL)}
}

func (c *ReservationClient) HTTP() *HttpClient {
	return c.http
}

// Available lists the free dates in [from, to). Zero dates leave the window
// to the server default.
func (c *ReservationClient) Available(ctx context.Context, from, to civil.Date) ([]civil.Date, error) {
	q := url.Values{}
	if !from.IsZero() {
		q.Set("date_from", from.String())
	}
	if !to.IsZero() {
		q.Set("date_to", to.String())
	}
	path := reservationsPath + "/available"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := c.http.GET(ctx, path)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}

	var body struct {
		Data []civil.Date `json:"data"`
	}
	if err := resp.DecodeJSON(&body); err != nil {
		return nil, fmt.Errorf("failed to decode available dates: %w", err)
	}
	return body.Data, nil
}

func (c *ReservationClient) Reserve(ctx context.Context, req *model.ReservationRequest) (*model.Reservation, error) {
	return c.ReserveWithKey(ctx, req, "")
}

// ReserveWithKey sends an Idempotency-Key so a retried call returns the
// reservation created by the first one instead of a conflict.
func (c *ReservationClient) ReserveWithKey(ctx context.Context, req *model.ReservationRequest, idempotencyKey string) (*model.Reservation, error) {
	var headers map[string]string
	if idempotencyKey != "" {
		headers = map[string]string{IdempotencyKeyHeader: idempotencyKey}
	}

	resp, err := c.http.Do(ctx, http.MethodPost, reservationsPath, req, headers)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, responseError(resp)
	}
	return DecodeReservation(resp)
}

func (c *ReservationClient) Modify(ctx context.Context, id string, req *model.ReservationDatesRequest) (*model.Reservation, error) {
	resp, err := c.http.PUT(ctx, reservationsPath+"/id/"+url.PathEscape(id), req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}
	return DecodeReservation(resp)
}

func (c *ReservationClient) Cancel(ctx context.Context, id string) error {
	resp, err := c.http.DELETE(ctx, reservationsPath+"/id/"+url.PathEscape(id))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusNoContent {
		return responseError(resp)
	}
	return nil
}

func (c *ReservationClient) Get(ctx context.Context, id string) (*model.Reservation, error) {
	resp, err := c.http.GET(ctx, reservationsPath+"/id/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}
	return DecodeReservation(resp)
}

// ReservationPage is one page of the list endpoint.
type ReservationPage struct {
	Data       []model.Reservation `json:"data"`
	TotalCount int64               `json:"total_count"`
	Limit      int                 `json:"limit"`
	Offset     int64               `json:"offset"`
}

func (c *ReservationClient) List(ctx context.Context, limit int, offset int64) (*ReservationPage, error) {
	path := fmt.Sprintf("%s?limit=%d&offset=%d", reservationsPath, limit, offset)
	resp, err := c.http.GET(ctx, path)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}

	var page ReservationPage
	if err := resp.DecodeJSON(&page); err != nil {
		return nil, fmt.Errorf("failed to decode reservation list: %w", err)
	}
	return &page, nil
}

func DecodeReservation(resp *Response) (*model.Reservation, error) {
	var body struct {
		Data model.Reservation `json:"data"`
	}
	if err := resp.DecodeJSON(&body); err != nil {
		return nil, fmt.Errorf("failed to decode reservation: %w", err)
	}
	return &body.Data, nil
}

// StatusError is returned when the service answers with an unexpected
// status code.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("reservations service returned %d %s: %s", e.StatusCode, e.Code, e.Message)
}

func responseError(resp *Response) error {
	var body struct {
		Code string `json:"code"`
	}
	_ = resp.DecodeJSON(&body)
	return &StatusError{StatusCode: resp.StatusCode, Code: body.Code, Message: GetErrorMessage(resp)}
}
