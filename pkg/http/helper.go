package http

import (
	"net/http"
	"strconv"

	"campsite/pkg/config"
	apperrors "campsite/pkg/errors"

	"cloud.google.com/go/civil"
)

func ExtractLimitOffset(r *http.Request) (int, int64, error) {
	query := r.URL.Query()

	limit := 0
	if s := query.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid limit parameter: " + s)
		}
		limit = v
	}

	var offset int64
	if s := query.Get("offset"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid offset parameter: " + s)
		}
		offset = v
	}

	return config.NormalizePaginationLimit(limit), config.NormalizeOffset(offset), nil
}

// ExtractDate reads an optional YYYY-MM-DD query parameter. A missing
// parameter yields nil.
func ExtractDate(r *http.Request, name string) (*civil.Date, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}

	d, err := civil.ParseDate(s)
	if err != nil {
		return nil, apperrors.InvalidInput("invalid " + name + " format, must be YYYY-MM-DD")
	}
	return &d, nil
}
