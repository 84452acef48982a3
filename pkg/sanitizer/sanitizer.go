package sanitizer

import (
	"strings"

	"campsite/pkg/model"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

func NormalizeEmail(email string) string {
	p := Pipeline{
		strings.TrimSpace,
		strings.ToLower,
	}
	return p.Apply(email)
}

// SanitizeReservationRequest normalizes the guest fields in place before
// validation. Dates are left untouched.
func SanitizeReservationRequest(req *model.ReservationRequest) {
	req.FullName = NormalizeName(req.FullName)
	req.Email = NormalizeEmail(req.Email)
}
