package api

import (
	"fmt"
	"strings"
)

// Validate checks that FetchCreateRequest has all required fields.
// ReportID may stay empty; the client profile default then applies.
func (r *FetchCreateRequest) Validate() error {
	if strings.TrimSpace(r.ClientID) == "" {
		return fmt.Errorf("clientId is required")
	}
	return nil
}
