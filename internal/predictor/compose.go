package predictor

import (
	"fmt"
	"strings"
)

// DocumentFormat selects which fields make up the embedded document text.
type DocumentFormat string

const (
	// FormatBasic is "{merchant}:{product}".
	FormatBasic DocumentFormat = "basic"
	// FormatExtended is "{merchant}:{product}:{payment_method}:{direction}".
	FormatExtended DocumentFormat = "extended"
)

// ParseDocumentFormat parses a format name. The empty string yields FormatBasic.
func ParseDocumentFormat(s string) (DocumentFormat, error) {
	switch DocumentFormat(strings.TrimSpace(strings.ToLower(s))) {
	case "", FormatBasic:
		return FormatBasic, nil
	case FormatExtended:
		return FormatExtended, nil
	default:
		return "", fmt.Errorf("unknown document format %q", s)
	}
}

// Composer builds the document text for a transaction. Ingestion and
// prediction must use the same Composer or similarities are meaningless.
type Composer struct {
	Format DocumentFormat
}

// Compose returns the document text for q. Empty fields are kept, so an
// empty merchant and product compose to ":".
func (c Composer) Compose(q Query) string {
	if c.Format == FormatExtended {
		return q.Merchant + ":" + q.Product + ":" + q.PaymentMethod + ":" + q.Direction
	}
	return q.Merchant + ":" + q.Product
}
