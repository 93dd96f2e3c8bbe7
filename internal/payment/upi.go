package payment

import (
	"fmt"
	"net/url"
	"strings"
)

// UPIPayee is the merchant side of a UPI payment request.
type UPIPayee struct {
	VPA          string
	Name         string
	ContactEmail string
}

// UPIURI builds the upi://pay deep link a QR code encodes. Parameter order
// is pa, pn, am, cu, tn as UPI apps expect.
func UPIURI(payee UPIPayee, amount int64, currency, note string) string {
	params := []struct{ key, value string }{
		{"pa", payee.VPA},
		{"pn", payee.Name},
		{"am", fmt.Sprintf("%d.00", amount)},
		{"cu", currency},
		{"tn", note},
	}

	var b strings.Builder
	b.WriteString("upi://pay?")
	for i, p := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p.key)
		b.WriteByte('=')
		b.WriteString(escape(p.value))
	}
	return b.String()
}

// escape percent-encodes a value, keeping '@' readable in VPAs and using
// %20 for spaces as UPI apps expect.
func escape(v string) string {
	s := url.QueryEscape(v)
	s = strings.ReplaceAll(s, "+", "%20")
	return strings.ReplaceAll(s, "%40", "@")
}
