package payment

import (
	"net/url"
	"regexp"
	"strconv"
)

// Gateway notifications come in at least two shapes ("topic"-style IPN and
// "type"-style webhooks) and may carry their values in the body or the
// query string. Rather than nesting conditionals, extraction is an ordered
// list of strategies applied until one matches.

// Notification is one inbound webhook call, body and query merged into a
// loosely-typed view the extractors can probe.
type Notification struct {
	Body    map[string]any
	Query   url.Values
	Headers map[string]string
	// RawBody is kept verbatim for the audit log.
	RawBody []byte
}

// TopicPayment is the only notification topic this system reconciles.
const TopicPayment = "payment"

// Topic returns the notification's topic, probing the body keys "topic"
// and "type" and then the query string. Empty when absent.
func (n Notification) Topic() string {
	for _, key := range []string{"topic", "type"} {
		if s := stringValue(n.Body[key]); s != "" {
			return s
		}
	}
	for _, key := range []string{"topic", "type"} {
		if s := n.Query.Get(key); s != "" {
			return s
		}
	}
	return ""
}

var resourcePaymentRe = regexp.MustCompile(`/payments/(\d+)`)

// idExtractor returns a payment id from one possible location, or "".
type idExtractor func(Notification) string

// idExtractors lists the extraction strategies in priority order: the
// nested data.id field, then a bare id (body or query), then an id
// embedded in a resource URL path.
var idExtractors = []idExtractor{
	extractDataID,
	extractBareID,
	extractResourceID,
}

// PaymentID returns the payment id carried by the notification, applying
// the extraction strategies in priority order. Empty when none matches.
func (n Notification) PaymentID() string {
	for _, extract := range idExtractors {
		if id := extract(n); id != "" {
			return id
		}
	}
	return ""
}

func extractDataID(n Notification) string {
	if data, ok := n.Body["data"].(map[string]any); ok {
		if id := stringValue(data["id"]); id != "" {
			return id
		}
	}
	return n.Query.Get("data.id")
}

func extractBareID(n Notification) string {
	if id := stringValue(n.Body["id"]); id != "" {
		return id
	}
	return n.Query.Get("id")
}

func extractResourceID(n Notification) string {
	resource := stringValue(n.Body["resource"])
	if resource == "" {
		resource = n.Query.Get("resource")
	}
	if m := resourcePaymentRe.FindStringSubmatch(resource); m != nil {
		return m[1]
	}
	return ""
}

// stringValue renders a loosely-typed JSON scalar as a string. Numbers are
// formatted without an exponent so large gateway ids survive intact.
func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}
