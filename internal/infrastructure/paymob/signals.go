package paymob

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"edulearn-backend/internal/domain"
)

// The provider scatters its success/failure verdict across differently
// shaped fields depending on whether the call arrived as a webhook POST, a
// browser redirect query string, or a transaction-inquiry response. The
// lists below are derived from observed provider traffic; do not prune them
// without re-deriving from the provider's documentation.
//
// The normalization rule is asymmetric:
//   - success requires an explicit positive signal AND no failure signal
//   - failure is detected by a wide union of signals
//   - anything else is pending, the safe default. Treating an ambiguous
//     payload as success risks granting unpaid access; treating it as
//     failure risks discarding a valid payment.

// failureStatuses is the union of textual status codes known to indicate a
// terminal decline.
var failureStatuses = map[string]bool{
	"DECLINED":           true,
	"FAILED":             true,
	"FAILURE":            true,
	"CANCELLED":          true,
	"CANCELED":           true,
	"EXPIRED":            true,
	"VOIDED":             true,
	"REFUSED":            true,
	"REJECTED":           true,
	"INSUFFICIENT_FUNDS": true,
	"ERROR":              true,
}

// failureResponseCodes is the small set of numeric gateway response codes
// known to indicate a decline (anything non-zero that we have seen map to a
// final card refusal).
var failureResponseCodes = map[string]bool{
	"1":    true, // refer to card issuer
	"2":    true, // declined
	"5":    true, // do not honour
	"12":   true, // invalid transaction
	"14":   true, // invalid card number
	"51":   true, // insufficient funds
	"54":   true, // expired card
	"57":   true, // transaction not permitted
	"61":   true, // exceeds withdrawal limit
	"91":   true, // issuer unavailable
	"fail": true,
}

// successResponseCodes are the explicit approval codes.
var successResponseCodes = map[string]bool{
	"0":        true,
	"00":       true,
	"approved": true,
}

// ProcessCallbackPayload normalizes a provider payload into the tri-state
// CallbackResult. payload is the raw body (may be empty for pure-redirect
// arrivals); queryParams is the redirect query bag (may be nil).
func ProcessCallbackPayload(payload []byte, queryParams url.Values) (*domain.CallbackResult, error) {
	fields := map[string]interface{}{}

	if len(payload) > 0 {
		var body map[string]interface{}
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, fmt.Errorf("malformed callback payload: %w", err)
		}
		// Webhook bodies nest the transaction under "obj"; inquiry
		// responses are flat. Merge the nested object over the envelope so
		// transaction fields win.
		flattenInto(fields, body)
		if obj, ok := body["obj"].(map[string]interface{}); ok {
			flattenInto(fields, obj)
		}
		if txn, ok := body["transaction"].(map[string]interface{}); ok {
			flattenInto(fields, txn)
		}
	}

	for key, vals := range queryParams {
		if len(vals) > 0 {
			fields[key] = vals[0]
		}
	}

	res := &domain.CallbackResult{RawPayload: payload}
	res.MerchantOrderID = firstString(fields, "merchant_order_id", "merchantOrderId")
	res.TransactionID = firstString(fields, "id", "transaction_id", "txn_id")

	explicitSuccess := false
	failed := false
	reason := ""

	// Explicit boolean success/pending flags.
	if v, ok := boolField(fields, "success"); ok {
		if v {
			explicitSuccess = true
		} else {
			failed = true
			reason = "gateway reported success=false"
		}
	}
	if v, ok := boolField(fields, "pending"); ok && v {
		// An explicitly pending transaction cannot be a success yet.
		explicitSuccess = false
	}
	if v, ok := boolField(fields, "error_occured"); ok && v {
		failed = true
		reason = "gateway reported an error"
	}
	for _, key := range []string{"is_voided", "is_refunded", "is_void", "is_canceled"} {
		if v, ok := boolField(fields, key); ok && v {
			failed = true
			reason = "transaction " + strings.TrimPrefix(key, "is_")
		}
	}

	// Textual status fields.
	for _, key := range []string{"status", "txn_status", "order_status", "data.message"} {
		if s := stringField(fields, key); s != "" {
			upper := strings.ToUpper(strings.TrimSpace(s))
			if failureStatuses[upper] {
				failed = true
				reason = "gateway status " + upper
			}
		}
	}

	// Numeric response codes.
	if code := stringField(fields, "txn_response_code"); code != "" {
		lower := strings.ToLower(strings.TrimSpace(code))
		switch {
		case successResponseCodes[lower]:
			explicitSuccess = true
		case failureResponseCodes[lower]:
			failed = true
			reason = "response code " + code
		}
	}

	// Zero paid amount against a nonzero expected amount is a decline even
	// when no status field says so.
	expected, hasExpected := floatField(fields, "amount_cents")
	paid, hasPaid := floatField(fields, "captured_amount")
	if !hasPaid {
		paid, hasPaid = floatField(fields, "paid_amount_cents")
	}
	if explicitSuccess && hasExpected && hasPaid && expected > 0 && paid == 0 {
		failed = true
		reason = "zero amount captured"
	}

	res.IsFailed = failed
	res.IsSuccess = explicitSuccess && !failed
	res.IsPending = !res.IsSuccess && !res.IsFailed
	if failed {
		res.FailureReason = reason
	}

	return res, nil
}

// flattenInto copies scalar fields of src into dst, and additionally
// lowers one level of nesting using dotted keys (e.g. "order" ->
// "order.merchant_order_id" plus bare "merchant_order_id" if unset).
func flattenInto(dst map[string]interface{}, src map[string]interface{}) {
	for k, v := range src {
		switch nested := v.(type) {
		case map[string]interface{}:
			for nk, nv := range nested {
				dst[k+"."+nk] = nv
				if _, exists := dst[nk]; !exists {
					dst[nk] = nv
				}
			}
		default:
			dst[k] = v
		}
	}
}

func firstString(fields map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s := stringField(fields, k); s != "" {
			return s
		}
	}
	return ""
}

func stringField(fields map[string]interface{}, key string) string {
	v, ok := fields[key]
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// JSON numbers: ids arrive as numbers in webhook bodies
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	case bool:
		return fmt.Sprintf("%t", t)
	default:
		return ""
	}
}

func boolField(fields map[string]interface{}, key string) (bool, bool) {
	v, ok := fields[key]
	if !ok {
		return false, false
	}
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		lower := strings.ToLower(strings.TrimSpace(t))
		if lower == "true" {
			return true, true
		}
		if lower == "false" {
			return false, true
		}
	}
	return false, false
}

func floatField(fields map[string]interface{}, key string) (float64, bool) {
	v, ok := fields[key]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(t), "%f", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}
