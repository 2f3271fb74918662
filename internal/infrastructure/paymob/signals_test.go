package paymob

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessCallbackPayload_ExplicitSuccess(t *testing.T) {
	body := []byte(`{
		"obj": {
			"id": 987654,
			"success": true,
			"pending": false,
			"amount_cents": 10000,
			"captured_amount": 10000,
			"order": {"merchant_order_id": "intent-123"}
		}
	}`)

	res, err := ProcessCallbackPayload(body, nil)
	require.NoError(t, err)

	assert.True(t, res.IsSuccess)
	assert.False(t, res.IsFailed)
	assert.False(t, res.IsPending)
	assert.Equal(t, "intent-123", res.MerchantOrderID)
	assert.Equal(t, "987654", res.TransactionID)
	assert.Equal(t, body, res.RawPayload)
}

func TestProcessCallbackPayload_SuccessFalseIsFailure(t *testing.T) {
	body := []byte(`{"obj": {"success": false, "order": {"merchant_order_id": "intent-1"}}}`)

	res, err := ProcessCallbackPayload(body, nil)
	require.NoError(t, err)

	assert.True(t, res.IsFailed)
	assert.False(t, res.IsSuccess)
	assert.False(t, res.IsPending)
	assert.NotEmpty(t, res.FailureReason)
}

func TestProcessCallbackPayload_DeclinedStatusOverridesSuccess(t *testing.T) {
	// A payload claiming success while carrying a declined status must be
	// treated as a failure: success needs explicit positive AND no failure.
	body := []byte(`{"success": true, "status": "DECLINED", "merchant_order_id": "intent-2"}`)

	res, err := ProcessCallbackPayload(body, nil)
	require.NoError(t, err)

	assert.True(t, res.IsFailed)
	assert.False(t, res.IsSuccess)
}

func TestProcessCallbackPayload_FailureResponseCode(t *testing.T) {
	body := []byte(`{"success": true, "txn_response_code": "51", "merchant_order_id": "intent-3"}`)

	res, err := ProcessCallbackPayload(body, nil)
	require.NoError(t, err)

	assert.True(t, res.IsFailed)
	assert.Contains(t, res.FailureReason, "51")
}

func TestProcessCallbackPayload_ErrorOccured(t *testing.T) {
	body := []byte(`{"error_occured": true, "merchant_order_id": "intent-4"}`)

	res, err := ProcessCallbackPayload(body, nil)
	require.NoError(t, err)

	assert.True(t, res.IsFailed)
}

func TestProcessCallbackPayload_VoidedTransaction(t *testing.T) {
	body := []byte(`{"success": true, "is_voided": true, "merchant_order_id": "intent-5"}`)

	res, err := ProcessCallbackPayload(body, nil)
	require.NoError(t, err)

	assert.True(t, res.IsFailed)
	assert.False(t, res.IsSuccess)
}

func TestProcessCallbackPayload_ZeroCapturedAmount(t *testing.T) {
	body := []byte(`{"success": true, "amount_cents": 5000, "captured_amount": 0, "merchant_order_id": "intent-6"}`)

	res, err := ProcessCallbackPayload(body, nil)
	require.NoError(t, err)

	assert.True(t, res.IsFailed)
	assert.Equal(t, "zero amount captured", res.FailureReason)
}

func TestProcessCallbackPayload_AmbiguousIsPending(t *testing.T) {
	// No recognizable signal in either direction: the safe verdict is
	// pending, never success.
	body := []byte(`{"merchant_order_id": "intent-7", "some_field": "whatever"}`)

	res, err := ProcessCallbackPayload(body, nil)
	require.NoError(t, err)

	assert.True(t, res.IsPending)
	assert.False(t, res.IsSuccess)
	assert.False(t, res.IsFailed)
}

func TestProcessCallbackPayload_ExplicitPendingFlag(t *testing.T) {
	body := []byte(`{"success": true, "pending": true, "merchant_order_id": "intent-8"}`)

	res, err := ProcessCallbackPayload(body, nil)
	require.NoError(t, err)

	assert.True(t, res.IsPending)
	assert.False(t, res.IsSuccess)
}

func TestProcessCallbackPayload_QueryParamsOnly(t *testing.T) {
	// Browser redirects carry everything in the query string, as strings.
	q := url.Values{}
	q.Set("success", "true")
	q.Set("merchant_order_id", "intent-9")
	q.Set("id", "555")

	res, err := ProcessCallbackPayload(nil, q)
	require.NoError(t, err)

	assert.True(t, res.IsSuccess)
	assert.Equal(t, "intent-9", res.MerchantOrderID)
	assert.Equal(t, "555", res.TransactionID)
}

func TestProcessCallbackPayload_QueryParamsFailure(t *testing.T) {
	q := url.Values{}
	q.Set("success", "false")
	q.Set("merchant_order_id", "intent-10")

	res, err := ProcessCallbackPayload(nil, q)
	require.NoError(t, err)

	assert.True(t, res.IsFailed)
}

func TestProcessCallbackPayload_MalformedBody(t *testing.T) {
	_, err := ProcessCallbackPayload([]byte(`{not json`), nil)
	assert.Error(t, err)
}

func TestProcessCallbackPayload_ApprovedResponseCodeAlone(t *testing.T) {
	// Inquiry responses sometimes carry only the response code.
	body := []byte(`{"txn_response_code": "approved", "merchant_order_id": "intent-11"}`)

	res, err := ProcessCallbackPayload(body, nil)
	require.NoError(t, err)

	assert.True(t, res.IsSuccess)
}

func TestProcessCallbackPayload_MissingMerchantOrderID(t *testing.T) {
	body := []byte(`{"success": true}`)

	res, err := ProcessCallbackPayload(body, nil)
	require.NoError(t, err)

	assert.Empty(t, res.MerchantOrderID)
}
