package protocol

import (
	"encoding/json"
	"fmt"
)

// Action names routed by the server. Case-sensitive string constants; the
// client sends them verbatim in the "action" field.
const (
	ActionLogin  = "LOGIN"
	ActionLogout = "LOGOUT"

	ActionGetProducts         = "GET_PRODUCTS"
	ActionSearchProducts      = "SEARCH_PRODUCTS"
	ActionGetProductByBarcode = "GET_PRODUCT_BY_BARCODE"
	ActionUpdateProductPrice  = "UPDATE_PRODUCT_PRICE"
	ActionUpdateProductStock  = "UPDATE_PRODUCT_STOCK"
	ActionGetLowStockProducts = "GET_LOW_STOCK_PRODUCTS"

	ActionCreateOrder     = "CREATE_ORDER"
	ActionGetOrders       = "GET_ORDERS"
	ActionGetOrderDetails = "GET_ORDER_DETAILS"
	ActionGetSalesReport  = "GET_SALES_REPORT"

	ActionGetCategories = "GET_CATEGORIES"

	ActionGetEmployees      = "GET_EMPLOYEES"
	ActionGetUsersByRole    = "GET_USERS_BY_ROLE"
	ActionSearchUsers       = "SEARCH_USERS"
	ActionCreateUser        = "CREATE_USER"
	ActionUpdateUserProfile = "UPDATE_USER_PROFILE"
)

// Request is one decoded client frame. Data stays raw until the handler for
// the action knows what shape to expect. SessionID is empty only for LOGIN.
type Request struct {
	Action    string          `json:"action"`
	Data      json.RawMessage `json:"data,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	RequestID string          `json:"requestId"`
}

// DecodeRequest parses a frame payload into a Request.
func DecodeRequest(payload []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	if req.Action == "" {
		return nil, fmt.Errorf("decode request: missing action")
	}
	return &req, nil
}

// Bind unmarshals the request's data payload into v.
func (r *Request) Bind(v any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("%s: request carries no data", r.Action)
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("%s: malformed data payload: %w", r.Action, err)
	}
	return nil
}

// Response is the server's answer to a single Request. RequestID echoes the
// request's id verbatim.
type Response struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data"`
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
}

// OK builds a success response.
func OK(data any, message, requestID string) *Response {
	if message == "" {
		message = "Success"
	}
	return &Response{Success: true, Data: data, Message: message, RequestID: requestID}
}

// Errorf builds a failure response with a formatted message.
func Errorf(requestID, format string, args ...any) *Response {
	return &Response{Success: false, Message: fmt.Sprintf(format, args...), RequestID: requestID}
}

// Encode serialises the response payload for framing.
func (r *Response) Encode() ([]byte, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return payload, nil
}
