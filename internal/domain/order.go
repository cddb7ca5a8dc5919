package domain

import "time"

// Order statuses and types as stored.
const (
	OrderStatusCompleted = "Completed"
	OrderStatusCancelled = "Cancelled"

	OrderTypePOS    = "POS"
	OrderTypeOnline = "Online"
)

// Order is a committed sale. TotalAmount always equals the sum of its line
// subtotals; an order never exists with zero lines.
type Order struct {
	ID           int64       `json:"id"`
	CustomerID   int64       `json:"customerId"`
	CustomerName string      `json:"customerName,omitempty"`
	EmployeeID   *int64      `json:"employeeId,omitempty"`
	EmployeeName string      `json:"employeeName,omitempty"`
	OrderDate    time.Time   `json:"orderDate"`
	TotalAmount  float64     `json:"totalAmount"`
	Status       string      `json:"status"`
	OrderType    string      `json:"orderType"`
	Notes        string      `json:"notes,omitempty"`
	Lines        []OrderLine `json:"lines"`
}

// OrderLine is one product position within an order. ProductName is captured
// at sale time so later renames do not rewrite history.
type OrderLine struct {
	ID          int64   `json:"id"`
	OrderID     int64   `json:"orderId"`
	ProductID   int64   `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	Subtotal    float64 `json:"subtotal"`
}

// SalesReport aggregates completed orders over a date range.
type SalesReport struct {
	FromDate          time.Time `json:"fromDate"`
	ToDate            time.Time `json:"toDate"`
	TotalRevenue      float64   `json:"totalRevenue"`
	TotalOrders       int       `json:"totalOrders"`
	AverageOrderValue float64   `json:"averageOrderValue"`
	Orders            []Order   `json:"orders"`
}
