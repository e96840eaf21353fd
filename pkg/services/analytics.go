package services

import "context"

// ShipmentAnalyticsQuery feeds the shipments dashboard: one row per shipment
// with its date, cost, courier and destination city.
const ShipmentAnalyticsQuery = `SELECT
	s."createdAt"::date AS shipment_date,
	s.shipped,
	s.cost,
	o."shippingCourier",
	p.city AS destination_city
FROM shipment s
JOIN "order" o ON o.id = s."orderId"
JOIN pii p ON p.id = s."shipToId"`

// Analytics serves the fixed read-only dashboard queries.
type Analytics struct {
	executor *Executor
}

// NewAnalytics creates an Analytics service.
func NewAnalytics(executor *Executor) *Analytics {
	return &Analytics{executor: executor}
}

// Shipments runs ShipmentAnalyticsQuery and returns the executor payload.
func (a *Analytics) Shipments(ctx context.Context) (bool, string) {
	return a.executor.Execute(ctx, ShipmentAnalyticsQuery)
}
