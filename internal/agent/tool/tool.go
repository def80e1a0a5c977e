package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"zeus-insurance/internal/agent"
	"zeus-insurance/internal/app"
)

type VehicleSearcher interface {
	SearchVehicles(ctx context.Context, query app.VehicleQuery) (*app.SearchResult, error)
}

type PolicySearcher interface {
	SearchPolicies(ctx context.Context, query, section string) (*app.PolicySearchResult, error)
}

type QuotationCreator interface {
	CreateQuotation(ctx context.Context, input app.CreateQuotationInput) (*app.QuotationView, error)
}

type OrderManager interface {
	CreateOrder(ctx context.Context, quotationID, paymentMethod string) (*app.OrderResult, error)
	UpdateOrderPayment(ctx context.Context, input app.UpdatePaymentInput) (*app.OrderResult, error)
	GetOrderStatus(ctx context.Context, orderNumber string) (*app.OrderResult, error)
}

type Deps struct {
	Vehicles   VehicleSearcher
	Policies   PolicySearcher
	Quotations QuotationCreator
	Orders     OrderManager
}

// New builds the insurance toolset exposed to the model.
func New(deps Deps) *agent.Toolset {
	return agent.NewToolset(
		&searchQuotationDetailsTool{vehicles: deps.Vehicles},
		&searchPolicyDocumentsTool{policies: deps.Policies},
		&createQuotationTool{quotations: deps.Quotations},
		&createOrderTool{orders: deps.Orders},
		&updateOrderPaymentTool{orders: deps.Orders},
		&getOrderStatusTool{orders: deps.Orders},
	)
}

// flexInt accepts integers sent either as JSON numbers or numeric strings.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			*f = 0
			return nil
		}
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*f = flexInt(n)
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v != float64(int64(v)) {
		return fmt.Errorf("%q is not an integer", raw)
	}
	*f = flexInt(int64(v))
	return nil
}

type response struct {
	Result  string `json:"result"`
	Success bool   `json:"success"`
}
