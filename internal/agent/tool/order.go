package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"zeus-insurance/internal/agent"
	"zeus-insurance/internal/ai"
	"zeus-insurance/internal/app"
	"zeus-insurance/internal/model"
)

type orderResult struct {
	response
	Order *app.OrderView `json:"order"`
}

type createOrderTool struct {
	orders OrderManager
}

type createOrderArgs struct {
	QuotationID   string `json:"quotation_id"`
	PaymentMethod string `json:"payment_method"`
}

func (t *createOrderTool) Spec() ai.ToolSpec {
	return ai.ToolSpec{
		Name:        "create_order",
		Description: "Create the order for a valid quotation once the customer confirms. Calling it again for the same quotation returns the existing order. The result includes payment instructions for the chosen method.",
		Parameters: &ai.Schema{
			Type: ai.TypeObject,
			Properties: map[string]*ai.Schema{
				"quotation_id": {Type: ai.TypeString, Description: "quotation_id returned by create_quotation"},
				"payment_method": {
					Type:        ai.TypeString,
					Description: "How the customer will pay. Use pending when not chosen yet.",
					Enum:        model.PaymentMethods,
				},
			},
			Required: []string{"quotation_id"},
		},
	}
}

func (t *createOrderTool) Run(ctx context.Context, raw json.RawMessage) (any, error) {
	var args createOrderArgs
	if err := agent.DecodeArgs(raw, &args); err != nil {
		return nil, err
	}
	res, err := t.orders.CreateOrder(ctx, args.QuotationID, args.PaymentMethod)
	if err != nil {
		return nil, err
	}
	msg := fmt.Sprintf("Order %s created with policy number %s.", res.View.OrderNumber, res.View.PolicyNumber)
	if res.Existing {
		msg = fmt.Sprintf("An order already exists for this quotation: %s.", res.View.OrderNumber)
	}
	return orderResult{response: response{Result: msg, Success: true}, Order: res.View}, nil
}

type updateOrderPaymentTool struct {
	orders OrderManager
}

type updateOrderPaymentArgs struct {
	OrderID       string `json:"order_id"`
	PaymentStatus string `json:"payment_status"`
	PaymentDate   string `json:"payment_date"`
}

func (t *updateOrderPaymentTool) Spec() ai.ToolSpec {
	return ai.ToolSpec{
		Name:        "update_order_payment",
		Description: "Record a payment status change for an order. Setting paid activates the policy.",
		Parameters: &ai.Schema{
			Type: ai.TypeObject,
			Properties: map[string]*ai.Schema{
				"order_id":       {Type: ai.TypeString, Description: "order_id returned by create_order"},
				"payment_status": {Type: ai.TypeString, Enum: model.PaymentStatuses},
				"payment_date":   {Type: ai.TypeString, Description: "Optional ISO 8601 payment date"},
			},
			Required: []string{"order_id", "payment_status"},
		},
	}
}

func (t *updateOrderPaymentTool) Run(ctx context.Context, raw json.RawMessage) (any, error) {
	var args updateOrderPaymentArgs
	if err := agent.DecodeArgs(raw, &args); err != nil {
		return nil, err
	}
	res, err := t.orders.UpdateOrderPayment(ctx, app.UpdatePaymentInput{
		OrderID:       args.OrderID,
		PaymentStatus: args.PaymentStatus,
		PaymentDate:   args.PaymentDate,
	})
	if err != nil {
		return nil, err
	}
	msg := fmt.Sprintf("Order %s payment status is now %s.", res.View.OrderNumber, res.View.PaymentStatus)
	if res.View.PolicyStatus == model.PolicyStatusActive {
		msg += fmt.Sprintf(" Policy %s is active.", res.View.PolicyNumber)
	}
	return orderResult{response: response{Result: msg, Success: true}, Order: res.View}, nil
}

type getOrderStatusTool struct {
	orders OrderManager
}

type getOrderStatusArgs struct {
	OrderNumber string `json:"order_number"`
}

func (t *getOrderStatusTool) Spec() ai.ToolSpec {
	return ai.ToolSpec{
		Name:        "get_order_status",
		Description: "Look up an order and its policy by order number, for example ORD-20250101-1A2B.",
		Parameters: &ai.Schema{
			Type: ai.TypeObject,
			Properties: map[string]*ai.Schema{
				"order_number": {Type: ai.TypeString, Description: "Order number"},
			},
			Required: []string{"order_number"},
		},
	}
}

func (t *getOrderStatusTool) Run(ctx context.Context, raw json.RawMessage) (any, error) {
	var args getOrderStatusArgs
	if err := agent.DecodeArgs(raw, &args); err != nil {
		return nil, err
	}
	res, err := t.orders.GetOrderStatus(ctx, args.OrderNumber)
	if err != nil {
		return nil, err
	}
	return orderResult{
		response: response{
			Result:  fmt.Sprintf("Order %s: payment %s, policy %s.", res.View.OrderNumber, res.View.PaymentStatus, res.View.PolicyStatus),
			Success: true,
		},
		Order: res.View,
	}, nil
}
