package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"zeus-insurance/internal/agent"
	"zeus-insurance/internal/ai"
	"zeus-insurance/internal/app"
)

type createQuotationTool struct {
	quotations QuotationCreator
}

type createQuotationArgs struct {
	SessionID     string  `json:"session_id"`
	CarModelID    flexInt `json:"car_model_id"`
	PlanID        flexInt `json:"plan_id"`
	CustomerName  string  `json:"customer_name"`
	CustomerEmail string  `json:"customer_email"`
	CustomerPhone string  `json:"customer_phone"`
}

type createQuotationResult struct {
	response
	Quotation *app.QuotationView `json:"quotation"`
}

func (t *createQuotationTool) Spec() ai.ToolSpec {
	return ai.ToolSpec{
		Name:        "create_quotation",
		Description: "Issue a formal quotation for one car model and plan found by search_quotation_details. The quotation is valid for 30 days and is required before creating an order.",
		Parameters: &ai.Schema{
			Type: ai.TypeObject,
			Properties: map[string]*ai.Schema{
				"session_id":     {Type: ai.TypeString, Description: "Current chat session id"},
				"car_model_id":   {Type: ai.TypeInteger, Description: "car_model_id from search_quotation_details"},
				"plan_id":        {Type: ai.TypeInteger, Description: "plan_id from search_quotation_details"},
				"customer_name":  {Type: ai.TypeString, Description: "Customer full name, if known"},
				"customer_email": {Type: ai.TypeString, Description: "Customer email, if known"},
				"customer_phone": {Type: ai.TypeString, Description: "Customer phone number, if known"},
			},
			Required: []string{"car_model_id", "plan_id"},
		},
	}
}

func (t *createQuotationTool) Run(ctx context.Context, raw json.RawMessage) (any, error) {
	var args createQuotationArgs
	if err := agent.DecodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.CarModelID <= 0 || args.PlanID <= 0 {
		return nil, fmt.Errorf("%w: car_model_id and plan_id must be positive", app.ErrInvalidInput)
	}

	// the conversation's own session wins over whatever the model passed
	sessionID := agent.SessionIDFrom(ctx)
	if sessionID == "" {
		sessionID = strings.TrimSpace(args.SessionID)
	}

	view, err := t.quotations.CreateQuotation(ctx, app.CreateQuotationInput{
		SessionID:     sessionID,
		CarModelID:    uint(args.CarModelID),
		PlanID:        uint(args.PlanID),
		CustomerName:  args.CustomerName,
		CustomerEmail: args.CustomerEmail,
		CustomerPhone: args.CustomerPhone,
	})
	if err != nil {
		return nil, err
	}
	return createQuotationResult{
		response: response{
			Result:  fmt.Sprintf("Quotation %s created. Valid until %s.", view.QuotationNumber, view.ValidUntil),
			Success: true,
		},
		Quotation: view,
	}, nil
}
