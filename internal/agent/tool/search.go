package tool

import (
	"context"
	"encoding/json"

	"zeus-insurance/internal/agent"
	"zeus-insurance/internal/ai"
	"zeus-insurance/internal/app"
	"zeus-insurance/internal/model"
)

type searchQuotationDetailsTool struct {
	vehicles VehicleSearcher
}

type searchQuotationDetailsArgs struct {
	Brand    string  `json:"brand"`
	Model    string  `json:"model"`
	SubModel string  `json:"sub_model"`
	Year     flexInt `json:"year"`
}

func (t *searchQuotationDetailsTool) Spec() ai.ToolSpec {
	return ai.ToolSpec{
		Name:        "search_quotation_details",
		Description: "Look up car models with their insurance plans, estimated prices, premiums and deductibles. Provide at least one of brand, model, sub_model or year. Matching is case-insensitive and partial; when nothing matches exactly the search is relaxed step by step and the result explains what was relaxed.",
		Parameters: &ai.Schema{
			Type: ai.TypeObject,
			Properties: map[string]*ai.Schema{
				"brand":     {Type: ai.TypeString, Description: "Car brand, for example Honda or Toyota"},
				"model":     {Type: ai.TypeString, Description: "Car model, for example Civic or Yaris"},
				"sub_model": {Type: ai.TypeString, Description: "Trim or sub model, for example e:HEV RS. Do not include the year."},
				"year":      {Type: ai.TypeInteger, Description: "Model year, for example 2024"},
			},
		},
	}
}

func (t *searchQuotationDetailsTool) Run(ctx context.Context, raw json.RawMessage) (any, error) {
	var args searchQuotationDetailsArgs
	if err := agent.DecodeArgs(raw, &args); err != nil {
		return nil, err
	}
	result, err := t.vehicles.SearchVehicles(ctx, appVehicleQuery(args))
	if err != nil {
		return nil, err
	}
	if result.Records == nil {
		result.Records = []model.VehiclePlanRecord{}
	}
	return result, nil
}

type searchPolicyDocumentsTool struct {
	policies PolicySearcher
}

type searchPolicyDocumentsArgs struct {
	Query   string `json:"query"`
	Section string `json:"section"`
}

func (t *searchPolicyDocumentsTool) Spec() ai.ToolSpec {
	return ai.ToolSpec{
		Name:        "search_policy_documents",
		Description: "Semantic search over insurance policy clauses. Use it before stating any coverage detail. Use section Exclusion to confirm a scenario is not excluded before saying it is covered.",
		Parameters: &ai.Schema{
			Type: ai.TypeObject,
			Properties: map[string]*ai.Schema{
				"query":   {Type: ai.TypeString, Description: "What to look for, in natural language"},
				"section": {Type: ai.TypeString, Description: "Optional section filter", Enum: model.PolicySections},
			},
			Required: []string{"query"},
		},
	}
}

func (t *searchPolicyDocumentsTool) Run(ctx context.Context, raw json.RawMessage) (any, error) {
	var args searchPolicyDocumentsArgs
	if err := agent.DecodeArgs(raw, &args); err != nil {
		return nil, err
	}
	return t.policies.SearchPolicies(ctx, args.Query, args.Section)
}

func appVehicleQuery(args searchQuotationDetailsArgs) app.VehicleQuery {
	return app.VehicleQuery{
		Brand:    args.Brand,
		Model:    args.Model,
		SubModel: args.SubModel,
		Year:     int(args.Year),
	}
}
