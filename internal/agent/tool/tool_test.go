package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zeus-insurance/internal/agent"
	"zeus-insurance/internal/ai"
	"zeus-insurance/internal/app"
	"zeus-insurance/internal/model"
)

type fakeVehicles struct{ got app.VehicleQuery }

func (f *fakeVehicles) SearchVehicles(_ context.Context, q app.VehicleQuery) (*app.SearchResult, error) {
	f.got = q
	if q.Brand == "" && q.Model == "" && q.SubModel == "" && q.Year == 0 {
		return nil, app.ErrNoSearchAttributes
	}
	return &app.SearchResult{Step: "exact", Message: "Found matching quotation details."}, nil
}

type fakePolicies struct{ section string }

func (f *fakePolicies) SearchPolicies(_ context.Context, query, section string) (*app.PolicySearchResult, error) {
	f.section = section
	return &app.PolicySearchResult{Message: "Found 1 relevant policy document(s).", Documents: []app.PolicyDocumentHit{{Content: "flood", Similarity: 0.9}}}, nil
}

type fakeQuotations struct{ got app.CreateQuotationInput }

func (f *fakeQuotations) CreateQuotation(_ context.Context, in app.CreateQuotationInput) (*app.QuotationView, error) {
	f.got = in
	return &app.QuotationView{QuotationID: "q1", QuotationNumber: "QT-20250101-ABCD", ValidUntil: "2025-01-31", Status: model.QuotationStatusDraft}, nil
}

type fakeOrders struct {
	existing bool
	status   string
}

func (f *fakeOrders) CreateOrder(_ context.Context, quotationID, method string) (*app.OrderResult, error) {
	if quotationID == "missing" {
		return nil, app.ErrQuotationNotFound
	}
	return &app.OrderResult{Existing: f.existing, View: &app.OrderView{OrderNumber: "ORD-1", PolicyNumber: "POL-1", PaymentMethod: method}}, nil
}

func (f *fakeOrders) UpdateOrderPayment(_ context.Context, in app.UpdatePaymentInput) (*app.OrderResult, error) {
	f.status = in.PaymentStatus
	view := &app.OrderView{OrderNumber: "ORD-1", PolicyNumber: "POL-1", PaymentStatus: in.PaymentStatus, PolicyStatus: model.PolicyStatusInactive}
	if in.PaymentStatus == model.PaymentStatusPaid {
		view.PolicyStatus = model.PolicyStatusActive
	}
	return &app.OrderResult{View: view}, nil
}

func (f *fakeOrders) GetOrderStatus(_ context.Context, number string) (*app.OrderResult, error) {
	if number != "ORD-1" {
		return nil, app.ErrOrderNotFound
	}
	return &app.OrderResult{View: &app.OrderView{OrderNumber: number, PaymentStatus: "pending", PolicyStatus: "inactive"}}, nil
}

type fixture struct {
	tools      *agent.Toolset
	vehicles   *fakeVehicles
	policies   *fakePolicies
	quotations *fakeQuotations
	orders     *fakeOrders
}

func newFixture() *fixture {
	f := &fixture{vehicles: &fakeVehicles{}, policies: &fakePolicies{}, quotations: &fakeQuotations{}, orders: &fakeOrders{}}
	f.tools = New(Deps{Vehicles: f.vehicles, Policies: f.policies, Quotations: f.quotations, Orders: f.orders})
	return f
}

func exec(t *testing.T, ts *agent.Toolset, ctx context.Context, name, args string) (map[string]any, bool) {
	t.Helper()
	out, ok := ts.Execute(ctx, ai.ToolCall{ID: "1", Name: name, Arguments: args})
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	return decoded, ok
}

func TestToolsetExposesAllTools(t *testing.T) {
	f := newFixture()
	var names []string
	for _, spec := range f.tools.Specs() {
		names = append(names, spec.Name)
	}
	assert.ElementsMatch(t, []string{
		"search_quotation_details",
		"search_policy_documents",
		"create_quotation",
		"create_order",
		"update_order_payment",
		"get_order_status",
	}, names)
}

func TestSearchQuotationDetailsAcceptsStringYear(t *testing.T) {
	f := newFixture()

	out, ok := exec(t, f.tools, context.Background(), "search_quotation_details", `{"brand":"Honda","year":"2024"}`)
	require.True(t, ok)
	assert.Equal(t, 2024, f.vehicles.got.Year)
	assert.Equal(t, "Found matching quotation details.", out["result"])
	assert.Equal(t, []any{}, out["records"])
}

func TestSearchQuotationDetailsRejectsEmptyQuery(t *testing.T) {
	f := newFixture()

	out, ok := exec(t, f.tools, context.Background(), "search_quotation_details", `{}`)
	assert.False(t, ok)
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["result"], "need at least one attribute")
}

func TestSearchQuotationDetailsRejectsFractionalYear(t *testing.T) {
	f := newFixture()

	out, ok := exec(t, f.tools, context.Background(), "search_quotation_details", `{"year":2024.5}`)
	assert.False(t, ok)
	assert.Contains(t, out["result"], "invalid tool arguments")
}

func TestSearchPolicyDocumentsPassesSection(t *testing.T) {
	f := newFixture()

	out, ok := exec(t, f.tools, context.Background(), "search_policy_documents", `{"query":"flood damage","section":"Exclusion"}`)
	require.True(t, ok)
	assert.Equal(t, "Exclusion", f.policies.section)
	assert.Len(t, out["documents"], 1)
}

func TestCreateQuotationPrefersConversationSession(t *testing.T) {
	f := newFixture()
	ctx := agent.WithSessionID(context.Background(), "real-session")

	out, ok := exec(t, f.tools, ctx, "create_quotation", `{"session_id":"made-up","car_model_id":"3","plan_id":7,"customer_name":"Somchai"}`)
	require.True(t, ok)
	assert.Equal(t, "real-session", f.quotations.got.SessionID)
	assert.Equal(t, uint(3), f.quotations.got.CarModelID)
	assert.Equal(t, uint(7), f.quotations.got.PlanID)
	assert.Equal(t, true, out["success"])
	assert.Contains(t, out["result"], "QT-20250101-ABCD")
	assert.Equal(t, "q1", out["quotation"].(map[string]any)["quotation_id"])
}

func TestCreateQuotationRequiresIDs(t *testing.T) {
	f := newFixture()

	out, ok := exec(t, f.tools, context.Background(), "create_quotation", `{"plan_id":7}`)
	assert.False(t, ok)
	assert.Contains(t, out["result"], "car_model_id")
}

func TestCreateOrderReportsExistingOrder(t *testing.T) {
	f := newFixture()
	f.orders.existing = true

	out, ok := exec(t, f.tools, context.Background(), "create_order", `{"quotation_id":"q1","payment_method":"bank_transfer"}`)
	require.True(t, ok)
	assert.Contains(t, out["result"], "already exists")
	assert.Equal(t, "bank_transfer", out["order"].(map[string]any)["payment_method"])
}

func TestCreateOrderFailureIsStructured(t *testing.T) {
	f := newFixture()

	out, ok := exec(t, f.tools, context.Background(), "create_order", `{"quotation_id":"missing"}`)
	assert.False(t, ok)
	assert.Equal(t, app.ErrQuotationNotFound.Error(), out["result"])
	assert.Equal(t, false, out["success"])
}

func TestUpdateOrderPaymentMentionsActivation(t *testing.T) {
	f := newFixture()

	out, ok := exec(t, f.tools, context.Background(), "update_order_payment", `{"order_id":"o1","payment_status":"paid"}`)
	require.True(t, ok)
	assert.Equal(t, "paid", f.orders.status)
	assert.Contains(t, out["result"], "Policy POL-1 is active")
}

func TestGetOrderStatus(t *testing.T) {
	f := newFixture()

	out, ok := exec(t, f.tools, context.Background(), "get_order_status", `{"order_number":"ORD-1"}`)
	require.True(t, ok)
	assert.Equal(t, "Order ORD-1: payment pending, policy inactive.", out["result"])

	out, ok = exec(t, f.tools, context.Background(), "get_order_status", `{"order_number":"ORD-2"}`)
	assert.False(t, ok)
	assert.Equal(t, "order not found", out["result"])
}

func TestFlexInt(t *testing.T) {
	cases := map[string]int64{`12`: 12, `"12"`: 12, `12.0`: 12, `null`: 0, `""`: 0}
	for in, want := range cases {
		var f flexInt
		require.NoError(t, json.Unmarshal([]byte(in), &f), in)
		assert.Equal(t, want, int64(f), in)
	}
	var f flexInt
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &f))
}
