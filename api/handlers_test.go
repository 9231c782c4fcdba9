package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/loomhr/leave-engine/api"
	"github.com/loomhr/leave-engine/calendar"
	"github.com/loomhr/leave-engine/event"
	"github.com/loomhr/leave-engine/leave"
	"github.com/loomhr/leave-engine/store/memory"
	"github.com/loomhr/leave-engine/trial"
)

// =============================================================================
// FIXTURE
// =============================================================================

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.New()
	logger := zap.NewNop()
	publisher := event.Discard{}

	ledger := leave.NewLedger(store, logger)
	catalog := leave.NewCatalog(store, logger)
	h := &api.Handler{
		Directory: leave.NewDirectory(store, store, store, catalog, logger),
		Catalog:   catalog,
		Ledger:    ledger,
		Workflow:  leave.NewWorkflow(store, store, store, store, ledger, publisher, logger),
		Accrual:   leave.NewAccrualEngine(store, store, store, store, ledger, publisher, logger),
		Rollover:  leave.NewRolloverService(store, store, store, store, store, ledger, publisher, logger),
		Trials:    trial.NewManager(memory.NewTrialStore(), 14, publisher, logger),
		Balances:  store,
		Logger:    logger,
	}

	srv := httptest.NewServer(api.NewRouter(h, []string{"*"}))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var out map[string]any
	if resp.Header.Get("Content-Type") == "application/json" {
		json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp, out
}

func doJSONList(t *testing.T, url string) (*http.Response, []map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var out []map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

// setupTenant creates a tenant and one employee, returning the base URL.
func setupTenant(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/tenants",
		map[string]any{"id": "acme", "name": "Acme"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	base := srv.URL + "/api/tenants/acme"
	resp, _ = doJSON(t, http.MethodPost, base+"/employees",
		map[string]any{"id": "alice", "name": "Alice", "team_id": "team-1", "contract_start": "2023-01-01"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return base
}

// creditBalance seeds paid leave days via the adjust endpoint.
func creditBalance(t *testing.T, base string, days string, year int) {
	t.Helper()
	resp, _ := doJSON(t, http.MethodPost, base+"/employees/alice/balances/adjust",
		map[string]any{"code": "CP", "year": year, "delta": days, "reason": "seed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

// =============================================================================
// TENANT BOOTSTRAP
// =============================================================================

func TestCreateTenant_SeedsCatalogAndStartsTrial(t *testing.T) {
	srv := newServer(t)
	base := setupTenant(t, srv)

	resp, types := doJSONList(t, base+"/leave-types")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, types, 4) // CP, RTT, SICK, UNPAID

	resp2, tenant := doJSON(t, http.MethodGet, base+"/", nil)
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	trialInfo, ok := tenant["trial"].(map[string]any)
	require.True(t, ok, "trial state missing")
	assert.Equal(t, "trialing", trialInfo["state"])
}

// =============================================================================
// REQUEST LIFECYCLE OVER HTTP
// =============================================================================

// futureWeek returns the Monday and Friday of a full workweek at least
// two weeks out, so the request is still cancellable when the test runs.
func futureWeek() (start, end calendar.Date) {
	d := calendar.Today().AddDays(14)
	for d.Weekday() != time.Monday {
		d = d.AddDays(1)
	}
	return d, d.AddDays(4)
}

func TestRequestLifecycle(t *testing.T) {
	srv := newServer(t)
	base := setupTenant(t, srv)

	start, end := futureWeek()
	year := start.Year()
	creditBalance(t, base, "10", year)

	// Submit Monday-Friday.
	resp, req := doJSON(t, http.MethodPost, base+"/requests", map[string]any{
		"employee_id": "alice",
		"code":        "CP",
		"start_date":  start.String(),
		"end_date":    end.String(),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "pending", req["status"])
	assert.Equal(t, "5", req["days"])
	id := req["id"].(string)

	// Approve.
	resp, req = doJSON(t, http.MethodPost, fmt.Sprintf("%s/requests/%s/decide", base, id),
		map[string]any{"decision": "approve", "decided_by": "manager"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "approved", req["status"])

	// Balance reflects the debit.
	resp, balances := doJSONList(t, fmt.Sprintf("%s/employees/alice/balances?year=%d", base, year))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, balances, 1)
	assert.Equal(t, "5", balances[0]["available"])
	assert.Equal(t, "5", balances[0]["used"])

	// The leave has not started yet, so cancelling restores the days.
	resp, req = doJSON(t, http.MethodPost, fmt.Sprintf("%s/requests/%s/cancel", base, id), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cancelled", req["status"])

	_, balances = doJSONList(t, fmt.Sprintf("%s/employees/alice/balances?year=%d", base, year))
	assert.Equal(t, "10", balances[0]["available"])
}

func TestCancelRequest_PastLeaveIs409(t *testing.T) {
	srv := newServer(t)
	base := setupTenant(t, srv)
	creditBalance(t, base, "10", 2024)

	_, req := doJSON(t, http.MethodPost, base+"/requests", map[string]any{
		"employee_id": "alice",
		"code":        "CP",
		"start_date":  "2024-03-04",
		"end_date":    "2024-03-08",
	})
	id := req["id"].(string)
	resp, _ := doJSON(t, http.MethodPost, fmt.Sprintf("%s/requests/%s/decide", base, id),
		map[string]any{"decision": "approve", "decided_by": "manager"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPost, fmt.Sprintf("%s/requests/%s/cancel", base, id), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body["error"], "cannot move from approved to cancelled")

	// The debit stands.
	_, balances := doJSONList(t, base+"/employees/alice/balances?year=2024")
	assert.Equal(t, "5", balances[0]["available"])
}

func TestSubmit_InsufficientBalanceIs409(t *testing.T) {
	srv := newServer(t)
	base := setupTenant(t, srv)
	creditBalance(t, base, "2", 2024)

	resp, body := doJSON(t, http.MethodPost, base+"/requests", map[string]any{
		"employee_id": "alice",
		"code":        "CP",
		"start_date":  "2024-03-04",
		"end_date":    "2024-03-08",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body["error"], "insufficient balance")
}

func TestSubmit_BadDateIs400(t *testing.T) {
	srv := newServer(t)
	base := setupTenant(t, srv)

	resp, _ := doJSON(t, http.MethodPost, base+"/requests", map[string]any{
		"employee_id": "alice",
		"code":        "CP",
		"start_date":  "04/03/2024",
		"end_date":    "2024-03-08",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetRequest_WrongTenantIs404(t *testing.T) {
	srv := newServer(t)
	base := setupTenant(t, srv)
	creditBalance(t, base, "10", 2024)

	resp, req := doJSON(t, http.MethodPost, base+"/requests", map[string]any{
		"employee_id": "alice",
		"code":        "CP",
		"start_date":  "2024-03-04",
		"end_date":    "2024-03-08",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Second tenant cannot see it.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/tenants",
		map[string]any{"id": "globex", "name": "Globex"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet,
		fmt.Sprintf("%s/api/tenants/globex/requests/%s", srv.URL, req["id"]), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDoubleDecideIs409(t *testing.T) {
	srv := newServer(t)
	base := setupTenant(t, srv)
	creditBalance(t, base, "10", 2024)

	_, req := doJSON(t, http.MethodPost, base+"/requests", map[string]any{
		"employee_id": "alice",
		"code":        "CP",
		"start_date":  "2024-03-04",
		"end_date":    "2024-03-08",
	})
	url := fmt.Sprintf("%s/requests/%s/decide", base, req["id"])

	resp, _ := doJSON(t, http.MethodPost, url, map[string]any{"decision": "approve", "decided_by": "manager"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodPost, url, map[string]any{"decision": "reject", "decided_by": "manager"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

// =============================================================================
// ADMIN RUNS
// =============================================================================

func TestAdminAccrualRun(t *testing.T) {
	srv := newServer(t)
	base := setupTenant(t, srv)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/admin/accrual/run",
		map[string]any{"period": "2024-03"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, balances := doJSONList(t, base+"/employees/alice/balances?year=2024")
	byCode := map[string]string{}
	for _, b := range balances {
		byCode[b["code"].(string)] = b["available"].(string)
	}
	assert.Equal(t, "2.5", byCode["CP"])
	assert.Equal(t, "1", byCode["RTT"])
}

func TestAdminRolloverRun(t *testing.T) {
	srv := newServer(t)
	base := setupTenant(t, srv)
	creditBalance(t, base, "8", 2024)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/admin/rollover/run",
		map[string]any{"from_year": 2024})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, balances := doJSONList(t, base+"/employees/alice/balances?year=2025")
	require.Len(t, balances, 1)
	assert.Equal(t, "5", balances[0]["carried_over"]) // capped at 5
}

func TestAdminTrialTickAndConvert(t *testing.T) {
	srv := newServer(t)
	base := setupTenant(t, srv)

	resp, acct := doJSON(t, http.MethodPost, base+"/trial/convert", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "converted", acct["state"])

	// Converting again conflicts.
	resp, _ = doJSON(t, http.MethodPost, base+"/trial/convert", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// A tick far in the future leaves the converted tenant alone.
	resp, report := doJSON(t, http.MethodPost, srv.URL+"/api/admin/trial/tick",
		map[string]any{"date": "2030-01-01"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), report["Expired"])
}

// =============================================================================
// CONFLICTS
// =============================================================================

func TestConflictEndpoint(t *testing.T) {
	srv := newServer(t)
	base := setupTenant(t, srv)

	resp, _ := doJSON(t, http.MethodPost, base+"/employees",
		map[string]any{"id": "bob", "name": "Bob", "team_id": "team-1", "contract_start": "2023-01-01"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, base+"/employees/bob/balances/adjust",
		map[string]any{"code": "CP", "year": 2024, "delta": "10", "reason": "seed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, base+"/requests", map[string]any{
		"employee_id": "bob",
		"code":        "CP",
		"start_date":  "2024-03-04",
		"end_date":    "2024-03-08",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, report := doJSON(t, http.MethodGet,
		base+"/conflicts?employee=alice&start=2024-03-06&end=2024-03-12", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	conflicts := report["conflicts"].([]any)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "bob", conflicts[0].(map[string]any)["employee_id"])
}

func TestConflictEndpoint_InvertedRangeIs400(t *testing.T) {
	srv := newServer(t)
	base := setupTenant(t, srv)

	resp, body := doJSON(t, http.MethodGet,
		base+"/conflicts?employee=alice&start=2024-03-12&end=2024-03-06", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "invalid range")
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func TestHolidayAffectsRequestDays(t *testing.T) {
	srv := newServer(t)
	base := setupTenant(t, srv)
	creditBalance(t, base, "10", 2024)

	resp, _ := doJSON(t, http.MethodPost, base+"/holidays",
		map[string]any{"date": "2024-03-06", "label": "founders day"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	_, req := doJSON(t, http.MethodPost, base+"/requests", map[string]any{
		"employee_id": "alice",
		"code":        "CP",
		"start_date":  "2024-03-04",
		"end_date":    "2024-03-08",
	})
	assert.Equal(t, "4", req["days"])
}
