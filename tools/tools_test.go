package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intility/dadp-mcp-go-live/golive"
	"github.com/intility/dadp-mcp-go-live/report"
)

type fakeAPI struct {
	reports []report.Report
	report  *report.Report
	err     error

	filters   []string
	submitted []report.CreateRequest
	fetched   []string
}

func (f *fakeAPI) SubmitReport(_ context.Context, req report.CreateRequest) (*report.Report, error) {
	f.submitted = append(f.submitted, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

func (f *fakeAPI) ListReports(_ context.Context, status string) ([]report.Report, error) {
	f.filters = append(f.filters, status)
	return f.reports, f.err
}

func (f *fakeAPI) GetReport(_ context.Context, id string) (*report.Report, error) {
	f.fetched = append(f.fetched, id)
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

func (f *fakeAPI) BaseURL() string { return "http://backend:8080/api/v1" }

func strPtr(s string) *string { return &s }

func testReport(name, repo, status string) report.Report {
	return report.Report{
		ID:             "id-" + name,
		ServerName:     name,
		RepositoryURL:  repo,
		DeveloperEmail: "dev@example.com",
		ReportData:     "# Report for " + name,
		Status:         report.Status(status),
		SubmittedAt:    "2025-10-21T10:00:00Z",
	}
}

func TestListServers_AllSendsNoFilter(t *testing.T) {
	api := &fakeAPI{}
	tool := NewListServers(api, nil)

	tool.List(context.Background(), "all")
	tool.List(context.Background(), "")
	tool.List(context.Background(), "approved")

	assert.Equal(t, []string{"", "", "approved"}, api.filters)
}

func TestListServers_Table(t *testing.T) {
	reviewed := testReport("mcp-widget", "https://github.com/acme/widget", "approved")
	reviewed.ReviewedBy = strPtr("platform@intility.no")
	api := &fakeAPI{reports: []report.Report{
		reviewed,
		testReport("mcp-internal", "https://git.internal.example/tools/mcp", "pending_review"),
		testReport("mcp-odd", "https://github.com/acme/odd", "archived"),
	}}

	out := NewListServers(api, nil).List(context.Background(), "all")

	assert.Contains(t, out, "# MCP Servers - Status: all")
	assert.Contains(t, out, "Found **3** report(s)")
	assert.Contains(t, out, "| Server Name | Repository | Status | Submitted | Reviewed By |")
	assert.Contains(t, out, "| mcp-widget | acme/widget | ✅ approved | 2025-10-21 | platform@intility.no |")
	assert.Contains(t, out, "| mcp-internal | https://git.internal.example/tools/mcp | ⏳ pending_review | 2025-10-21 | — |")
	assert.Contains(t, out, "| mcp-odd | acme/odd | ❓ archived | 2025-10-21 | — |")
	assert.NotContains(t, out, "2025-10-21T10:00:00Z")
	assert.NotContains(t, out, "Platform Team Action Required")
}

func TestListServers_PendingReviewAddsInstructions(t *testing.T) {
	api := &fakeAPI{reports: []report.Report{
		testReport("mcp-a", "https://github.com/acme/a", "pending_review"),
	}}

	out := NewListServers(api, nil).List(context.Background(), "pending_review")

	assert.Contains(t, out, "## Platform Team Action Required")
	assert.Contains(t, out, "curl -X PATCH http://backend:8080/api/v1/reports/{id}/status")
}

func TestListServers_Empty(t *testing.T) {
	api := &fakeAPI{reports: []report.Report{}}

	out := NewListServers(api, nil).List(context.Background(), "approved")

	assert.Contains(t, out, "# No Reports Found")
	assert.Contains(t, out, "No MCP servers found with status: **approved**")
	assert.NotContains(t, out, "| Server Name")
}

func TestListServers_TimeoutRendersGenericError(t *testing.T) {
	api := &fakeAPI{err: &golive.TransportError{Method: "GET", URL: "http://backend:8080/api/v1/reports", Err: context.DeadlineExceeded}}

	out := NewListServers(api, nil).List(context.Background(), "all")

	assert.Contains(t, out, "# Error Listing Reports")
	assert.Contains(t, out, "TimeoutError:")
	assert.Contains(t, out, "- API is running at http://backend:8080/api/v1")
	assert.Contains(t, out, "- Network connectivity")
	assert.NotContains(t, out, "Input parameters")
}

func TestListServers_TimeoutAgainstSlowBackend(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/v1/reports", func(c *gin.Context) {
		select {
		case <-c.Request.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := golive.NewClient(srv.URL+"/api/v1", 50*time.Millisecond)
	out, err := NewListServers(client, nil).Call(context.Background(), json.RawMessage(`{"status":"all"}`))

	require.NoError(t, err)
	assert.Contains(t, out, "# Error Listing Reports")
	assert.Contains(t, out, "TimeoutError:")
}

func TestListServers_InternalErrorIsNotBlamedOnBackend(t *testing.T) {
	api := &fakeAPI{err: errors.New("template exploded")}

	out := NewListServers(api, nil).List(context.Background(), "all")

	assert.Contains(t, out, "# Internal Error")
	assert.Contains(t, out, "template exploded")
	assert.NotContains(t, out, "API is running at")
}

func TestListServers_CallDefaultsToAll(t *testing.T) {
	api := &fakeAPI{reports: []report.Report{}}
	tool := NewListServers(api, nil)

	out, err := tool.Call(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, out, "status: **all**")

	out, err = tool.Call(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Contains(t, out, "status: **all**")
	assert.Equal(t, []string{"", ""}, api.filters)
}

func TestSubmitReport_Success(t *testing.T) {
	created := testReport("mcp-servicenow", "https://github.com/acme/servicenow", "pending_review")
	api := &fakeAPI{report: &created}

	out, err := NewSubmitReport(api, nil).Call(context.Background(), json.RawMessage(`{
		"server_name": "mcp-servicenow",
		"repository_url": "https://github.com/acme/servicenow",
		"developer_email": "dev@example.com",
		"report_markdown": "# Go-live"
	}`))
	require.NoError(t, err)

	require.Len(t, api.submitted, 1)
	assert.Equal(t, "# Go-live", api.submitted[0].ReportData)
	assert.Nil(t, api.submitted[0].ReportJSON)

	assert.Contains(t, out, "# Report Submitted Successfully! ✅")
	assert.Contains(t, out, "**Report ID:** id-mcp-servicenow")
	assert.Contains(t, out, "**Status:** pending_review")
	assert.Contains(t, out, "**Submitted:** 2025-10-21T10:00:00Z")
	assert.Contains(t, out, "via email at: dev@example.com")
}

func TestSubmitReport_PassesStructuredPayload(t *testing.T) {
	created := testReport("mcp-a", "https://github.com/acme/a", "pending_review")
	api := &fakeAPI{report: &created}

	_, err := NewSubmitReport(api, nil).Call(context.Background(), json.RawMessage(`{
		"server_name": "mcp-a",
		"report_markdown": "# A",
		"report_json": {"phase1_security": {"risk_level": "LOW"}}
	}`))
	require.NoError(t, err)

	require.Len(t, api.submitted, 1)
	assert.Equal(t, map[string]any{"phase1_security": map[string]any{"risk_level": "LOW"}}, api.submitted[0].ReportJSON)
}

func TestSubmitReport_Duplicate(t *testing.T) {
	api := &fakeAPI{err: &golive.HTTPStatusError{
		StatusCode: http.StatusInternalServerError,
		Message:    "Report already exists for this repository",
	}}

	out := NewSubmitReport(api, nil).Submit(context.Background(), SubmitReportArgs{ServerName: "mcp-a"})

	assert.Contains(t, out, "# Error: Report Already Exists")
	assert.Contains(t, out, "Report already exists for this repository")
	assert.NotContains(t, out, "# Error Submitting Report")
}

func TestSubmitReport_DuplicateInRawBody(t *testing.T) {
	api := &fakeAPI{err: &golive.HTTPStatusError{
		StatusCode: http.StatusBadRequest,
		Body:       `{"error":"Bad Request","message":"Report already exists for this repository"}`,
		Message:    "Bad Request",
	}}

	out := NewSubmitReport(api, nil).Submit(context.Background(), SubmitReportArgs{ServerName: "mcp-a"})

	assert.Contains(t, out, "# Error: Report Already Exists")
	assert.NotContains(t, out, "# Error Submitting Report")
}

func TestSubmitReport_GenericFailure(t *testing.T) {
	api := &fakeAPI{err: &golive.HTTPStatusError{StatusCode: http.StatusBadGateway, Message: "Bad Gateway"}}

	out := NewSubmitReport(api, nil).Submit(context.Background(), SubmitReportArgs{ServerName: "mcp-a"})

	assert.Contains(t, out, "# Error Submitting Report")
	assert.Contains(t, out, "HTTPStatusError: backend returned status 502: Bad Gateway")
	assert.Contains(t, out, "- API is running at http://backend:8080/api/v1")
	assert.Contains(t, out, "- Input parameters are correct")
}

func TestSubmitReport_InvalidArguments(t *testing.T) {
	_, err := NewSubmitReport(&fakeAPI{}, nil).Call(context.Background(), json.RawMessage(`{"server_name": 5}`))
	assert.Error(t, err)
}

func TestGetReport_Render(t *testing.T) {
	r := testReport("mcp-a", "https://github.com/acme/a", "rejected")
	r.ReviewedAt = strPtr("2025-10-22T09:00:00Z")
	r.ReviewedBy = strPtr("platform@intility.no")
	r.ReviewNotes = strPtr("Missing rate limiting")
	r.ReportJSON = map[string]any{"phase1_security": map[string]any{"risk_level": "HIGH"}}
	api := &fakeAPI{report: &r}

	out, err := NewGetReport(api, nil).Call(context.Background(), json.RawMessage(`{"id":"id-mcp-a"}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"id-mcp-a"}, api.fetched)
	assert.Contains(t, out, "# mcp-a ❌ rejected")
	assert.Contains(t, out, "**Reviewed:** 2025-10-22T09:00:00Z by platform@intility.no")
	assert.Contains(t, out, "**Review Notes:** Missing rate limiting")
	assert.Contains(t, out, "# Report for mcp-a")
	assert.Contains(t, out, "```json")
	assert.Contains(t, out, `"risk_level": "HIGH"`)
}

func TestGetReport_NotFound(t *testing.T) {
	api := &fakeAPI{err: &golive.HTTPStatusError{StatusCode: http.StatusNotFound, Message: "Report not found: x"}}

	out := NewGetReport(api, nil).Get(context.Background(), "x")
	assert.Contains(t, out, "# Report Not Found")
}

func TestGetReport_RequiresID(t *testing.T) {
	_, err := NewGetReport(&fakeAPI{}, nil).Call(context.Background(), json.RawMessage(`{}`))
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	reg := NewGoLiveRegistry(&fakeAPI{}, nil)

	names := make([]string, 0)
	for _, tool := range reg.List() {
		names = append(names, tool.Name())
	}
	assert.Equal(t, []string{"submit_report", "list_servers", "get_report"}, names)

	tool, ok := reg.Get("list_servers")
	require.True(t, ok)
	assert.Equal(t, "list_servers", tool.Name())

	_, ok = reg.Get("execute_command")
	assert.False(t, ok)

	openaiTools := reg.OpenAITools()
	require.Len(t, openaiTools, 3)
	assert.Equal(t, "submit_report", openaiTools[0].OfFunction.Function.Name)
}
