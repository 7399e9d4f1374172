package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/intility/dadp-mcp-go-live/golive"
	"github.com/intility/dadp-mcp-go-live/report"
)

type SubmitReportArgs struct {
	ServerName     string         `json:"server_name"`
	RepositoryURL  string         `json:"repository_url"`
	DeveloperEmail string         `json:"developer_email"`
	ReportMarkdown string         `json:"report_markdown"`
	ReportJSON     map[string]any `json:"report_json,omitempty"`
}

type SubmitReport struct {
	backendTool
}

func NewSubmitReport(api ReportsAPI, logger *logrus.Logger) SubmitReport {
	return SubmitReport{newBackendTool(api, logger)}
}

func (SubmitReport) Name() string { return "submit_report" }
func (SubmitReport) Description() string {
	return "Submit an MCP server go-live report to the platform team for review. " +
		"Call this after completing the go-live checklist with all security and infrastructure validation. " +
		"The report is stored as 'pending_review' until the platform team approves or rejects it."
}
func (SubmitReport) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"server_name": map[string]any{
				"type":        "string",
				"description": "Name of the MCP server (e.g. 'mcp-servicenow')",
			},
			"repository_url": map[string]any{
				"type":        "string",
				"description": "Full GitHub repository URL",
			},
			"developer_email": map[string]any{
				"type":        "string",
				"description": "Email address of the developer",
			},
			"report_markdown": map[string]any{
				"type":        "string",
				"description": "Complete go-live report in markdown format",
			},
			"report_json": map[string]any{
				"type":        "object",
				"description": "Optional structured version of the report",
			},
		},
		"required": []string{"server_name", "repository_url", "developer_email", "report_markdown"},
	}
}

func (s SubmitReport) Call(ctx context.Context, raw json.RawMessage) (string, error) {
	var args SubmitReportArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return "", err
	}
	return s.Submit(ctx, args), nil
}

// Submit forwards the report and renders the outcome. It never fails: every
// error becomes text for the caller.
func (s SubmitReport) Submit(ctx context.Context, args SubmitReportArgs) string {
	created, err := s.api.SubmitReport(ctx, report.CreateRequest{
		ServerName:     args.ServerName,
		RepositoryURL:  args.RepositoryURL,
		DeveloperEmail: args.DeveloperEmail,
		ReportData:     args.ReportMarkdown,
		ReportJSON:     args.ReportJSON,
	})
	if err != nil {
		if golive.IsDuplicate(err) {
			s.logger.WithField("server_name", args.ServerName).Info("report already exists")
			return fmt.Sprintf(`# Error: Report Already Exists

%v

A report for this repository has already been submitted. Use `+"`list_servers`"+` to check its status.
`, err)
		}
		return s.failureText(s.Name(), "Error Submitting Report", err, "Input parameters are correct")
	}

	s.logger.WithFields(logrus.Fields{
		"report_id":   created.ID,
		"server_name": created.ServerName,
	}).Info("report submitted")

	return fmt.Sprintf(`# Report Submitted Successfully! ✅

**Report ID:** %s
**Server Name:** %s
**Repository:** %s
**Status:** %s
**Submitted:** %s

Your go-live report has been submitted to the platform team for review.

## Next Steps

1. The platform team will review your report
2. They will verify all security and infrastructure requirements
3. You'll receive approval or feedback via email at: %s

You can check the status anytime using the `+"`list_servers`"+` tool.
`, created.ID, created.ServerName, created.RepositoryURL, created.Status, created.SubmittedAt, created.DeveloperEmail)
}
