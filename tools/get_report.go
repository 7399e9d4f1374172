package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/intility/dadp-mcp-go-live/golive"
	"github.com/intility/dadp-mcp-go-live/report"
)

type GetReportArgs struct {
	ID string `json:"id"`
}

type GetReport struct {
	backendTool
}

func NewGetReport(api ReportsAPI, logger *logrus.Logger) GetReport {
	return GetReport{newBackendTool(api, logger)}
}

func (GetReport) Name() string   { return "get_report" }
func (GetReport) ReadOnly() bool { return true }
func (GetReport) Description() string {
	return "Show a single go-live report with its review outcome, full markdown content and structured data. " +
		"Report IDs can be obtained from the list_servers tool."
}
func (GetReport) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id": map[string]any{"type": "string", "description": "Report ID"},
		},
		"required": []string{"id"},
	}
}

func (g GetReport) Call(ctx context.Context, raw json.RawMessage) (string, error) {
	var args GetReportArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return "", err
	}
	if strings.TrimSpace(args.ID) == "" {
		return "", fmt.Errorf("id is required")
	}
	return g.Get(ctx, args.ID), nil
}

func (g GetReport) Get(ctx context.Context, id string) string {
	r, err := g.api.GetReport(ctx, id)
	if err != nil {
		if golive.IsNotFound(err) {
			return fmt.Sprintf("# Report Not Found\n\nNo report with ID **%s** exists.\n\nUse `list_servers` to find report IDs.\n", id)
		}
		return g.failureText(g.Name(), "Error Fetching Report", err)
	}

	g.logger.WithFields(logrus.Fields{"report_id": r.ID}).Debug("fetched report")
	return renderReport(r)
}

func renderReport(r *report.Report) string {
	var out strings.Builder
	fmt.Fprintf(&out, "# %s %s %s\n\n", r.ServerName, r.Status.Emoji(), r.Status)
	fmt.Fprintf(&out, "**Report ID:** %s\n", r.ID)
	fmt.Fprintf(&out, "**Repository:** %s\n", r.RepositoryURL)
	fmt.Fprintf(&out, "**Developer:** %s\n", r.DeveloperEmail)
	fmt.Fprintf(&out, "**Submitted:** %s\n", r.SubmittedAt)
	if r.Reviewed() {
		fmt.Fprintf(&out, "**Reviewed:** %s by %s\n", *r.ReviewedAt, r.ReviewerOr("—"))
	}
	if r.ReviewNotes != nil && *r.ReviewNotes != "" {
		fmt.Fprintf(&out, "**Review Notes:** %s\n", *r.ReviewNotes)
	}

	out.WriteString("\n## Report\n\n")
	out.WriteString(strings.TrimSpace(r.ReportData))
	out.WriteString("\n")

	if len(r.ReportJSON) > 0 {
		data, err := json.MarshalIndent(r.ReportJSON, "", "  ")
		if err == nil {
			out.WriteString("\n## Structured Data\n\n```json\n")
			out.Write(data)
			out.WriteString("\n```\n")
		}
	}
	return out.String()
}
