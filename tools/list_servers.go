package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/intility/dadp-mcp-go-live/report"
)

type ListServersArgs struct {
	Status string `json:"status"`
}

type ListServers struct {
	backendTool
}

func NewListServers(api ReportsAPI, logger *logrus.Logger) ListServers {
	return ListServers{newBackendTool(api, logger)}
}

func (ListServers) Name() string   { return "list_servers" }
func (ListServers) ReadOnly() bool { return true }
func (ListServers) Description() string {
	return "List submitted MCP servers and their review status. Used by the platform team to find reports " +
		"that need review, or by developers to check the status of their submissions."
}
func (ListServers) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"status": map[string]any{
				"type":        "string",
				"description": "Filter by status: 'pending_review', 'approved', 'rejected', or 'all'",
				"default":     report.FilterAll,
			},
		},
	}
}

func (l ListServers) Call(ctx context.Context, raw json.RawMessage) (string, error) {
	var args ListServersArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return "", err
	}
	return l.List(ctx, args.Status), nil
}

// List renders the reports matching status as a markdown table.
func (l ListServers) List(ctx context.Context, status string) string {
	if status == "" {
		status = report.FilterAll
	}

	filter := status
	if filter == report.FilterAll {
		filter = ""
	}

	reports, err := l.api.ListReports(ctx, filter)
	if err != nil {
		return l.failureText(l.Name(), "Error Listing Reports", err)
	}

	l.logger.WithFields(logrus.Fields{"status": status, "count": len(reports)}).Debug("listed reports")

	if len(reports) == 0 {
		return fmt.Sprintf(`# No Reports Found

No MCP servers found with status: **%s**

Use `+"`submit_report`"+` to submit a go-live report.
`, status)
	}

	var out strings.Builder
	fmt.Fprintf(&out, "# MCP Servers - Status: %s\n\n", status)
	fmt.Fprintf(&out, "Found **%d** report(s)\n\n", len(reports))
	out.WriteString("| Server Name | Repository | Status | Submitted | Reviewed By |\n")
	out.WriteString("|-------------|------------|--------|-----------|-------------|\n")

	for _, r := range reports {
		fmt.Fprintf(&out, "| %s | %s | %s %s | %s | %s |\n",
			r.ServerName, r.RepoShort(), r.Status.Emoji(), r.Status, r.SubmittedDate(), r.ReviewerOr("—"))
	}

	if status == string(report.StatusPendingReview) {
		out.WriteString(reviewInstructions(l.api.BaseURL()))
	}

	return out.String()
}

// reviewInstructions shows reviewers how to approve or reject through the
// backend API. Nothing here is executed.
func reviewInstructions(baseURL string) string {
	var out strings.Builder
	out.WriteString("\n## Platform Team Action Required\n\n")
	out.WriteString("These reports are awaiting review. Use the API to approve/reject:\n\n")
	out.WriteString("```bash\n")
	fmt.Fprintf(&out, "curl -X PATCH %s/reports/{id}/status \\\n", baseURL)
	out.WriteString("  -H \"Content-Type: application/json\" \\\n")
	out.WriteString(`  -d '{"status":"approved","reviewed_by":"platform@intility.no","review_notes":"LGTM"}'` + "\n")
	out.WriteString("```\n")
	return out.String()
}
