package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/intility/dadp-mcp-go-live/golive"
	"github.com/intility/dadp-mcp-go-live/logging"
	"github.com/intility/dadp-mcp-go-live/report"
)

// ReportsAPI is the part of the go-live backend client the tools need.
type ReportsAPI interface {
	SubmitReport(ctx context.Context, req report.CreateRequest) (*report.Report, error)
	ListReports(ctx context.Context, status string) ([]report.Report, error)
	GetReport(ctx context.Context, id string) (*report.Report, error)
	BaseURL() string
}

// NewGoLiveRegistry registers every go-live tool against api.
func NewGoLiveRegistry(api ReportsAPI, logger *logrus.Logger) *Registry {
	return NewRegistry(
		NewSubmitReport(api, logger),
		NewListServers(api, logger),
		NewGetReport(api, logger),
	)
}

type backendTool struct {
	api    ReportsAPI
	logger *logrus.Logger
}

func newBackendTool(api ReportsAPI, logger *logrus.Logger) backendTool {
	if logger == nil {
		logger = logging.Discard()
	}
	return backendTool{api: api, logger: logger}
}

// failureText renders err for the caller. Backend failures get the
// troubleshooting checklist; anything else is an internal fault and is
// reported as such instead of blaming the backend.
func (b backendTool) failureText(tool, title string, err error, checks ...string) string {
	kind := golive.Kind(err)
	log := b.logger.WithFields(logrus.Fields{"tool": tool, "kind": kind}).WithError(err)

	if kind == "" {
		log.Error("tool failed with internal error")
		return fmt.Sprintf("# Internal Error\n\nThe MCP server failed while handling `%s`:\n\n%v\n\n"+
			"This is a problem in the MCP server itself, not in the go-live API.\n", tool, err)
	}

	log.Warn("backend call failed")

	var out strings.Builder
	fmt.Fprintf(&out, "# %s\n\n%s: %v\n\nPlease check:\n", title, kind, err)
	fmt.Fprintf(&out, "- API is running at %s\n", b.api.BaseURL())
	out.WriteString("- Network connectivity\n")
	for _, c := range checks {
		fmt.Fprintf(&out, "- %s\n", c)
	}
	return out.String()
}
