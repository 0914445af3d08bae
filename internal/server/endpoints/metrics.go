package endpoints

import (
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/tomehq/tome/internal/api"
	"github.com/tomehq/tome/internal/metrics"
	"github.com/tomehq/tome/internal/svcctx"
)

// MetricsSummaryEndpoint handles GET /api/v1/metrics/summary.
type MetricsSummaryEndpoint struct{}

var _ api.Endpoint = (*MetricsSummaryEndpoint)(nil)

func (e *MetricsSummaryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/v1/metrics/summary", e.handler
}

func (e *MetricsSummaryEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Model-call summary
//	@Description	Aggregate model-call counts, tokens, and latency per operation
//	@Tags			metrics
//	@Produce		json
//	@Param			workId	query		string	false	"Restrict to one work"
//	@Success		200	{object}	metrics.Summary
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/v1/metrics/summary [get]
func (e *MetricsSummaryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	q := svcctx.MetricsQueryFrom(r.Context())
	if q == nil {
		writeError(w, http.StatusServiceUnavailable, "metrics not initialized")
		return
	}

	summary, err := q.Summarize(r.Context(), r.URL.Query().Get("workId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (e *MetricsSummaryEndpoint) Command(getServerURL func() string) *cobra.Command {
	var workID string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show model-call totals per operation",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			path := "/api/v1/metrics/summary"
			if workID != "" {
				path += "?workId=" + url.QueryEscape(workID)
			}
			var summary metrics.Summary
			if err := client.Get(ctx, path, &summary); err != nil {
				return err
			}
			return api.Output(summary)
		},
	}
	cmd.Flags().StringVar(&workID, "work", "", "Restrict to one work")
	return cmd
}
