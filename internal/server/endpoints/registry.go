package endpoints

import (
	"github.com/tomehq/tome/internal/api"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	SwaggerSpecPath string
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{},
		&VersionEndpoint{},

		// Work endpoints
		&IngestWorkEndpoint{},
		&ListWorksEndpoint{},
		&GetWorkEndpoint{},
		&DeleteWorkEndpoint{},
		&WorkEventsEndpoint{},

		// Chapter endpoints
		&ListChaptersEndpoint{},
		&GetChapterEndpoint{},

		// Stage command endpoints
		&GenerateStageEndpoint{},
		&SkipStageEndpoint{},
		&RegenerateWorkEndpoint{},

		// Analysis endpoints
		&GetAnalysisEndpoint{},
		&RegenerateAnalysisEndpoint{},

		// Note endpoints
		&ListNotesEndpoint{},
		&GetNoteEndpoint{},

		// Graph endpoints
		&GetGraphEndpoint{},
		&AddEdgeEndpoint{},
		&RemoveEdgeEndpoint{},

		// Folder endpoints
		&GetFoldersEndpoint{},
		&OrganizeFoldersEndpoint{},

		// Job record endpoints
		&ListJobsEndpoint{},

		// Metrics endpoints
		&MetricsSummaryEndpoint{},

		// Settings endpoints
		&GetSettingsEndpoint{},
		&UpdateSettingEndpoint{},

		// Swagger/OpenAPI endpoints
		&SwaggerEndpoint{SpecPath: cfg.SwaggerSpecPath},
		&SwaggerUIEndpoint{},
	}
}
