package endpoints

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tomehq/tome/internal/api"
	"github.com/tomehq/tome/internal/config"
	"github.com/tomehq/tome/internal/svcctx"
)

// redactedValue replaces secrets in settings responses. Env references
// like ${OPENAI_API_KEY} are left alone since they carry no secret.
const redactedValue = "[redacted]"

// SettingsResponse is the current configuration with secrets redacted.
type SettingsResponse struct {
	Settings config.Config `json:"settings"`
}

// UpdateSettingRequest is the request body for patching one setting.
type UpdateSettingRequest struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func redactConfig(cfg *config.Config) config.Config {
	// Config is all value fields, so a shallow copy is a full copy.
	out := *cfg
	if out.Gateway.APIKey != "" && !strings.HasPrefix(out.Gateway.APIKey, "${") {
		out.Gateway.APIKey = redactedValue
	}
	if out.Broker.URL != "" && strings.Contains(out.Broker.URL, "@") {
		out.Broker.URL = redactedValue
	}
	return out
}

// GetSettingsEndpoint handles GET /api/v1/settings.
type GetSettingsEndpoint struct{}

var _ api.Endpoint = (*GetSettingsEndpoint)(nil)

func (e *GetSettingsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/v1/settings", e.handler
}

func (e *GetSettingsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Show settings
//	@Description	Get the current configuration with secrets redacted
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	SettingsResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/v1/settings [get]
func (e *GetSettingsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	cm := svcctx.ConfigFrom(r.Context())
	if cm == nil {
		writeError(w, http.StatusServiceUnavailable, "config not initialized")
		return
	}

	writeJSON(w, http.StatusOK, SettingsResponse{Settings: redactConfig(cm.Get())})
}

func (e *GetSettingsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the server configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var resp SettingsResponse
			if err := client.Get(ctx, "/api/v1/settings", &resp); err != nil {
				return err
			}
			return api.Output(resp.Settings)
		},
	}
}

// UpdateSettingEndpoint handles PATCH /api/v1/settings.
type UpdateSettingEndpoint struct{}

var _ api.Endpoint = (*UpdateSettingEndpoint)(nil)

func (e *UpdateSettingEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PATCH", "/api/v1/settings", e.handler
}

func (e *UpdateSettingEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Update a setting
//	@Description	Set one configuration key and persist it to the config file
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			body	body		UpdateSettingRequest	true	"Key and new value"
//	@Success		200		{object}	SettingsResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/v1/settings [patch]
func (e *UpdateSettingEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	cm := svcctx.ConfigFrom(r.Context())
	if cm == nil {
		writeError(w, http.StatusServiceUnavailable, "config not initialized")
		return
	}

	var req UpdateSettingRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Key) == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	if err := cm.Set(req.Key, req.Value); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := cm.Save(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SettingsResponse{Settings: redactConfig(cm.Get())})
}

func (e *UpdateSettingEndpoint) Command(getServerURL func() string) *cobra.Command {
	var value string
	cmd := &cobra.Command{
		Use:   "set <key>",
		Short: "Update a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())

			// Numbers and booleans arrive as JSON; anything else is a string.
			var parsed any
			if err := json.Unmarshal([]byte(value), &parsed); err != nil {
				parsed = value
			}

			req := UpdateSettingRequest{Key: args[0], Value: parsed}
			var resp SettingsResponse
			if err := client.Patch(ctx, "/api/v1/settings", req, &resp); err != nil {
				return err
			}
			return api.Output(resp.Settings)
		},
	}
	cmd.Flags().StringVar(&value, "value", "", "New value (JSON or string)")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}
