//nolint:varnamelen
package echo

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.pilab.hu/stats/api"
	"go.pilab.hu/stats/auth"
	"go.pilab.hu/stats/domain"
	serrors "go.pilab.hu/stats/errors"
	"go.pilab.hu/stats/export"
	"go.pilab.hu/stats/internal/audit"
	"go.pilab.hu/stats/internal/metrics"
	"go.pilab.hu/stats/log"
	"go.pilab.hu/stats/query"
	"go.pilab.hu/stats/schema"
	"go.pilab.hu/stats/tracing"
)

const (
	csvFilename   = "databrowser.csv"
	statusCreated = "Data created successfully"
	statusUpdated = "Data updated successfully"
)

// StatsAPI serves the token and databrowser statistics endpoints.
type StatsAPI struct {
	repo        domain.StatsRepository
	validator   *schema.Validator
	builder     *query.Builder
	exporter    *export.Exporter
	tokens      *auth.TokenService
	credentials *auth.CredentialChecker
	metrics     *metrics.Metrics
	audit       *audit.Logger
	logger      log.Logger
	demo        string
}

// Dependencies are the collaborators of StatsAPI.
type Dependencies struct {
	Repository  domain.StatsRepository
	Validator   *schema.Validator
	Builder     *query.Builder
	Exporter    *export.Exporter
	Tokens      *auth.TokenService
	Credentials *auth.CredentialChecker
	Metrics     *metrics.Metrics
	Audit       *audit.Logger // nil disables the audit trail
	Logger      log.Logger

	// DemoNamespace holds the bundled example data. New records sent to
	// it are acknowledged but not stored.
	DemoNamespace string
}

// NewStatsAPI initializes the stats API.
func NewStatsAPI(deps Dependencies) *StatsAPI {
	m := deps.Metrics
	if m == nil {
		m = metrics.New(nil)
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Nop()
	}
	return &StatsAPI{
		repo:        deps.Repository,
		validator:   deps.Validator,
		builder:     deps.Builder,
		exporter:    deps.Exporter,
		tokens:      deps.Tokens,
		credentials: deps.Credentials,
		metrics:     m,
		audit:       deps.Audit,
		logger:      logger,
		demo:        deps.DemoNamespace,
	}
}

// RegisterRoutes registers the API under group. requireToken guards the
// routes that need an access token.
func (a *StatsAPI) RegisterRoutes(group *echo.Group, requireToken echo.MiddlewareFunc) {
	group.POST("/token", a.TokenHandler)

	stats := group.Group("/stats/:namespace/databrowser")
	stats.POST("", a.CreateHandler)
	stats.GET("", a.QueryHandler, requireToken)
	stats.PUT("/:id", a.UpdateHandler, requireToken)
	stats.DELETE("/:id", a.DeleteHandler, requireToken)
}

// TokenHandler exchanges the administrative credentials for an access
// token. A negative expires_in yields a token without expiry.
func (a *StatsAPI) TokenHandler(c echo.Context) error {
	username := c.FormValue("username")
	password := c.FormValue("password")
	if username == "" {
		return serrors.NewValidation("username", "field required")
	}
	if password == "" {
		return serrors.NewValidation("password", "field required")
	}

	if err := a.credentials.Check(username, password); err != nil {
		a.audit.Write(audit.Event{Action: audit.ActionToken, Subject: username, Error: err.Error()})
		a.metrics.AuthFailed(string(serrors.InvalidCredentials))
		a.logger.Warn(c.Request().Context(), "rejected token request", log.Fields{"username": username})
		return err
	}

	token, expiresAt, err := a.tokens.Issue(username, expiresIn(c.QueryParams()["expires_in"]))
	if err != nil {
		return serrors.NewStoreError(err, "could not issue token")
	}
	a.metrics.TokensIssuedTotal.Inc()
	a.audit.Write(audit.Event{Action: audit.ActionToken, Subject: username, Success: true})

	return c.JSON(http.StatusCreated, api.TokenResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		TokenType:   api.TokenTypeBearer,
	})
}

// expiresIn returns the first value that parses as an integer, 1 if none
// does.
func expiresIn(values []string) int {
	for _, v := range values {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 1
}

// CreateHandler stores a new search statistics record.
func (a *StatsAPI) CreateHandler(c echo.Context) error {
	ctx := c.Request().Context()
	namespace := c.Param("namespace")

	body, err := decodeBody(c)
	if err != nil {
		return err
	}

	payload, err := a.validator.Validate(ctx, schema.ModeCreate, body)
	if err != nil {
		return err
	}
	record, ok := payload.(*domain.FullRecord)
	if !ok {
		return serrors.NewValidation("body", "expected a complete record")
	}
	if a.demo != "" && namespace == a.demo {
		return c.JSON(http.StatusCreated, api.StatusResponse{Status: statusCreated})
	}

	id, err := a.repo.Create(ctx, namespace, record)
	a.audit.Log(ctx, audit.ActionCreate, namespace, id, err)
	if err != nil {
		return err
	}
	a.metrics.RecordWritten(metrics.OpCreate)

	return c.JSON(http.StatusCreated, api.CreatedResponse{Status: statusCreated, ID: id})
}

// UpdateHandler applies a full or dotted partial update.
func (a *StatsAPI) UpdateHandler(c echo.Context) error {
	ctx := c.Request().Context()
	namespace, id := c.Param("namespace"), c.Param("id")

	body, err := decodeBody(c)
	if err != nil {
		return err
	}

	payload, err := a.validator.Validate(ctx, schema.ModeUpdate, body)
	if err != nil {
		return err
	}

	err = a.repo.Update(ctx, namespace, id, payload)
	a.audit.Log(ctx, audit.ActionUpdate, namespace, id, err)
	if err != nil {
		return err
	}
	a.metrics.RecordWritten(metrics.OpUpdate)

	return c.JSON(http.StatusOK, api.StatusResponse{Status: statusUpdated})
}

// QueryHandler streams the matching records as CSV. Zero matches are
// reported as not found before anything is streamed.
func (a *StatsAPI) QueryHandler(c echo.Context) error {
	ctx, span := tracing.Tracer.Start(c.Request().Context(), "stats.query")
	defer span.End()

	namespace := c.Param("namespace")

	params, err := query.ParseParams(c.QueryParams())
	if err != nil {
		return err
	}
	filter := a.builder.Build(ctx, params)

	n, err := a.repo.Count(ctx, namespace, filter)
	if err != nil {
		return err
	}
	if n == 0 {
		return serrors.NewNotFound("no results found")
	}

	header := c.Response().Header()
	header.Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	header.Set(echo.HeaderContentDisposition, `attachment; filename="`+csvFilename+`"`)
	header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	header.Set("Pragma", "no-cache")
	header.Set("Expires", "0")
	c.Response().WriteHeader(http.StatusOK)

	rows, err := a.exporter.WriteTo(ctx, namespace, filter, c.Response())
	a.metrics.RowsExportedTotal.Add(float64(rows))
	if err != nil {
		// the status line is already sent; the client sees a truncated body
		a.logger.Error(ctx, "csv export aborted", err, log.Fields{"namespace": namespace, "rows": rows})
	}
	return nil
}

// DeleteHandler removes a record.
func (a *StatsAPI) DeleteHandler(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := a.validator.Validate(ctx, schema.ModeDelete, nil); err != nil {
		return err
	}
	namespace, id := c.Param("namespace"), c.Param("id")
	err := a.repo.Delete(ctx, namespace, id)
	a.audit.Log(ctx, audit.ActionDelete, namespace, id, err)
	if err != nil {
		return err
	}
	a.metrics.RecordWritten(metrics.OpDelete)

	return c.NoContent(http.StatusNoContent)
}

func decodeBody(c echo.Context) (map[string]any, error) {
	var body map[string]any
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, serrors.NewValidation("body", "field required")
		}
		return nil, serrors.NewValidation("body", "malformed JSON object")
	}
	if body == nil {
		return nil, serrors.NewValidation("body", "expected a JSON object")
	}
	// null means "not given"
	for k, v := range body {
		if v == nil {
			delete(body, k)
		}
	}
	return body, nil
}
