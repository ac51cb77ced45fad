package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/dealflow/migrations"
	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/fund"
	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/organization"
	"github.com/iota-uz/dealflow/modules/dealflow/infrastructure/sqlite"
	"github.com/iota-uz/dealflow/modules/dealflow/services"
	"github.com/iota-uz/dealflow/pkg/application"
	"github.com/iota-uz/dealflow/pkg/server"
)

type apiEnv struct {
	handler http.Handler
	orgs    organization.Repository
	funds   fund.Repository
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, migrations.Up(context.Background(), store.DB(), "sqlite"))

	orgRepo := sqlite.NewOrganizationRepository(store)
	fundRepo := sqlite.NewFundRepository(store)
	personRepo := sqlite.NewPersonRepository(store)

	app := application.New(&application.ApplicationOptions{})
	app.RegisterServices(
		services.NewOrganizationService(orgRepo, fundRepo, personRepo, app.EventPublisher()),
		services.NewFundService(fundRepo),
		services.NewPersonService(personRepo, orgRepo),
	)
	pages := PageOptions{Default: 2, Max: 5}
	app.RegisterControllers(
		NewOrganizationAPIController(app, store, pages),
		NewFundAPIController(app, pages),
		NewHealthController(func(ctx context.Context) (int64, error) {
			return migrations.Version(ctx, store.DB(), "sqlite")
		}),
	)
	return &apiEnv{
		handler: server.NewHTTPServer(app).Router(),
		orgs:    orgRepo,
		funds:   fundRepo,
	}
}

func (e *apiEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *apiEnv) seed(t *testing.T, name string, funds ...string) organization.Organization {
	t.Helper()
	ctx := context.Background()
	o, err := e.orgs.Create(ctx, organization.New(name))
	require.NoError(t, err)
	for _, f := range funds {
		_, err := e.funds.Create(ctx, fund.New(o.ID(), map[fund.Field]fund.Value{fund.FundName: fund.Text(f)}))
		require.NoError(t, err)
	}
	_, err = e.orgs.RecountFunds(ctx, o.ID())
	require.NoError(t, err)
	return o
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

type envelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func TestOrganizationAPI_List(t *testing.T) {
	env := newAPIEnv(t)
	env.seed(t, "Acme Capital", "A I")
	env.seed(t, "Globex Partners")
	env.seed(t, "Acme Growth")

	rec := env.do(t, http.MethodGet, "/api/organizations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Items []struct {
			Name      string `json:"name"`
			FundCount int    `json:"fund_count"`
		} `json:"items"`
		Total int64 `json:"total"`
		Limit int   `json:"limit"`
	}
	decode(t, rec, &page)
	assert.EqualValues(t, 3, page.Total)
	assert.Equal(t, 2, page.Limit)
	assert.Len(t, page.Items, 2)

	rec = env.do(t, http.MethodGet, "/api/organizations?search=acme&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &page)
	assert.EqualValues(t, 2, page.Total)

	rec = env.do(t, http.MethodGet, "/api/organizations?limit=6", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var e envelope
	decode(t, rec, &e)
	assert.Equal(t, "INVALID_PAGINATION", e.Code)
}

func TestOrganizationAPI_Get(t *testing.T) {
	env := newAPIEnv(t)
	o := env.seed(t, "Acme", "Fund I", "Fund II")

	rec := env.do(t, http.MethodGet, "/api/organizations/"+itoa(o.ID()), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var details struct {
		Name       string `json:"name"`
		FundCount  int    `json:"fund_count"`
		FundsTotal int64  `json:"funds_total"`
		Funds      []struct {
			Attributes map[string]any `json:"attributes"`
		} `json:"funds"`
	}
	decode(t, rec, &details)
	assert.Equal(t, "Acme", details.Name)
	assert.Equal(t, 2, details.FundCount)
	assert.EqualValues(t, 2, details.FundsTotal)
	require.Len(t, details.Funds, 2)
	assert.Contains(t, details.Funds[0].Attributes, "vintage")

	rec = env.do(t, http.MethodGet, "/api/organizations/999", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	var e envelope
	decode(t, rec, &e)
	assert.Equal(t, "ORGANIZATION_NOT_FOUND", e.Code)
}

func TestOrganizationAPI_GetReportsFundsTotalBeyondPageMax(t *testing.T) {
	env := newAPIEnv(t)
	o := env.seed(t, "Acme", "F1", "F2", "F3", "F4", "F5", "F6")

	rec := env.do(t, http.MethodGet, "/api/organizations/"+itoa(o.ID()), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var details struct {
		FundCount  int               `json:"fund_count"`
		FundsTotal int64             `json:"funds_total"`
		Funds      []json.RawMessage `json:"funds"`
	}
	decode(t, rec, &details)
	assert.Equal(t, 6, details.FundCount)
	assert.EqualValues(t, 6, details.FundsTotal)
	assert.Len(t, details.Funds, 5)
}

func TestOrganizationAPI_Recount(t *testing.T) {
	env := newAPIEnv(t)
	o := env.seed(t, "Acme", "Fund I")
	_, err := env.funds.Create(context.Background(), fund.New(o.ID(), map[fund.Field]fund.Value{fund.FundName: fund.Text("Fund II")}))
	require.NoError(t, err)

	path := "/api/organizations/" + itoa(o.ID()) + "/recount"
	rec := env.do(t, http.MethodPost, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		FundCount int `json:"fund_count"`
	}
	decode(t, rec, &out)
	assert.Equal(t, 2, out.FundCount)

	stored, err := env.orgs.GetByID(context.Background(), o.ID())
	require.NoError(t, err)
	assert.Equal(t, 2, stored.FundCount())

	rec = env.do(t, http.MethodPost, "/api/organizations/999/recount", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	var e envelope
	decode(t, rec, &e)
	assert.Equal(t, "ORGANIZATION_NOT_FOUND", e.Code)
}

func TestOrganizationAPI_Create(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodPost, "/api/organizations", `{"name":"  Acme  "}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	decode(t, rec, &created)
	assert.Equal(t, "Acme", created.Name)
	assert.Equal(t, "/api/organizations/"+itoa(created.ID), rec.Header().Get("Location"))

	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"duplicate", `{"name":"Acme"}`, http.StatusConflict, "ORGANIZATION_ALREADY_EXISTS"},
		{"blank", `{"name":"   "}`, http.StatusUnprocessableEntity, "ORGANIZATION_VALIDATION_FAILED"},
		{"malformed", `{"name":`, http.StatusBadRequest, "INVALID_JSON"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/organizations", tc.body)
			require.Equal(t, tc.status, rec.Code)
			var e envelope
			decode(t, rec, &e)
			assert.Equal(t, tc.code, e.Code)
		})
	}

	total, err := env.orgs.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestOrganizationAPI_DeleteCascades(t *testing.T) {
	env := newAPIEnv(t)
	o := env.seed(t, "Acme", "Fund I")
	env.seed(t, "Globex", "Fund X")

	rec := env.do(t, http.MethodDelete, "/api/organizations/"+itoa(o.ID()), "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/organizations/"+itoa(o.ID()), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	count, err := env.funds.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	rec = env.do(t, http.MethodDelete, "/api/organizations/"+itoa(o.ID()), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrganizationAPI_People(t *testing.T) {
	env := newAPIEnv(t)
	o := env.seed(t, "Acme")
	path := "/api/organizations/" + itoa(o.ID()) + "/people"

	rec := env.do(t, http.MethodPost, path, `{"name":"Jane Doe","email":"jane@acme.test"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, path, `{"name":""}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/organizations/999/people", `{"name":"John"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Items []struct {
			Name  string  `json:"name"`
			Email *string `json:"email"`
		} `json:"items"`
	}
	decode(t, rec, &out)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "Jane Doe", out.Items[0].Name)
	require.NotNil(t, out.Items[0].Email)
	assert.Equal(t, "jane@acme.test", *out.Items[0].Email)
}

func TestFundAPI_List(t *testing.T) {
	env := newAPIEnv(t)
	acme := env.seed(t, "Acme", "Fund I", "Fund II", "Fund III")
	env.seed(t, "Globex", "Fund X")

	rec := env.do(t, http.MethodGet, "/api/funds?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Items []struct {
			OrganizationID int64 `json:"organization_id"`
		} `json:"items"`
		Total int64 `json:"total"`
	}
	decode(t, rec, &page)
	assert.EqualValues(t, 4, page.Total)

	rec = env.do(t, http.MethodGet, "/api/funds?organization_id="+itoa(acme.ID())+"&skip=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &page)
	assert.EqualValues(t, 3, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, acme.ID(), page.Items[0].OrganizationID)

	rec = env.do(t, http.MethodGet, "/api/funds?organization_id=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	env := newAPIEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Status        string `json:"status"`
		SchemaVersion int64  `json:"schema_version"`
	}
	decode(t, rec, &out)
	assert.Equal(t, "ok", out.Status)
	assert.Positive(t, out.SchemaVersion)
}

func TestUnknownRoute(t *testing.T) {
	env := newAPIEnv(t)
	rec := env.do(t, http.MethodGet, "/api/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	var e envelope
	decode(t, rec, &e)
	assert.Equal(t, "NOT_FOUND", e.Code)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
