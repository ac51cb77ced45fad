package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/fund"
	"github.com/iota-uz/dealflow/modules/dealflow/presentation/mappers"
	"github.com/iota-uz/dealflow/modules/dealflow/presentation/viewmodels"
	"github.com/iota-uz/dealflow/modules/dealflow/services"
	"github.com/iota-uz/dealflow/pkg/application"
	"github.com/iota-uz/dealflow/pkg/httpapi"
)

type FundAPIController struct {
	funds    *services.FundService
	pages    PageOptions
	basePath string
}

func NewFundAPIController(app application.Application, pages PageOptions) application.Controller {
	return &FundAPIController{
		funds:    app.Service(services.FundService{}).(*services.FundService),
		pages:    pages,
		basePath: "/api/funds",
	}
}

func (c *FundAPIController) Key() string {
	return c.basePath
}

func (c *FundAPIController) Register(r *mux.Router) {
	r.HandleFunc(c.basePath, c.List).Methods(http.MethodGet)
}

func (c *FundAPIController) List(w http.ResponseWriter, r *http.Request) {
	page, err := httpapi.ParsePage(r, c.pages.Default, c.pages.Max)
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_PAGINATION", err.Error())
		return
	}
	params := &fund.FindParams{Limit: page.Limit, Offset: page.Skip}
	if v := strings.TrimSpace(r.URL.Query().Get("organization_id")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id < 1 {
			writeAPIError(w, r, http.StatusBadRequest, "INVALID_FILTER", "organization_id must be a positive integer")
			return
		}
		params.OrganizationID = id
	}

	items, total, err := c.funds.GetPaginated(r.Context(), params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := httpapi.Paginated[*viewmodels.Fund]{
		Items: make([]*viewmodels.Fund, 0, len(items)),
		Total: total,
		Skip:  page.Skip,
		Limit: page.Limit,
	}
	for _, f := range items {
		out.Items = append(out.Items, mappers.FundToViewModel(f))
	}
	writeJSON(w, http.StatusOK, out)
}
