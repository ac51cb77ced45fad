package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/organization"
	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/person"
	"github.com/iota-uz/dealflow/modules/dealflow/presentation/mappers"
	"github.com/iota-uz/dealflow/modules/dealflow/presentation/viewmodels"
	"github.com/iota-uz/dealflow/modules/dealflow/services"
	"github.com/iota-uz/dealflow/pkg/application"
	"github.com/iota-uz/dealflow/pkg/httpapi"
	"github.com/iota-uz/dealflow/pkg/middleware"
	"github.com/iota-uz/dealflow/pkg/repo"
)

type OrganizationAPIController struct {
	app           application.Application
	organizations *services.OrganizationService
	persons       *services.PersonService
	transactor    repo.Transactor
	pages         PageOptions
	basePath      string
}

func NewOrganizationAPIController(app application.Application, transactor repo.Transactor, pages PageOptions) application.Controller {
	return &OrganizationAPIController{
		app:           app,
		organizations: app.Service(services.OrganizationService{}).(*services.OrganizationService),
		persons:       app.Service(services.PersonService{}).(*services.PersonService),
		transactor:    transactor,
		pages:         pages,
		basePath:      "/api/organizations",
	}
}

func (c *OrganizationAPIController) Key() string {
	return c.basePath
}

func (c *OrganizationAPIController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("", c.List).Methods(http.MethodGet)
	router.HandleFunc("/{id:[0-9]+}", c.Get).Methods(http.MethodGet)
	router.HandleFunc("/{id:[0-9]+}/people", c.ListPeople).Methods(http.MethodGet)

	writeRouter := r.PathPrefix(c.basePath).Subrouter()
	writeRouter.Use(middleware.WithTransaction(c.transactor))
	writeRouter.HandleFunc("", c.Create).Methods(http.MethodPost)
	writeRouter.HandleFunc("/{id:[0-9]+}", c.Delete).Methods(http.MethodDelete)
	writeRouter.HandleFunc("/{id:[0-9]+}/people", c.CreatePerson).Methods(http.MethodPost)
	writeRouter.HandleFunc("/{id:[0-9]+}/recount", c.Recount).Methods(http.MethodPost)
}

func (c *OrganizationAPIController) List(w http.ResponseWriter, r *http.Request) {
	page, err := httpapi.ParsePage(r, c.pages.Default, c.pages.Max)
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_PAGINATION", err.Error())
		return
	}
	items, total, err := c.organizations.GetPaginated(r.Context(), &organization.FindParams{
		Q:      r.URL.Query().Get("search"),
		Limit:  page.Limit,
		Offset: page.Skip,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := httpapi.Paginated[*viewmodels.Organization]{
		Items: make([]*viewmodels.Organization, 0, len(items)),
		Total: total,
		Skip:  page.Skip,
		Limit: page.Limit,
	}
	for _, o := range items {
		out.Items = append(out.Items, mappers.OrganizationToViewModel(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (c *OrganizationAPIController) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeAPIError(w, r, http.StatusNotFound, "ORGANIZATION_NOT_FOUND", "organization not found")
		return
	}
	details, err := c.organizations.GetDetails(r.Context(), id, c.pages.Max)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.DetailsToViewModel(details))
}

func (c *OrganizationAPIController) Create(w http.ResponseWriter, r *http.Request) {
	var dto organization.CreateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if errs, ok := dto.Ok(); !ok {
		writeAPIError(w, r, http.StatusUnprocessableEntity, "ORGANIZATION_VALIDATION_FAILED", firstMessage(errs, "Name"))
		return
	}

	created, err := c.organizations.Create(r.Context(), &dto)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", c.basePath+"/"+strconv.FormatInt(created.ID(), 10))
	writeJSON(w, http.StatusCreated, mappers.OrganizationToViewModel(created))
}

func (c *OrganizationAPIController) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeAPIError(w, r, http.StatusNotFound, "ORGANIZATION_NOT_FOUND", "organization not found")
		return
	}
	if err := c.organizations.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Recount repairs fund_count after funds were changed outside an import.
func (c *OrganizationAPIController) Recount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeAPIError(w, r, http.StatusNotFound, "ORGANIZATION_NOT_FOUND", "organization not found")
		return
	}
	o, err := c.organizations.RecountFunds(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.OrganizationToViewModel(o))
}

func (c *OrganizationAPIController) ListPeople(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeAPIError(w, r, http.StatusNotFound, "ORGANIZATION_NOT_FOUND", "organization not found")
		return
	}
	people, err := c.persons.ListByOrganization(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]*viewmodels.Person, 0, len(people))
	for _, p := range people {
		out = append(out, mappers.PersonToViewModel(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (c *OrganizationAPIController) CreatePerson(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeAPIError(w, r, http.StatusNotFound, "ORGANIZATION_NOT_FOUND", "organization not found")
		return
	}
	var dto person.CreateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if errs, ok := dto.Ok(); !ok {
		writeAPIError(w, r, http.StatusUnprocessableEntity, "PERSON_VALIDATION_FAILED", firstMessage(errs, "Name", "Email", "LinkedIn", "JobTitle"))
		return
	}

	created, err := c.persons.Create(r.Context(), id, &dto)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mappers.PersonToViewModel(created))
}

// firstMessage picks the message of the first failing field in order.
func firstMessage(errs map[string]string, order ...string) string {
	for _, f := range order {
		if v := strings.TrimSpace(errs[f]); v != "" {
			return v
		}
	}
	return "validation failed"
}
