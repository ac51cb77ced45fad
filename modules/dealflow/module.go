package dealflow

import (
	"github.com/iota-uz/dealflow/modules/dealflow/presentation/controllers"
	"github.com/iota-uz/dealflow/modules/dealflow/services"
	"github.com/iota-uz/dealflow/pkg/application"
	"github.com/iota-uz/dealflow/pkg/middleware"
)

// NewModule wires the dealflow services and HTTP API onto backend.
func NewModule(backend *Backend, pages controllers.PageOptions) application.Module {
	return &Module{backend: backend, pages: pages}
}

type Module struct {
	backend *Backend
	pages   controllers.PageOptions
}

func (m *Module) Register(app application.Application) error {
	b := m.backend
	app.RegisterMiddleware(middleware.Provide(b.Context))
	app.RegisterServices(
		services.NewOrganizationService(b.Organizations, b.Funds, b.Persons, app.EventPublisher()),
		services.NewFundService(b.Funds),
		services.NewPersonService(b.Persons, b.Organizations),
	)
	app.RegisterControllers(
		controllers.NewOrganizationAPIController(app, b.Transactor, m.pages),
		controllers.NewFundAPIController(app, m.pages),
		controllers.NewHealthController(b.SchemaVersion),
	)
	return nil
}

func (m *Module) Name() string {
	return "dealflow"
}
