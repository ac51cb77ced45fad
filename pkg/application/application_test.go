package application

import (
	"io"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubController struct{ key string }

func (c stubController) Key() string          { return c.key }
func (c stubController) Register(*mux.Router) {}

type stubService struct{ name string }

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestApplication_ControllersSortedAndDeduplicated(t *testing.T) {
	app := New(&ApplicationOptions{Logger: testLogger()})
	app.RegisterControllers(stubController{"/b"}, stubController{"/a"}, stubController{"/b"})

	got := app.Controllers()
	require.Len(t, got, 2)
	assert.Equal(t, "/a", got[0].Key())
	assert.Equal(t, "/b", got[1].Key())
}

func TestApplication_Services(t *testing.T) {
	app := New(&ApplicationOptions{Logger: testLogger()})
	svc := &stubService{name: "orgs"}
	app.RegisterServices(svc)

	got, ok := app.Service(stubService{}).(*stubService)
	require.True(t, ok)
	assert.Same(t, svc, got)
	assert.Panics(t, func() { app.Service(struct{}{}) })
}

func TestApplication_DefaultEventBus(t *testing.T) {
	app := New(&ApplicationOptions{Logger: testLogger()})
	require.NotNil(t, app.EventPublisher())

	called := false
	app.EventPublisher().Subscribe(func(e *stubService) { called = true })
	app.EventPublisher().Publish(&stubService{})
	assert.True(t, called)
}
