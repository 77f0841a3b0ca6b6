package loader

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFeature struct {
	name    string
	enabled bool
	err     error
	loaded  bool
}

func (f *stubFeature) Name() string    { return f.name }
func (f *stubFeature) IsEnabled() bool { return f.enabled }

func (f *stubFeature) Load(app fiber.Router) error {
	if f.err != nil {
		return f.err
	}
	f.loaded = true
	app.Get("/"+f.name, func(c *fiber.Ctx) error { return c.SendString(f.name) })
	return nil
}

func TestManager_LoadAll(t *testing.T) {
	on := &stubFeature{name: "on", enabled: true}
	off := &stubFeature{name: "off"}

	m := NewManager(nil)
	m.Register(on)
	m.Register(off)

	app := fiber.New()
	require.NoError(t, m.LoadAll(app))
	assert.True(t, on.loaded)
	assert.False(t, off.loaded)
	assert.Equal(t, []string{"on"}, m.Enabled())

	resp, err := app.Test(httptest.NewRequest("GET", "/on", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/off", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestManager_LoadAllStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	failing := &stubFeature{name: "failing", enabled: true, err: boom}
	after := &stubFeature{name: "after", enabled: true}

	m := NewManager(nil)
	m.Register(failing)
	m.Register(after)

	err := m.LoadAll(fiber.New())
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "failing")
	assert.False(t, after.loaded)
}
