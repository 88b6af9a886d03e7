package apphost

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_AddContainer(t *testing.T) {
	t.Parallel()

	b := NewBuilder()

	c, err := b.AddContainer("api")
	require.NoError(t, err)
	assert.Equal(t, "api", c.Name())
	assert.Len(t, b.Resources(), 1)
}

func TestBuilder_AddResource_DuplicateName(t *testing.T) {
	t.Parallel()

	b := NewBuilder()

	_, err := b.AddContainer("api")
	require.NoError(t, err)

	_, err = b.AddContainer("api")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateResourceName)
}

func TestBuilder_AddResource_Nil(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	assert.ErrorIs(t, b.AddResource(nil), ErrNilResource)
}

func TestBuilder_Build_Once(t *testing.T) {
	t.Parallel()

	b := NewBuilder()

	_, err := b.Build()
	require.NoError(t, err)

	_, err = b.Build()
	assert.ErrorIs(t, err, ErrAlreadyBuilt)
}

func TestApp_Start_AllocatesEndpoints(t *testing.T) {
	t.Parallel()

	b := NewBuilder()

	c, err := b.AddContainer("api")
	require.NoError(t, err)
	c.WithEndpoint("http", 0).WithEndpoint("https", 18443)

	app, err := b.Build()
	require.NoError(t, err)
	require.NoError(t, app.Start(context.Background()))

	endpoints := app.Model().Endpoints("api")
	require.Len(t, endpoints, 2)

	assert.Equal(t, "http", endpoints[0].Scheme)
	assert.True(t, strings.HasPrefix(endpoints[0].Address, "127.0.0.1:"))
	assert.NotEqual(t, "127.0.0.1:0", endpoints[0].Address)

	assert.Equal(t, "https", endpoints[1].Scheme)
	assert.Equal(t, "127.0.0.1:18443", endpoints[1].Address)
	assert.Equal(t, "https://127.0.0.1:18443", endpoints[1].URL())
}

func TestApp_Start_PublishModeSkipsAllocation(t *testing.T) {
	t.Parallel()

	b := NewBuilder(WithMode(ModePublish))

	c, err := b.AddContainer("api")
	require.NoError(t, err)
	c.WithEndpoint("http", 0)

	app, err := b.Build()
	require.NoError(t, err)
	require.NoError(t, app.Start(context.Background()))

	assert.Empty(t, app.Model().Endpoints("api"))
}

func TestApp_Start_Once(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	app, err := b.Build()
	require.NoError(t, err)

	require.NoError(t, app.Start(context.Background()))
	assert.ErrorIs(t, app.Start(context.Background()), ErrAlreadyStarted)
}

// recordingHook captures lifecycle invocations in order.
type recordingHook struct {
	calls  *[]string
	name   string
	failOn string
}

func (h *recordingHook) BeforeStart(context.Context, *Model) error {
	*h.calls = append(*h.calls, h.name+":before")
	if h.failOn == "before" {
		return assert.AnError
	}
	return nil
}

func (h *recordingHook) AfterEndpointsAllocated(context.Context, *Model) error {
	*h.calls = append(*h.calls, h.name+":after")
	if h.failOn == "after" {
		return assert.AnError
	}
	return nil
}

func TestApp_Start_HookOrder(t *testing.T) {
	t.Parallel()

	var calls []string

	b := NewBuilder()
	b.AddLifecycleHook(&recordingHook{calls: &calls, name: "a"})
	b.AddLifecycleHook(&recordingHook{calls: &calls, name: "b"})

	app, err := b.Build()
	require.NoError(t, err)
	require.NoError(t, app.Start(context.Background()))

	assert.Equal(t, []string{"a:before", "b:before", "a:after", "b:after"}, calls)
}

func TestApp_Start_HookErrorAborts(t *testing.T) {
	t.Parallel()

	var calls []string

	b := NewBuilder()
	b.AddLifecycleHook(&recordingHook{calls: &calls, name: "a", failOn: "before"})
	b.AddLifecycleHook(&recordingHook{calls: &calls, name: "b"})

	app, err := b.Build()
	require.NoError(t, err)

	err = app.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []string{"a:before"}, calls)
}

func TestModel_Resource(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	_, err := b.AddContainer("api")
	require.NoError(t, err)

	app, err := b.Build()
	require.NoError(t, err)

	r, ok := app.Model().Resource("api")
	require.True(t, ok)
	assert.Equal(t, "api", r.Name())

	_, ok = app.Model().Resource("missing")
	assert.False(t, ok)
}

func TestContainer_Declarations(t *testing.T) {
	t.Parallel()

	b := NewBuilder()

	db, err := b.AddContainer("db")
	require.NoError(t, err)

	c, err := b.AddContainer("api")
	require.NoError(t, err)
	c.WithEnvironment("LOG_LEVEL", "debug").WithReference(db)

	require.Len(t, c.Environment(), 1)
	assert.Equal(t, "LOG_LEVEL", c.Environment()[0].Key)
	assert.Equal(t, []string{"db"}, c.Dependencies())
}
