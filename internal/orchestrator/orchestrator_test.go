package orchestrator_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehost/gatehost/internal/orchestrator"
	"github.com/gatehost/gatehost/pkg/apphost"
	"github.com/gatehost/gatehost/pkg/gateway"
)

// buildTopology declares a backend container plus a gateway routing to it
// and freezes the model without running the host's own startup sequence.
func buildTopology(t *testing.T, mode apphost.Mode) (*apphost.Model, *apphost.InMemoryNotifier, *gateway.Resource) {
	t.Helper()

	notifier := apphost.NewInMemoryNotifier()
	app := apphost.NewBuilder(
		apphost.WithMode(mode),
		apphost.WithNotifier(notifier),
	)

	api, err := app.AddContainer("api")
	require.NoError(t, err)

	gb, err := gateway.AddGateway(app, "edge")
	require.NoError(t, err)
	gb.WithRoute("api", api, gateway.WithPathPrefix("/api"))

	built, err := app.Build()
	require.NoError(t, err)

	return built.Model(), notifier, gb.Resource()
}

func TestOrchestrator_PublishModeIsNoOp(t *testing.T) {
	t.Parallel()

	model, notifier, res := buildTopology(t, apphost.ModePublish)

	o := orchestrator.New()
	ctx := context.Background()

	require.NoError(t, o.BeforeStart(ctx, model))
	require.NoError(t, o.AfterEndpointsAllocated(ctx, model))

	assert.Equal(t, orchestrator.StateUninitialized, o.State())
	_, published := notifier.Latest("edge")
	assert.False(t, published)
	assert.Empty(t, res.Endpoints())
	assert.Empty(t, model.Endpoints("edge"))

	require.NoError(t, o.Close())
}

func TestOrchestrator_NoGatewayResource(t *testing.T) {
	t.Parallel()

	app := apphost.NewBuilder()
	_, err := app.AddContainer("api")
	require.NoError(t, err)
	built, err := app.Build()
	require.NoError(t, err)
	model := built.Model()

	o := orchestrator.New()
	ctx := context.Background()

	require.NoError(t, o.BeforeStart(ctx, model))
	require.NoError(t, o.AfterEndpointsAllocated(ctx, model))
	assert.Equal(t, orchestrator.StateUninitialized, o.State())
	require.NoError(t, o.Close())
}

func TestOrchestrator_BeforeStartPublishesAndClaimsEndpoints(t *testing.T) {
	t.Parallel()

	notifier := apphost.NewInMemoryNotifier()
	app := apphost.NewBuilder(apphost.WithNotifier(notifier))
	api, err := app.AddContainer("api")
	require.NoError(t, err)
	gb, err := gateway.AddGateway(app, "edge")
	require.NoError(t, err)
	gb.WithRoute("api", api).WithEndpoint("http", 0)
	built, err := app.Build()
	require.NoError(t, err)
	model := built.Model()

	o := orchestrator.New()
	require.NoError(t, o.BeforeStart(context.Background(), model))

	assert.Equal(t, orchestrator.StateStarting, o.State())

	snap, ok := notifier.Latest("edge")
	require.True(t, ok)
	assert.Equal(t, "gateway", snap.ResourceType)
	assert.Equal(t, apphost.StateStarting, snap.State)
	assert.NotEmpty(t, snap.EventID)

	resource := gb.Resource()
	require.Len(t, resource.Endpoints(), 1)
	for _, ann := range resource.Annotations() {
		_, isEndpoint := ann.(apphost.EndpointAnnotation)
		assert.False(t, isEndpoint)
	}
}

func TestOrchestrator_StartsServerAndPublishesRunning(t *testing.T) {
	t.Parallel()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "pong:"+r.URL.Path)
	}))
	defer backend.Close()

	model, notifier, _ := buildTopology(t, apphost.ModeRun)

	// Stand in for the host's allocation pass: the api container resolves
	// to the live backend.
	model.SetEndpoints("api", apphost.AllocatedEndpoint{
		Name:    "api-0",
		Scheme:  "http",
		Address: strings.TrimPrefix(backend.URL, "http://"),
	})

	o := orchestrator.New()
	ctx := context.Background()
	require.NoError(t, o.BeforeStart(ctx, model))
	require.NoError(t, o.AfterEndpointsAllocated(ctx, model))
	defer func() { require.NoError(t, o.Close()) }()

	assert.Equal(t, orchestrator.StateRunning, o.State())

	snap, ok := notifier.Latest("edge")
	require.True(t, ok)
	assert.Equal(t, apphost.StateRunning, snap.State)
	require.Len(t, snap.URLs, 1)
	assert.False(t, snap.URLs[0].IsInternal)

	// The model now carries the gateway's actually-bound address.
	allocated := model.Endpoints("edge")
	require.Len(t, allocated, 1)
	assert.Equal(t, snap.URLs[0].URL, allocated[0].URL())

	// Requests through the bound address reach the backend with the
	// route's prefix stripped.
	resp, err := http.Get(snap.URLs[0].URL + "/api/ping")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "pong:/ping", string(body))
}

func TestOrchestrator_UnresolvedTargetReturns502(t *testing.T) {
	t.Parallel()

	model, _, _ := buildTopology(t, apphost.ModeRun)

	o := orchestrator.New()
	ctx := context.Background()
	require.NoError(t, o.BeforeStart(ctx, model))
	require.NoError(t, o.AfterEndpointsAllocated(ctx, model))
	defer func() { require.NoError(t, o.Close()) }()

	allocated := model.Endpoints("edge")
	require.Len(t, allocated, 1)

	resp, err := http.Get(allocated[0].URL() + "/api/ping")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestOrchestrator_CanceledContextAbortsSecondPhase(t *testing.T) {
	t.Parallel()

	model, _, _ := buildTopology(t, apphost.ModeRun)

	o := orchestrator.New()
	require.NoError(t, o.BeforeStart(context.Background(), model))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := o.AfterEndpointsAllocated(ctx, model)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, model.Endpoints("edge"))
	require.NoError(t, o.Close())
}
