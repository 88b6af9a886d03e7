package gwserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehost/gatehost/pkg/proxyconfig"
)

func testConfig() *proxyconfig.Config {
	return &proxyconfig.Config{
		Routes: []proxyconfig.Route{
			{
				RouteID:   "fallback",
				ClusterID: "web",
				Match:     proxyconfig.RouteMatch{Path: proxyconfig.CatchAllPath},
			},
			{
				RouteID:   "api",
				ClusterID: "api",
				Match:     proxyconfig.RouteMatch{Path: "/api"},
			},
			{
				RouteID:   "legacy",
				ClusterID: "legacy",
				Match:     proxyconfig.RouteMatch{Path: "/legacy"},
				Transforms: []proxyconfig.Transform{
					{PathRemovePrefix: "/legacy"},
				},
			},
			{
				RouteID:   "admin",
				ClusterID: "api",
				Match: proxyconfig.RouteMatch{
					Path:  "/api",
					Hosts: []string{"admin.example.com"},
				},
			},
		},
		Clusters: []proxyconfig.Cluster{
			{ClusterID: "api", Destinations: map[string]proxyconfig.Destination{
				"default": {Address: "http://api"},
			}},
			{ClusterID: "legacy", Destinations: map[string]proxyconfig.Destination{
				"default": {Address: "http://legacy"},
			}},
			{ClusterID: "web", Destinations: map[string]proxyconfig.Destination{
				"default": {Address: "http://web"},
			}},
		},
	}
}

func TestCompile_Priorities(t *testing.T) {
	t.Parallel()

	table, err := compile(testConfig())
	require.NoError(t, err)
	require.Len(t, table.routes, 4)

	// Host-restricted prefix first, plain prefixes next, catch-all last.
	assert.Equal(t, "admin", table.routes[0].route.RouteID)
	assert.Equal(t, "fallback", table.routes[3].route.RouteID)
}

func TestCompile_UnknownCluster(t *testing.T) {
	t.Parallel()

	cfg := &proxyconfig.Config{
		Routes: []proxyconfig.Route{
			{RouteID: "api", ClusterID: "missing"},
		},
	}

	_, err := compile(cfg)
	require.ErrorIs(t, err, ErrUnknownCluster)
}

func TestCompile_NoDestinations(t *testing.T) {
	t.Parallel()

	cfg := &proxyconfig.Config{
		Clusters: []proxyconfig.Cluster{
			{ClusterID: "empty"},
		},
	}

	_, err := compile(cfg)
	require.ErrorIs(t, err, ErrNoDestinations)
}

func TestCompile_CatchAllSuffix(t *testing.T) {
	t.Parallel()

	cfg := &proxyconfig.Config{
		Routes: []proxyconfig.Route{
			{
				RouteID:   "api",
				ClusterID: "api",
				Match:     proxyconfig.RouteMatch{Path: "/api" + proxyconfig.CatchAllPath},
			},
		},
		Clusters: []proxyconfig.Cluster{
			{ClusterID: "api", Destinations: map[string]proxyconfig.Destination{
				"default": {Address: "http://api"},
			}},
		},
	}

	table, err := compile(cfg)
	require.NoError(t, err)

	route, ok := table.match("example.com", "/api/v1/users")
	require.True(t, ok)
	assert.Equal(t, "api", route.route.RouteID)
	assert.False(t, route.catchAll)

	_, ok = table.match("example.com", "/apiv2")
	assert.False(t, ok)
}

func TestRouteTable_Match(t *testing.T) {
	t.Parallel()

	table, err := compile(testConfig())
	require.NoError(t, err)

	tests := []struct {
		name      string
		host      string
		path      string
		wantRoute string
	}{
		{
			name:      "prefix match",
			host:      "example.com",
			path:      "/api/users",
			wantRoute: "api",
		},
		{
			name:      "exact prefix",
			host:      "example.com",
			path:      "/api",
			wantRoute: "api",
		},
		{
			name:      "segment boundary honored",
			host:      "example.com",
			path:      "/apiary",
			wantRoute: "fallback",
		},
		{
			name:      "catch-all fallback",
			host:      "example.com",
			path:      "/anything/else",
			wantRoute: "fallback",
		},
		{
			name:      "host restriction wins",
			host:      "admin.example.com",
			path:      "/api/users",
			wantRoute: "admin",
		},
		{
			name:      "host matching is case-insensitive and ignores port",
			host:      "ADMIN.Example.COM:8080",
			path:      "/api",
			wantRoute: "admin",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			route, ok := table.match(tt.host, tt.path)
			require.True(t, ok)
			assert.Equal(t, tt.wantRoute, route.route.RouteID)
		})
	}
}

func TestRouteTable_NoMatch(t *testing.T) {
	t.Parallel()

	cfg := &proxyconfig.Config{
		Routes: []proxyconfig.Route{
			{
				RouteID:   "api",
				ClusterID: "api",
				Match:     proxyconfig.RouteMatch{Path: "/api"},
			},
		},
		Clusters: []proxyconfig.Cluster{
			{ClusterID: "api", Destinations: map[string]proxyconfig.Destination{
				"default": {Address: "http://api"},
			}},
		},
	}

	table, err := compile(cfg)
	require.NoError(t, err)

	_, ok := table.match("example.com", "/other")
	assert.False(t, ok)
}

func TestTransformPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		strip string
		path  string
		want  string
	}{
		{name: "no transform", strip: "", path: "/api/users", want: "/api/users"},
		{name: "strip prefix", strip: "/legacy", path: "/legacy/ping", want: "/ping"},
		{name: "strip to root", strip: "/legacy", path: "/legacy", want: "/"},
		{name: "leading slash restored", strip: "/legacy/", path: "/legacy/ping", want: "/ping"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := &compiledRoute{strip: tt.strip}
			assert.Equal(t, tt.want, r.transformPath(tt.path))
		})
	}
}

func TestCompiledCluster_RoundRobin(t *testing.T) {
	t.Parallel()

	cfg := &proxyconfig.Config{
		Clusters: []proxyconfig.Cluster{
			{ClusterID: "api", Destinations: map[string]proxyconfig.Destination{
				"a": {Address: "http://a"},
				"b": {Address: "http://b"},
			}},
		},
	}

	table, err := compile(cfg)
	require.NoError(t, err)

	cluster := table.clusters["api"]
	assert.Equal(t, "http://a", cluster.nextAddress())
	assert.Equal(t, "http://b", cluster.nextAddress())
	assert.Equal(t, "http://a", cluster.nextAddress())
}
