// Package proxyconfig defines the gateway's route and cluster configuration
// records and loads them from a named section of the host's YAML
// configuration file.
package proxyconfig

// CatchAllPath is the sentinel path token matching any remaining path
// segment sequence. Routes using it match every request path and carry no
// prefix-removal transform.
const CatchAllPath = "/{**catch-all}"

// Route maps an inbound request matcher to a target cluster.
type Route struct {
	RouteID    string      `yaml:"routeId" json:"routeId"`
	ClusterID  string      `yaml:"clusterId" json:"clusterId"`
	Match      RouteMatch  `yaml:"match" json:"match"`
	Transforms []Transform `yaml:"transforms,omitempty" json:"transforms,omitempty"`
}

// RouteMatch represents matching conditions for a route. An empty path and
// empty host list is a catch-all match.
type RouteMatch struct {
	Path  string   `yaml:"path,omitempty" json:"path,omitempty"`
	Hosts []string `yaml:"hosts,omitempty" json:"hosts,omitempty"`
}

// Transform is a rewrite rule applied to a request before forwarding.
type Transform struct {
	// PathRemovePrefix strips the given prefix from the request path.
	PathRemovePrefix string `yaml:"pathRemovePrefix,omitempty" json:"pathRemovePrefix,omitempty"`
}

// Cluster is a named group of forwarding destinations.
type Cluster struct {
	ClusterID    string                 `yaml:"clusterId" json:"clusterId"`
	Destinations map[string]Destination `yaml:"destinations" json:"destinations"`
}

// Destination is a concrete or logical address a cluster forwards to.
// Logical addresses ("http://<resource-name>") are resolved through service
// discovery at request time.
type Destination struct {
	Address string `yaml:"address" json:"address"`
}

// Config holds the gateway's route and cluster records.
type Config struct {
	Routes   []Route   `yaml:"routes,omitempty" json:"routes,omitempty"`
	Clusters []Cluster `yaml:"clusters,omitempty" json:"clusters,omitempty"`
}

// IsEmpty returns true if the config holds no routes and no clusters.
func (c *Config) IsEmpty() bool {
	return c == nil || (len(c.Routes) == 0 && len(c.Clusters) == 0)
}

// Merge combines two configurations. Both sources stay active; on a
// routeID or clusterID collision the overlay record replaces the base
// record.
func Merge(base, overlay *Config) *Config {
	if base.IsEmpty() {
		if overlay == nil {
			return &Config{}
		}
		return overlay
	}
	if overlay.IsEmpty() {
		return base
	}

	merged := &Config{}

	overlayRoutes := make(map[string]bool, len(overlay.Routes))
	for _, r := range overlay.Routes {
		overlayRoutes[r.RouteID] = true
	}
	for _, r := range base.Routes {
		if !overlayRoutes[r.RouteID] {
			merged.Routes = append(merged.Routes, r)
		}
	}
	merged.Routes = append(merged.Routes, overlay.Routes...)

	overlayClusters := make(map[string]bool, len(overlay.Clusters))
	for _, c := range overlay.Clusters {
		overlayClusters[c.ClusterID] = true
	}
	for _, c := range base.Clusters {
		if !overlayClusters[c.ClusterID] {
			merged.Clusters = append(merged.Clusters, c)
		}
	}
	merged.Clusters = append(merged.Clusters, overlay.Clusters...)

	return merged
}
