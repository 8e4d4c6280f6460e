package source

import (
	"fmt"
	"net/url"
	"time"

	"github.com/gobwas/glob"
	"github.com/relex/streamchart/util"
	"gopkg.in/yaml.v3"
)

// Config defines the upstream stream producer(s)
type Config struct {
	Address        string        `yaml:"address"`        // default producer URL
	ConnectTimeout time.Duration `yaml:"connectTimeout"` // 0 = defs.SourceConnectTimeout
	Routes         []RouteConfig `yaml:"routes"`         // optional, first match wins
}

// RouteConfig sends queries whose session key ("panelId/queryId") matches the glob pattern to another producer
type RouteConfig struct {
	Match   string `yaml:"match"`
	Address string `yaml:"address"`
}

// UnmarshalYAML checks route patterns at loading, to report errors with location
func (rc *RouteConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return util.NewYamlError(node, "route must be a mapping")
	}
	type plain RouteConfig
	if err := node.Decode((*plain)(rc)); err != nil {
		return err
	}
	if len(rc.Match) > 0 {
		if _, err := glob.Compile(rc.Match, '/'); err != nil {
			return util.NewYamlError(node, fmt.Sprintf("invalid match '%s': %s", rc.Match, err.Error()))
		}
	}
	return nil
}

type route struct {
	pattern string
	matcher glob.Glob
	address *url.URL
}

// Verify checks the config for missing or malformed properties
func (cfg Config) Verify() error {
	if _, err := parseAddress(cfg.Address); err != nil {
		return fmt.Errorf(".address: %w", err)
	}
	if cfg.ConnectTimeout < 0 {
		return fmt.Errorf(".connectTimeout is negative: %s", cfg.ConnectTimeout)
	}
	if _, err := cfg.compileRoutes(); err != nil {
		return err
	}
	return nil
}

func (cfg Config) compileRoutes() ([]route, error) {
	routes := make([]route, 0, len(cfg.Routes))
	for i, rc := range cfg.Routes {
		if len(rc.Match) == 0 {
			return nil, fmt.Errorf(".routes[%d].match is empty", i)
		}
		matcher, err := glob.Compile(rc.Match, '/')
		if err != nil {
			return nil, fmt.Errorf(".routes[%d].match: %w", i, err)
		}
		address, err := parseAddress(rc.Address)
		if err != nil {
			return nil, fmt.Errorf(".routes[%d].address: %w", i, err)
		}
		routes = append(routes, route{pattern: rc.Match, matcher: matcher, address: address})
	}
	return routes, nil
}

func parseAddress(address string) (*url.URL, error) {
	if len(address) == 0 {
		return nil, fmt.Errorf("empty address")
	}
	u, err := url.Parse(address)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme '%s' in %s", u.Scheme, address)
	}
	if len(u.Host) == 0 {
		return nil, fmt.Errorf("missing host in %s", address)
	}
	return u, nil
}
