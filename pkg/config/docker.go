package config

import (
	"net"
	"net/url"
	"os"
	"sync"
)

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

const dockerHostGateway = "host.docker.internal"

// IsRunningInDocker reports whether /.dockerenv exists. The result is cached.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker maps localhost to the Docker host gateway when running
// inside a container, so a locally running database or Ollama stays reachable.
func ResolveHostForDocker(host string) string {
	return resolveHost(host, IsRunningInDocker())
}

// ResolveURLForDocker applies ResolveHostForDocker to the host part of a URL.
// Unparseable URLs are returned unchanged.
func ResolveURLForDocker(rawURL string) string {
	return resolveURL(rawURL, IsRunningInDocker())
}

func resolveHost(host string, inDocker bool) string {
	if inDocker && (host == "localhost" || host == "127.0.0.1") {
		return dockerHostGateway
	}
	return host
}

func resolveURL(rawURL string, inDocker bool) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	host := resolveHost(u.Hostname(), inDocker)
	if host == u.Hostname() {
		return rawURL
	}
	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else {
		u.Host = host
	}
	return u.String()
}

// ApplyDockerHostRewrites rewrites the datasource host, model base URL and
// history database URL in place. LoadFile calls it.
func (c *Config) ApplyDockerHostRewrites() {
	c.applyHostRewrites(IsRunningInDocker())
}

func (c *Config) applyHostRewrites(inDocker bool) {
	c.Datasource.Host = resolveHost(c.Datasource.Host, inDocker)
	c.LLM.BaseURL = resolveURL(c.LLM.BaseURL, inDocker)
	if c.History.DatabaseURL != "" {
		c.History.DatabaseURL = resolveURL(c.History.DatabaseURL, inDocker)
	}
}
