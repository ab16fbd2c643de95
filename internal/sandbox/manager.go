package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"

	"github.com/haasonsaas/helmsman/internal/apperr"
	"github.com/haasonsaas/helmsman/internal/config"
)

// sharedSandboxID names the session handle when all conversations share
// one pre-provisioned endpoint.
const sharedSandboxID = "helmsman-sandbox"

// Manager creates and resolves sandbox sessions. With a configured
// shared address it attaches every session to that endpoint; otherwise
// it provisions one container per session from the configured image.
type Manager struct {
	cfg    config.SandboxConfig
	logger *slog.Logger

	dockerOnce sync.Once
	docker     *client.Client
	dockerErr  error

	mu    sync.Mutex
	cache map[string]*Session
}

func NewManager(cfg config.SandboxConfig, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		logger: logger.With("component", "sandbox"),
		cache:  make(map[string]*Session),
	}
}

func (m *Manager) dockerClient() (*client.Client, error) {
	m.dockerOnce.Do(func() {
		m.docker, m.dockerErr = client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	})
	return m.docker, m.dockerErr
}

// Create starts a new sandbox session and returns its handle. The
// session is cached under its id for later Get calls.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	if m.cfg.Address != "" {
		ip, err := resolveHost(m.cfg.Address)
		if err != nil {
			return nil, apperr.Server("resolve sandbox address %s: %v", m.cfg.Address, err)
		}
		s := newSession(sharedSandboxID, ip, m.logger)
		m.store(s)
		return s, nil
	}

	docker, err := m.dockerClient()
	if err != nil {
		return nil, apperr.Server("docker client: %v", err)
	}

	name := m.cfg.NamePrefix + "-" + uuid.NewString()
	env := []string{
		"SERVICE_TIMEOUT_MINUTES=" + strconv.Itoa(m.cfg.TTLMinutes),
		"CHROME_ARGS=" + m.cfg.ChromeArgs,
		"HTTPS_PROXY=" + m.cfg.HTTPSProxy,
		"HTTP_PROXY=" + m.cfg.HTTPProxy,
		"NO_PROXY=" + m.cfg.NoProxy,
	}

	containerCfg := &container.Config{
		Image: m.cfg.Image,
		Env:   env,
		ExposedPorts: nat.PortSet{
			nat.Port(fmt.Sprintf("%d/tcp", apiPort)): {},
			nat.Port(fmt.Sprintf("%d/tcp", vncPort)): {},
			nat.Port(fmt.Sprintf("%d/tcp", cdpPort)): {},
		},
	}
	hostCfg := &container.HostConfig{AutoRemove: true}
	if m.cfg.Network != "" {
		hostCfg.NetworkMode = container.NetworkMode(m.cfg.Network)
	}

	created, err := docker.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, name)
	if err != nil {
		return nil, apperr.Server("create sandbox container: %v", err)
	}
	if err := docker.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		_ = docker.ContainerRemove(ctx, created.ID, container.RemoveOptions{Force: true})
		return nil, apperr.Server("start sandbox container: %v", err)
	}

	inspected, err := docker.ContainerInspect(ctx, created.ID)
	if err != nil {
		_ = docker.ContainerRemove(ctx, created.ID, container.RemoveOptions{Force: true})
		return nil, apperr.Server("inspect sandbox container: %v", err)
	}
	ip := containerIP(inspected)
	if ip == "" {
		_ = docker.ContainerRemove(ctx, created.ID, container.RemoveOptions{Force: true})
		return nil, apperr.Server("sandbox container %s has no IP address", name)
	}

	m.logger.Info("sandbox created", "id", name, "ip", ip)

	s := newSession(name, ip, m.logger)
	s.containerID = created.ID
	s.manager = m
	m.store(s)
	return s, nil
}

// Get resolves an existing sandbox by id, from cache or by inspecting
// the named container.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	if s, ok := m.cache[id]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	if m.cfg.Address != "" {
		return m.Create(ctx)
	}

	docker, err := m.dockerClient()
	if err != nil {
		return nil, apperr.Server("docker client: %v", err)
	}
	inspected, err := docker.ContainerInspect(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("sandbox %s not found", id)
	}
	ip := containerIP(inspected)
	if ip == "" {
		return nil, apperr.Server("sandbox %s has no IP address", id)
	}

	s := newSession(id, ip, m.logger)
	s.containerID = inspected.ID
	s.manager = m
	m.store(s)
	return s, nil
}

func (m *Manager) store(s *Session) {
	m.mu.Lock()
	m.cache[s.id] = s
	m.mu.Unlock()
}

func (m *Manager) removeContainer(ctx context.Context, containerID string) error {
	docker, err := m.dockerClient()
	if err != nil {
		return apperr.Server("docker client: %v", err)
	}
	if err := docker.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return apperr.Server("remove sandbox container: %v", err)
	}
	m.mu.Lock()
	for id, s := range m.cache {
		if s.containerID == containerID {
			delete(m.cache, id)
		}
	}
	m.mu.Unlock()
	return nil
}

func containerIP(inspected container.InspectResponse) string {
	ns := inspected.NetworkSettings
	if ns == nil {
		return ""
	}
	if ns.IPAddress != "" {
		return ns.IPAddress
	}
	for _, network := range ns.Networks {
		if network.IPAddress != "" {
			return network.IPAddress
		}
	}
	return ""
}

// resolveHost returns host unchanged when it is already an IP address,
// otherwise resolves it to the first IPv4 address.
func resolveHost(host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}
	addrs, err := net.LookupIP(host)
	if err != nil {
		return "", err
	}
	for _, addr := range addrs {
		if v4 := addr.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	if len(addrs) > 0 {
		return addrs[0].String(), nil
	}
	return "", fmt.Errorf("no addresses for %s", host)
}
