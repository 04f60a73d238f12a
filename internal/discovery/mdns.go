// ABOUTME: mDNS advertisement and browsing for the remote trigger endpoint
// ABOUTME: The engine advertises _sampletrig._tcp; remotes browse for it
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/maxmbed/sample-trig/internal/version"
)

// ServiceType is the mDNS service type of the trigger endpoint
const ServiceType = "_sampletrig._tcp"

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	// Path and InstanceID are published as TXT records
	Path       string
	InstanceID string
	// BrowseInterval is the length of each query round; 3s when zero
	BrowseInterval time.Duration
}

// Manager handles mDNS operations
type Manager struct {
	config    Config
	ctx       context.Context
	cancel    context.CancelFunc
	endpoints chan *Endpoint
}

// Endpoint describes a discovered trigger engine
type Endpoint struct {
	Name       string
	Host       string
	Port       int
	InstanceID string
}

// Addr returns host:port
func (e *Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, fmt.Sprintf("%d", e.Port))
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	if config.BrowseInterval <= 0 {
		config.BrowseInterval = 3 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config:    config,
		ctx:       ctx,
		cancel:    cancel,
		endpoints: make(chan *Endpoint, 10),
	}
}

func (m *Manager) txt() []string {
	txt := []string{
		"vendor=" + version.Manufacturer,
		"version=" + version.Version,
	}
	if m.config.Path != "" {
		txt = append(txt, "path="+m.config.Path)
	}
	if m.config.InstanceID != "" {
		txt = append(txt, "instance="+m.config.InstanceID)
	}
	return txt
}

// Advertise publishes the trigger endpoint until Stop
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		m.txt(),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", m.config.ServiceName, m.config.Port, ServiceType)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse searches for trigger engines until Stop
func (m *Manager) Browse() {
	go m.browseLoop()
}

func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)

		go func() {
			for entry := range entries {
				ep := endpointFromEntry(entry)
				if ep == nil {
					continue
				}
				log.Printf("Discovered trigger engine: %s at %s", ep.Name, ep.Addr())

				select {
				case m.endpoints <- ep:
				case <-m.ctx.Done():
					return
				}
			}
		}()

		params := &mdns.QueryParam{
			Service: ServiceType,
			Domain:  "local",
			Timeout: m.config.BrowseInterval,
			Entries: entries,
		}

		err := mdns.Query(params)
		close(entries)
		if err != nil {
			log.Printf("mDNS query failed: %v", err)
			select {
			case <-m.ctx.Done():
				return
			case <-time.After(m.config.BrowseInterval):
			}
		}
	}
}

func endpointFromEntry(entry *mdns.ServiceEntry) *Endpoint {
	if entry == nil || entry.AddrV4 == nil {
		return nil
	}
	ep := &Endpoint{
		Name: entry.Name,
		Host: entry.AddrV4.String(),
		Port: entry.Port,
	}
	for _, field := range entry.InfoFields {
		if v, ok := strings.CutPrefix(field, "instance="); ok {
			ep.InstanceID = v
		}
	}
	return ep
}

// Endpoints returns the channel of discovered engines
func (m *Manager) Endpoints() <-chan *Endpoint {
	return m.endpoints
}

// First browses until one engine is found or ctx is done
func (m *Manager) First(ctx context.Context) (*Endpoint, error) {
	m.Browse()
	select {
	case ep := <-m.endpoints:
		return ep, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("no trigger engine found: %w", ctx.Err())
	}
}

// Stop stops the discovery manager
func (m *Manager) Stop() {
	m.cancel()
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
