// Package discovery enumerates the network media renderers that can host a
// playback surface.
package discovery

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"net"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"go2tv.app/go2tv/v2/devices"

	"github.com/vidwall/vidwall/internal/domain"
)

const (
	defaultTimeoutMS             = 2500
	reachabilityWait             = 400 * time.Millisecond
	defaultDiscoveryDelaySeconds = 1
	maxPerAttemptTimeoutMS       = 3000
)

var isReachableAddress = defaultReachableAddress

// Renderer is a discovered network device that can act as a playback surface.
type Renderer struct {
	ID        domain.SurfaceID
	Name      string
	Address   string
	Protocol  string // "dlna" or "chromecast"
	AudioOnly bool
}

// Descriptor maps the renderer onto the surface model.
func (r Renderer) Descriptor(primary bool) domain.SurfaceDescriptor {
	return domain.SurfaceDescriptor{
		ID:      r.ID,
		Name:    r.Name,
		Primary: primary,
	}
}

// Loader is the slice of the go2tv device stack the service needs.
type Loader interface {
	StartChromecastDiscoveryLoop(ctx context.Context)
	LoadAllDevices(delaySeconds int) ([]devices.Device, error)
}

type Service struct {
	loader  Loader
	loopCtx context.Context
	once    sync.Once
}

func NewService(loader Loader, loopCtx context.Context) *Service {
	if loopCtx == nil {
		loopCtx = context.Background()
	}
	return &Service{
		loader:  loader,
		loopCtx: loopCtx,
	}
}

// ListRenderers scans the local network. Unreachable devices are filtered out
// unless includeUnreachable is set; the result is sorted so repeated scans
// yield a stable order.
func (s *Service) ListRenderers(ctx context.Context, timeoutMS int, includeUnreachable bool) ([]Renderer, error) {
	if s.loader == nil {
		return nil, errors.New("device loader is not configured")
	}
	if timeoutMS <= 0 {
		timeoutMS = defaultTimeoutMS
	}

	s.once.Do(func() {
		s.loader.StartChromecastDiscoveryLoop(s.loopCtx)
	})

	resultCh := make(chan struct {
		devices []devices.Device
		err     error
	}, 1)

	go func() {
		loaded, err := s.loadAllDevicesUntilTimeout(ctx, timeoutMS)
		resultCh <- struct {
			devices []devices.Device
			err     error
		}{devices: loaded, err: err}
	}()

	timeout := time.NewTimer(time.Duration(timeoutMS) * time.Millisecond)
	defer timeout.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout.C:
		return []Renderer{}, nil
	case result := <-resultCh:
		if result.err != nil {
			if errors.Is(result.err, devices.ErrNoDeviceAvailable) {
				return []Renderer{}, nil
			}
			return nil, result.err
		}

		normalized := normalizeRenderers(result.devices)
		if !includeUnreachable {
			normalized = filterReachable(normalized)
		}
		sortRenderers(normalized)
		return normalized, nil
	}
}

// loadAllDevicesUntilTimeout keeps re-scanning within the deadline so devices
// still warming up after the first pass are caught.
func (s *Service) loadAllDevicesUntilTimeout(ctx context.Context, timeoutMS int) ([]devices.Device, error) {
	deadline := time.Now().Add(time.Duration(timeoutMS) * time.Millisecond)
	var lastErr error

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		remainingMS := int(time.Until(deadline).Milliseconds())
		if remainingMS <= 0 {
			if errors.Is(lastErr, devices.ErrNoDeviceAvailable) || lastErr == nil {
				return []devices.Device{}, nil
			}
			return nil, lastErr
		}

		attemptTimeoutMS := remainingMS
		if attemptTimeoutMS > maxPerAttemptTimeoutMS {
			attemptTimeoutMS = maxPerAttemptTimeoutMS
		}

		loaded, err := s.loader.LoadAllDevices(timeoutToDelaySeconds(attemptTimeoutMS))
		if err == nil {
			if len(loaded) > 0 {
				return loaded, nil
			}
			return []devices.Device{}, nil
		}
		if !errors.Is(err, devices.ErrNoDeviceAvailable) {
			return nil, err
		}

		lastErr = err
	}
}

func timeoutToDelaySeconds(timeoutMS int) int {
	seconds := int(math.Ceil(float64(timeoutMS) / 1000.0))
	if seconds <= 0 {
		return defaultDiscoveryDelaySeconds
	}
	return seconds
}

func normalizeRenderers(discovered []devices.Device) []Renderer {
	result := make([]Renderer, 0, len(discovered))
	for _, raw := range discovered {
		protocol := normalizeProtocol(raw.Type)
		address := strings.TrimSpace(raw.Addr)

		result = append(result, Renderer{
			ID:        stableID(protocol, address),
			Name:      strings.TrimSpace(raw.Name),
			Address:   address,
			Protocol:  protocol,
			AudioOnly: raw.IsAudioOnly,
		})
	}
	return result
}

func filterReachable(all []Renderer) []Renderer {
	filtered := make([]Renderer, 0, len(all))
	for _, r := range all {
		if isReachableAddress(r.Address, reachabilityWait) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

func sortRenderers(all []Renderer) {
	sort.Slice(all, func(i, j int) bool {
		if protocolRank(all[i].Protocol) != protocolRank(all[j].Protocol) {
			return protocolRank(all[i].Protocol) < protocolRank(all[j].Protocol)
		}
		if strings.ToLower(all[i].Name) != strings.ToLower(all[j].Name) {
			return strings.ToLower(all[i].Name) < strings.ToLower(all[j].Name)
		}
		if strings.ToLower(all[i].Address) != strings.ToLower(all[j].Address) {
			return strings.ToLower(all[i].Address) < strings.ToLower(all[j].Address)
		}
		return all[i].ID < all[j].ID
	})
}

func protocolRank(protocol string) int {
	switch protocol {
	case "dlna":
		return 0
	case "chromecast":
		return 1
	default:
		return 2
	}
}

// stableID hashes protocol plus canonical address so the same physical device
// keeps its SurfaceID across scans and restarts.
func stableID(protocol, address string) domain.SurfaceID {
	canonical := fmt.Sprintf("%s|%s", protocol, canonicalAddress(address))
	sum := sha1.Sum([]byte(canonical))
	return domain.SurfaceID("srf_" + hex.EncodeToString(sum[:8]))
}

func canonicalAddress(address string) string {
	parsed, err := url.Parse(address)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(address))
	}

	host := strings.ToLower(parsed.Hostname())
	port := parsed.Port()
	if port == "" {
		if strings.EqualFold(parsed.Scheme, "https") {
			port = "443"
		} else {
			port = "80"
		}
	}

	path := strings.TrimSpace(strings.ToLower(parsed.EscapedPath()))
	if path == "" {
		path = "/"
	}

	return fmt.Sprintf("%s://%s:%s%s", strings.ToLower(parsed.Scheme), host, port, path)
}

func normalizeProtocol(kind string) string {
	lower := strings.ToLower(strings.TrimSpace(kind))
	if strings.Contains(lower, "chrome") {
		return "chromecast"
	}
	if strings.Contains(lower, "dlna") {
		return "dlna"
	}
	return lower
}

func defaultReachableAddress(address string, timeout time.Duration) bool {
	parsed, err := url.Parse(address)
	if err != nil {
		return false
	}

	hostPort := parsed.Host
	if hostPort == "" {
		return false
	}
	if parsed.Port() == "" {
		if strings.EqualFold(parsed.Scheme, "https") {
			hostPort = net.JoinHostPort(parsed.Hostname(), "443")
		} else {
			hostPort = net.JoinHostPort(parsed.Hostname(), "80")
		}
	}

	conn, err := net.DialTimeout("tcp", hostPort, timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
