// Package go2tv backs playback surfaces with network media renderers (DLNA
// and Chromecast) through the go2tv stack.
package go2tv

import (
	"context"

	"go2tv.app/go2tv/v2/castprotocol"
	"go2tv.app/go2tv/v2/devices"
	"go2tv.app/go2tv/v2/httphandlers"
	"go2tv.app/go2tv/v2/soapcalls"
)

// CastClient is a connected Chromecast control channel.
type CastClient interface {
	Connect() error
	Load(mediaURL, contentType string, startTime int, duration float64, subtitleURL string, live bool) error
	Stop() error
	GetStatus() (*castprotocol.CastStatus, error)
	Close(stopMedia bool) error
}

// CastFactory builds cast clients for a device address.
type CastFactory interface {
	NewCastClient(deviceAddr string) (CastClient, error)
}

// DLNAPayload is the SOAP control handle for one DLNA renderer.
type DLNAPayload interface {
	SendtoTV(action string) error
	GetTransportInfo() ([]string, error)
	GetPositionInfo() ([]string, error)
	ListenAddress() string
	SetContext(ctx context.Context)
	MediaURL() string
	SetMediaURL(mediaURL string)
	RawPayload() *soapcalls.TVPayload
}

// DLNAFactory builds SOAP payloads from renderer options.
type DLNAFactory interface {
	NewTVPayload(o *soapcalls.Options) (DLNAPayload, error)
}

// StreamServer serves local media to the renderer over HTTP.
type StreamServer interface {
	StartServer(serverStarted chan<- error, media, subtitles any, tvpayload *soapcalls.TVPayload, screen httphandlers.Screen)
	StopServer()
}

// StreamServerFactory builds stream servers bound to a listen address.
type StreamServerFactory interface {
	New(addr string) StreamServer
}

type DiscoveryAdapter struct{}

func (DiscoveryAdapter) StartChromecastDiscoveryLoop(ctx context.Context) {
	devices.StartChromecastDiscoveryLoop(ctx)
}

func (DiscoveryAdapter) LoadAllDevices(delaySeconds int) ([]devices.Device, error) {
	return devices.LoadAllDevices(delaySeconds)
}

type castFactory struct{}

func (castFactory) NewCastClient(deviceAddr string) (CastClient, error) {
	client, err := castprotocol.NewCastClient(deviceAddr)
	if err != nil {
		return nil, err
	}
	return &castClientAdapter{client: client}, nil
}

type castClientAdapter struct {
	client *castprotocol.CastClient
}

func (c *castClientAdapter) Connect() error {
	return c.client.Connect()
}

func (c *castClientAdapter) Load(mediaURL, contentType string, startTime int, duration float64, subtitleURL string, live bool) error {
	return c.client.Load(mediaURL, contentType, startTime, duration, subtitleURL, live)
}

func (c *castClientAdapter) Stop() error {
	return c.client.Stop()
}

func (c *castClientAdapter) GetStatus() (*castprotocol.CastStatus, error) {
	return c.client.GetStatus()
}

func (c *castClientAdapter) Close(stopMedia bool) error {
	return c.client.Close(stopMedia)
}

type dlnaFactory struct{}

func (dlnaFactory) NewTVPayload(o *soapcalls.Options) (DLNAPayload, error) {
	payload, err := soapcalls.NewTVPayload(o)
	if err != nil {
		return nil, err
	}
	return &dlnaPayloadAdapter{payload: payload}, nil
}

type dlnaPayloadAdapter struct {
	payload *soapcalls.TVPayload
}

func (d *dlnaPayloadAdapter) SendtoTV(action string) error {
	return d.payload.SendtoTV(action)
}

func (d *dlnaPayloadAdapter) GetTransportInfo() ([]string, error) {
	return d.payload.GetTransportInfo()
}

func (d *dlnaPayloadAdapter) GetPositionInfo() ([]string, error) {
	return d.payload.GetPositionInfo()
}

func (d *dlnaPayloadAdapter) ListenAddress() string {
	return d.payload.ListenAddress()
}

func (d *dlnaPayloadAdapter) SetContext(ctx context.Context) {
	d.payload.SetContext(ctx)
}

func (d *dlnaPayloadAdapter) MediaURL() string {
	return d.payload.MediaURL
}

func (d *dlnaPayloadAdapter) SetMediaURL(mediaURL string) {
	d.payload.MediaURL = mediaURL
}

func (d *dlnaPayloadAdapter) RawPayload() *soapcalls.TVPayload {
	return d.payload
}

type streamServerFactory struct{}

func (streamServerFactory) New(addr string) StreamServer {
	return httphandlers.NewServer(addr)
}

var (
	_ CastFactory = castFactory{}
	_ DLNAFactory = dlnaFactory{}
)
