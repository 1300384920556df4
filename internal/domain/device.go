package domain

import (
	"net"
	"strconv"
	"strings"
)

const defaultCastPort = 8009

// Device is a receiver known to the registry. Address keeps the raw
// receiver handle as reported by the discovery backend.
type Device struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Address string `json:"-"`
}

// DeviceSummary is the client-facing projection of a Device.
type DeviceSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Host string `json:"host"`
}

func DeviceID(name, host string) string {
	return name + "|" + host
}

func NewDevice(name, host string, port int) Device {
	name = strings.TrimSpace(name)
	host = strings.TrimSpace(host)
	if port <= 0 {
		port = defaultCastPort
	}
	return Device{
		ID:      DeviceID(name, host),
		Name:    name,
		Host:    host,
		Port:    port,
		Address: "http://" + net.JoinHostPort(host, strconv.Itoa(port)),
	}
}

func (d Device) Summary() DeviceSummary {
	return DeviceSummary{ID: d.ID, Name: d.Name, Host: d.Host}
}
