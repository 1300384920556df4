package diagnostics

import (
	"net"
	"os"
	"strconv"
)

var (
	interfaceAddrs = net.InterfaceAddrs
	listenTCP      = func(addr string) (net.Listener, error) { return net.Listen("tcp", addr) }
)

type MediaRootStatus struct {
	Path     string `json:"path"`
	Readable bool   `json:"readable"`
	Entries  int    `json:"entries"`
	Error    string `json:"error,omitempty"`
}

type NetworkStatus struct {
	LANAddresses []string `json:"lan_addresses"`
	Error        string   `json:"error,omitempty"`
}

type PortStatus struct {
	Port      int    `json:"port"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

type EnvironmentReport struct {
	MediaRoot MediaRootStatus `json:"media_root"`
	Network   NetworkStatus   `json:"network"`
	HTTPPort  PortStatus      `json:"http_port"`
	Ready     bool            `json:"ready"`
}

// DetectEnvironment checks what the server needs before it can cast: a
// readable media root, a non-loopback address receivers can reach, and a
// free HTTP port.
func DetectEnvironment(mediaRoot string, httpPort int) EnvironmentReport {
	root := detectMediaRoot(mediaRoot)
	network := detectNetwork()
	port := detectPort(httpPort)

	return EnvironmentReport{
		MediaRoot: root,
		Network:   network,
		HTTPPort:  port,
		Ready:     root.Readable && len(network.LANAddresses) > 0 && port.Available,
	}
}

func detectMediaRoot(path string) MediaRootStatus {
	status := MediaRootStatus{Path: path}
	entries, err := os.ReadDir(path)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Readable = true
	status.Entries = len(entries)
	return status
}

func detectNetwork() NetworkStatus {
	addrs, err := interfaceAddrs()
	if err != nil {
		return NetworkStatus{LANAddresses: []string{}, Error: err.Error()}
	}

	out := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipNet.IP.To4()
		if ip == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
			continue
		}
		out = append(out, ip.String())
	}
	return NetworkStatus{LANAddresses: out}
}

func detectPort(port int) PortStatus {
	status := PortStatus{Port: port}
	ln, err := listenTCP(":" + strconv.Itoa(port))
	if err != nil {
		status.Error = err.Error()
		return status
	}
	_ = ln.Close()
	status.Available = true
	return status
}
