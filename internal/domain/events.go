package domain

// Server to client event names.
const (
	EventLog        = "log"
	EventDeviceList = "device-list"
	EventNewDevice  = "new-device"
	EventDir        = "dir"
	EventCastStatus = "chromecast-status"
	EventCastError  = "chromecast-error"
)

// Client to server command names.
const (
	CommandListDevices   = "list-devices"
	CommandUpdateDevices = "update-devices"
	CommandCd            = "cd"
	CommandDir           = "dir"
	CommandPlay          = "play"
	CommandCastPlay      = "chromecast-play"
	CommandCastPause     = "chromecast-pause"
	CommandCastStop      = "chromecast-stop"
	CommandCastSeek      = "chromecast-seek"
	CommandCastStatus    = "chromecast-status"
)

// Event is one value fanned out to every connected client.
type Event struct {
	Name string
	Data any
}

// Publisher receives events destined for all clients.
type Publisher interface {
	Publish(event Event)
}

type PublisherFunc func(event Event)

func (f PublisherFunc) Publish(event Event) {
	f(event)
}

// CastErrorPayload is the wire form of chromecast-error.
type CastErrorPayload struct {
	Message    string `json:"message"`
	Code       string `json:"code"`
	Generation uint64 `json:"generation"`
}

// PlayRequest is the payload of the play command.
type PlayRequest struct {
	DeviceID string `json:"deviceId"`
	Name     string `json:"name"`
}
