package energy

import "fmt"

// Channel identifies a metered circuit.
type Channel string

const (
	ChannelHome  Channel = "home"
	ChannelGrid  Channel = "grid"
	ChannelCar   Channel = "car"
	ChannelSolar Channel = "solar"
)

// Channels lists every metered circuit in storage column order.
func Channels() []Channel {
	return []Channel{ChannelHome, ChannelGrid, ChannelCar, ChannelSolar}
}

// ParseChannel validates a channel name from request or config input.
func ParseChannel(s string) (Channel, error) {
	switch Channel(s) {
	case ChannelHome, ChannelGrid, ChannelCar, ChannelSolar:
		return Channel(s), nil
	default:
		return "", fmt.Errorf("energy: unknown channel %q", s)
	}
}
