package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Endpoint is a network and address pair as accepted by net.Dial and
// net.Listen.
type Endpoint struct {
	Network string `mapstructure:"network"`
	Address string `mapstructure:"address"`
}

// ParseEndpoint parses "network://address", for example
// "unix:///run/nfd.sock" or "tcp://localhost:6363".
func ParseEndpoint(s string) (Endpoint, error) {
	network, address, ok := strings.Cut(s, "://")
	if !ok || network == "" || address == "" {
		return Endpoint{}, fmt.Errorf("invalid endpoint %q: want network://address", s)
	}
	return Endpoint{Network: network, Address: address}, nil
}

func (e Endpoint) String() string {
	return e.Network + "://" + e.Address
}

// stringToEndpointHook lets an endpoint be written as a single string in
// flags and config files.
func stringToEndpointHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(Endpoint{}) {
			return data, nil
		}
		return ParseEndpoint(data.(string))
	}
}
