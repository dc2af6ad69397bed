//go:build !linux

package ble

import (
	"errors"

	"github.com/go-ble/ble"
)

func defaultDevice() (ble.Device, error) {
	return nil, errors.New("ble: peripheral mode needs linux")
}
