// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"
)

// accelLSBPerG is the MPU9250 accelerometer scale at the power-on ±2 g range.
const accelLSBPerG = 16384.0

// MPU9250Motion reads acceleration from an MPU9250 over SPI.
type MPU9250Motion struct {
	spiDev string
	csPin  string
	imu    *mpu9250.MPU9250
}

// NewMPU9250Motion returns an uninitialised driver; Init opens the device.
func NewMPU9250Motion(spiDev, csPin string) *MPU9250Motion {
	return &MPU9250Motion{spiDev: spiDev, csPin: csPin}
}

// Init opens the SPI transport and initialises the IMU. Calling it again
// reinitialises the same device.
func (m *MPU9250Motion) Init() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("motion IMU: periph host init: %w", err)
	}

	if m.imu == nil {
		cs := gpioreg.ByName(m.csPin)
		if cs == nil {
			return fmt.Errorf("motion IMU: CS pin %q not found", m.csPin)
		}

		tr, err := mpu9250.NewSpiTransport(m.spiDev, cs)
		if err != nil {
			return fmt.Errorf("motion IMU: SPI transport (%s): %w", m.spiDev, err)
		}

		imu, err := mpu9250.New(*tr)
		if err != nil {
			return fmt.Errorf("motion IMU: device creation: %w", err)
		}
		m.imu = imu
	}

	if err := m.imu.Init(); err != nil {
		return fmt.Errorf("motion IMU: initialization: %w", err)
	}
	return nil
}

// Read reads the accelerometer.
func (m *MPU9250Motion) Read() (Acceleration, error) {
	if m.imu == nil {
		return Acceleration{}, fmt.Errorf("motion IMU: not initialized")
	}
	ax, err := m.imu.GetAccelerationX()
	if err != nil {
		return Acceleration{}, fmt.Errorf("motion IMU accel X: %w", err)
	}
	ay, err := m.imu.GetAccelerationY()
	if err != nil {
		return Acceleration{}, fmt.Errorf("motion IMU accel Y: %w", err)
	}
	az, err := m.imu.GetAccelerationZ()
	if err != nil {
		return Acceleration{}, fmt.Errorf("motion IMU accel Z: %w", err)
	}

	return Acceleration{
		X: float64(ax) / accelLSBPerG,
		Y: float64(ay) / accelLSBPerG,
		Z: float64(az) / accelLSBPerG,
	}, nil
}
