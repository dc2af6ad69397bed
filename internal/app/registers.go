// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/physic"

	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/bus"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/config"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/max30100"
)

// RegisterReport is the JSON form of a register dump.
type RegisterReport struct {
	Type      string          `json:"type"` // "register_map"
	Device    string          `json:"device"`
	Bus       string          `json:"bus"`
	Timestamp string          `json:"timestamp"`
	Registers []RegisterEntry `json:"registers"`
}

// RegisterEntry is one register with its value, or the read error.
type RegisterEntry struct {
	Address   string              `json:"addr"`
	Name      string              `json:"name"`
	Access    string              `json:"access"`
	Value     string              `json:"value,omitempty"`
	Error     string              `json:"error,omitempty"`
	BitFields []max30100.BitField `json:"bit_fields,omitempty"`
}

// RunRegisterDump reads the optical sensor's registers and writes them to out.
func RunRegisterDump(cfg *config.Config, logger *logrus.Logger, out io.Writer, asJSON bool) error {
	b, err := bus.New(bus.OpenerFor(cfg.I2CBus), bus.Options{
		Speed: physic.Frequency(cfg.I2CSpeedHz) * physic.Hertz,
	}, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	dev := max30100.New(b, cfg.OpticalI2CAddr)
	return WriteRegisterDump(out, b.String(), max30100.Dump(dev), asJSON, time.Now())
}

// WriteRegisterDump formats dump as a table or, with asJSON, a RegisterReport.
func WriteRegisterDump(out io.Writer, busName string, dump []max30100.RegisterValue, asJSON bool, now time.Time) error {
	if !asJSON {
		fmt.Fprintf(out, "MAX30100 on %s\n", busName)
		for _, v := range dump {
			fmt.Fprintln(out, v)
		}
		return nil
	}

	report := RegisterReport{
		Type:      "register_map",
		Device:    "max30100",
		Bus:       busName,
		Timestamp: now.Format(time.RFC3339),
	}
	for _, v := range dump {
		e := RegisterEntry{
			Address:   fmt.Sprintf("0x%02X", v.Address),
			Name:      v.Name,
			Access:    v.Access,
			BitFields: v.BitFields,
		}
		if v.Err != nil {
			e.Error = v.Err.Error()
		} else {
			e.Value = fmt.Sprintf("0x%02X", v.Value)
		}
		report.Registers = append(report.Registers, e)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
