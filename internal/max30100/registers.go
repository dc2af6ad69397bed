// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package max30100

import "fmt"

// BitField describes one field inside a register.
type BitField struct {
	Bits        string `json:"bits"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

// RegisterInfo is the metadata of one register. Volatile registers change
// state when read and are skipped by Dump.
type RegisterInfo struct {
	Address     byte       `json:"address"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Access      string     `json:"access"` // "R", "W", "RW"
	Default     byte       `json:"default"`
	Volatile    bool       `json:"volatile,omitempty"`
	BitFields   []BitField `json:"bit_fields,omitempty"`
}

// RegisterMap returns metadata for every documented MAX30100 register.
func RegisterMap() []RegisterInfo {
	return []RegisterInfo{
		// Status
		{Address: RegIntStatus, Name: "INT_STATUS", Description: "Interrupt Status", Access: "R", Volatile: true,
			BitFields: []BitField{
				{Bits: "7", Name: "A_FULL", Description: "FIFO almost full"},
				{Bits: "6", Name: "TEMP_RDY", Description: "Temperature ready"},
				{Bits: "5", Name: "HR_RDY", Description: "Heart rate data ready"},
				{Bits: "4", Name: "SPO2_RDY", Description: "SpO2 data ready"},
				{Bits: "0", Name: "PWR_RDY", Description: "Power ready after brownout"},
			}},
		{Address: RegIntEnable, Name: "INT_ENABLE", Description: "Interrupt Enable", Access: "RW",
			BitFields: []BitField{
				{Bits: "7", Name: "ENB_A_FULL", Description: "FIFO almost full interrupt", Values: "0=Disabled, 1=Enabled"},
				{Bits: "6", Name: "ENB_TEMP_RDY", Description: "Temperature ready interrupt", Values: "0=Disabled, 1=Enabled"},
				{Bits: "5", Name: "ENB_HR_RDY", Description: "Heart rate ready interrupt", Values: "0=Disabled, 1=Enabled"},
				{Bits: "4", Name: "ENB_SO2_RDY", Description: "SpO2 ready interrupt", Values: "0=Disabled, 1=Enabled"},
			}},

		// FIFO
		{Address: RegFIFOWrPtr, Name: "FIFO_WR_PTR", Description: "FIFO Write Pointer", Access: "RW",
			BitFields: []BitField{
				{Bits: "3:0", Name: "FIFO_WR_PTR", Description: "Next sample slot to be written", Values: "0-15"},
			}},
		{Address: RegOvfCounter, Name: "OVF_COUNTER", Description: "Overflow Counter", Access: "RW",
			BitFields: []BitField{
				{Bits: "3:0", Name: "OVF_COUNTER", Description: "Samples lost while the FIFO was full", Values: "0-15"},
			}},
		{Address: RegFIFORdPtr, Name: "FIFO_RD_PTR", Description: "FIFO Read Pointer", Access: "RW",
			BitFields: []BitField{
				{Bits: "3:0", Name: "FIFO_RD_PTR", Description: "Next sample slot to be read", Values: "0-15"},
			}},
		{Address: RegFIFOData, Name: "FIFO_DATA", Description: "FIFO Data (4 bytes per sample: IR then red)", Access: "RW", Volatile: true},

		// Configuration
		{Address: RegModeConfig, Name: "MODE_CONFIG", Description: "Mode Configuration", Access: "RW",
			BitFields: []BitField{
				{Bits: "7", Name: "SHDN", Description: "Shutdown", Values: "0=Running, 1=Power save"},
				{Bits: "6", Name: "RESET", Description: "Soft reset, self-clearing"},
				{Bits: "3", Name: "TEMP_EN", Description: "Start one temperature conversion, self-clearing"},
				{Bits: "2:0", Name: "MODE", Description: "Operating mode", Values: "2=HR only, 3=SpO2"},
			}},
		{Address: RegSpO2Config, Name: "SPO2_CONFIG", Description: "SpO2 Configuration", Access: "RW",
			BitFields: []BitField{
				{Bits: "6", Name: "SPO2_HI_RES_EN", Description: "16-bit ADC with 1.6ms pulse", Values: "0=Disabled, 1=Enabled"},
				{Bits: "4:2", Name: "SPO2_SR", Description: "Sample rate", Values: "0=50, 1=100, 2=167, 3=200, 4=400, 5=600, 6=800, 7=1000 sps"},
				{Bits: "1:0", Name: "LED_PW", Description: "LED pulse width", Values: "0=200us, 1=400us, 2=800us, 3=1600us"},
			}},
		{Address: RegLEDConfig, Name: "LED_CONFIG", Description: "LED Configuration", Access: "RW",
			BitFields: []BitField{
				{Bits: "7:4", Name: "RED_PA", Description: "Red LED current", Values: "0=0mA ... 15=50mA"},
				{Bits: "3:0", Name: "IR_PA", Description: "IR LED current", Values: "0=0mA ... 15=50mA"},
			}},

		// Temperature
		{Address: RegTempInt, Name: "TEMP_INTEGER", Description: "Die temperature, integer part (two's complement °C)", Access: "R"},
		{Address: RegTempFrac, Name: "TEMP_FRACTION", Description: "Die temperature, fraction in 1/16 °C", Access: "R",
			BitFields: []BitField{
				{Bits: "3:0", Name: "TFRAC", Description: "Fraction step 0.0625 °C"},
			}},

		// Identification
		{Address: RegRevID, Name: "REV_ID", Description: "Revision ID", Access: "R"},
		{Address: RegPartID, Name: "PART_ID", Description: "Part ID", Access: "R", Default: PartID},
	}
}

// RegisterValue is one entry of a register dump.
type RegisterValue struct {
	RegisterInfo
	Value byte  `json:"value"`
	Err   error `json:"-"`
}

func (v RegisterValue) String() string {
	if v.Err != nil {
		return fmt.Sprintf("0x%02X %-14s error: %v", v.Address, v.Name, v.Err)
	}
	return fmt.Sprintf("0x%02X %-14s 0x%02X %08b", v.Address, v.Name, v.Value, v.Value)
}

// Dump reads every readable, non-volatile register. A failed read is
// recorded in the entry and the dump continues.
func Dump(d *Dev) []RegisterValue {
	var out []RegisterValue
	for _, info := range RegisterMap() {
		if info.Volatile || info.Access == "W" {
			continue
		}
		v, err := d.Read(info.Address)
		out = append(out, RegisterValue{RegisterInfo: info, Value: v, Err: err})
	}
	return out
}
