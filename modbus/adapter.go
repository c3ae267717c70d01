// Package modbus wraps the simonvetter Modbus client behind the
// register level operations the gripper controller needs.
package modbus

import (
	"fmt"
	"time"

	"github.com/simonvetter/modbus"
)

type Adapter struct {
	client *modbus.ModbusClient
}

// NewAdapter opens a Modbus TCP connection to url, e.g.
// "tcp://172.31.1.51:502". The timeout applies to the dial and to
// every transaction.
func NewAdapter(url string, timeout time.Duration) (Adapter, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     url,
		Timeout: timeout,
	})
	if err != nil {
		return Adapter{}, fmt.Errorf("create client: %w", err)
	}
	if err := client.Open(); err != nil {
		return Adapter{}, fmt.Errorf("open %s: %w", url, err)
	}
	return Adapter{client: client}, nil
}

func (a Adapter) Close() error {
	return a.client.Close()
}

func (a Adapter) WriteRegister(addr, value uint16) error {
	return a.client.WriteRegister(addr, value)
}

func (a Adapter) WriteRegisters(addr uint16, values []uint16) error {
	return a.client.WriteRegisters(addr, values)
}

func (a Adapter) ReadInputRegister(addr uint16) (uint16, error) {
	return a.client.ReadRegister(addr, modbus.INPUT_REGISTER)
}

func (a Adapter) ReadInputRegisters(addr, quantity uint16) ([]uint16, error) {
	return a.client.ReadRegisters(addr, quantity, modbus.INPUT_REGISTER)
}
