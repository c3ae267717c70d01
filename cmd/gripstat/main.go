// Gripstat reads and prints the current operating status and finger
// position of a gripper.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/goburrow/modbus"
	"github.com/rwirdemann/gripgate"
)

func main() {
	host := flag.String("host", "172.31.1.51:502", "address of the IO-Link master")
	flag.Parse()

	handler := modbus.NewTCPClientHandler(*host)
	handler.Timeout = 1 * time.Second
	handler.SlaveId = 1

	err := handler.Connect()
	if err != nil {
		log.Fatal(err)
	}
	defer handler.Close()

	client := modbus.NewClient(handler)
	bb, err := client.ReadInputRegisters(gripgate.RegStatusWord, 1)
	if err != nil {
		log.Fatal(err)
	}
	word := binary.BigEndian.Uint16(bb)
	fmt.Printf("status  : %s\n", gripgate.DecodeStatus(word))
	fmt.Printf("success : %t\n", gripgate.SuccessBit(word))

	bb, err = client.ReadInputRegisters(gripgate.RegActualPosition, 2)
	if err != nil {
		log.Fatal(err)
	}
	words := [2]uint16{binary.BigEndian.Uint16(bb[0:2]), binary.BigEndian.Uint16(bb[2:4])}
	fmt.Printf("position: %d%%\n", gripgate.PositionPercent(words))
}
