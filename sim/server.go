// Package sim emulates a TURCK FEN20-4IOL IO-Link master with an
// attached SCHUNK EGH-80-IOL-N gripper on a Modbus TCP listener. It
// serves as test double for the controller and as demo device for the
// cockpit.
package sim

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rwirdemann/gripgate"
)

type Logger interface {
	Append(text string)
}

type Endianness uint
type Error string

const (
	fcReadHoldingRegisters   uint8 = 0x03
	fcReadInputRegisters     uint8 = 0x04
	fcWriteSingleRegister    uint8 = 0x06
	fcWriteMultipleRegisters uint8 = 0x10

	mbapHeaderLength int = 7

	// endianness of 16-bit registers
	BIG_ENDIAN        Endianness = 1
	LITTLE_ENDIAN     Endianness = 2
	maxTCPFrameLength int        = 260

	excIllegalFunction    uint8 = 0x01
	excIllegalDataAddress uint8 = 0x02
	excIllegalDataValue   uint8 = 0x03

	ErrProtocolError     Error = "protocol error"
	ErrUnknownProtocolId Error = "unknown protocol identifier"
)

// Error implements the error interface.
func (me Error) Error() (s string) {
	s = string(me)
	return
}

type pdu struct {
	unitId       uint8
	functionCode uint8
	payload      []byte
}

// GripperServer represents a TCP based Modbus server that behaves like
// the gripper's IO-Link master: process data writes to the command
// register are executed against an emulated firmware state that is
// reflected in the input registers.
type GripperServer struct {
	url         string
	logger      Logger
	tcpListener net.Listener

	mu        sync.Mutex
	mem       *MemoryMap
	online    bool
	status    gripgate.Status
	success   bool
	processed bool
}

func NewGripperServer(url string, logger Logger) *GripperServer {
	if splitURL := strings.SplitN(url, "://", 2); len(splitURL) == 2 {
		url = splitURL[1]
	}
	s := &GripperServer{
		url:    url,
		logger: logger,
		mem:    NewMemoryMap(),
		online: true,
		status: gripgate.StatusReady,
	}
	s.setPosition(gripgate.PositionMax) // fingers opened
	s.refreshStatusWord()
	return s
}

func (s *GripperServer) Start() (err error) {
	s.tcpListener, err = net.Listen("tcp", s.url)
	if err == nil {
		go s.acceptTCPClients()
	}
	return
}

// Addr returns the listen address, useful when the server was started
// on port 0.
func (s *GripperServer) Addr() string {
	if s.tcpListener != nil {
		return s.tcpListener.Addr().String()
	}
	return s.url
}

func (s *GripperServer) Stop() {
	if s.tcpListener != nil {
		_ = s.tcpListener.Close()
	}
}

// Connect brings the simulated device online.
func (s *GripperServer) Connect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = true
}

// Disconnect takes the simulated device offline: requests are read but
// never answered, so clients run into their timeout.
func (s *GripperServer) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = false
}

func (s *GripperServer) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// HoldingRegister returns the current value of a holding register.
func (s *GripperServer) HoldingRegister(address uint16) (uint16, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mem.GetHoldingReg(address)
}

// InputRegister returns the current value of an input register.
func (s *GripperServer) InputRegister(address uint16) (uint16, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mem.GetInputReg(address)
}

func (s *GripperServer) acceptTCPClients() {
	for {
		sock, err := s.tcpListener.Accept()
		if err != nil {
			return
		}
		ts := time.Now().Format(time.DateTime)
		s.logger.Append(fmt.Sprintf("%s: client %s connected", ts, sock.RemoteAddr()))
		go s.handleClient(sock)
	}
}

func (s *GripperServer) handleClient(sock net.Conn) {
	defer func() { _ = sock.Close() }()
	for {
		req, txnId, err := s.readMBAPFrame(sock)
		if err != nil {
			if err != io.EOF {
				slog.Warn("failed to read request frame", "err", err)
			}
			return
		}
		ts := time.Now().Format(time.DateTime)
		s.logger.Append(fmt.Sprintf("%s req: unit id: %d fc: %X payload: % X", ts, req.unitId, req.functionCode, req.payload))

		if !s.Online() {
			s.logger.Append(fmt.Sprintf("%s req: device is offline, dropping request", ts))
			continue
		}

		res := s.handleRequest(req)
		ts = time.Now().Format(time.DateTime)
		s.logger.Append(fmt.Sprintf("%s res: unit id: %d fc: %X payload: % X", ts, res.unitId, res.functionCode, res.payload))

		if _, err := sock.Write(s.assembleMBAPFrame(txnId, res)); err != nil {
			return
		}
	}
}

func (s *GripperServer) handleRequest(req *pdu) *pdu {
	switch req.functionCode {
	case fcReadHoldingRegisters, fcReadInputRegisters:
		if len(req.payload) != 4 {
			return exception(req, excIllegalDataValue)
		}
		addr := bytesToUint16(BIG_ENDIAN, req.payload[0:2])
		quantity := bytesToUint16(BIG_ENDIAN, req.payload[2:4])
		if quantity == 0 || quantity > 125 {
			return exception(req, excIllegalDataValue)
		}
		if int(addr)+int(quantity) > 0x10000 {
			return exception(req, excIllegalDataAddress)
		}

		res := &pdu{
			unitId:       req.unitId,
			functionCode: req.functionCode,
			payload:      []byte{uint8(quantity * 2)},
		}
		s.mu.Lock()
		for i := uint16(0); i < quantity; i++ {
			var value uint16
			if req.functionCode == fcReadInputRegisters {
				value, _ = s.mem.GetInputReg(addr + i)
			} else {
				value, _ = s.mem.GetHoldingReg(addr + i)
			}
			res.payload = append(res.payload, uint16ToBytes(BIG_ENDIAN, value)...)
		}
		s.mu.Unlock()
		return res

	case fcWriteSingleRegister:
		if len(req.payload) != 4 {
			return exception(req, excIllegalDataValue)
		}
		addr := bytesToUint16(BIG_ENDIAN, req.payload[0:2])
		value := bytesToUint16(BIG_ENDIAN, req.payload[2:4])
		s.applyWrite(addr, []uint16{value})

		// the response echoes the request
		return &pdu{unitId: req.unitId, functionCode: req.functionCode, payload: req.payload}

	case fcWriteMultipleRegisters:
		if len(req.payload) < 5 {
			return exception(req, excIllegalDataValue)
		}
		addr := bytesToUint16(BIG_ENDIAN, req.payload[0:2])
		quantity := bytesToUint16(BIG_ENDIAN, req.payload[2:4])
		byteCount := int(req.payload[4])
		if quantity == 0 || quantity > 123 || byteCount != int(quantity)*2 || len(req.payload) != 5+byteCount {
			return exception(req, excIllegalDataValue)
		}
		if int(addr)+int(quantity) > 0x10000 {
			return exception(req, excIllegalDataAddress)
		}

		values := make([]uint16, quantity)
		for i := range values {
			values[i] = bytesToUint16(BIG_ENDIAN, req.payload[5+i*2:7+i*2])
		}
		s.applyWrite(addr, values)

		return &pdu{
			unitId:       req.unitId,
			functionCode: req.functionCode,
			payload:      append(uint16ToBytes(BIG_ENDIAN, addr), uint16ToBytes(BIG_ENDIAN, quantity)...),
		}

	default:
		return exception(req, excIllegalFunction)
	}
}

func exception(req *pdu, code uint8) *pdu {
	return &pdu{
		unitId:       req.unitId,
		functionCode: req.functionCode | 0x80,
		payload:      []byte{code},
	}
}

// applyWrite stores the written registers and runs the firmware
// emulation when the command register is touched.
func (s *GripperServer) applyWrite(addr uint16, values []uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, v := range values {
		s.mem.PutHoldingReg(addr+uint16(i), v)
	}

	if addr > gripgate.RegCommand || addr+uint16(len(values)) <= gripgate.RegCommand {
		return
	}
	command := values[gripgate.RegCommand-addr]

	if command == gripgate.CmdFastStop {
		// power cut, latches an error that needs acknowledging
		s.status = gripgate.StatusError
		s.success = false
		s.processed = false
		s.refreshStatusWord()
		return
	}
	if command&gripgate.BitExecute == 0 {
		// command is only pending until the execute bit is set
		return
	}
	s.execute(command &^ gripgate.BitExecute)
}

func (s *GripperServer) execute(code uint16) {
	switch code {
	case gripgate.CmdAcknowledge:
		s.status = gripgate.StatusReady
	case gripgate.CmdGrip:
		s.setPosition(gripgate.PositionMin)
	case gripgate.CmdRelease:
		s.setPosition(gripgate.PositionMax)
	case gripgate.CmdMovePosition:
		// adopt the target words verbatim so readback matches exactly
		hi, _ := s.mem.GetHoldingReg(gripgate.RegTargetPosition)
		lo, _ := s.mem.GetHoldingReg(gripgate.RegTargetPosition + 1)
		s.mem.PutInputReg(gripgate.RegActualPosition, hi)
		s.mem.PutInputReg(gripgate.RegActualPosition+1, lo)
	case gripgate.CmdStop, gripgate.CmdReference, gripgate.CmdMeasureStroke, gripgate.CmdCalibrate:
		// no positional effect worth emulating
	default:
		slog.Warn("ignoring unknown command", "code", fmt.Sprintf("0x%04X", code))
		return
	}
	s.success = true
	s.processed = true
	s.refreshStatusWord()
}

func (s *GripperServer) setPosition(percent int) {
	words := gripgate.PositionWords(percent)
	s.mem.PutInputReg(gripgate.RegActualPosition, words[0])
	s.mem.PutInputReg(gripgate.RegActualPosition+1, words[1])
}

func (s *GripperServer) refreshStatusWord() {
	word := uint16(s.status) << 8
	if s.success {
		word |= 1 << 14
	}
	if s.processed {
		word |= 1 << 15
	}
	s.mem.PutInputReg(gripgate.RegStatusWord, word)
}

// Reads an entire frame (MBAP header + modbus PDU) from the socket.
func (s *GripperServer) readMBAPFrame(sock net.Conn) (p *pdu, txnId uint16, err error) {
	var rxbuf []byte
	var bytesNeeded int
	var protocolId uint16
	var unitId uint8

	// read the MBAP header
	rxbuf = make([]byte, mbapHeaderLength)
	_, err = io.ReadFull(sock, rxbuf)
	if err != nil {
		return
	}

	// decode the transaction identifier
	txnId = bytesToUint16(BIG_ENDIAN, rxbuf[0:2])
	// decode the protocol identifier
	protocolId = bytesToUint16(BIG_ENDIAN, rxbuf[2:4])
	// store the source unit id
	unitId = rxbuf[6]

	// determine how many more bytes we need to read
	bytesNeeded = int(bytesToUint16(BIG_ENDIAN, rxbuf[4:6]))

	// the byte count includes the unit ID field, which we already have
	bytesNeeded--

	// never read more than the max allowed frame length
	if bytesNeeded+mbapHeaderLength > maxTCPFrameLength {
		err = ErrProtocolError
		return
	}

	// an MBAP length of 0 is illegal
	if bytesNeeded <= 0 {
		err = ErrProtocolError
		return
	}

	// read the PDU
	rxbuf = make([]byte, bytesNeeded)
	_, err = io.ReadFull(sock, rxbuf)
	if err != nil {
		return
	}

	// validate the protocol identifier
	if protocolId != 0x0000 {
		err = ErrUnknownProtocolId
		slog.Warn("received unexpected protocol id", "protocolId", protocolId)
		return
	}

	// store unit id, function code and payload in the PDU object
	p = &pdu{
		unitId:       unitId,
		functionCode: rxbuf[0],
		payload:      rxbuf[1:],
	}

	return
}

// Turns a PDU into an MBAP frame (MBAP header + PDU) and returns it as bytes.
func (s *GripperServer) assembleMBAPFrame(txnId uint16, p *pdu) (payload []byte) {
	// transaction identifier
	payload = uint16ToBytes(BIG_ENDIAN, txnId)
	// protocol identifier (always 0x0000)
	payload = append(payload, 0x00, 0x00)
	// length (covers unit identifier + function code + payload fields)
	payload = append(payload, uint16ToBytes(BIG_ENDIAN, uint16(2+len(p.payload)))...)
	// unit identifier
	payload = append(payload, p.unitId)
	// function code
	payload = append(payload, p.functionCode)
	// payload
	payload = append(payload, p.payload...)

	return
}

func bytesToUint16(endianness Endianness, in []byte) (out uint16) {
	switch endianness {
	case BIG_ENDIAN:
		out = binary.BigEndian.Uint16(in)
	case LITTLE_ENDIAN:
		out = binary.LittleEndian.Uint16(in)
	}

	return
}

func uint16ToBytes(endianness Endianness, in uint16) (out []byte) {
	out = make([]byte, 2)
	switch endianness {
	case BIG_ENDIAN:
		binary.BigEndian.PutUint16(out, in)
	case LITTLE_ENDIAN:
		binary.LittleEndian.PutUint16(out, in)
	}

	return
}
