package adapter

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/karalabe/hid"
	"periph.io/x/conn/v3/gpio"

	"github.com/mklimuk/pn532"
	"github.com/mklimuk/pn532/pn532ctx"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

// report payload limit for I2C data
const maxChunk = 60

const (
	cmdStatus          = 0x10
	cmdGetI2CData      = 0x40
	cmdGetGPIO         = 0x51
	cmdWrite           = 0x90
	cmdRead            = 0x91
	cmdReadRepeatStart = 0x93
	cmdWriteNoStop     = 0x94
	cmdGetSRAM         = 0xB0
	cmdSetSRAM         = 0xB1
)

var ErrCommandUnsupported = errors.New("unsupported command")
var ErrCommandFailed = errors.New("command failed")

var _ pn532.I2CBus = &MCP2221{}

// hidDevice is the part of an opened HID device the adapter talks to.
type hidDevice interface {
	Write(b []byte) (int, error)
	Read(b []byte) (int, error)
	Close() error
}

// MCP2221 is the Microchip USB-HID to I2C bridge. Every report exchange opens
// the HID device, sends one 64 byte report and reads one 64 byte response.
// Transfers longer than 60 bytes span several reports.
type MCP2221 struct {
	mx           sync.Mutex
	request      []byte
	response     []byte
	responseWait time.Duration
	id           []int
	openDevice   func() (hidDevice, error)
}

type MCP2221Status struct {
	I2CDataBufferCounter   int    `yaml:"i2c_data_buffer_counter"`
	I2CSpeedDivider        int    `yaml:"i2c_speed_divider"`
	I2CTimeout             int    `yaml:"i2c_timeout"`
	CurrentAddress         string `yaml:"current_address"`
	LastWriteRequestedSize uint16 `yaml:"last_write_requested_size"`
	LastWriteSentSize      uint16 `yaml:"last_write_sent_size"`
	ReadPending            int    `yaml:"read_pending"`
}

type GPIOMode byte

const (
	GPIOModeOut         GPIOMode = 0b00000000
	GPIOModeIn          GPIOMode = 0b00001000
	GPIOModeNoOperation GPIOMode = 0xEF
)

func (m GPIOMode) String() string {
	switch m {
	case GPIOModeIn:
		return "INPUT"
	case GPIOModeOut:
		return "OUTPUT"
	default:
		return "NOOP"
	}
}

type GPIODesignation byte

const (
	GPIOOperation GPIODesignation = 0b00000000
	// This is the alternate function 2 of GPIO1
	GPIO1InterruptDetection GPIODesignation = 0b00000100
)

const gpioModeMask = 0b00001000
const gpioOperationMask = 0b00000111

type MCP2221GPIOValues struct {
	GPIO0Mode  GPIOMode `yaml:"GP0_mode"`
	GPIO0Value byte     `yaml:"GPIO0"`
	GPIO1Mode  GPIOMode `yaml:"GP1_mode"`
	GPIO1Value byte     `yaml:"GPIO1"`
	GPIO2Mode  GPIOMode `yaml:"GP2_mode"`
	GPIO2Value byte     `yaml:"GPIO2"`
	GPIO3Mode  GPIOMode `yaml:"GP3_mode"`
	GPIO3Value byte     `yaml:"GPIO3"`
}

// Value returns the logic value of GP pin n.
func (v MCP2221GPIOValues) Value(n int) (byte, error) {
	switch n {
	case 0:
		return v.GPIO0Value, nil
	case 1:
		return v.GPIO1Value, nil
	case 2:
		return v.GPIO2Value, nil
	case 3:
		return v.GPIO3Value, nil
	}
	return 0, fmt.Errorf("no GP pin %d", n)
}

type MCP2221GPIOParameters struct {
	GPIO0Mode        GPIOMode        `yaml:"GP0_mode"`
	GPIO0Designation GPIODesignation `yaml:"GP0_designation"`
	GPIO1Mode        GPIOMode        `yaml:"GP1_mode"`
	GPIO1Designation GPIODesignation `yaml:"GP1_designation"`
	GPIO2Mode        GPIOMode        `yaml:"GP2_mode"`
	GPIO2Designation GPIODesignation `yaml:"GP2_designation"`
	GPIO3Mode        GPIOMode        `yaml:"GP3_mode"`
	GPIO3Designation GPIODesignation `yaml:"GP3_designation"`
}

// NewMCP2221 creates an adapter handle. id selects one of several attached
// adapters by enumeration index.
func NewMCP2221(id ...int) *MCP2221 {
	d := &MCP2221{
		request:      make([]byte, 64),
		response:     make([]byte, 64),
		responseWait: 50 * time.Millisecond,
		id:           id,
	}
	d.openDevice = d.open
	return d
}

// Init checks that the adapter is attached.
func (d *MCP2221) Init() error {
	devs := hid.Enumerate(VendorID, ProductID)
	if len(devs) == 0 {
		return fmt.Errorf("MCP2221 device not found")
	}
	if len(devs) > 1 && len(d.id) == 0 {
		return fmt.Errorf("ambiguous device identification: %d adapters attached", len(devs))
	}
	return nil
}

func (d *MCP2221) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if err := d.write(ctx, cmdWrite, address, buffer); err != nil {
		return fmt.Errorf("write to %x failed: %w", address, err)
	}
	return nil
}

func (d *MCP2221) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if err := d.read(ctx, cmdRead, address, buffer); err != nil {
		return fmt.Errorf("bus read from %x failed: %w", address, err)
	}
	return nil
}

// Exec maps ops onto one I2C transfer: a plain write, a plain read, or a write
// without STOP followed by a repeated-start read.
func (d *MCP2221) Exec(ctx context.Context, address byte, ops []pn532.Operation) error {
	w, r, err := pn532.Coalesce(ops)
	if err != nil {
		return err
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	switch {
	case len(r) == 0:
		err = d.write(ctx, cmdWrite, address, w)
	case len(w) == 0:
		err = d.read(ctx, cmdRead, address, r)
	default:
		err = d.write(ctx, cmdWriteNoStop, address, w)
		if err == nil {
			err = d.read(ctx, cmdReadRepeatStart, address, r)
		}
	}
	if err != nil {
		return fmt.Errorf("transaction on %x failed: %w", address, err)
	}
	pn532.Scatter(ops, r)
	return nil
}

// write sends buffer in reports of up to maxChunk bytes. Every report repeats
// the command header with the total transfer length.
func (d *MCP2221) write(ctx context.Context, cmd byte, address byte, buffer []byte) error {
	for sent := 0; ; {
		end := min(sent+maxChunk, len(buffer))
		d.resetBuffers()
		encodeTransfer(d.request, cmd, address, len(buffer), buffer[sent:end])
		if err := d.send(ctx, true); err != nil {
			return err
		}
		if d.response[1] == 0x01 {
			slog.Debug("adapter busy", "address", address, "sent", sent)
			return pn532.ErrBusBusy
		}
		sent = end
		if sent >= len(buffer) {
			return nil
		}
	}
}

func (d *MCP2221) read(ctx context.Context, cmd byte, address byte, buffer []byte) error {
	d.resetBuffers()
	encodeTransfer(d.request, cmd, address, len(buffer), nil)
	if err := d.send(ctx, true); err != nil {
		return err
	}
	if d.response[1] == 0x01 {
		return pn532.ErrBusBusy
	}
	for got := 0; got < len(buffer); {
		d.resetBuffers()
		d.request[0] = cmdGetI2CData
		if err := d.send(ctx, true); err != nil {
			return fmt.Errorf("error getting read data from adapter: %w", err)
		}
		n, err := decodeChunk(d.response)
		if err != nil {
			return err
		}
		if n > len(buffer)-got {
			return fmt.Errorf("invalid data size byte; expected at most %d, got %d", len(buffer)-got, n)
		}
		copy(buffer[got:], d.response[4:4+n])
		got += n
	}
	return nil
}

// encodeTransfer fills an I2C read or write request for a transfer of length
// bytes. Reads carry the R/W bit in the address byte; writes carry chunk.
func encodeTransfer(req []byte, cmd byte, address byte, length int, chunk []byte) {
	req[0] = cmd
	binary.LittleEndian.PutUint16(req[1:3], uint16(length))
	req[3] = address << 1
	switch cmd {
	case cmdRead, cmdReadRepeatStart:
		req[3]++
	default:
		copy(req[4:], chunk)
	}
}

// decodeChunk validates a Get I2C Data response and returns the chunk size.
func decodeChunk(resp []byte) (int, error) {
	if resp[1] == 0x41 {
		return 0, fmt.Errorf("error reading the I2C slave data from the I2C engine")
	}
	n := int(resp[3])
	if n == 127 || n > maxChunk {
		return 0, fmt.Errorf("invalid data size byte %d", n)
	}
	if n == 0 {
		return 0, fmt.Errorf("adapter returned no data")
	}
	return n, nil
}

func (d *MCP2221) SetGPIOParameters(ctx context.Context, params MCP2221GPIOParameters) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	encodeGPIOParameters(d.request, params)
	err := d.send(ctx, true)
	if err != nil {
		return fmt.Errorf("set GP parameters command write failed: %w", err)
	}
	if d.response[1] == 0x01 {
		return ErrCommandFailed
	}
	return nil
}

func (d *MCP2221) GetGPIOParameters(ctx context.Context) (MCP2221GPIOParameters, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdGetSRAM
	err := d.send(ctx, true)
	if err != nil {
		return MCP2221GPIOParameters{}, fmt.Errorf("get GP parameters command write failed: %w", err)
	}
	if d.response[1] == 0x01 {
		return MCP2221GPIOParameters{}, ErrCommandUnsupported
	}
	return decodeGPIOParameters(d.response), nil
}

// SetGPIOInput makes GP pin n a plain GPIO input, leaving the other pins as
// they are.
func (d *MCP2221) SetGPIOInput(ctx context.Context, n int) error {
	params, err := d.GetGPIOParameters(ctx)
	if err != nil {
		return err
	}
	if err := params.setInput(n); err != nil {
		return err
	}
	slog.Debug("configuring GP pin as input", "pin", n)
	return d.SetGPIOParameters(ctx, params)
}

func (p *MCP2221GPIOParameters) setInput(n int) error {
	switch n {
	case 0:
		p.GPIO0Mode, p.GPIO0Designation = GPIOModeIn, GPIOOperation
	case 1:
		p.GPIO1Mode, p.GPIO1Designation = GPIOModeIn, GPIOOperation
	case 2:
		p.GPIO2Mode, p.GPIO2Designation = GPIOModeIn, GPIOOperation
	case 3:
		p.GPIO3Mode, p.GPIO3Designation = GPIOModeIn, GPIOOperation
	default:
		return fmt.Errorf("no GP pin %d", n)
	}
	return nil
}

// Set SRAM: byte 7 bit 7 enables the GP update, bytes 8-11 hold GP0-GP3.
func encodeGPIOParameters(req []byte, params MCP2221GPIOParameters) {
	req[0] = cmdSetSRAM
	req[7] = 0x80
	req[8] = byte(params.GPIO0Designation) | byte(params.GPIO0Mode)
	req[9] = byte(params.GPIO1Designation) | byte(params.GPIO1Mode)
	req[10] = byte(params.GPIO2Designation) | byte(params.GPIO2Mode)
	req[11] = byte(params.GPIO3Designation) | byte(params.GPIO3Mode)
}

// Get SRAM: bytes 22-25 hold GP0-GP3.
func decodeGPIOParameters(resp []byte) MCP2221GPIOParameters {
	return MCP2221GPIOParameters{
		GPIO0Mode:        GPIOMode(resp[22] & gpioModeMask),
		GPIO0Designation: GPIODesignation(resp[22] & gpioOperationMask),
		GPIO1Mode:        GPIOMode(resp[23] & gpioModeMask),
		GPIO1Designation: GPIODesignation(resp[23] & gpioOperationMask),
		GPIO2Mode:        GPIOMode(resp[24] & gpioModeMask),
		GPIO2Designation: GPIODesignation(resp[24] & gpioOperationMask),
		GPIO3Mode:        GPIOMode(resp[25] & gpioModeMask),
		GPIO3Designation: GPIODesignation(resp[25] & gpioOperationMask),
	}
}

func (d *MCP2221) ReadGPIO(ctx context.Context) (MCP2221GPIOValues, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdGetGPIO
	var res MCP2221GPIOValues
	if err := d.send(ctx, true); err != nil {
		return res, fmt.Errorf("read GPIO values command write failed: %w", err)
	}
	if d.response[1] == 0x01 {
		return res, ErrCommandFailed
	}
	return decodeGPIO(d.response), nil
}

func decodeGPIO(resp []byte) MCP2221GPIOValues {
	mode := func(b byte) GPIOMode {
		if b == byte(GPIOModeNoOperation) {
			return GPIOModeNoOperation
		}
		return GPIOMode(b << 3)
	}
	return MCP2221GPIOValues{
		GPIO0Value: resp[2], GPIO0Mode: mode(resp[3]),
		GPIO1Value: resp[4], GPIO1Mode: mode(resp[5]),
		GPIO2Value: resp[6], GPIO2Mode: mode(resp[7]),
		GPIO3Value: resp[8], GPIO3Mode: mode(resp[9]),
	}
}

// GPIOPin exposes GP pin n as a level source, e.g. for the PN532 IRQ line.
func (d *MCP2221) GPIOPin(n int) *GPPin {
	return &GPPin{dev: d, n: n}
}

type GPPin struct {
	dev *MCP2221
	n   int
}

func (p *GPPin) ReadLevel(ctx context.Context) (gpio.Level, error) {
	values, err := p.dev.ReadGPIO(ctx)
	if err != nil {
		return gpio.Low, err
	}
	v, err := values.Value(p.n)
	if err != nil {
		return gpio.Low, err
	}
	return gpio.Level(v != 0), nil
}

func (p *GPPin) String() string {
	return fmt.Sprintf("MCP2221/GP%d", p.n)
}

func (d *MCP2221) Status(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatus
	err := d.send(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func bufferToStatus(buffer []byte) *MCP2221Status {
	status := &MCP2221Status{
		I2CDataBufferCounter: int(buffer[13]),
		I2CSpeedDivider:      int(buffer[14]),
		I2CTimeout:           int(buffer[15]),
		ReadPending:          int(buffer[25]),
		CurrentAddress:       hex.EncodeToString(buffer[16:18]),
	}
	status.LastWriteRequestedSize = binary.LittleEndian.Uint16(buffer[9:11])
	status.LastWriteSentSize = binary.LittleEndian.Uint16(buffer[11:13])
	return status
}

func (d *MCP2221) Release(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	_, err := d.releaseBus(ctx)
	return err
}

// ReleaseBus cancels the current I2C transfer and returns the engine status.
func (d *MCP2221) ReleaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.releaseBus(ctx)
}

func (d *MCP2221) releaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.resetBuffers()
	d.request[0] = cmdStatus
	d.request[2] = 0x10
	err := d.send(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("release request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func (d *MCP2221) open() (hidDevice, error) {
	devs := hid.Enumerate(VendorID, ProductID)
	if len(devs) == 0 {
		return nil, fmt.Errorf("MCP2221 device not found")
	}
	if len(d.id) == 0 {
		if len(devs) > 1 {
			return nil, fmt.Errorf("ambiguous device identification")
		}
		return openHID(devs[0])
	}
	if d.id[0] < 0 || d.id[0] >= len(devs) {
		return nil, fmt.Errorf("no device with id %d", d.id[0])
	}
	return openHID(devs[d.id[0]])
}

func openHID(info hid.DeviceInfo) (hidDevice, error) {
	dev, err := info.Open()
	if err != nil {
		return nil, err
	}
	return dev, nil
}

func (d *MCP2221) send(ctx context.Context, response bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dev, err := d.openDevice()
	if err != nil {
		return fmt.Errorf("error opening device: %w", err)
	}
	defer func() {
		if err := dev.Close(); err != nil {
			slog.Debug("could not close adapter", "error", err)
		}
	}()
	verbose := pn532ctx.IsVerbose(ctx)
	if verbose {
		slog.Debug("sending message to adapter", "report", hex.Dump(d.request))
	}
	n, err := dev.Write(d.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != 64 {
		return fmt.Errorf("short write: %d", n)
	}
	if !response {
		return nil
	}
	time.Sleep(d.responseWait)
	n, err = dev.Read(d.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != 64 {
		return fmt.Errorf("short read: %d", n)
	}
	if verbose {
		slog.Debug("read message from adapter", "report", hex.Dump(d.response))
	}
	return nil
}

func (d *MCP2221) resetBuffers() {
	resetBuffer(d.request)
	resetBuffer(d.response)
}

func resetBuffer(buf []byte) {
	for i := range buf {
		buf[i] = 0x00
	}
}
