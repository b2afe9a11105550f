package midi

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	"github.com/nerrad567/cuebridge/internal/module"
	"github.com/nerrad567/cuebridge/internal/timecode"
)

// Port is a MIDI output. WriteMIDI must be safe for concurrent use because
// the timecode generator writes alongside the trigger queue.
type Port interface {
	timecode.Output
	Connected() bool
	String() string
	Close() error
}

// devicePort writes raw bytes to a character device such as
// /dev/snd/midiC1D0. The device is opened lazily and reopened after a
// failed write so an unplugged interface recovers when it returns.
type devicePort struct {
	path string

	mu   sync.Mutex
	file *os.File
}

func newDevicePort(path string) *devicePort {
	return &devicePort{path: path}
}

func (p *devicePort) WriteMIDI(msgs [][]byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file == nil {
		f, err := os.OpenFile(p.path, os.O_WRONLY|os.O_APPEND, 0)
		if err != nil {
			return fmt.Errorf("open %s: %w", p.path, err)
		}
		p.file = f
	}
	if _, err := p.file.Write(bytes.Join(msgs, nil)); err != nil {
		p.file.Close()
		p.file = nil
		return fmt.Errorf("write %s: %w", p.path, err)
	}
	return nil
}

func (p *devicePort) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.file != nil
}

func (p *devicePort) String() string { return p.path }

func (p *devicePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file == nil {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	return err
}

// relayPort publishes each burst as one binary MQTT message for a remote
// MIDI relay to replay in order.
type relayPort struct {
	pub   module.Publisher
	topic string
	qos   byte

	mu     sync.Mutex
	lastOK bool
}

func (p *relayPort) WriteMIDI(msgs [][]byte) error {
	err := p.pub.Publish(p.topic, bytes.Join(msgs, nil), p.qos, false)
	p.mu.Lock()
	p.lastOK = err == nil
	p.mu.Unlock()
	return err
}

func (p *relayPort) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastOK
}

func (p *relayPort) String() string { return "mqtt:" + p.topic }

func (p *relayPort) Close() error { return nil }
