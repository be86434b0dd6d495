package devicemux

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"sync"
	"time"
)

// MockDevicePort implements DevicePorter for dev mode without hardware.
type MockDevicePort struct {
	io.Reader
	io.WriteCloser
}

func (m *MockDevicePort) Write(p []byte) (n int, err error) {
	return m.WriteCloser.Write(p)
}

// NewMockDeviceMux creates a DeviceMux backed by a synthetic board: a
// vitals line each second with values random-walking around resting
// levels. Commands written to the mock are captured in a temp file.
func NewMockDeviceMux() *DeviceMux[*MockDevicePort] {
	r, w := io.Pipe()
	f, err := os.CreateTemp("", "devicemux_mock")
	if err != nil {
		panic("failed to create temp file for mock device port: " + err.Error())
	}
	log.Printf("Writing mock device port received input at %s", f.Name())

	mockPort := &MockDevicePort{
		Reader:      r,
		WriteCloser: f,
	}

	// generate data periodically to simulate device input
	go func() {
		defer w.Close()

		hr := 68.0
		temp := 33.2
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			hr += rand.Float64()*4 - 2
			if hr < 48 {
				hr = 48
			}
			if hr > 140 {
				hr = 140
			}
			temp += rand.Float64()*0.2 - 0.1

			line := fmt.Sprintf("HR:%.1f,RR:%.0f,BR:%.1f,TEMP:%.2f,SPO2:%.0f\n",
				hr,
				60000/hr+rand.Float64()*40-20,
				12+rand.Float64()*4,
				temp,
				96+rand.Float64()*3,
			)
			if _, err := w.Write([]byte(line)); err != nil {
				return
			}
		}
	}()

	return NewDeviceMux(mockPort)
}

// TestableDevicePort is an in-memory DevicePorter with injectable
// failures. Reads drain ReadBuffer and hit EOF when it empties, writes
// land in WriteBuffer, and a pending ReadError or WriteError is returned
// once, then cleared.
type TestableDevicePort struct {
	mu sync.Mutex

	ReadBuffer  *bytes.Buffer
	WriteBuffer *bytes.Buffer

	ReadError  error
	WriteError error
	CloseError error
	Closed     bool
}

func NewTestableDevicePort() *TestableDevicePort {
	return &TestableDevicePort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
}

func (t *TestableDevicePort) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Closed {
		return 0, errors.New("device port closed")
	}

	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}

	return t.ReadBuffer.Read(p)
}

func (t *TestableDevicePort) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Closed {
		return 0, errors.New("device port closed")
	}

	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}

	return t.WriteBuffer.Write(p)
}

func (t *TestableDevicePort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Closed = true
	return t.CloseError
}

// AddReadData appends data for subsequent Read calls to return.
func (t *TestableDevicePort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadBuffer.Write(data)
}
