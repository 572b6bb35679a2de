// Package spjs talks to a serial-port-json-server over its websocket API.
package spjs

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mastercactapus/surfscan/logger"
)

// ErrClosed is returned for writes after Close.
var ErrClosed = errors.New("spjs: closed")

const reconnectDelay = 3 * time.Second

type SPJS struct {
	url string
	log *logger.Logger

	outgoing  chan message
	incomming chan interface{}

	closeOnce sync.Once
	closed    chan struct{}
}

type message struct {
	done    chan struct{}
	payload []byte
}

type DataFrame struct {
	Port string `json:"P"`
	Data string `json:"D"`
}
type CmdStatus struct {
	Cmd        string
	QueueCount int `json:"QCnt"`
	Type       []string
	Data       []string `json:"D"`
	ID         string   `json:"Id"`
}

type ErrorMessage struct {
	Error string
}
type Version struct {
	Version string
}
type Hostname struct {
	Hostname string
}
type SerialPortList struct {
	SerialPorts []SerialPort
}
type SerialPort struct {
	Name                      string
	Friendly                  string
	SerialNumber              string
	DeviceClass               string
	IsOpen                    bool
	IsPrimary                 bool
	RelatedNames              []string
	Baud                      int
	BufferAlgorithm           string
	AvailableBufferAlgorithms []string
	Ver                       float64
	USBVID                    string
	USBPID                    string
	FeedRateOverride          float64
}

// NewSPJS starts a client that keeps reconnecting to url until Close.
func NewSPJS(url string, log *logger.Logger) *SPJS {
	if log == nil {
		log = logger.Nop()
	}
	sp := &SPJS{
		url:       url,
		log:       log.With("spjs", url),
		outgoing:  make(chan message, 1000),
		incomming: make(chan interface{}, 1000),
		closed:    make(chan struct{}),
	}

	go sp.loop()

	return sp
}

// Messages delivers parsed server messages: *DataFrame, *CmdStatus,
// *SerialPortList, *ErrorMessage, *Version or *Hostname.
func (sp *SPJS) Messages() <-chan interface{} {
	return sp.incomming
}

func parseSPJSMessage(data []byte, msg map[string]json.RawMessage) (val interface{}, err error) {
	check := func(fieldName string, v interface{}) bool {
		if msg[fieldName] == nil {
			return false
		}
		val = v
		err = json.Unmarshal(data, val)
		return true
	}
	if check("Error", &ErrorMessage{}) {
		return
	}
	if check("Hostname", &Hostname{}) {
		return
	}
	if check("Version", &Version{}) {
		return
	}
	if check("SerialPorts", &SerialPortList{}) {
		return
	}
	if check("Type", &CmdStatus{}) {
		return
	}
	if check("Cmd", &CmdStatus{}) {
		return
	}
	if check("D", &DataFrame{}) {
		return
	}

	return nil, errors.New("unknown message: " + string(data))
}

func (sp *SPJS) readLoop(ws *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			sp.log.Warn("read", "error", err)
			return
		}
		if !bytes.HasPrefix(data, []byte("{")) {
			// ignore echo messages
			continue
		}
		var msg map[string]json.RawMessage
		err = json.Unmarshal(data, &msg)
		if err != nil {
			sp.log.Warn("read", "error", err)
			continue
		}
		val, err := parseSPJSMessage(data, msg)
		if err != nil {
			sp.log.Debug("parse", "error", err)
			continue
		}
		select {
		case sp.incomming <- val:
		case <-sp.closed:
			return
		}
	}
}

func (sp *SPJS) loop() {
	var nextUp message

reconnect:
	for {
		sp.log.Info("connecting")
		ws, _, err := websocket.DefaultDialer.Dial(sp.url, nil)
		if err != nil {
			sp.log.Error("connect", "error", err)
			select {
			case <-sp.closed:
				return
			case <-time.After(reconnectDelay):
			}
			continue
		}
		sp.log.Info("connected")
		ch := make(chan struct{})
		go sp.readLoop(ws, ch)

		for {
			if nextUp.done != nil {
				err = ws.WriteMessage(websocket.TextMessage, nextUp.payload)
				if err != nil {
					sp.log.Error("send", "error", err)
					ws.Close()
					continue reconnect
				}
				close(nextUp.done)
				nextUp.done = nil
			}

			select {
			case <-ch:
				ws.Close()
				continue reconnect
			case <-sp.closed:
				ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				ws.Close()
				return
			case nextUp = <-sp.outgoing:
			}
		}
	}
}

type JSON struct {
	Port string `json:"P"`
	Data []Data
}
type Data struct {
	Data string `json:"D"`
	ID   string `json:"Id"`
}

// SendJSON queues lines with IDs so the server reports their completion.
func (sp *SPJS) SendJSON(v JSON) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return sp.write(append([]byte("sendjson "), data...))
}

// WriteString sends a raw server command and waits until it is written.
func (sp *SPJS) WriteString(data string) error {
	return sp.write([]byte(data))
}

func (sp *SPJS) write(payload []byte) error {
	select {
	case <-sp.closed:
		return ErrClosed
	default:
	}
	ch := make(chan struct{})
	select {
	case sp.outgoing <- message{done: ch, payload: payload}:
	case <-sp.closed:
		return ErrClosed
	}
	select {
	case <-ch:
		return nil
	case <-sp.closed:
		return ErrClosed
	}
}

func (sp *SPJS) Close() error {
	sp.closeOnce.Do(func() { close(sp.closed) })
	return nil
}
