package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: YAML for that device. Missing keys keep their Defaults() value.
// -----------------------------------------------------------------------------

const cfgHost = `
receiver:
  i2c_bus: ""
  address: 0x11
  irq_pin: ""
  frequency: 162.55
  xosc: true
  poll_interval: 50ms
  properties:
    GPO_IEN: 0x000F
    RX_VOLUME: 63
    WB_SAME_INTERRUPT_SOURCE: 0x000F
    WB_ASQ_INTERRUPT_SOURCE: 0x0001
heartbeat:
  interval: 30s
relay:
  enabled: false
  port: /dev/ttyUSB0
  baud: 9600
wsfeed:
  enabled: true
  listen: ":8080"
  path: /events
log:
  level: info
`

const cfgPico = `
receiver:
  i2c_bus: i2c0
  address: 0x11
  irq_pin: GP15
  frequency: 162.55
  xosc: true
  properties:
    GPO_IEN: 0x000F
    RX_VOLUME: 63
    WB_SAME_INTERRUPT_SOURCE: 0x000F
    WB_ASQ_INTERRUPT_SOURCE: 0x0001
heartbeat:
  interval: 60s
relay:
  enabled: true
  port: uart1
  baud: 9600
log:
  level: info
`

const cfgSim = `
receiver:
  simulate: true
  frequency: 162.475
  xosc: false
  poll_interval: 20ms
  properties:
    RX_VOLUME: 40
    WB_SAME_INTERRUPT_SOURCE: 0x000F
heartbeat:
  interval: 5s
wsfeed:
  enabled: true
  listen: "127.0.0.1:8080"
log:
  level: debug
`

var embeddedConfigs = map[string][]byte{
	"host": []byte(cfgHost),
	"pico": []byte(cfgPico),
	"sim":  []byte(cfgSim),
}
