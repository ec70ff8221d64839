package si4707

import (
	"fmt"
	"sort"
)

// PropertyDescriptor describes one chip property.
type PropertyDescriptor struct {
	Name    string
	Code    uint16
	Default uint16
	Valid   func(uint16) bool
	Doc     string
}

func between(lo, hi uint16) func(uint16) bool {
	return func(v uint16) bool { return v >= lo && v <= hi }
}

func mask(m uint16) func(uint16) bool {
	return func(v uint16) bool { return v&^m == 0 }
}

var propertyTable = []PropertyDescriptor{
	{"GPO_IEN", 0x0001, 0x0000, mask(0x0FCF), "interrupt enables and repeat bits"},
	{"REFCLK_FREQ", 0x0201, 32768, between(31130, 34406), "reference clock Hz"},
	{"REFCLK_PRESCALE", 0x0202, 1, func(v uint16) bool { return v&^0x1FFF == 0 && v&0x0FFF != 0 }, "prescaler and RCLKSEL"},
	{"RX_VOLUME", 0x4000, 63, between(0, 63), "audio volume"},
	{"RX_HARD_MUTE", 0x4001, 0, between(0, 3), "left/right hard mute"},
	{"WB_MAX_TUNE_ERROR", 0x5108, 10, between(0, 30), "max tune error kHz"},
	{"WB_RSQ_INT_SOURCE", 0x5200, 0, mask(0x000F), "RSQ interrupt sources"},
	{"WB_RSQ_SNR_HI_THRESHOLD", 0x5201, 127, between(0, 127), "SNR high threshold dB"},
	{"WB_RSQ_SNR_LO_THRESHOLD", 0x5202, 0, between(0, 127), "SNR low threshold dB"},
	{"WB_RSQ_RSSI_HI_THRESHOLD", 0x5203, 127, between(0, 127), "RSSI high threshold dBuV"},
	{"WB_RSQ_RSSI_LO_THRESHOLD", 0x5204, 0, between(0, 127), "RSSI low threshold dBuV"},
	{"WB_VALID_SNR_THRESHOLD", 0x5403, 3, between(0, 127), "valid channel SNR dB"},
	{"WB_VALID_RSSI_THRESHOLD", 0x5404, 20, between(0, 127), "valid channel RSSI dBuV"},
	{"WB_SAME_INTERRUPT_SOURCE", 0x5500, 0, mask(0x000F), "SAME interrupt sources"},
	{"WB_ASQ_INTERRUPT_SOURCE", 0x5600, 0, mask(0x0003), "1050 Hz tone interrupt sources"},
}

var propertyIndex = func() map[string]*PropertyDescriptor {
	m := make(map[string]*PropertyDescriptor, len(propertyTable))
	for i := range propertyTable {
		m[propertyTable[i].Name] = &propertyTable[i]
	}
	return m
}()

// LookupProperty resolves a property by name.
func LookupProperty(name string) (PropertyDescriptor, bool) {
	d, ok := propertyIndex[name]
	if !ok {
		return PropertyDescriptor{}, false
	}
	return *d, true
}

// PropertyNames lists the known properties in sorted order.
func PropertyNames() []string {
	out := make([]string, 0, len(propertyTable))
	for _, d := range propertyTable {
		out = append(out, d.Name)
	}
	sort.Strings(out)
	return out
}

// Property is a named chip property with the value being set or read.
type Property struct {
	Name  string
	Code  uint16
	Value uint16
	valid func(uint16) bool
}

// NewProperty resolves name. The value is not validated here.
func NewProperty(name string, value uint16) (*Property, error) {
	d, ok := LookupProperty(name)
	if !ok {
		return nil, &ValidationError{Op: "PROPERTY", Field: "name", Value: name, Reason: "unknown property"}
	}
	return &Property{Name: d.Name, Code: d.Code, Value: value, valid: d.Valid}, nil
}

// Valid reports whether v is accepted for this property.
func (p *Property) Valid(v uint16) bool {
	if p.valid == nil {
		return true
	}
	return p.valid(v)
}

func (p *Property) String() string {
	return fmt.Sprintf("%s(0x%04X)=0x%04X", p.Name, p.Code, p.Value)
}
